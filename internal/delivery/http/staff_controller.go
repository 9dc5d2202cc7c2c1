package http

import (
	"errors"
	"strconv"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/middleware"
	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/relay"
	"github.com/relkin/staffportal/internal/usecase"
	"github.com/relkin/staffportal/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

type StaffController struct {
	ModerationUsecase *usecase.ModerationUsecase
	UserUsecase       *usecase.UserUsecase
	ServerUsecase     *usecase.ServerUsecase
	Log               *zap.Logger
	Config            *koanf.Koanf
}

func NewStaffController(moderationUsecase *usecase.ModerationUsecase, userUsecase *usecase.UserUsecase, serverUsecase *usecase.ServerUsecase, zap *zap.Logger, koanf *koanf.Koanf) *StaffController {
	return &StaffController{
		ModerationUsecase: moderationUsecase,
		UserUsecase:       userUsecase,
		ServerUsecase:     serverUsecase,
		Log:               zap,
		Config:            koanf,
	}
}

func (controller StaffController) ListPlayers(ctx *fiber.Ctx) error {
	response, err := controller.UserUsecase.ListPlayers(ctx)
	if err != nil {
		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller StaffController) GetPlayerDetail(ctx *fiber.Ctx) error {
	playerId := ctx.Params("playerId")

	var validationErr *model.ValidationError

	response, err := controller.UserUsecase.GetPlayerDetail(ctx, playerId)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponseNotFound(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller StaffController) WarnPlayer(ctx *fiber.Ctx) error {
	return controller.moderate(ctx, func(staffId string, payload model.ModerationActionRequest) error {
		return controller.ModerationUsecase.Warn(ctx.Context(), staffId, payload.Id, payload.Reason)
	})
}

func (controller StaffController) KickPlayer(ctx *fiber.Ctx) error {
	return controller.moderate(ctx, func(staffId string, payload model.ModerationActionRequest) error {
		return controller.ModerationUsecase.Kick(ctx.Context(), staffId, payload.Id, payload.Reason)
	})
}

func (controller StaffController) BanPlayer(ctx *fiber.Ctx) error {
	return controller.moderate(ctx, func(staffId string, payload model.ModerationActionRequest) error {
		if payload.Length == nil {
			return &model.ValidationError{
				Code:    constant.ERR_VALIDATION_CODE,
				Message: "Ban length is required, 0 means permanent",
				Param:   "length",
			}
		}
		return controller.ModerationUsecase.Ban(ctx.Context(), staffId, payload.Id, payload.Reason, *payload.Length)
	})
}

func (controller StaffController) CommendPlayer(ctx *fiber.Ctx) error {
	return controller.moderate(ctx, func(staffId string, payload model.ModerationActionRequest) error {
		return controller.ModerationUsecase.Commend(ctx.Context(), staffId, payload.Id, payload.Reason)
	})
}

func (controller StaffController) NotePlayer(ctx *fiber.Ctx) error {
	return controller.moderate(ctx, func(staffId string, payload model.ModerationActionRequest) error {
		return controller.ModerationUsecase.Note(ctx.Context(), staffId, payload.Id, payload.Reason)
	})
}

func (controller StaffController) RemoveRecord(ctx *fiber.Ctx) error {
	staffId := ctx.Locals("userId").(string)

	recordId, err := strconv.Atoi(ctx.Params("recordId"))
	if err != nil {
		return util.SendErrorResponse(ctx, &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Record id must be a number",
			Param:   "recordId",
		})
	}

	kind := ctx.Params("kind")
	switch kind {
	case "warnings":
		err = controller.ModerationUsecase.RemoveWarn(ctx.Context(), staffId, recordId)
	case "kicks":
		err = controller.ModerationUsecase.RemoveKick(ctx.Context(), staffId, recordId)
	case "bans":
		err = controller.ModerationUsecase.RemoveBan(ctx.Context(), staffId, recordId)
	case "commends":
		err = controller.ModerationUsecase.RemoveCommend(ctx.Context(), staffId, recordId)
	case "notes":
		err = controller.ModerationUsecase.RemoveNote(ctx.Context(), staffId, recordId)
	default:
		return util.SendErrorResponse(ctx, &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Unknown record kind",
			Param:   "kind",
		})
	}

	if err != nil {
		return controller.sendModerationError(ctx, err)
	}

	return util.SendSuccessResponseNoData(ctx)
}

// GetOwnStats reports the caller's own punishment totals. Reading another
// staff member's stats goes through the admin surface.
func (controller StaffController) GetOwnStats(ctx *fiber.Ctx) error {
	staffId := ctx.Locals("userId").(string)

	var validationErr *model.ValidationError

	response, err := controller.ModerationUsecase.StaffStats(ctx.Context(), staffId)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponseNotFound(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller StaffController) ListServers(ctx *fiber.Ctx) error {
	response, err := controller.ServerUsecase.ListServers(ctx)
	if err != nil {
		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller StaffController) GetServerDetail(ctx *fiber.Ctx) error {
	identifier := ctx.Params("identifier")

	var validationErr *model.ValidationError

	response, err := controller.ServerUsecase.GetServerDetail(ctx, identifier)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponseNotFound(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller StaffController) moderate(ctx *fiber.Ctx, action func(staffId string, payload model.ModerationActionRequest) error) error {
	staffId := ctx.Locals("userId").(string)

	var payload model.ModerationActionRequest
	err := util.ReadRequestBody(ctx, &payload)
	if err != nil {
		return util.SendErrorResponse(ctx, &model.ValidationError{
			Code:    constant.ERR_INVALID_REQUEST_BODY_ERROR_CODE,
			Message: constant.ERR_INVALID_REQUEST_BODY_MESSAGE,
		})
	}

	err = action(staffId, payload)
	if err != nil {
		return controller.sendModerationError(ctx, err)
	}

	return util.SendSuccessResponseNoData(ctx)
}

func (controller StaffController) sendModerationError(ctx *fiber.Ctx, err error) error {
	if errors.Is(err, relay.ErrUnauthorized) {
		return util.SendErrorResponseForbidden(ctx)
	}

	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return util.SendErrorResponse(ctx, err)
	}

	return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
}
