package http

import (
	"errors"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/middleware"
	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/usecase"
	"github.com/relkin/staffportal/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

type AdminController struct {
	ServerUsecase     *usecase.ServerUsecase
	ModerationUsecase *usecase.ModerationUsecase
	Log               *zap.Logger
	Config            *koanf.Koanf
}

func NewAdminController(serverUsecase *usecase.ServerUsecase, moderationUsecase *usecase.ModerationUsecase, zap *zap.Logger, koanf *koanf.Koanf) *AdminController {
	return &AdminController{
		ServerUsecase:     serverUsecase,
		ModerationUsecase: moderationUsecase,
		Log:               zap,
		Config:            koanf,
	}
}

func (controller AdminController) CreateServer(ctx *fiber.Ctx) error {
	var payload model.ServerCreateRequest
	err := util.ReadRequestBody(ctx, &payload)
	if err != nil {
		return util.SendErrorResponse(ctx, &model.ValidationError{
			Code:    constant.ERR_INVALID_REQUEST_BODY_ERROR_CODE,
			Message: constant.ERR_INVALID_REQUEST_BODY_MESSAGE,
		})
	}

	var validationErr *model.ValidationError

	err = controller.ServerUsecase.CreateServer(ctx, payload)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponse(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseNoData(ctx)
}

func (controller AdminController) GetStaffStats(ctx *fiber.Ctx) error {
	staffId := ctx.Params("staffId")

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

func (controller AdminController) DeleteServer(ctx *fiber.Ctx) error {
	identifier := ctx.Params("identifier")

	var validationErr *model.ValidationError

	err := controller.ServerUsecase.DeleteServer(ctx, identifier)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponseNotFound(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseNoData(ctx)
}
