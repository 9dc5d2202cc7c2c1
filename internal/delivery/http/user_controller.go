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

type UserController struct {
	UserUsecase *usecase.UserUsecase
	Log         *zap.Logger
	Config      *koanf.Koanf
}

func NewUserController(userUsecase *usecase.UserUsecase, zap *zap.Logger, koanf *koanf.Koanf) *UserController {
	return &UserController{
		UserUsecase: userUsecase,
		Log:         zap,
		Config:      koanf,
	}
}

func (controller UserController) Login(ctx *fiber.Ctx) error {
	var payload model.UserLoginRequest
	err := util.ReadRequestBody(ctx, &payload)
	if err != nil {
		return util.SendErrorResponse(ctx, &model.ValidationError{
			Code:    constant.ERR_INVALID_REQUEST_BODY_ERROR_CODE,
			Message: constant.ERR_INVALID_REQUEST_BODY_MESSAGE,
		})
	}

	var validationErr *model.ValidationError

	response, err := controller.UserUsecase.Login(ctx, payload)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponse(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller UserController) GetProfile(ctx *fiber.Ctx) error {
	userId := ctx.Locals("userId").(string)

	var validationErr *model.ValidationError

	response, err := controller.UserUsecase.GetProfile(ctx, userId)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponseNotFound(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller UserController) GetTrustscore(ctx *fiber.Ctx) error {
	userId := ctx.Locals("userId").(string)

	var validationErr *model.ValidationError

	response, err := controller.UserUsecase.GetTrustscore(ctx.Context(), userId)
	if err != nil {
		if errors.As(err, &validationErr) {
			return util.SendErrorResponseNotFound(ctx, err)
		}

		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseWithData(ctx, response)
}

func (controller UserController) Logout(ctx *fiber.Ctx) error {
	userId := ctx.Locals("userId").(string)

	err := controller.UserUsecase.Logout(ctx, userId)
	if err != nil {
		return util.SendErrorResponseInternalServer(ctx, middleware.GetLoggerFromContext(ctx, controller.Log), err)
	}

	return util.SendSuccessResponseNoData(ctx)
}
