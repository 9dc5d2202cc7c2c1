package middleware

import (
	"errors"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/relay"
	"github.com/relkin/staffportal/internal/usecase"
	"github.com/relkin/staffportal/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

type AuthMiddleware struct {
	App               *fiber.App
	Log               *zap.Logger
	Config            *koanf.Koanf
	UserUsecase       *usecase.UserUsecase
	ModerationUsecase *usecase.ModerationUsecase
}

func NewAuthMiddleware(app *fiber.App, zap *zap.Logger, koanf *koanf.Koanf, userUsecase *usecase.UserUsecase, moderationUsecase *usecase.ModerationUsecase) *AuthMiddleware {
	return &AuthMiddleware{
		App:               app,
		Log:               zap,
		Config:            koanf,
		UserUsecase:       userUsecase,
		ModerationUsecase: moderationUsecase,
	}
}

func (middleware *AuthMiddleware) ProtectedRoute() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		var validationErr *model.ValidationError

		accessToken := ctx.Get("Authorization")
		tokenString, userId, err := util.ValidateAccessToken(accessToken, middleware.Log, middleware.Config.String("JWT_SECRET_KEY"))
		if err != nil {
			if errors.As(err, &validationErr) {
				return util.SendErrorResponseNotFound(ctx, err)
			}

			return util.SendErrorResponseInternalServer(ctx, middleware.Log, err)
		}

		err = middleware.UserUsecase.GetAccessToken(ctx, userId, tokenString)
		if err != nil {
			if errors.As(err, &validationErr) {
				return util.SendErrorResponseNotFound(ctx, err)
			}

			return util.SendErrorResponseInternalServer(ctx, middleware.Log, err)
		}

		ctx.Locals("userId", userId)

		return ctx.Next()
	}
}

// RequireCapability gates a route behind one role-table capability. Roles
// are re-derived per request, never trusted from the session.
func (middleware *AuthMiddleware) RequireCapability(capability string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		userId := ctx.Locals("userId").(string)

		err := middleware.ModerationUsecase.Authorize(ctx.Context(), userId, capability)
		if err != nil {
			if errors.Is(err, relay.ErrUnauthorized) {
				return util.SendErrorResponseForbidden(ctx)
			}

			return util.SendErrorResponseInternalServer(ctx, middleware.Log, err)
		}

		return ctx.Next()
	}
}
