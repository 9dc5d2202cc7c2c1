package config

import (
	"context"

	http "github.com/relkin/staffportal/internal/delivery/http"
	"github.com/relkin/staffportal/internal/delivery/http/middleware"
	"github.com/relkin/staffportal/internal/delivery/http/route"
	"github.com/relkin/staffportal/internal/discord"
	"github.com/relkin/staffportal/internal/jobs"
	"github.com/relkin/staffportal/internal/perm"
	"github.com/relkin/staffportal/internal/recent"
	"github.com/relkin/staffportal/internal/relay"
	"github.com/relkin/staffportal/internal/repository"
	"github.com/relkin/staffportal/internal/trust"
	"github.com/relkin/staffportal/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Router  *fiber.App
	DB      *pgxpool.Pool
	DBCache *redis.Client
	Log     *zap.Logger
	Config  *koanf.Koanf
	Perm    *perm.Table
}

func Server(ctx context.Context, config *ServerConfig) {
	hub := relay.NewHub(config.Log, config.Config.String("RELAY_TOKEN"))
	tracker := recent.NewTracker(config.Log)
	trustEngine := trust.NewEngine(config.Config.Int("TRUST_BASE_SCORE"))
	discordClient := discord.NewClient(config.Log, config.Config)

	userRepository := repository.NewUserRepository(config.Log, config.DB, config.DBCache)
	moderationRepository := repository.NewModerationRepository(config.Log, config.DB)
	serverRepository := repository.NewServerRepository(config.Log, config.DB)

	userUsecase := usecase.NewUserUsecase(userRepository, moderationRepository, discordClient, trustEngine, config.DB, config.Log, config.Config)
	moderationUsecase := usecase.NewModerationUsecase(moderationRepository, userRepository, discordClient, config.Perm, hub, config.Log, config.Config)
	serverUsecase := usecase.NewServerUsecase(serverRepository, hub, tracker, config.Log, config.Config)

	userController := http.NewUserController(userUsecase, config.Log, config.Config)
	staffController := http.NewStaffController(moderationUsecase, userUsecase, serverUsecase, config.Log, config.Config)
	adminController := http.NewAdminController(serverUsecase, moderationUsecase, config.Log, config.Config)
	relayController := http.NewRelayController(hub, userUsecase, moderationUsecase, serverUsecase, config.Log, config.Config)

	authMiddleware := middleware.NewAuthMiddleware(config.Router, config.Log, config.Config, userUsecase, moderationUsecase)

	config.Router.Use(middleware.SetupCORS(config.Config))
	config.Router.Use(middleware.SetupRateLimiter(config.Log))

	routeConfig := route.RouteConfig{
		App:             config.Router,
		AuthMiddleware:  authMiddleware,
		LoginLimiter:    middleware.SetupLoginRateLimiter(config.Log),
		UserController:  userController,
		StaffController: staffController,
		AdminController: adminController,
		RelayController: relayController,
	}

	routeConfig.SetupRoute()

	sweeper := jobs.NewPlaytimeSweeper(hub, userRepository, config.DB, config.Log)
	go sweeper.Run(ctx)
}
