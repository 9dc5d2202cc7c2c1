package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2/middleware/compress"
	zapLog "go.uber.org/zap"

	"github.com/relkin/staffportal/internal/config"
	middleware "github.com/relkin/staffportal/internal/exception"
	tracemw "github.com/relkin/staffportal/internal/middleware"
	"github.com/relkin/staffportal/internal/observability"
)

func main() {
	time.Local = time.UTC

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	fiber := config.NewFiber()
	zap := config.NewZap()
	koanf := config.NewKoanf(zap)
	rds := config.NewRedisClient(koanf, zap)
	postgresql := config.NewPostgresqlPool(koanf, zap)
	permTable := config.NewPermTable(koanf, zap)

	// Custom recovery middleware to handle panics with JSON response
	fiber.Use(middleware.Recovery(zap))

	fiber.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	obsConfig := config.LoadObservabilityConfig(koanf, zap)
	if obsConfig.OtelEndpoint != "" {
		shutdownTracer, err := observability.Init(appCtx, obsConfig, zap)
		if err != nil {
			zap.Fatal("failed to initialize tracing", zapLog.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = shutdownTracer(shutdownCtx)
		}()

		fiber.Use(otelfiber.Middleware())
		fiber.Use(tracemw.TraceLoggerMiddleware(zap))
	}

	config.Server(appCtx, &config.ServerConfig{
		Router:  fiber,
		DB:      postgresql,
		DBCache: rds,
		Log:     zap,
		Config:  koanf,
		Perm:    permTable,
	})

	GO_SERVER_PORT := koanf.String("GO_SERVER")

	zap.Info("Server is running on: " + GO_SERVER_PORT)

	var err error
	go func() {
		err = fiber.Listen(GO_SERVER_PORT)
		if err != nil {
			zap.Fatal("error starting server", zapLog.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	zap.Info("got one of stop signals")
	appCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = fiber.ShutdownWithContext(shutdownCtx)
	if err != nil {
		zap.Warn("timeout, forced kill!", zapLog.Error(err))
		_ = zap.Sync()
		os.Exit(1)
	}

	zap.Info("server has shut down gracefully")
	_ = zap.Sync()
}
