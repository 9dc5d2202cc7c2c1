package config

import (
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

func NewKoanf(log *zap.Logger) *koanf.Koanf {
	k := koanf.New(".")

	// .env is for local development; a missing file is fine in containers
	err := k.Load(file.Provider(".env"), dotenv.Parser())
	if err != nil {
		log.Debug(".env file not found, using environment variables", zap.Error(err))
	}

	// environment variables override the .env file
	err = k.Load(env.Provider("", ".", nil), nil)
	if err != nil {
		log.Fatal("failed to load environment variables", zap.Error(err))
	}

	return k
}
