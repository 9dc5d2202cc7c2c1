package config

import (
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/perm"
)

func NewPermTable(config *koanf.Koanf, log *zap.Logger) *perm.Table {
	path := config.String("ROLES_FILE")
	if path == "" {
		path = "roles.json"
	}

	table, err := perm.Load(path)
	if err != nil {
		log.Fatal("failed to load role table", zap.String("path", path), zap.Error(err))
	}

	return table
}
