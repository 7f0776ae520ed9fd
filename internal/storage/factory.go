// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/trackfit/autobone/internal/config"
	"github.com/trackfit/autobone/internal/storage/jsonfile"
	"github.com/trackfit/autobone/internal/storage/postgres"
	sqlitestorage "github.com/trackfit/autobone/internal/storage/sqlite"
)

// NewBackend creates a recording store based on configuration.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "jsonfile", "":
		return jsonfile.New(cfg.JSONFile, logger), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, logger)
	case "postgres":
		return postgres.New(cfg.Postgres, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
