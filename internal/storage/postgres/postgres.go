// Package postgres implements the storage.Backend interface on PostgreSQL.
// The connection is opened on Init; storage is the embedded GORM backend.
package postgres

import (
	"log/slog"

	"github.com/trackfit/autobone/internal/database"
	gormstorage "github.com/trackfit/autobone/internal/storage/gorm"
	"gorm.io/gorm"
)

// Backend is a GORM backend bound to a PostgreSQL server.
type Backend struct {
	*gormstorage.Backend
	cfg database.PostgresConfig
}

// New creates a backend that connects to cfg on Init.
func New(cfg database.PostgresConfig, logger *slog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			Open:   func() (*gorm.DB, error) { return database.OpenPostgres(cfg) },
			Logger: logger,
		}),
		cfg: cfg,
	}
}

// Config returns the connection settings.
func (b *Backend) Config() database.PostgresConfig {
	return b.cfg
}
