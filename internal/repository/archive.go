// Package repository persists extraction runs and the signature
// gallery. The archive has two interchangeable backends: embedded
// sqlite for single-host deployments and postgres for shared ones.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Config selects and tunes the archive backend.
type Config struct {
	Driver     string // "sqlite" (default) or "postgres"
	SQLitePath string

	// postgres pool settings
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Archive stores completed extraction runs.
type Archive interface {
	Insert(ctx context.Context, rec *entity.ExtractionRecord) error
	List(ctx context.Context, from, to *time.Time) ([]*entity.ExtractionRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// OpenArchive picks the backend from the configured driver.
func OpenArchive(ctx context.Context, cfg Config, logger *slog.Logger) (Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLiteArchive(cfg.SQLitePath, logger)
	case "postgres":
		return OpenPostgresArchive(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// prepareRecord fills the generated columns before insert.
func prepareRecord(rec *entity.ExtractionRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}
