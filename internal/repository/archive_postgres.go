package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const pgArchiveSchema = `
CREATE TABLE IF NOT EXISTS extractions (
	id UUID PRIMARY KEY,
	source_path TEXT NOT NULL,
	kind TEXT NOT NULL,
	fields_json JSONB,
	confidence DOUBLE PRECISION,
	method TEXT NOT NULL,
	ocr_chars INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions (created_at);
`

type postgresArchive struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgresArchive connects a pgx pool and ensures the schema.
func OpenPostgresArchive(ctx context.Context, cfg Config, logger *slog.Logger) (Archive, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("archive.open.failed", "driver", "postgres", "error", err)
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("archive.open.failed", "driver", "postgres", "error", err)
		return nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := pool.Exec(ctx, pgArchiveSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}

	logger.Info("archive.open", "driver", "postgres")
	return &postgresArchive{pool: pool, logger: logger}, nil
}

func (a *postgresArchive) Insert(ctx context.Context, rec *entity.ExtractionRecord) error {
	prepareRecord(rec)
	_, err := a.pool.Exec(ctx, `
		INSERT INTO extractions
			(id, source_path, kind, fields_json, confidence, method, ocr_chars, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.SourcePath, rec.Kind, fieldsOrNil(rec.FieldsJSON),
		rec.Confidence, rec.Method, rec.OCRChars, rec.Status, rec.ErrorMessage,
		rec.CreatedAt.UTC())
	if err != nil {
		a.logger.Error("archive.insert.failed", "id", rec.ID, "error", err)
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (a *postgresArchive) List(ctx context.Context, from, to *time.Time) ([]*entity.ExtractionRecord, error) {
	query := `SELECT id, source_path, kind, fields_json::text, confidence, method, ocr_chars, status, error_message, created_at FROM extractions`
	var (
		conds []string
		args  []any
	)
	if from != nil {
		args = append(args, from.UTC())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, to.UTC())
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}
	defer rows.Close()

	var out []*entity.ExtractionRecord
	for rows.Next() {
		rec, err := scanPgExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *postgresArchive) GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRecord, error) {
	row := a.pool.QueryRow(ctx, `
		SELECT id, source_path, kind, fields_json::text, confidence, method, ocr_chars, status, error_message, created_at
		FROM extractions WHERE id = $1`, id)
	rec, err := scanPgExtraction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError(fmt.Sprintf("extraction %s", id))
	}
	return rec, err
}

func (a *postgresArchive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *postgresArchive) Close() error {
	a.pool.Close()
	return nil
}

func scanPgExtraction(row pgx.Row) (*entity.ExtractionRecord, error) {
	var (
		rec    entity.ExtractionRecord
		fields *string
	)
	if err := row.Scan(&rec.ID, &rec.SourcePath, &rec.Kind, &fields, &rec.Confidence,
		&rec.Method, &rec.OCRChars, &rec.Status, &rec.ErrorMessage, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan extraction: %w", err)
	}
	if fields != nil {
		rec.FieldsJSON = []byte(*fields)
	}
	return &rec, nil
}
