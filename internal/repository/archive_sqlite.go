package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Timestamps are stored as unix nanoseconds so range queries order
// correctly regardless of the writer's timezone.
const archiveSchema = `
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	kind TEXT NOT NULL,
	fields_json TEXT,
	confidence REAL,
	method TEXT NOT NULL,
	ocr_chars INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions(created_at);
`

type sqliteArchive struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteArchive opens the embedded archive, creating the schema on
// first use.
func OpenSQLiteArchive(path string, logger *slog.Logger) (Archive, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	logger.Info("archive.open", "driver", "sqlite", "path", path)
	return &sqliteArchive{db: db, logger: logger}, nil
}

func (a *sqliteArchive) Insert(ctx context.Context, rec *entity.ExtractionRecord) error {
	prepareRecord(rec)
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO extractions
			(id, source_path, kind, fields_json, confidence, method, ocr_chars, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.SourcePath, rec.Kind, fieldsOrNil(rec.FieldsJSON),
		rec.Confidence, rec.Method, rec.OCRChars, rec.Status, rec.ErrorMessage,
		rec.CreatedAt.UnixNano())
	if err != nil {
		a.logger.Error("archive.insert.failed", "id", rec.ID, "error", err)
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (a *sqliteArchive) List(ctx context.Context, from, to *time.Time) ([]*entity.ExtractionRecord, error) {
	query := `SELECT id, source_path, kind, fields_json, confidence, method, ocr_chars, status, error_message, created_at FROM extractions`
	var (
		conds []string
		args  []any
	)
	if from != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, from.UnixNano())
	}
	if to != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, to.UnixNano())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}
	defer rows.Close()

	var out []*entity.ExtractionRecord
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *sqliteArchive) GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRecord, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, source_path, kind, fields_json, confidence, method, ocr_chars, status, error_message, created_at
		FROM extractions WHERE id = ?`, id.String())
	rec, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError(fmt.Sprintf("extraction %s", id))
	}
	return rec, err
}

func (a *sqliteArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *sqliteArchive) Close() error {
	return a.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row scanner) (*entity.ExtractionRecord, error) {
	var (
		rec        entity.ExtractionRecord
		idText     string
		fields     sql.NullString
		confidence sql.NullFloat64
		errMsg     sql.NullString
		createdAt  int64
	)
	if err := row.Scan(&idText, &rec.SourcePath, &rec.Kind, &fields, &confidence,
		&rec.Method, &rec.OCRChars, &rec.Status, &errMsg, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan extraction: %w", err)
	}
	id, err := uuid.Parse(idText)
	if err != nil {
		return nil, fmt.Errorf("parse extraction id %q: %w", idText, err)
	}
	rec.ID = id
	if fields.Valid {
		rec.FieldsJSON = []byte(fields.String)
	}
	if confidence.Valid {
		rec.Confidence = &confidence.Float64
	}
	if errMsg.Valid {
		rec.ErrorMessage = &errMsg.String
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}

func fieldsOrNil(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
