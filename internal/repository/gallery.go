package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

// The signer row keeps the most recent feature vector; every vector
// ever enrolled stays in signature_samples so matching can consider
// all known variants of a hand.
const gallerySchema = `
CREATE TABLE IF NOT EXISTS signers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT UNIQUE NOT NULL,
	printed_name TEXT NOT NULL,
	features BLOB,
	sample_count INTEGER NOT NULL DEFAULT 1,
	auto_added INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS signature_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	sample_index INTEGER NOT NULL,
	features BLOB,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (user_id) REFERENCES signers (user_id)
);
CREATE INDEX IF NOT EXISTS idx_samples_user ON signature_samples(user_id);
`

// GalleryStore is the sqlite-backed signature gallery.
type GalleryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenGallery opens the gallery database, creating the schema on
// first use.
func OpenGallery(path string, logger *slog.Logger) (*GalleryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(gallerySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init gallery schema: %w", err)
	}
	logger.Info("gallery.open", "path", path)
	return &GalleryStore{db: db, logger: logger}, nil
}

// Enroll stores one sample. When the user id or the printed name is
// already known the sample is appended to that signer, otherwise a new
// signer is created. The canonical signer row is returned.
func (g *GalleryStore) Enroll(ctx context.Context, userID, printedName string, features []float32, autoAdded bool) (entity.Signer, error) {
	blob := signature.Vector(features).Bytes()
	now := time.Now().UTC()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Signer{}, fmt.Errorf("begin enroll: %w", err)
	}
	defer tx.Rollback()

	existing, err := lookupSigner(ctx, tx, userID, printedName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return entity.Signer{}, err
	}

	var signer entity.Signer
	if err == nil {
		signer = *existing
		signer.SampleCount++
		signer.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, `
			UPDATE signers SET features = ?, sample_count = ?, updated_at = ? WHERE user_id = ?`,
			blob, signer.SampleCount, now.UnixNano(), signer.UserID); err != nil {
			return entity.Signer{}, fmt.Errorf("update signer: %w", err)
		}
	} else {
		signer = entity.Signer{
			UserID:      userID,
			PrintedName: printedName,
			SampleCount: 1,
			AutoAdded:   autoAdded,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signers (user_id, printed_name, features, sample_count, auto_added, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			signer.UserID, signer.PrintedName, blob, 1, autoAdded, now.UnixNano(), now.UnixNano()); err != nil {
			return entity.Signer{}, fmt.Errorf("insert signer: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO signature_samples (user_id, sample_index, features, created_at)
		VALUES (?, ?, ?, ?)`,
		signer.UserID, signer.SampleCount, blob, now.UnixNano()); err != nil {
		return entity.Signer{}, fmt.Errorf("insert sample: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return entity.Signer{}, fmt.Errorf("commit enroll: %w", err)
	}

	g.logger.Debug("gallery.enroll.ok",
		"user_id", signer.UserID, "printed_name", signer.PrintedName,
		"sample_count", signer.SampleCount, "auto_added", signer.AutoAdded)
	return signer, nil
}

// Signers lists the gallery, newest first.
func (g *GalleryStore) Signers(ctx context.Context) ([]entity.Signer, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT user_id, printed_name, sample_count, auto_added, created_at, updated_at
		FROM signers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list signers: %w", err)
	}
	defer rows.Close()

	var out []entity.Signer
	for rows.Next() {
		signer, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, signer)
	}
	return out, rows.Err()
}

// Get returns one signer by user id.
func (g *GalleryStore) Get(ctx context.Context, userID string) (*entity.Signer, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT user_id, printed_name, sample_count, auto_added, created_at, updated_at
		FROM signers WHERE user_id = ?`, userID)
	signer, err := scanSigner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError(fmt.Sprintf("signer %s", userID))
	}
	if err != nil {
		return nil, err
	}
	return &signer, nil
}

// Samples returns every stored sample with its feature vector.
func (g *GalleryStore) Samples(ctx context.Context) ([]entity.SignatureSample, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT user_id, sample_index, features, created_at
		FROM signature_samples ORDER BY user_id, sample_index`)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var out []entity.SignatureSample
	for rows.Next() {
		var (
			s         entity.SignatureSample
			blob      []byte
			createdAt int64
		)
		if err := rows.Scan(&s.UserID, &s.SampleIndex, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Features = signature.FromBytes(blob)
		s.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (g *GalleryStore) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func (g *GalleryStore) Close() error {
	return g.db.Close()
}

func lookupSigner(ctx context.Context, tx *sql.Tx, userID, printedName string) (*entity.Signer, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT user_id, printed_name, sample_count, auto_added, created_at, updated_at
		FROM signers WHERE user_id = ? OR printed_name = ?`, userID, printedName)
	signer, err := scanSigner(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup signer: %w", err)
	}
	return &signer, nil
}

func scanSigner(row scanner) (entity.Signer, error) {
	var (
		signer               entity.Signer
		autoAdded            int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&signer.UserID, &signer.PrintedName, &signer.SampleCount,
		&autoAdded, &createdAt, &updatedAt); err != nil {
		return entity.Signer{}, err
	}
	signer.AutoAdded = autoAdded != 0
	signer.CreatedAt = time.Unix(0, createdAt).UTC()
	signer.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return signer, nil
}
