package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// DiscoverFiles walks root and returns the documents the pipeline
// accepts. includeExts overrides the default extension set; hidden
// files and directories are skipped when skipHidden is set (the root
// itself is always entered).
func DiscoverFiles(root string, includeExts []string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	exts := extSet(includeExts)

	var (
		files []string
		stats DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := exts[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return nil
		}
		stats.Matched++
		files = append(files, path)
		return nil
	})
	if err != nil {
		return files, stats, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, stats, nil
}

func extSet(includeExts []string) map[string]struct{} {
	if len(includeExts) == 0 {
		return constants.AllowedExtensions
	}
	exts := make(map[string]struct{}, len(includeExts))
	for _, e := range includeExts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

// Processor is the pipeline surface a batch run drives.
type Processor interface {
	ProcessFile(ctx context.Context, path, kind string) (*entity.ExtractionRecord, error)
}

// Runner processes every discovered document through the pipeline.
type Runner struct {
	proc   Processor
	logger *slog.Logger
}

func NewRunner(proc Processor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{proc: proc, logger: logger}
}

// Run discovers files under root and processes them sequentially.
// Per-file failures are reported in the results, not returned; ctx
// cancellation stops the pass between files.
func (r *Runner) Run(ctx context.Context, root, kind string, includeExts []string, skipHidden bool) ([]FileResult, DirStats, error) {
	files, stats, err := DiscoverFiles(root, includeExts, skipHidden)
	if err != nil {
		return nil, stats, err
	}

	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		rec, err := r.proc.ProcessFile(ctx, path, kind)
		if err != nil {
			stats.Failed++
			results = append(results, FileResult{Path: path, Err: err.Error()})
			continue
		}
		stats.Succeeded++
		fr := FileResult{Path: path, Method: rec.Method}
		if rec.ID != uuid.Nil {
			fr.RecordID = rec.ID.String()
		}
		results = append(results, fr)
	}

	r.logger.Info("ingest.dir.done",
		"root", root, "kind", kind,
		"matched", stats.Matched, "succeeded", stats.Succeeded, "failed", stats.Failed)
	return results, stats, nil
}
