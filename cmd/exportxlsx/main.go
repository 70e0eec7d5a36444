// exportxlsx writes an XLSX workbook of archived extraction runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

func main() {
	var (
		out     = flag.String("out", "extractions.xlsx", "output file")
		fromStr = flag.String("from", "", "from date YYYY-MM-DD")
		toStr   = flag.String("to", "", "to date YYYY-MM-DD")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	from, err := parseDate(*fromStr)
	if err != nil {
		fail(fmt.Errorf("invalid -from date, use YYYY-MM-DD: %w", err))
	}
	to, err := parseDate(*toStr)
	if err != nil {
		fail(fmt.Errorf("invalid -to date, use YYYY-MM-DD: %w", err))
	}

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	archive, err := repository.OpenArchive(ctx, repository.Config{
		Driver:           cfg.Archive.Driver,
		SQLitePath:       cfg.Archive.SQLitePath,
		DSN:              cfg.Archive.DSN,
		MaxConns:         cfg.Archive.MaxConns,
		MinConns:         cfg.Archive.MinConns,
		MaxConnLifetime:  cfg.Archive.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Archive.MaxConnIdleTime,
		DialTimeout:      cfg.Archive.DialTimeout,
		StatementTimeout: cfg.Archive.StatementTimeout,
	}, logger)
	if err != nil {
		fail(fmt.Errorf("open archive: %w", err))
	}
	defer archive.Close()

	fields := schema.Open(cfg.Extract.FieldsPath, schema.InvoiceDefaults(), logger)
	svc := export.NewService(archive, fields, logger)

	data, err := svc.ExportXLSX(ctx, from, to)
	if err != nil {
		fail(fmt.Errorf("export: %w", err))
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fail(fmt.Errorf("write %s: %w", *out, err))
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
