// runextract runs documents through field extraction and prints the
// result as JSON. Single-file and raw-text runs are not archived; a
// directory run persists every record so it can be exported later.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/drawing"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

func main() {
	var (
		file      = flag.String("file", "", "document to process (PDF or image)")
		text      = flag.String("text", "", "raw text to extract from instead of a file")
		dir       = flag.String("dir", "", "process every matching document under this directory")
		kind      = flag.String("kind", entity.KindInvoice, "document kind: invoice or drawing")
		fieldsArg = flag.String("fields", "", "comma separated field names (default: all configured)")
		extsArg   = flag.String("ext", "", "with -dir, comma separated extensions (default: pdf/jpg/jpeg/png/bmp)")
		hidden    = flag.Bool("hidden", false, "with -dir, include hidden files and directories")
		quiet     = flag.Bool("quiet", false, "suppress progress logs")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	modes := 0
	for _, set := range []bool{*file != "", *text != "", *dir != ""} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "usage: runextract -file <path> | -text <raw text> | -dir <root> [-kind invoice|drawing] [-fields a,b,c]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	fields := schema.Open(cfg.Extract.FieldsPath, defaultsFor(*kind), logger)

	var prompt extract.PromptExtractor
	if cfg.LLM.APIKey != "" {
		prompt = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}, fields, logger)
	}
	extractor := extract.NewOrchestrator(prompt,
		extract.NewPatternExtractor(fields, logger), fields, cfg.Extract.ConfidenceThreshold, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if *text != "" {
		res := extractor.Extract(ctx, ocr.Normalize(*text), splitList(*fieldsArg))
		printJSON(map[string]any{
			"fields":     res.Fields,
			"confidence": res.Confidence,
			"method":     res.Method,
		})
		return
	}

	probe := ocr.NewDetector(ocr.DefaultCandidates, cfg.OCR.ProbeTTL, logger)
	ocrURL, err := probe.Resolve(ctx, cfg.OCR.BaseURL)
	if err != nil {
		logger.Error("no OCR service reachable", "error", err)
		os.Exit(1)
	}
	ocrClient := ocr.NewClient(ocr.Config{BaseURL: ocrURL, Timeout: cfg.OCR.Timeout}, logger)

	var drawings pipeline.DrawingProcessor
	if *kind == entity.KindDrawing {
		detector := signature.NewDetector(ocrClient, logger)
		drawings = drawing.NewProcessor(detector, ocrClient, extractor, nil, logger)
	}

	if *file != "" {
		pipe := pipeline.NewProcessor(ocrClient, extractor, drawings, nil, logger)
		rec, err := pipe.ProcessFile(ctx, *file, *kind)
		if err != nil {
			logger.Error("extraction failed", "file", *file, "error", err)
			if rec != nil {
				printJSON(rec)
			}
			os.Exit(1)
		}
		printJSON(rec)
		return
	}

	// Directory mode archives every record.
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
		logger.Error("open archive", "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	pipe := pipeline.NewProcessor(ocrClient, extractor, drawings, archive, logger)
	results, stats, err := ingest.NewRunner(pipe, logger).Run(ctx, *dir, *kind, splitList(*extsArg), !*hidden)
	if err != nil {
		logger.Error("batch failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	printJSON(map[string]any{"results": results, "stats": stats})
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

func defaultsFor(kind string) []schema.FieldDefinition {
	if kind == entity.KindDrawing {
		return schema.DrawingDefaults()
	}
	return schema.InvoiceDefaults()
}

func splitList(arg string) []string {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(arg, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
}
