// extractd serves field extraction, signature verification and the
// archive over HTTP, and drains watched directories through the worker
// pool.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/drawing"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
	"github.com/joseph-ayodele/invoice-extractor/internal/server"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Field schema: persisted file wins, built-in invoice fields seed a
	// fresh install.
	fields := schema.Open(cfg.Extract.FieldsPath, schema.InvoiceDefaults(), logger)

	// OCR endpoint: pinned by OCR_URL or probed from the usual ports.
	probe := ocr.NewDetector(ocr.DefaultCandidates, cfg.OCR.ProbeTTL, logger)
	ocrURL, err := probe.Resolve(ctx, cfg.OCR.BaseURL)
	if err != nil {
		// Raw-text extraction keeps working; uploads will fail until the
		// service comes up and a later probe finds it.
		logger.Warn("ocr.unreachable", "error", err)
		ocrURL = ocr.DefaultCandidates[0]
	}
	ocrClient := ocr.NewClient(ocr.Config{BaseURL: ocrURL, Timeout: cfg.OCR.Timeout}, logger)

	// Extraction: prompt path only with an API key, patterns always.
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
	} else {
		logger.Warn("llm.disabled", "reason", "LLM_API_KEY not set")
	}
	patterns := extract.NewPatternExtractor(fields, logger)
	extractor := extract.NewOrchestrator(prompt, patterns, fields, cfg.Extract.ConfidenceThreshold, logger)

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
	defer func() {
		if cerr := archive.Close(); cerr != nil {
			logger.Error("close archive", "error", cerr)
		}
	}()

	gallery, err := repository.OpenGallery(cfg.Gallery.DBPath, logger)
	if err != nil {
		logger.Error("open gallery", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := gallery.Close(); cerr != nil {
			logger.Error("close gallery", "error", cerr)
		}
	}()

	featureExtractor := signature.NewExtractor(ctx, cfg.Gallery.EmbedURL, logger)
	matcher := signature.NewMatcher(gallery, featureExtractor, cfg.Gallery.MatchThreshold, logger)
	detector := signature.NewDetector(ocrClient, logger)
	drawings := drawing.NewProcessor(detector, ocrClient, extractor, matcher, logger)

	pipe := pipeline.NewProcessor(ocrClient, extractor, drawings, archive, logger)
	queue := async.NewProcessorQueue(pipe, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	if len(cfg.Watch.Dirs) > 0 {
		startWatch(ctx, cfg, queue, logger)
	}

	srv := server.New(server.Deps{
		Extractor:  extractor,
		Fields:     fields,
		FieldsPath: cfg.Extract.FieldsPath,
		Pipeline:   pipe,
		Queue:      queue,
		Detector:   detector,
		Matcher:    matcher,
		Signers:    gallery,
		Archive:    archive,
		Exporter:   export.NewService(archive, fields, logger),
		Probe:      probe,
		OCRURL:     ocrURL,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http.listen", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http.serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown.begin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http.shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("shutdown.done")
}

// startWatch feeds filesystem events into the queue until ctx ends.
func startWatch(ctx context.Context, cfg *common.Config, queue async.Queue, logger *slog.Logger) {
	files, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Watch.Dirs,
		Debounce:    cfg.Watch.Debounce,
		InitialScan: cfg.Watch.InitialScan,
	}, logger)
	if err != nil {
		logger.Error("watch.start", "error", err)
		os.Exit(1)
	}
	go func() {
		for path := range files {
			job := async.Job{Path: path, Kind: cfg.Watch.Kind, SubmittedAt: time.Now()}
			if err := queue.Enqueue(ctx, job); err != nil {
				logger.Warn("watch.enqueue.failed", "path", path, "error", err)
			}
		}
	}()
	go func() {
		for werr := range errs {
			logger.Warn("watch.error", "error", werr)
		}
	}()
	logger.Info("watch.started", "dirs", cfg.Watch.Dirs, "kind", cfg.Watch.Kind)
}
