// sigmatch locates and verifies handwritten signatures from the command
// line: region detection with an optional preview image, gallery match,
// and verify-or-enroll against a printed name.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

func main() {
	var (
		imagePath = flag.String("image", "", "signature or drawing image (required)")
		name      = flag.String("name", "", "printed name to verify against; unknown hands are enrolled")
		region    = flag.Bool("region", false, "detect the signature region instead of matching")
		preview   = flag.String("preview", "", "with -region, write an annotated PNG here")
		withOCR   = flag.Bool("ocr", false, "with -region, let the text-density strategy use the OCR service")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: sigmatch -image <path> [-name <printed name>] [-region [-preview out.png] [-ocr]]")
		os.Exit(2)
	}

	img, err := signature.DecodeFile(*imagePath)
	if err != nil {
		fail(err)
	}

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *region {
		var recognizer signature.TextRecognizer
		if *withOCR {
			probe := ocr.NewDetector(ocr.DefaultCandidates, cfg.OCR.ProbeTTL, logger)
			if url, err := probe.Resolve(ctx, cfg.OCR.BaseURL); err == nil {
				recognizer = ocr.NewClient(ocr.Config{BaseURL: url, Timeout: cfg.OCR.Timeout}, logger)
			} else {
				fmt.Fprintf(os.Stderr, "warning: OCR unavailable, skipping text-density strategy: %v\n", err)
			}
		}
		detector := signature.NewDetector(recognizer, logger)
		rect, strategy := detector.Detect(ctx, img)

		if *preview != "" {
			png, err := signature.RenderPreview(img, rect, strategy)
			if err != nil {
				fail(err)
			}
			if err := os.WriteFile(*preview, png, 0o644); err != nil {
				fail(err)
			}
			fmt.Printf("preview written to %s\n", *preview)
		}
		printJSON(map[string]any{"region": rect, "strategy": strategy})
		return
	}

	gallery, err := repository.OpenGallery(cfg.Gallery.DBPath, logger)
	if err != nil {
		fail(err)
	}
	defer gallery.Close()

	extractor := signature.NewExtractor(ctx, cfg.Gallery.EmbedURL, logger)
	matcher := signature.NewMatcher(gallery, extractor, cfg.Gallery.MatchThreshold, logger)

	if *name != "" {
		result, err := matcher.MatchOrEnroll(ctx, img, *name)
		if err != nil {
			fail(err)
		}
		printJSON(result)
		return
	}

	candidates, err := matcher.Match(ctx, img)
	if err != nil {
		fail(err)
	}
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "no enrolled signer matches")
		os.Exit(1)
	}
	printJSON(candidates)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
