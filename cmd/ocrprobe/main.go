// ocrprobe checks which OCR service endpoints are reachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

func main() {
	var (
		urls    = flag.String("urls", "", "comma separated candidate URLs (default: the usual local ports)")
		timeout = flag.Duration("timeout", 10*time.Second, "total probe budget")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	candidates := ocr.DefaultCandidates
	if explicit := os.Getenv("OCR_URL"); explicit != "" {
		candidates = append([]string{explicit}, candidates...)
	}
	if *urls != "" {
		candidates = nil
		for _, u := range strings.Split(*urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				candidates = append(candidates, u)
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	detector := ocr.NewDetector(candidates, time.Minute, logger)
	healthy := 0
	for _, url := range candidates {
		if detector.Healthy(ctx, url) {
			fmt.Printf("OK    %s\n", url)
			healthy++
		} else {
			fmt.Printf("DOWN  %s\n", url)
		}
	}
	if healthy == 0 {
		fmt.Fprintln(os.Stderr, "no OCR service reachable")
		os.Exit(1)
	}
}
