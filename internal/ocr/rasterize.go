package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// rasterizeFirstPage renders page one of a PDF to PNG bytes for the OCR
// service. Invoices and drawing title sheets are single-page; later pages
// are ignored.
func (c *Client) rasterizeFirstPage(ctx context.Context, path string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "ie-pp-*")
	if err != nil {
		return nil, err
	}
	defer func(dir string) {
		err := os.RemoveAll(dir)
		if err != nil {
			c.logger.Warn("ocr.rasterize.cleanup_failed", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png -f 1 -l 1 <in.pdf> <tmp/page>
	_, errb, err := c.runner.Run(ctx, c.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", c.cfg.DPI), "-png", "-f", "1", "-l", "1", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return os.ReadFile(matches[0])
}
