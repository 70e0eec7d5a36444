package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s) error = %v", path, err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"))
	writeFile(t, filepath.Join(root, "b.PNG"))
	writeFile(t, filepath.Join(root, "notes.txt"))
	writeFile(t, filepath.Join(root, "sub", "c.jpg"))
	writeFile(t, filepath.Join(root, ".hidden", "d.pdf"))
	writeFile(t, filepath.Join(root, ".secret.pdf"))

	files, stats, err := DiscoverFiles(root, nil, true)
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		names = append(names, rel)
	}
	sort.Strings(names)
	want := []string{"a.pdf", "b.PNG", filepath.Join("sub", "c.jpg")}
	if len(names) != len(want) {
		t.Fatalf("DiscoverFiles() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if stats.Matched != 3 {
		t.Errorf("Matched = %d, want 3", stats.Matched)
	}
}

func TestDiscoverFilesIncludesHiddenWhenAsked(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".secret.pdf"))

	files, _, err := DiscoverFiles(root, nil, false)
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("DiscoverFiles() found %d files, want the hidden pdf", len(files))
	}
}

func TestDiscoverFilesCustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"))
	writeFile(t, filepath.Join(root, "b.png"))

	files, _, err := DiscoverFiles(root, []string{".PDF"}, false)
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "a.pdf" {
		t.Fatalf("DiscoverFiles(pdf only) = %v, want just a.pdf", files)
	}
}

func TestDiscoverFilesMissingRoot(t *testing.T) {
	_, _, err := DiscoverFiles(filepath.Join(t.TempDir(), "nope"), nil, false)
	if err == nil {
		t.Fatal("DiscoverFiles() on a missing root returned nil error")
	}
	if _, _, err := DiscoverFiles("  ", nil, false); err == nil {
		t.Fatal("DiscoverFiles() on a blank root returned nil error")
	}
}

type batchProcessor struct {
	failOn string
}

func (p *batchProcessor) ProcessFile(ctx context.Context, path, kind string) (*entity.ExtractionRecord, error) {
	if filepath.Base(path) == p.failOn {
		return nil, errors.New("ocr refused")
	}
	return &entity.ExtractionRecord{ID: uuid.New(), SourcePath: path, Kind: kind, Method: "prompt"}, nil
}

func TestRunnerRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.pdf"))
	writeFile(t, filepath.Join(root, "bad.pdf"))

	r := NewRunner(&batchProcessor{failOn: "bad.pdf"}, testLogger())
	results, stats, err := r.Run(context.Background(), root, entity.KindInvoice, nil, true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Run() returned %d results, want 2", len(results))
	}
	if stats.Succeeded != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 succeeded / 1 failed", stats)
	}
	for _, res := range results {
		switch filepath.Base(res.Path) {
		case "ok.pdf":
			if res.RecordID == "" || res.Err != "" {
				t.Errorf("ok.pdf result = %+v, want record id and no error", res)
			}
		case "bad.pdf":
			if res.Err == "" {
				t.Errorf("bad.pdf result = %+v, want error", res)
			}
		}
	}
}

func TestRunnerHonorsContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(&batchProcessor{}, testLogger())
	_, _, err := r.Run(ctx, root, entity.KindInvoice, nil, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestAllowedExt(t *testing.T) {
	cases := map[string]bool{".pdf": true, "PDF": true, ".txt": false, "": false, ".JPEG": true}
	for ext, want := range cases {
		if got := AllowedExt(ext); got != want {
			t.Errorf("AllowedExt(%q) = %v, want %v", ext, got, want)
		}
	}
}
