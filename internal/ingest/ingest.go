// Package ingest discovers documents on disk and feeds them to the
// pipeline, either in one batch pass or continuously via a directory
// watcher.
package ingest

// FileResult is the per-file outcome of a batch run.
type FileResult struct {
	Path     string `json:"path"`
	RecordID string `json:"record_id,omitempty"`
	Method   string `json:"method,omitempty"`
	Err      string `json:"error,omitempty"`
}

// DirStats summarizes a directory pass.
type DirStats struct {
	Scanned   uint32 `json:"scanned"`
	Matched   uint32 `json:"matched"`
	Succeeded uint32 `json:"succeeded"`
	Failed    uint32 `json:"failed"`
}
