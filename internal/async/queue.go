// Package async runs pipeline jobs on a bounded worker pool.
package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Job is one document waiting for the pipeline.
type Job struct {
	Path        string
	Kind        string
	SubmittedAt time.Time
	TraceID     string
}

// Processor is the pipeline surface the queue drives.
type Processor interface {
	ProcessFile(ctx context.Context, path, kind string) (*entity.ExtractionRecord, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
