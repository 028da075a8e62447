package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/orderproof/internal/extract"
)

// Job is one image waiting for extraction.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Outcome is what a worker reports for a finished Job.
type Outcome struct {
	Job     Job
	Result  extract.Result
	Err     error
	Elapsed time.Duration
}

// Handler processes one job. Errors are for failures outside extraction
// itself, such as an unreadable file.
type Handler func(ctx context.Context, job Job) (extract.Result, error)

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
