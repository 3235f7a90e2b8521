package port

import (
	"context"

	"github.com/bnema/scenefetch/internal/domain"
)

// CancellationToken is polled by a Downloader during Transfer. The core can
// only flag intent; stopping in-flight work is the adapter's responsibility.
type CancellationToken interface {
	Cancelled() bool
	Done() <-chan struct{}
}

type ProgressFunc func(domain.ProgressUpdate)

type TransferRequest struct {
	SourceRef      string
	DestinationDir string
	Options        domain.Options
	// Identity is the request identity (user agent) for this attempt.
	Identity string
	Cancel   CancellationToken
}

type Downloader interface {
	Name() string
	Probe(ctx context.Context, sourceRef string) (*domain.Metadata, error)
	Transfer(ctx context.Context, req TransferRequest, onProgress ProgressFunc) (finalPath string, err error)
}
