package port

import (
	"context"

	"github.com/bnema/scenefetch/internal/domain"
)

type MediaInspector interface {
	Inspect(ctx context.Context, path string) (*domain.ProbeResult, error)
}

type SpaceChecker interface {
	// FreeBytes returns the free space on the filesystem holding path.
	FreeBytes(ctx context.Context, path string) (uint64, error)
}
