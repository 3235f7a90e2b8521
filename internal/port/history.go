package port

import (
	"context"
	"time"

	"github.com/bnema/scenefetch/internal/domain"
)

// SessionHistory persists snapshots of sessions that reached a terminal state.
type SessionHistory interface {
	Record(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context, limit int) ([]*domain.Session, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
