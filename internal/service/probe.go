package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/port"
)

// ProbeService looks up remote metadata. Concurrent probes of the same
// reference share one lookup.
type ProbeService struct {
	classifier  *Classifier
	downloaders []port.Downloader
	policy      RetryPolicy
	timeout     time.Duration
	group       singleflight.Group
}

func NewProbeService(classifier *Classifier, policy RetryPolicy, timeout time.Duration, downloaders ...port.Downloader) *ProbeService {
	policy.Scope = ClassifyContext{Operation: OperationProbe}
	policy.UseKindStrategy = true
	return &ProbeService{
		classifier:  classifier,
		downloaders: downloaders,
		policy:      policy,
		timeout:     timeout,
	}
}

// Probe asks each downloader in order until one returns metadata. Every
// downloader gets its own retry budget and each attempt is bounded by the
// network timeout.
func (s *ProbeService) Probe(ctx context.Context, sourceRef string, onRetry RetryHook) (*domain.Metadata, error) {
	v, err, _ := s.group.Do(sourceRef, func() (any, error) {
		return s.probe(ctx, sourceRef, onRetry)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Metadata).Clone(), nil
}

func (s *ProbeService) probe(ctx context.Context, sourceRef string, onRetry RetryHook) (*domain.Metadata, error) {
	var md atomic.Pointer[domain.Metadata]
	policy := s.policy
	policy.Scope.SourceRef = sourceRef

	strategies := make([]Strategy, 0, len(s.downloaders))
	for _, d := range s.downloaders {
		strategies = append(strategies, Strategy{
			Name: d.Name(),
			Run: func(ctx context.Context) error {
				op := WithTimeout(s.classifier, s.timeout, func(ctx context.Context, attempt int) error {
					m, err := d.Probe(ctx, sourceRef)
					if err != nil {
						return err
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					md.Store(m)
					return nil
				})
				return ExecuteWithRetry(ctx, s.classifier, policy, op, onRetry)
			},
		})
	}

	if err := FallbackChain(ctx, strategies...); err != nil {
		if info, ok := ChainErrorInfo(err); ok {
			return nil, domain.NewClassifiedError(info, fmt.Errorf("probe %s: %w", sourceRef, err))
		}
		return nil, fmt.Errorf("probe %s: %w", sourceRef, err)
	}
	m := md.Load()
	if m == nil {
		return nil, fmt.Errorf("probe %s: no metadata returned", sourceRef)
	}
	return m, nil
}
