package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"

	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/port"
)

var ErrInvalidSessionID = errors.New("invalid session id")

type CleanupConfig struct {
	TempRoot string
	// MaxAge is how old an orphaned temp entry must be before a sweep removes it.
	MaxAge   time.Duration
	Interval time.Duration
	// SessionRetention keeps terminal sessions queryable for this long.
	SessionRetention time.Duration
	// HistoryRetention bounds persisted history rows. Zero keeps them forever.
	HistoryRetention time.Duration
}

// SessionRegistry is the part of the queue the sweep needs.
type SessionRegistry interface {
	IsLive(id string) bool
	PruneTerminal(before time.Time) int
}

type SweepReport struct {
	Scanned        int    `json:"scanned"`
	Removed        int    `json:"removed"`
	Failed         int    `json:"failed"`
	BytesFreed     int64  `json:"bytes_freed"`
	SessionsPruned int    `json:"sessions_pruned"`
	HistoryDeleted int64  `json:"history_deleted"`
	Err            error  `json:"-"`
	Error          string `json:"error,omitempty"`
}

type CleanupService struct {
	cfg      CleanupConfig
	registry SessionRegistry
	history  port.SessionHistory
	now      func() time.Time
	remove   func(path string) error
	// sweepMu keeps periodic and on-demand sweeps from overlapping.
	sweepMu sync.Mutex
}

func NewCleanupService(cfg CleanupConfig, history port.SessionHistory) *CleanupService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &CleanupService{
		cfg:     cfg,
		history: history,
		now:     time.Now,
		remove:  os.RemoveAll,
	}
}

// SetRegistry connects the sweep to the queue once both exist.
func (c *CleanupService) SetRegistry(r SessionRegistry) {
	c.registry = r
}

// CleanupSession removes the temp directory of one session. A missing
// directory is not an error.
func (c *CleanupService) CleanupSession(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	path := filepath.Join(c.cfg.TempRoot, id)
	if err := c.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// ForceCleanAll wipes the temp root and recreates it empty.
func (c *CleanupService) ForceCleanAll() error {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	if err := os.RemoveAll(c.cfg.TempRoot); err != nil {
		return fmt.Errorf("remove temp root: %w", err)
	}
	if err := os.MkdirAll(c.cfg.TempRoot, 0o755); err != nil {
		return fmt.Errorf("recreate temp root: %w", err)
	}
	logger.Warn.Printf("temp root %s wiped", c.cfg.TempRoot)
	return nil
}

// Sweep removes temp entries older than MaxAge that no live session owns,
// then prunes expired sessions and history rows. A failing entry is recorded
// and the sweep moves on.
func (c *CleanupService) Sweep(ctx context.Context) SweepReport {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	var report SweepReport
	now := c.now()

	entries, err := os.ReadDir(c.cfg.TempRoot)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		report.Err = multierr.Append(report.Err, fmt.Errorf("list temp root: %w", err))
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			report.Err = multierr.Append(report.Err, ctx.Err())
			break
		}
		report.Scanned++

		if c.registry != nil && c.registry.IsLive(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			report.Failed++
			report.Err = multierr.Append(report.Err, fmt.Errorf("stat %s: %w", entry.Name(), err))
			continue
		}
		if now.Sub(info.ModTime()) < c.cfg.MaxAge {
			continue
		}

		path := filepath.Join(c.cfg.TempRoot, entry.Name())
		size := diskUsage(path)
		if err := c.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			report.Failed++
			report.Err = multierr.Append(report.Err, fmt.Errorf("remove %s: %w", path, err))
			logger.Error.Printf("cleanup: remove %s: %v", path, err)
			continue
		}
		report.Removed++
		report.BytesFreed += size
	}

	if c.registry != nil && c.cfg.SessionRetention > 0 {
		report.SessionsPruned = c.registry.PruneTerminal(now.Add(-c.cfg.SessionRetention))
	}
	if c.history != nil && c.cfg.HistoryRetention > 0 {
		n, err := c.history.DeleteOlderThan(ctx, now.Add(-c.cfg.HistoryRetention))
		if err != nil {
			report.Err = multierr.Append(report.Err, fmt.Errorf("prune history: %w", err))
		}
		report.HistoryDeleted = n
	}

	if report.Err != nil {
		report.Error = report.Err.Error()
	}
	logger.Info.Printf("cleanup: scanned=%d removed=%d failed=%d freed=%s pruned=%d history=%d",
		report.Scanned, report.Removed, report.Failed, humanize.Bytes(uint64(report.BytesFreed)),
		report.SessionsPruned, report.HistoryDeleted)
	return report
}

// Start runs Sweep every Interval until ctx is done.
func (c *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if report := c.Sweep(ctx); report.Err != nil {
				logger.Error.Printf("cleanup sweep: %v", report.Err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// diskUsage sums regular file sizes under path. Entries vanishing during
// the walk are skipped.
func diskUsage(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
