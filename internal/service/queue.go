package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/infrastructure/logger"
)

type QueueConfig struct {
	ConcurrencyLimit int
	// QueueSize bounds pending plus active sessions. Zero means unbounded.
	QueueSize int
	TempRoot  string
}

// SessionReporter is the write surface a running job may use.
type SessionReporter interface {
	UpdateProgress(id string, update domain.ProgressUpdate) error
	RecordRetry(id string, attempt int, info domain.ErrorInfo) error
	AttachMetadata(id string, md *domain.Metadata) error
}

// Job is handed to the executor when a session is admitted.
type Job struct {
	Session  *domain.Session
	Token    *CancelToken
	Reporter SessionReporter
}

type JobExecutor interface {
	Execute(ctx context.Context, job Job) (finalPath string, err error)
}

type SessionCleaner interface {
	CleanupSession(id string) error
}

type Stats struct {
	Pending          int `json:"pending"`
	Active           int `json:"active"`
	Completed        int `json:"completed"`
	Failed           int `json:"failed"`
	Cancelled        int `json:"cancelled"`
	Tracked          int `json:"tracked"`
	ConcurrencyLimit int `json:"concurrency_limit"`
	QueueSize        int `json:"queue_size"`
}

type queueEntry struct {
	session *domain.Session
	token   *CancelToken
	running bool
	cleaned bool
}

// QueueManager owns the session table and the FIFO admission queue. Every
// mutation happens under mu, which is only held for in-memory work, so the
// table has a single writer at any instant.
type QueueManager struct {
	mu       sync.Mutex
	cfg      QueueConfig
	sessions map[string]*queueEntry
	queue    []string
	active   int

	completed int
	failed    int
	cancelled int

	executor   JobExecutor
	classifier *Classifier
	events     EventPublisher
	cleaner    SessionCleaner

	baseCtx context.Context
	stop    context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

func NewQueueManager(cfg QueueConfig, executor JobExecutor, classifier *Classifier, events EventPublisher, cleaner SessionCleaner) *QueueManager {
	if cfg.ConcurrencyLimit < 1 {
		cfg.ConcurrencyLimit = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if classifier == nil {
		classifier = NewClassifier()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &QueueManager{
		cfg:        cfg,
		sessions:   make(map[string]*queueEntry),
		executor:   executor,
		classifier: classifier,
		events:     events,
		cleaner:    cleaner,
		baseCtx:    ctx,
		stop:       stop,
	}
}

// StartJob registers a pending session and runs admission. It never waits
// for the transfer.
func (q *QueueManager) StartJob(sourceRef string, opts domain.Options) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", domain.ErrShuttingDown
	}
	if q.cfg.QueueSize > 0 && len(q.queue)+q.active >= q.cfg.QueueSize {
		return "", fmt.Errorf("%w: %d sessions queued or running", domain.ErrQueueFull, len(q.queue)+q.active)
	}

	id := uuid.NewString()
	session := domain.NewSession(id, sourceRef, opts, q.cfg.TempRoot)
	q.sessions[id] = &queueEntry{session: session}
	q.queue = append(q.queue, id)
	q.publishLocked(session, EventCreated, nil)
	logger.Info.Printf("session %s queued for %s", id, logger.RedactURL(sourceRef))

	q.admitLocked()
	return id, nil
}

// admitLocked promotes queue heads while a concurrency slot is free.
func (q *QueueManager) admitLocked() {
	for q.active < q.cfg.ConcurrencyLimit && len(q.queue) > 0 && !q.closed {
		id := q.queue[0]
		q.queue = q.queue[1:]

		e, ok := q.sessions[id]
		if !ok || e.session.Status != domain.SessionStatusPending {
			continue
		}
		if err := e.session.MarkActive(); err != nil {
			logger.Error.Printf("session %s: admit: %v", id, err)
			continue
		}
		q.active++
		e.token = NewCancelToken(q.baseCtx)
		q.publishLocked(e.session, EventAdmitted, nil)

		if q.executor == nil {
			continue
		}
		e.running = true
		q.wg.Add(1)
		go q.run(e, Job{Session: e.session.Clone(), Token: e.token, Reporter: q})
	}
}

func (q *QueueManager) run(e *queueEntry, job Job) {
	defer q.wg.Done()

	id := job.Session.ID
	finalPath, err := q.execute(job)

	q.mu.Lock()
	e.running = false
	q.mu.Unlock()

	switch {
	case err == nil:
		if cerr := q.CompleteJob(id, finalPath); cerr != nil {
			logger.Error.Printf("session %s: complete: %v", id, cerr)
		}
	default:
		info, ok := domain.AsErrorInfo(err)
		if !ok {
			info = q.classifier.Classify(err, ClassifyContext{Operation: OperationTransfer, SourceRef: job.Session.SourceRef})
		}
		if info.Kind == domain.ErrorKindCancelledByUser || job.Token.Cancelled() {
			_ = q.CancelJob(id)
		} else if ferr := q.FailJob(id, info); ferr != nil {
			logger.Error.Printf("session %s: fail: %v", id, ferr)
		}
	}

	// Covers sessions cancelled while the executor was still running.
	q.cleanup(e)
}

func (q *QueueManager) execute(job Job) (finalPath string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return q.executor.Execute(job.Token.Context(), job)
}

// CancelJob flags the session. A pending session leaves the queue and never
// becomes active. An active session is cancelled at registry level and its
// token fires; the executor is expected to stop on its own.
func (q *QueueManager) CancelJob(id string) error {
	q.mu.Lock()
	e, ok := q.sessions[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if e.session.Status.IsTerminal() {
		q.mu.Unlock()
		return nil
	}

	wasActive := e.session.Status == domain.SessionStatusActive
	if !wasActive {
		q.queue = slices.DeleteFunc(q.queue, func(qid string) bool { return qid == id })
	}
	if err := e.session.MarkCancelled(); err != nil {
		q.mu.Unlock()
		return err
	}
	if wasActive {
		q.active--
		e.token.Cancel()
	}
	q.cancelled++
	q.publishLocked(e.session, EventCancelled, nil)
	q.admitLocked()
	q.mu.Unlock()

	logger.Info.Printf("session %s cancelled", id)
	q.cleanup(e)
	return nil
}

// UpdateProgress merges a progress event. It is ignored once cancellation
// was requested or the session is no longer active.
func (q *QueueManager) UpdateProgress(id string, update domain.ProgressUpdate) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if e.session.CancelRequested || e.session.Status != domain.SessionStatusActive {
		return nil
	}
	e.session.Progress = e.session.Progress.Merge(update)
	q.publishLocked(e.session, EventProgress, nil)
	return nil
}

func (q *QueueManager) RecordRetry(id string, attempt int, info domain.ErrorInfo) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if e.session.Status != domain.SessionStatusActive {
		return nil
	}
	e.session.RetryCount++
	q.publishLocked(e.session, EventRetrying, &info)
	logger.Warn.Printf("session %s: attempt %d failed (%s), retrying", id, attempt, info.Kind)
	return nil
}

func (q *QueueManager) AttachMetadata(id string, md *domain.Metadata) error {
	if md == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if e.session.Status.IsTerminal() {
		return nil
	}
	e.session.Metadata = md.Clone()
	q.publishLocked(e.session, EventMetadata, nil)
	return nil
}

func (q *QueueManager) CompleteJob(id, finalPath string) error {
	return q.finish(id, func(e *queueEntry) (EventKind, error) {
		if err := e.session.MarkComplete(finalPath); err != nil {
			return "", err
		}
		q.completed++
		return EventCompleted, nil
	})
}

func (q *QueueManager) FailJob(id string, info domain.ErrorInfo) error {
	return q.finish(id, func(e *queueEntry) (EventKind, error) {
		if err := e.session.MarkFailed(info); err != nil {
			return "", err
		}
		q.failed++
		return EventFailed, nil
	})
}

// finish applies a terminal transition to an active session. Terminal
// sessions are left untouched.
func (q *QueueManager) finish(id string, transition func(*queueEntry) (EventKind, error)) error {
	q.mu.Lock()
	e, ok := q.sessions[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if e.session.Status.IsTerminal() {
		q.mu.Unlock()
		return nil
	}
	kind, err := transition(e)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	q.active--
	if e.token != nil {
		e.token.Cancel()
	}
	q.publishLocked(e.session, kind, nil)
	q.admitLocked()
	q.mu.Unlock()

	if kind == EventFailed {
		logger.Warn.Printf("session %s failed: %s", id, logger.SanitizeForLog(e.session.Error.Error()))
	} else {
		logger.Info.Printf("session %s complete: %s", id, logger.SanitizeForLog(e.session.FinalPath))
	}
	q.cleanup(e)
	return nil
}

// cleanup removes the session's temp directory exactly once, after the
// terminal transition and after its executor returned.
func (q *QueueManager) cleanup(e *queueEntry) {
	q.mu.Lock()
	if e.cleaned || e.running || !e.session.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	e.cleaned = true
	id := e.session.ID
	q.mu.Unlock()

	if q.cleaner == nil {
		return
	}
	if err := q.cleaner.CleanupSession(id); err != nil {
		logger.Error.Printf("session %s: temp cleanup: %v", id, err)
	}
}

func (q *QueueManager) GetStatus(id string) (*domain.Session, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return e.session.Clone(), nil
}

func (q *QueueManager) ListActive() []*domain.Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*domain.Session
	for _, e := range q.sessions {
		if e.session.Status == domain.SessionStatusActive {
			out = append(out, e.session.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Session) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// IsLive reports whether id names a session that has not reached a terminal
// state.
func (q *QueueManager) IsLive(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.sessions[id]
	return ok && (!e.session.Status.IsTerminal() || e.running)
}

// List returns every tracked session, oldest first.
func (q *QueueManager) List() []*domain.Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.Session, 0, len(q.sessions))
	for _, e := range q.sessions {
		out = append(out, e.session.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.Session) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (q *QueueManager) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Pending:          len(q.queue),
		Active:           q.active,
		Completed:        q.completed,
		Failed:           q.failed,
		Cancelled:        q.cancelled,
		Tracked:          len(q.sessions),
		ConcurrencyLimit: q.cfg.ConcurrencyLimit,
		QueueSize:        q.cfg.QueueSize,
	}
}

// PruneTerminal forgets terminal sessions that ended before the cutoff and
// whose temp directory is already gone. Counters are kept.
func (q *QueueManager) PruneTerminal(before time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	pruned := 0
	for id, e := range q.sessions {
		if !e.session.Status.IsTerminal() || !e.cleaned || !e.session.EndedAt.Before(before) {
			continue
		}
		delete(q.sessions, id)
		q.publishLocked(e.session, EventRemoved, nil)
		pruned++
	}
	return pruned
}

// Shutdown stops admission, cancels pending sessions, fires every active
// token and waits for executors until ctx expires.
func (q *QueueManager) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	pending := slices.Clone(q.queue)
	q.mu.Unlock()

	for _, id := range pending {
		_ = q.CancelJob(id)
	}
	q.stop()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running sessions: %w", ctx.Err())
	}
}

func (q *QueueManager) publishLocked(s *domain.Session, kind EventKind, retry *domain.ErrorInfo) {
	if q.events == nil {
		return
	}
	var info *domain.ErrorInfo
	if retry != nil {
		c := *retry
		info = &c
	}
	q.events.Publish(SessionEvent{
		SessionID: s.ID,
		Kind:      kind,
		Snapshot:  s.Clone(),
		Retry:     info,
		At:        time.Now(),
	})
}
