package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/infrastructure/validation"
	"github.com/bnema/scenefetch/internal/port"
)

type RunnerConfig struct {
	OutputDir       string
	TransferTimeout time.Duration
	Retry           RetryPolicy
	RandomDelayMin  time.Duration
	RandomDelayMax  time.Duration
}

// Runner executes admitted sessions: prepare the temp directory, probe,
// transfer through the downloader fallback chain, verify and publish the
// file into the output directory.
type Runner struct {
	cfg         RunnerConfig
	classifier  *Classifier
	identities  *IdentityPool
	downloaders []port.Downloader
	prober      *ProbeService
	inspector   port.MediaInspector
	space       port.SpaceChecker
	rand        RandFunc
}

func NewRunner(
	cfg RunnerConfig,
	classifier *Classifier,
	identities *IdentityPool,
	prober *ProbeService,
	inspector port.MediaInspector,
	space port.SpaceChecker,
	downloaders ...port.Downloader,
) *Runner {
	if identities == nil {
		identities = NewIdentityPool()
	}
	return &Runner{
		cfg:         cfg,
		classifier:  classifier,
		identities:  identities,
		downloaders: downloaders,
		prober:      prober,
		inspector:   inspector,
		space:       space,
	}
}

func (r *Runner) Execute(ctx context.Context, job Job) (string, error) {
	s := job.Session
	scope := ClassifyContext{Operation: OperationPrepare, SourceRef: s.SourceRef}

	if err := os.MkdirAll(s.TempPath, 0o755); err != nil {
		return "", r.classifier.Wrap(fmt.Errorf("create temp dir: %w", err), scope)
	}
	if err := r.checkSpace(ctx, s); err != nil {
		return "", r.classifier.Wrap(err, scope)
	}

	var title string
	if r.prober != nil {
		md, err := r.prober.probe(ctx, s.SourceRef, func(attempt int, info domain.ErrorInfo) {
			_ = job.Reporter.RecordRetry(s.ID, attempt, info)
		})
		if err != nil {
			return "", err
		}
		_ = job.Reporter.AttachMetadata(s.ID, md)
		title = md.Title
	}

	tempFile, err := r.transfer(ctx, job)
	if err != nil {
		return "", err
	}

	if err := r.verify(ctx, s, tempFile); err != nil {
		return "", err
	}

	if job.Token.Cancelled() {
		return "", r.classifier.Wrap(fmt.Errorf("session %s: %w", s.ID, context.Canceled), scope)
	}

	final, err := r.publish(tempFile, title, s.ID)
	if err != nil {
		return "", r.classifier.Wrap(err, ClassifyContext{Operation: OperationVerify, SourceRef: s.SourceRef})
	}
	return final, nil
}

func (r *Runner) checkSpace(ctx context.Context, s *domain.Session) error {
	if r.space == nil || s.Options.MaxFileSize <= 0 {
		return nil
	}
	free, err := r.space.FreeBytes(ctx, s.TempPath)
	if err != nil {
		logger.Warn.Printf("session %s: free space check skipped: %v", s.ID, err)
		return nil
	}
	need := uint64(s.Options.MaxFileSize)
	if free < need {
		return fmt.Errorf("insufficient space: need %s, %s free", humanize.Bytes(need), humanize.Bytes(free))
	}
	return nil
}

// transfer runs the downloaders as a fallback chain. Each one retries with
// its own budget, rotating identities and bounded by the transfer timeout.
func (r *Runner) transfer(ctx context.Context, job Job) (string, error) {
	s := job.Session
	policy := r.cfg.Retry
	policy.UseKindStrategy = true
	policy.Scope = ClassifyContext{Operation: OperationTransfer, SourceRef: s.SourceRef}

	var (
		mu     sync.Mutex
		result string
	)
	onProgress := func(u domain.ProgressUpdate) {
		_ = job.Reporter.UpdateProgress(s.ID, u)
	}
	onRetry := func(attempt int, info domain.ErrorInfo) {
		_ = job.Reporter.RecordRetry(s.ID, attempt, info)
	}

	strategies := make([]Strategy, 0, len(r.downloaders))
	for _, d := range r.downloaders {
		strategies = append(strategies, Strategy{
			Name: d.Name(),
			Run: func(ctx context.Context) error {
				op := WithIdentityRotation(r.identities, func(ctx context.Context, attempt int, identity string) error {
					path, err := d.Transfer(ctx, port.TransferRequest{
						SourceRef:      s.SourceRef,
						DestinationDir: s.TempPath,
						Options:        s.Options,
						Identity:       identity,
						Cancel:         job.Token,
					}, onProgress)
					if err != nil {
						return err
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					mu.Lock()
					result = path
					mu.Unlock()
					return nil
				})
				op = WithRandomDelay(r.cfg.RandomDelayMin, r.cfg.RandomDelayMax, r.rand, op)
				op = WithTimeout(r.classifier, r.cfg.TransferTimeout, op)
				return ExecuteWithRetry(ctx, r.classifier, policy, op, onRetry)
			},
		})
	}

	if err := FallbackChain(ctx, strategies...); err != nil {
		if info, ok := ChainErrorInfo(err); ok {
			return "", domain.NewClassifiedError(info, err)
		}
		return "", r.classifier.Wrap(err, policy.Scope)
	}

	mu.Lock()
	defer mu.Unlock()
	return result, nil
}

// verify rejects files that are not media. ffprobe is used when available;
// a missing ffprobe only skips that part of the check.
func (r *Runner) verify(ctx context.Context, s *domain.Session, path string) error {
	scope := ClassifyContext{Operation: OperationVerify, SourceRef: s.SourceRef}

	if _, err := validation.ValidateMediaFile(path); err != nil {
		return r.classifier.Wrap(err, scope)
	}
	if r.inspector == nil {
		return nil
	}

	res, err := r.inspector.Inspect(ctx, path)
	if err != nil {
		info := r.classifier.Classify(err, scope)
		if info.Kind == domain.ErrorKindToolNotFound {
			logger.Warn.Printf("session %s: ffprobe unavailable, skipping stream check", s.ID)
			return nil
		}
		return domain.NewClassifiedError(info, err)
	}
	if !res.HasMedia() {
		return r.classifier.Wrap(fmt.Errorf("%w: no audio or video stream in %s", validation.ErrNotMedia, filepath.Base(path)), scope)
	}
	if !s.Options.AudioOnly && s.Options.Quality != domain.QualityAudio && res.VideoStream() == nil {
		logger.Warn.Printf("session %s: output has no video stream", s.ID)
	}
	w, h := res.Dimensions()
	logger.Debug.Printf("session %s: verified %dx%d, %s", s.ID, w, h, domain.FormatDuration(res.DurationSeconds()))
	return nil
}

// publish moves the verified file into the output directory.
func (r *Runner) publish(tempFile, title, id string) (string, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	dest := filepath.Join(r.cfg.OutputDir, validation.OutputName(title, id, filepath.Ext(tempFile)))

	err := os.Rename(tempFile, dest)
	if errors.Is(err, syscall.EXDEV) {
		err = copyFile(tempFile, dest)
	}
	if err != nil {
		return "", fmt.Errorf("move %s to output: %w", filepath.Base(tempFile), err)
	}
	return dest, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
