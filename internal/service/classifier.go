package service

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/infrastructure/validation"
)

const (
	OperationProbe    = "probe"
	OperationTransfer = "transfer"
	OperationVerify   = "verify"
	OperationPrepare  = "prepare"
)

// ClassifyContext describes where a failure happened.
type ClassifyContext struct {
	Operation string
	SourceRef string
	Attempt   int
}

type classifyRule struct {
	kind  domain.ErrorKind
	match func(err error, msg string) bool
}

// kindDescription holds the user-facing text for an error kind.
type kindDescription struct {
	userMessage     string
	suggestedAction string
}

var kindDescriptions = map[domain.ErrorKind]kindDescription{
	domain.ErrorKindVideoUnavailable:  {"The video is unavailable, private or removed.", "Check that the video can be watched in a browser."},
	domain.ErrorKindInvalidURL:        {"The link is not a supported video URL.", "Paste the full http(s) link of the video page."},
	domain.ErrorKindNetwork:           {"A network error interrupted the download.", "Check the connection and try again."},
	domain.ErrorKindProxyBlocked:      {"The video host refused the request.", "Wait a few minutes or use another network."},
	domain.ErrorKindQuotaExceeded:     {"The video host is rate limiting requests.", "Wait before starting more downloads."},
	domain.ErrorKindTimeout:           {"The download took too long to respond.", "Try again later or raise the network timeout."},
	domain.ErrorKindPermissionDenied:  {"The download location is not writable.", "Check permissions of the temp and output directories."},
	domain.ErrorKindInsufficientSpace: {"There is not enough free disk space.", "Free some space or lower the maximum file size."},
	domain.ErrorKindUnsupportedFormat: {"The requested format is not available for this video.", "Pick another quality or format."},
	domain.ErrorKindToolNotFound:      {"A required download tool is not installed.", "Install yt-dlp and ffmpeg or fix their configured paths."},
	domain.ErrorKindCancelledByUser:   {"The download was cancelled.", "Start the job again if this was a mistake."},
	domain.ErrorKindUnknown:           {"The download failed for an unexpected reason.", "Check the logs for details."},
}

var defaultStrategies = map[domain.ErrorKind]domain.RecoveryStrategy{
	domain.ErrorKindProxyBlocked:  {Kind: domain.StrategyIdentityRotation, ShouldRetry: true, MaxRetries: 5, BaseDelay: 3 * time.Second},
	domain.ErrorKindQuotaExceeded: {Kind: domain.StrategyExponential, ShouldRetry: true, MaxRetries: 3, BaseDelay: 10 * time.Second},
	domain.ErrorKindNetwork:       {Kind: domain.StrategyStandardRetry, ShouldRetry: true, MaxRetries: 3, BaseDelay: 2 * time.Second},
	domain.ErrorKindTimeout:       {Kind: domain.StrategyExtendedTimeout, ShouldRetry: true, MaxRetries: 2, BaseDelay: 5 * time.Second},
}

// DefaultRecoveryStrategy returns the built-in policy for kind. Kinds without
// an entry are never retried.
func DefaultRecoveryStrategy(kind domain.ErrorKind) domain.RecoveryStrategy {
	if s, ok := defaultStrategies[kind]; ok {
		return s
	}
	return domain.RecoveryStrategy{Kind: domain.StrategyNone}
}

func contains(needles ...string) func(error, string) bool {
	return func(_ error, msg string) bool {
		for _, n := range needles {
			if strings.Contains(msg, n) {
				return true
			}
		}
		return false
	}
}

func is(targets ...error) func(error, string) bool {
	return func(err error, _ string) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

func isNetTimeout(err error, _ string) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetFailure(err error, _ string) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}

// classifyRules is evaluated top to bottom and the first match wins. Typed
// checks come first. Among the message families, insufficient space precedes
// quota so that "disk quota exceeded" is a storage problem, and proxy blocks
// precede quota so a 403 never reads as rate limiting.
var classifyRules = []classifyRule{
	{domain.ErrorKindCancelledByUser, is(context.Canceled)},
	{domain.ErrorKindToolNotFound, is(exec.ErrNotFound)},
	{domain.ErrorKindInsufficientSpace, is(syscall.ENOSPC)},
	{domain.ErrorKindPermissionDenied, is(os.ErrPermission)},
	{domain.ErrorKindTimeout, is(context.DeadlineExceeded, os.ErrDeadlineExceeded)},
	{domain.ErrorKindTimeout, isNetTimeout},
	{domain.ErrorKindInvalidURL, is(domain.ErrInvalidSourceRef)},
	{domain.ErrorKindUnsupportedFormat, is(validation.ErrNotMedia)},
	// No format fits under the size cap, as with yt-dlp's [filesize<N] filter.
	{domain.ErrorKindUnsupportedFormat, is(domain.ErrFileTooLarge)},
	{domain.ErrorKindNetwork, isNetFailure},

	{domain.ErrorKindToolNotFound, contains("executable file not found", "command not found", "is not installed")},
	{domain.ErrorKindInsufficientSpace, contains("no space left on device", "disk quota exceeded", "not enough space", "insufficient space", "disk full")},
	{domain.ErrorKindPermissionDenied, contains("permission denied", "operation not permitted", "access is denied", "read-only file system")},
	{domain.ErrorKindCancelledByUser, contains("context canceled", "cancelled by user", "canceled by user", "download cancelled")},
	{domain.ErrorKindTimeout, contains("timed out", "timeout", "deadline exceeded")},
	{domain.ErrorKindInvalidURL, contains("unsupported url", "invalid url", "missing protocol scheme", "is not a valid url")},
	{domain.ErrorKindVideoUnavailable, contains(
		"video unavailable", "private video", "this video has been removed", "this video is not available",
		"members-only", "has been terminated", "sign in to confirm your age", "http error 404", "http error 410",
	)},
	{domain.ErrorKindProxyBlocked, contains("http error 403", "forbidden", "not a bot", "captcha", "access blocked")},
	{domain.ErrorKindQuotaExceeded, contains("http error 429", "too many requests", "rate limit", "rate-limit", "quota exceeded")},
	{domain.ErrorKindUnsupportedFormat, contains(
		"requested format is not available", "unsupported format", "no video formats found",
		"invalid data found when processing input",
	)},
	{domain.ErrorKindNetwork, contains(
		"connection reset", "connection refused", "network is unreachable", "no such host", "unexpected eof",
		"temporary failure in name resolution", "broken pipe", "http error 500", "http error 502",
		"http error 503", "http error 504",
	)},
}

// networkVocabulary marks otherwise unmatched messages as network failures.
var networkVocabulary = []string{
	"connection", "socket", "dns", "tls", "ssl", "handshake", "network", "unreachable", "proxy", "host",
}

// causeDescriptions replace the kind's text for specific sentinel causes.
var causeDescriptions = []struct {
	cause error
	desc  kindDescription
}{
	{domain.ErrFileTooLarge, kindDescription{"The file is larger than the maximum file size.", "Raise the maximum file size or pick a lower quality."}},
}

type Classifier struct {
	strategies map[domain.ErrorKind]domain.RecoveryStrategy
}

type ClassifierOption func(*Classifier)

// WithStrategyOverride replaces the retry budget and base delay of a
// retryable kind. A negative maxRetries or non-positive baseDelay keeps the
// default for that field. Non-retryable kinds cannot be overridden.
func WithStrategyOverride(kind domain.ErrorKind, maxRetries int, baseDelay time.Duration) ClassifierOption {
	return func(c *Classifier) {
		s, ok := c.strategies[kind]
		if !ok {
			return
		}
		if maxRetries >= 0 {
			s.MaxRetries = maxRetries
		}
		if baseDelay > 0 {
			s.BaseDelay = baseDelay
		}
		c.strategies[kind] = s
	}
}

func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{strategies: make(map[domain.ErrorKind]domain.RecoveryStrategy, len(defaultStrategies))}
	for k, s := range defaultStrategies {
		c.strategies[k] = s
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify maps err to an ErrorInfo. An error that already carries a
// classification is returned as-is. Classify is deterministic for a given
// error message and context.
func (c *Classifier) Classify(err error, cctx ClassifyContext) domain.ErrorInfo {
	if err == nil {
		return c.describe(domain.ErrorKindUnknown, "", cctx)
	}
	if info, ok := domain.AsErrorInfo(err); ok {
		return info
	}

	raw := err.Error()
	msg := strings.ToLower(raw)
	for _, r := range classifyRules {
		if r.match(err, msg) {
			info := c.describe(r.kind, raw, cctx)
			for _, cd := range causeDescriptions {
				if errors.Is(err, cd.cause) {
					info.UserMessage, info.SuggestedAction = cd.desc.userMessage, cd.desc.suggestedAction
					break
				}
			}
			return info
		}
	}
	for _, word := range networkVocabulary {
		if strings.Contains(msg, word) {
			return c.describe(domain.ErrorKindNetwork, raw, cctx)
		}
	}
	return c.describe(domain.ErrorKindUnknown, raw, cctx)
}

// Wrap classifies err and attaches the verdict so later stages reuse it.
func (c *Classifier) Wrap(err error, cctx ClassifyContext) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsErrorInfo(err); ok {
		return err
	}
	return domain.NewClassifiedError(c.Classify(err, cctx), err)
}

// RecoveryStrategy looks up the policy for an already classified failure.
func (c *Classifier) RecoveryStrategy(info domain.ErrorInfo) domain.RecoveryStrategy {
	if s, ok := c.strategies[info.Kind]; ok {
		return s
	}
	return domain.RecoveryStrategy{Kind: domain.StrategyNone}
}

func (c *Classifier) describe(kind domain.ErrorKind, raw string, cctx ClassifyContext) domain.ErrorInfo {
	desc := kindDescriptions[kind]
	user := desc.userMessage
	if kind == domain.ErrorKindUnknown && cctx.Operation != "" {
		user = "The " + cctx.Operation + " step failed for an unexpected reason."
	}
	return domain.ErrorInfo{
		Kind:            kind,
		RawMessage:      raw,
		UserMessage:     user,
		IsRetryable:     c.strategies[kind].ShouldRetry,
		SuggestedAction: desc.suggestedAction,
	}
}
