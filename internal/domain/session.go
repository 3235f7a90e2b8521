package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusComplete  SessionStatus = "complete"
	SessionStatusError     SessionStatus = "error"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// transitions lists every legal edge of the session state machine.
// Terminal states have no outgoing edges.
var transitions = map[SessionStatus][]SessionStatus{
	SessionStatusPending: {SessionStatusActive, SessionStatusCancelled},
	SessionStatusActive:  {SessionStatusComplete, SessionStatusError, SessionStatusCancelled},
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusComplete || s == SessionStatusError || s == SessionStatusCancelled
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Quality string

const (
	QualityBest   Quality = "best"
	QualityMedium Quality = "medium"
	QualityAudio  Quality = "audio"
)

// Options is the immutable per-job configuration chosen at StartJob time.
type Options struct {
	Quality     Quality `json:"quality"`
	Format      string  `json:"format"`
	MaxFileSize int64   `json:"max_file_size"`
	AudioOnly   bool    `json:"audio_only"`
}

// Normalize fills defaults for unset fields.
func (o Options) Normalize() Options {
	if o.AudioOnly {
		o.Quality = QualityAudio
	}
	switch o.Quality {
	case QualityBest, QualityMedium, QualityAudio:
	default:
		o.Quality = QualityBest
	}
	if o.Format == "" {
		if o.Quality == QualityAudio {
			o.Format = "m4a"
		} else {
			o.Format = "mp4"
		}
	}
	if o.MaxFileSize < 0 {
		o.MaxFileSize = 0
	}
	return o
}

// ProgressUpdate is the shape of a single onProgress event emitted by a Downloader.
type ProgressUpdate struct {
	Status     string  `json:"status"`
	BytesDone  int64   `json:"bytes_done"`
	BytesTotal int64   `json:"bytes_total"`
	Percentage float64 `json:"percentage"`
	Rate       float64 `json:"rate"`
	ETASeconds int     `json:"eta_seconds"`
}

type Progress struct {
	BytesDone  int64   `json:"bytes_done"`
	BytesTotal int64   `json:"bytes_total"`
	Percentage float64 `json:"percentage"`
	Rate       float64 `json:"rate"`
	ETASeconds int     `json:"eta_seconds"`
}

// Merge folds a partial update into the snapshot. Byte counts and percentage
// never move backwards; rate and ETA always take the latest non-negative value.
func (p Progress) Merge(u ProgressUpdate) Progress {
	if u.BytesTotal > 0 {
		p.BytesTotal = u.BytesTotal
	}
	if u.BytesDone > p.BytesDone {
		p.BytesDone = u.BytesDone
	}
	pct := u.Percentage
	if pct == 0 && p.BytesTotal > 0 {
		pct = float64(p.BytesDone) / float64(p.BytesTotal) * 100
	}
	if pct > 100 {
		pct = 100
	}
	if pct > p.Percentage {
		p.Percentage = pct
	}
	if u.Rate >= 0 {
		p.Rate = u.Rate
	}
	if u.ETASeconds >= 0 {
		p.ETASeconds = u.ETASeconds
	}
	return p
}

type Session struct {
	ID              string        `json:"id"`
	SourceRef       string        `json:"source_ref"`
	Status          SessionStatus `json:"status"`
	Progress        Progress      `json:"progress"`
	Options         Options       `json:"options"`
	TempPath        string        `json:"temp_path"`
	FinalPath       string        `json:"final_path,omitempty"`
	Error           *ErrorInfo    `json:"error,omitempty"`
	Metadata        *Metadata     `json:"metadata,omitempty"`
	RetryCount      int           `json:"retry_count"`
	CancelRequested bool          `json:"cancel_requested"`
	CreatedAt       time.Time     `json:"created_at"`
	StartedAt       time.Time     `json:"started_at,omitzero"`
	EndedAt         time.Time     `json:"ended_at,omitzero"`
}

func NewSession(id, sourceRef string, opts Options, tempRoot string) *Session {
	return &Session{
		ID:        id,
		SourceRef: sourceRef,
		Status:    SessionStatusPending,
		Options:   opts.Normalize(),
		TempPath:  filepath.Join(tempRoot, id),
		Progress:  Progress{ETASeconds: -1},
		CreatedAt: time.Now(),
	}
}

func (s *Session) transition(next SessionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	return nil
}

func (s *Session) MarkActive() error {
	if err := s.transition(SessionStatusActive); err != nil {
		return err
	}
	s.StartedAt = time.Now()
	return nil
}

func (s *Session) MarkComplete(finalPath string) error {
	if err := s.transition(SessionStatusComplete); err != nil {
		return err
	}
	s.FinalPath = finalPath
	s.Progress.Percentage = 100
	if s.Progress.BytesTotal > 0 {
		s.Progress.BytesDone = s.Progress.BytesTotal
	}
	s.Progress.ETASeconds = 0
	s.EndedAt = time.Now()
	return nil
}

func (s *Session) MarkFailed(info ErrorInfo) error {
	if err := s.transition(SessionStatusError); err != nil {
		return err
	}
	s.Error = &info
	s.EndedAt = time.Now()
	return nil
}

func (s *Session) MarkCancelled() error {
	if err := s.transition(SessionStatusCancelled); err != nil {
		return err
	}
	s.CancelRequested = true
	s.EndedAt = time.Now()
	return nil
}

// Clone returns a deep copy safe to hand outside the registry.
func (s *Session) Clone() *Session {
	c := *s
	if s.Error != nil {
		info := *s.Error
		c.Error = &info
	}
	if s.Metadata != nil {
		c.Metadata = s.Metadata.Clone()
	}
	return &c
}
