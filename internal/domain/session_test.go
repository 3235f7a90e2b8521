package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession("abc", "https://example.com/v", Options{}, "/tmp/root")

	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, SessionStatusPending, s.Status)
	assert.Equal(t, filepath.Join("/tmp/root", "abc"), s.TempPath)
	assert.Equal(t, QualityBest, s.Options.Quality)
	assert.Equal(t, "mp4", s.Options.Format)
	assert.Equal(t, -1, s.Progress.ETASeconds)
	assert.False(t, s.CreatedAt.IsZero())
	assert.True(t, s.StartedAt.IsZero())
}

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	all := []SessionStatus{
		SessionStatusPending, SessionStatusActive, SessionStatusComplete,
		SessionStatusError, SessionStatusCancelled,
	}
	legal := map[[2]SessionStatus]bool{
		{SessionStatusPending, SessionStatusActive}:    true,
		{SessionStatusPending, SessionStatusCancelled}: true,
		{SessionStatusActive, SessionStatusComplete}:   true,
		{SessionStatusActive, SessionStatusError}:      true,
		{SessionStatusActive, SessionStatusCancelled}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]SessionStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestSessionStatus_IsTerminal(t *testing.T) {
	assert.False(t, SessionStatusPending.IsTerminal())
	assert.False(t, SessionStatusActive.IsTerminal())
	assert.True(t, SessionStatusComplete.IsTerminal())
	assert.True(t, SessionStatusError.IsTerminal())
	assert.True(t, SessionStatusCancelled.IsTerminal())
}

func TestSession_Lifecycle(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		s := NewSession("a", "ref", Options{}, "/tmp")
		require.NoError(t, s.MarkActive())
		assert.False(t, s.StartedAt.IsZero())

		require.NoError(t, s.MarkComplete("/out/a.mp4"))
		assert.Equal(t, SessionStatusComplete, s.Status)
		assert.Equal(t, "/out/a.mp4", s.FinalPath)
		assert.Equal(t, 100.0, s.Progress.Percentage)
		assert.False(t, s.EndedAt.IsZero())

		err := s.MarkFailed(ErrorInfo{Kind: ErrorKindUnknown})
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Nil(t, s.Error)
	})

	t.Run("pending cannot complete", func(t *testing.T) {
		s := NewSession("a", "ref", Options{}, "/tmp")
		err := s.MarkComplete("/out")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, SessionStatusPending, s.Status)
		assert.Empty(t, s.FinalPath)
	})

	t.Run("failed stores error info", func(t *testing.T) {
		s := NewSession("a", "ref", Options{}, "/tmp")
		require.NoError(t, s.MarkActive())
		require.NoError(t, s.MarkFailed(ErrorInfo{Kind: ErrorKindNetwork, RawMessage: "reset"}))
		require.NotNil(t, s.Error)
		assert.Equal(t, ErrorKindNetwork, s.Error.Kind)
	})

	t.Run("pending cancel", func(t *testing.T) {
		s := NewSession("a", "ref", Options{}, "/tmp")
		require.NoError(t, s.MarkCancelled())
		assert.True(t, s.CancelRequested)
		assert.ErrorIs(t, s.MarkActive(), ErrInvalidTransition)
	})
}

func TestProgress_Merge(t *testing.T) {
	p := Progress{ETASeconds: -1}

	p = p.Merge(ProgressUpdate{BytesDone: 50, BytesTotal: 200, Rate: 10, ETASeconds: 15})
	assert.Equal(t, int64(50), p.BytesDone)
	assert.Equal(t, int64(200), p.BytesTotal)
	assert.InDelta(t, 25.0, p.Percentage, 0.001)
	assert.Equal(t, 15, p.ETASeconds)

	// An out-of-order smaller update must not move progress backwards.
	p = p.Merge(ProgressUpdate{BytesDone: 20, Percentage: 10, Rate: 12, ETASeconds: -1})
	assert.Equal(t, int64(50), p.BytesDone)
	assert.InDelta(t, 25.0, p.Percentage, 0.001)
	assert.Equal(t, 12.0, p.Rate)
	assert.Equal(t, 15, p.ETASeconds)

	p = p.Merge(ProgressUpdate{Percentage: 140})
	assert.Equal(t, 100.0, p.Percentage)
}

func TestOptions_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{"defaults", Options{}, Options{Quality: QualityBest, Format: "mp4"}},
		{"audio only", Options{AudioOnly: true}, Options{Quality: QualityAudio, Format: "m4a", AudioOnly: true}},
		{"unknown quality", Options{Quality: "ultra", Format: "webm"}, Options{Quality: QualityBest, Format: "webm"}},
		{"negative size", Options{Quality: QualityMedium, MaxFileSize: -5}, Options{Quality: QualityMedium, Format: "mp4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestSession_Clone(t *testing.T) {
	s := NewSession("a", "ref", Options{}, "/tmp")
	s.Metadata = &Metadata{Title: "x", Formats: []Format{{ID: "1"}}}
	s.Error = &ErrorInfo{Kind: ErrorKindTimeout}

	c := s.Clone()
	c.Metadata.Formats[0].ID = "2"
	c.Error.Kind = ErrorKindUnknown

	assert.Equal(t, "1", s.Metadata.Formats[0].ID)
	assert.Equal(t, ErrorKindTimeout, s.Error.Kind)
}

func TestAsErrorInfo(t *testing.T) {
	info := ErrorInfo{Kind: ErrorKindProxyBlocked, IsRetryable: true}
	wrapped := errors.Join(errors.New("outer"), NewClassifiedError(info, errors.New("403")))

	got, ok := AsErrorInfo(wrapped)
	assert.True(t, ok)
	assert.Equal(t, info, got)

	_, ok = AsErrorInfo(errors.New("plain"))
	assert.False(t, ok)
}
