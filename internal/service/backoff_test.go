package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Duration(t *testing.T) {
	backoff := NewBackoff(100*time.Millisecond, 5*time.Second, 2.0)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-5, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{6, 3200 * time.Millisecond},
		{7, 5 * time.Second},
		{500, 5 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.Duration(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoff_MinAboveMax(t *testing.T) {
	backoff := NewBackoff(10*time.Second, 2*time.Second, 2.0)
	assert.Equal(t, 2*time.Second, backoff.Duration(1))
}

func TestBackoff_FactorBelowOne(t *testing.T) {
	backoff := NewBackoff(time.Second, time.Minute, 0.5)
	assert.Equal(t, 1.0, backoff.Factor)
	assert.Equal(t, time.Second, backoff.Duration(4))
}

func TestBackoff_Jitter(t *testing.T) {
	backoff := NewBackoff(100*time.Millisecond, 5*time.Second, 2.0)
	backoff.Jitter = true

	for range 100 {
		d := backoff.Duration(3)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 400*time.Millisecond)
	}
}

func TestBackoff_NoMax(t *testing.T) {
	backoff := NewBackoff(time.Second, 0, 3.0)
	assert.Equal(t, 9*time.Second, backoff.Duration(3))
}
