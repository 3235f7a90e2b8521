package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "", want: 0},
		{in: "N/A", want: 0},
		{in: "garbage", want: 0},
		{in: "12.5", want: 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration(tt.in))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{seconds: 0, want: "00:00"},
		{seconds: -3, want: "00:00"},
		{seconds: 65, want: "1:05"},
		{seconds: 3725.9, want: "1:02:05"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}

func TestProbeResult_Streams(t *testing.T) {
	p := &ProbeResult{
		Streams: []ProbeStream{
			{CodecType: "audio", CodecName: "opus"},
			{CodecType: "video", CodecName: "vp9", Width: 1280, Height: 720},
		},
		Format: ProbeFormat{Duration: "42.0"},
	}

	assert.True(t, p.HasMedia())
	assert.Equal(t, "vp9", p.VideoStream().CodecName)
	assert.Equal(t, "opus", p.AudioStream().CodecName)
	w, h := p.Dimensions()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
	assert.Equal(t, 42.0, p.DurationSeconds())

	empty := &ProbeResult{}
	assert.False(t, empty.HasMedia())
	w, h = empty.Dimensions()
	assert.Zero(t, w+h)
}
