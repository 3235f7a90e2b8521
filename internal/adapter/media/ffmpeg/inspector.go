package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains null byte")
)

const DefaultBinary = "ffprobe"

// Inspector verifies finished downloads with ffprobe.
type Inspector struct {
	binary string
}

func NewInspector(binary string) *Inspector {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Inspector{binary: binary}
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

func (i *Inspector) Inspect(ctx context.Context, path string) (*domain.ProbeResult, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"--",
		path,
	}
	cmd := exec.CommandContext(ctx, i.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffprobe failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*domain.ProbeResult, error) {
	var res domain.ProbeResult
	if err := json.Unmarshal(output, &res); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &res, nil
}

var _ port.MediaInspector = (*Inspector)(nil)
