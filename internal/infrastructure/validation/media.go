// Package validation checks untrusted input: source references, file names
// and the content of downloaded files.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

var ErrNotMedia = errors.New("file is not a supported media container")

// mediaMIMETypes is the allowlist of containers a finished download may have.
var mediaMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/webm":       true,
	"video/quicktime":  true,
	"video/x-matroska": true,
	"video/mp2t":       true,
	"audio/mp4":        true,
	"audio/mpeg":       true,
	"audio/ogg":        true,
	"application/ogg":  true,
	"audio/wav":        true,
	"audio/wave":       true,
	"audio/flac":       true,
	"audio/aac":        true,
}

const sniffSize = 512

// ValidateMagicBytes sniffs the container type from the first bytes of r and
// rewinds it. allowed reports whether the type is a media container.
func ValidateMagicBytes(r io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}
	if n == 0 {
		return "application/octet-stream", false, nil
	}

	buf = buf[:n]
	mime = sniffContainer(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}
	return mime, mediaMIMETypes[mime], nil
}

// ValidateMediaFile opens path and fails with ErrNotMedia unless its content
// looks like a media container.
func ValidateMediaFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	mime, ok, err := ValidateMagicBytes(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !ok {
		return mime, fmt.Errorf("%w: detected %s", ErrNotMedia, mime)
	}
	return mime, nil
}

func sniffContainer(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}
	switch {
	case bytes.HasPrefix(buf, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		if bytes.Contains(buf, []byte("matroska")) {
			return "video/x-matroska"
		}
		return "video/webm"
	case bytes.HasPrefix(buf, []byte("fLaC")):
		return "audio/flac"
	case bytes.HasPrefix(buf, []byte("ID3")):
		return "audio/mpeg"
	case bytes.HasPrefix(buf, []byte("OggS")):
		return "audio/ogg"
	case buf[0] == 0xFF && (buf[1]&0xF6) == 0xF0:
		return "audio/aac"
	case buf[0] == 0xFF && (buf[1]&0xFE == 0xFA || buf[1]&0xFE == 0xF2):
		return "audio/mpeg"
	case buf[0] == 0x47 && len(buf) > 188 && buf[188] == 0x47:
		return "video/mp2t"
	}

	if len(buf) >= 12 && string(buf[4:8]) == "ftyp" {
		switch string(buf[8:12]) {
		case "M4A ", "M4B ":
			return "audio/mp4"
		case "qt  ":
			return "video/quicktime"
		default:
			return "video/mp4"
		}
	}
	return ""
}
