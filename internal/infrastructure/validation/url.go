package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bnema/scenefetch/internal/domain"
)

const maxSourceRefLength = 2048

// ValidateSourceURL accepts absolute http(s) URLs with a host and returns the
// trimmed form.
func ValidateSourceURL(raw string) (string, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidSourceRef)
	}
	if len(ref) > maxSourceRefLength {
		return "", fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidSourceRef, maxSourceRefLength)
	}
	if strings.ContainsAny(ref, " \t\r\n") {
		return "", fmt.Errorf("%w: contains whitespace", domain.ErrInvalidSourceRef)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSourceRef, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return "", fmt.Errorf("%w: missing scheme", domain.ErrInvalidSourceRef)
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidSourceRef, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", domain.ErrInvalidSourceRef)
	}
	return ref, nil
}
