package validation

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength matches the common filesystem limit in bytes.
const maxFilenameLength = 255

// maxTitleLength keeps generated output names readable.
const maxTitleLength = 120

// SanitizeFilename replaces path separators, quotes and control characters
// with underscores, collapses the result and truncates it to 255 bytes while
// keeping the extension. Empty results become "file".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if unsafeRune(r) {
			sb.WriteRune('_')
			continue
		}
		sb.WriteRune(r)
	}

	result := strings.Trim(strings.TrimSpace(sb.String()), ".")
	if strings.Trim(result, "_ ") == "" {
		return "file"
	}
	if len(result) > maxFilenameLength {
		ext := filepath.Ext(result)
		if ext == "" || len(ext) >= maxFilenameLength {
			return truncateBytes(result, maxFilenameLength)
		}
		result = truncateBytes(strings.TrimSuffix(result, ext), maxFilenameLength-len(ext)) + ext
	}
	return result
}

// OutputName builds the final file name of a download from its title, the
// session id and the container extension.
func OutputName(title, id, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	base := strings.TrimSpace(title)
	if base == "" {
		base = "video"
	}
	base = truncateBytes(SanitizeFilename(base), maxTitleLength)
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return SanitizeFilename(base + "-" + short + "." + ext)
}

func unsafeRune(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	switch r {
	case '"', '\\', '/', ':', '*', '?', '<', '>', '|':
		return true
	}
	return false
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
