package direct

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/infrastructure/validation"
	"github.com/bnema/scenefetch/internal/port"
)

const (
	Name = "direct"

	defaultUserAgent = "scenefetch"
	progressInterval = 250 * time.Millisecond
)

// Downloader fetches source references that point straight at a media file.
type Downloader struct {
	httpClient *http.Client
}

// New returns a Downloader. Per-attempt deadlines come from the caller's
// context, so the client itself has no timeout.
func New(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{httpClient: client}
}

func (d *Downloader) Name() string {
	return Name
}

func (d *Downloader) Probe(ctx context.Context, sourceRef string) (*domain.Metadata, error) {
	resp, err := d.do(ctx, http.MethodHead, sourceRef, "")
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	ext, err := mediaExtension(resp.Header.Get("Content-Type"), sourceRef)
	if err != nil {
		return nil, err
	}

	return &domain.Metadata{
		ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceRef)).String(),
		Title: titleFromURL(sourceRef, resp.Header.Get("Content-Disposition")),
		Formats: []domain.Format{{
			ID:       Name,
			Ext:      ext,
			FileSize: max(resp.ContentLength, 0),
			Note:     resp.Header.Get("Content-Type"),
		}},
	}, nil
}

func (d *Downloader) Transfer(ctx context.Context, req port.TransferRequest, onProgress port.ProgressFunc) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if req.Cancel != nil {
		if req.Cancel.Cancelled() {
			return "", context.Canceled
		}
		go func() {
			select {
			case <-req.Cancel.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	resp, err := d.do(ctx, http.MethodGet, req.SourceRef, req.Identity)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	ext, err := mediaExtension(resp.Header.Get("Content-Type"), req.SourceRef)
	if err != nil {
		return "", err
	}
	limit := req.Options.MaxFileSize
	if limit > 0 && resp.ContentLength > limit {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", domain.ErrFileTooLarge, resp.ContentLength, limit)
	}

	name := validation.SanitizeFilename(uuid.NewSHA1(uuid.NameSpaceURL, []byte(req.SourceRef)).String()[:8] + "." + ext)
	finalPath := filepath.Join(req.DestinationDir, name)
	partPath := finalPath + ".part"

	file, err := os.Create(partPath)
	if err != nil {
		return "", err
	}

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.ContentLength,
			Started:  time.Now(),
			Interval: progressInterval,
			OnUpdate: onProgress,
		}
	}

	// Chunked responses carry no length, so the cap is enforced while copying.
	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}
	written, copyErr := io.Copy(writer, body)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && limit > 0 && written > limit {
		copyErr = fmt.Errorf("%w: more than %d bytes received", domain.ErrFileTooLarge, limit)
	}
	if copyErr == nil {
		copyErr = ctx.Err()
	}
	if copyErr != nil {
		_ = os.Remove(partPath)
		return "", copyErr
	}
	if pw, ok := writer.(*ProgressWriter); ok {
		pw.Flush("finished")
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		return "", err
	}
	return finalPath, nil
}

func (d *Downloader) do(ctx context.Context, method, sourceRef, identity string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, sourceRef, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if identity == "" {
		identity = defaultUserAgent
	}
	req.Header.Set("User-Agent", identity)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

var extByMIME = map[string]string{
	"video/mp4":        "mp4",
	"video/webm":       "webm",
	"video/quicktime":  "mov",
	"video/x-matroska": "mkv",
	"video/mp2t":       "ts",
	"audio/mp4":        "m4a",
	"audio/mpeg":       "mp3",
	"audio/ogg":        "ogg",
	"application/ogg":  "ogg",
	"audio/wav":        "wav",
	"audio/x-wav":      "wav",
	"audio/flac":       "flac",
	"audio/aac":        "aac",
	"audio/webm":       "webm",
}

// mediaExtension accepts media content types. Generic binary responses fall
// back to the URL's extension; the finished file is sniffed later anyway.
func mediaExtension(contentType, sourceRef string) (string, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	if ext, ok := extByMIME[mt]; ok && ext != "" {
		return ext, nil
	}
	if mt == "" || mt == "application/octet-stream" || mt == "binary/octet-stream" {
		if ext := urlExtension(sourceRef); ext != "" {
			return ext, nil
		}
		return "bin", nil
	}
	return "", fmt.Errorf("unsupported format: content type %q is not a media file", mt)
}

func urlExtension(sourceRef string) string {
	u, err := url.Parse(sourceRef)
	if err != nil {
		return ""
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if len(ext) > 5 {
		return ""
	}
	return ext
}

func titleFromURL(sourceRef, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			name := params["filename"]
			return strings.TrimSuffix(name, path.Ext(name))
		}
	}
	u, err := url.Parse(sourceRef)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return u.Host
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// ProgressWriter wraps a writer to report download progress at most once per
// Interval.
type ProgressWriter struct {
	Writer   io.Writer
	Total    int64
	Written  int64
	Started  time.Time
	Interval time.Duration
	OnUpdate port.ProgressFunc

	mu       sync.Mutex
	lastEmit time.Time
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.mu.Lock()
	pw.Written += int64(n)
	now := time.Now()
	emit := pw.Interval <= 0 || now.Sub(pw.lastEmit) >= pw.Interval
	if emit {
		pw.lastEmit = now
	}
	update := pw.snapshot("downloading", now)
	pw.mu.Unlock()

	if emit && pw.OnUpdate != nil {
		pw.OnUpdate(update)
	}
	return n, err
}

// Flush reports the current totals regardless of the interval.
func (pw *ProgressWriter) Flush(status string) {
	pw.mu.Lock()
	update := pw.snapshot(status, time.Now())
	pw.mu.Unlock()
	if pw.OnUpdate != nil {
		pw.OnUpdate(update)
	}
}

func (pw *ProgressWriter) snapshot(status string, now time.Time) domain.ProgressUpdate {
	u := domain.ProgressUpdate{
		Status:     status,
		BytesDone:  pw.Written,
		BytesTotal: max(pw.Total, 0),
		ETASeconds: -1,
	}
	if pw.Total > 0 {
		u.Percentage = float64(pw.Written) / float64(pw.Total) * 100
	}
	if elapsed := now.Sub(pw.Started).Seconds(); !pw.Started.IsZero() && elapsed > 0 {
		u.Rate = float64(pw.Written) / elapsed
		if pw.Total > 0 && u.Rate > 0 {
			u.ETASeconds = int(float64(pw.Total-pw.Written) / u.Rate)
		}
	}
	return u
}

var _ port.Downloader = (*Downloader)(nil)
