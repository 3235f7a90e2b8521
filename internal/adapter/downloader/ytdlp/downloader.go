package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/port"
)

const (
	Name = "ytdlp"

	progressInterval = 500 * time.Millisecond
	outputTemplate   = "%(id)s.%(ext)s"
)

// Downloader drives the yt-dlp executable.
type Downloader struct {
	executable string
}

// New returns a Downloader. An empty executable lets go-ytdlp resolve yt-dlp
// from PATH.
func New(executable string) *Downloader {
	return &Downloader{executable: executable}
}

func (d *Downloader) Name() string {
	return Name
}

func (d *Downloader) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if d.executable != "" {
		cmd.SetExecutable(d.executable)
	}
	return cmd
}

func (d *Downloader) Probe(ctx context.Context, sourceRef string) (*domain.Metadata, error) {
	res, err := d.command().
		NoPlaylist().
		SkipDownload().
		PrintJSON().
		Run(ctx, sourceRef)
	if err != nil {
		return nil, runError(err, res)
	}
	return parseInfo(lastJSONLine(res.Stdout))
}

func (d *Downloader) Transfer(ctx context.Context, req port.TransferRequest, onProgress port.ProgressFunc) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if req.Cancel != nil {
		go func() {
			select {
			case <-req.Cancel.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	opts := req.Options.Normalize()
	cmd := d.command().
		NoPlaylist().
		ForceOverwrites().
		RestrictFilenames().
		Format(formatSelector(opts)).
		Output(filepath.Join(req.DestinationDir, outputTemplate))
	if !opts.AudioOnly && opts.Quality != domain.QualityAudio {
		cmd.MergeOutputFormat(opts.Format)
	}
	if req.Identity != "" {
		cmd.AddHeaders("User-Agent:" + req.Identity)
	}
	if onProgress != nil {
		cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(progressFromUpdate(update, time.Now()))
		})
	}

	res, err := cmd.Run(ctx, req.SourceRef)
	if err != nil {
		return "", runError(err, res)
	}

	if path := extractedFilename(res); path != "" {
		return path, nil
	}
	return newestFile(req.DestinationDir)
}

// formatSelector maps job options onto a yt-dlp format expression.
func formatSelector(opts domain.Options) string {
	size := ""
	if opts.MaxFileSize > 0 {
		size = fmt.Sprintf("[filesize<%d]", opts.MaxFileSize)
	}
	switch {
	case opts.AudioOnly || opts.Quality == domain.QualityAudio:
		return fmt.Sprintf("bestaudio[ext=%s]%s/bestaudio%s/best%s", opts.Format, size, size, size)
	case opts.Quality == domain.QualityMedium:
		return fmt.Sprintf("bestvideo[height<=720]+bestaudio/best[height<=720]%s/best%s", size, size)
	default:
		return fmt.Sprintf("bestvideo[ext=%s]+bestaudio/best[ext=%s]%s/best%s", opts.Format, opts.Format, size, size)
	}
}

func progressFromUpdate(u ytdlp.ProgressUpdate, now time.Time) domain.ProgressUpdate {
	done, total := int64(u.DownloadedBytes), int64(u.TotalBytes)
	p := domain.ProgressUpdate{
		Status:     string(u.Status),
		BytesDone:  done,
		BytesTotal: total,
		ETASeconds: -1,
	}
	if total > 0 {
		p.Percentage = float64(done) / float64(total) * 100
	}
	if !u.Started.IsZero() {
		if elapsed := now.Sub(u.Started).Seconds(); elapsed > 0 {
			p.Rate = float64(done) / elapsed
		}
	}
	if eta := u.ETA(); eta > 0 {
		p.ETASeconds = int(eta.Seconds())
	}
	return p
}

// runError keeps yt-dlp's last stderr line, which carries the reason the
// classifier keys on ("Video unavailable", "HTTP Error 429" and so on).
func runError(err error, res *ytdlp.Result) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if res != nil {
		if line := lastErrorLine(res.Stderr); line != "" {
			return fmt.Errorf("yt-dlp: %s: %w", line, err)
		}
	}
	return fmt.Errorf("yt-dlp: %w", err)
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return ""
}

func lastJSONLine(stdout string) string {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "{") {
			return lines[i]
		}
	}
	return ""
}

type infoJSON struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Duration  float64      `json:"duration"`
	Uploader  string       `json:"uploader"`
	Thumbnail string       `json:"thumbnail"`
	Formats   []formatJSON `json:"formats"`
}

type formatJSON struct {
	FormatID       string `json:"format_id"`
	Ext            string `json:"ext"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	FileSize       int64  `json:"filesize"`
	FileSizeApprox int64  `json:"filesize_approx"`
	VCodec         string `json:"vcodec"`
	ACodec         string `json:"acodec"`
	FormatNote     string `json:"format_note"`
}

func parseInfo(raw string) (*domain.Metadata, error) {
	if raw == "" {
		return nil, errors.New("yt-dlp returned no metadata")
	}
	var info infoJSON
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	md := &domain.Metadata{
		ID:              info.ID,
		Title:           info.Title,
		DurationSeconds: info.Duration,
		Uploader:        info.Uploader,
		ThumbnailRef:    info.Thumbnail,
		Formats:         make([]domain.Format, 0, len(info.Formats)),
	}
	for _, f := range info.Formats {
		size := f.FileSize
		if size == 0 {
			size = f.FileSizeApprox
		}
		md.Formats = append(md.Formats, domain.Format{
			ID:       f.FormatID,
			Ext:      f.Ext,
			Width:    f.Width,
			Height:   f.Height,
			FileSize: size,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
			Note:     f.FormatNote,
		})
	}
	return md, nil
}

func extractedFilename(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	info, err := res.GetExtractedInfo()
	if err != nil || len(info) == 0 || info[0].Filename == nil {
		return ""
	}
	path := *info[0].Filename
	if _, err := os.Stat(path); err != nil {
		logger.Debug.Printf("ytdlp: reported file %s missing: %v", logger.SanitizeForLog(path), err)
		return ""
	}
	return path
}

// newestFile picks the most recently written regular file in dir, skipping
// yt-dlp's partial downloads.
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".part") || strings.HasSuffix(e.Name(), ".ytdl") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || fi.ModTime().After(bestMod) {
			best, bestMod = filepath.Join(dir, e.Name()), fi.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("yt-dlp produced no file in %s", dir)
	}
	return best, nil
}

var _ port.Downloader = (*Downloader)(nil)
