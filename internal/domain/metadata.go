package domain

// Metadata describes a remote video as reported by a Downloader probe.
type Metadata struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	DurationSeconds float64  `json:"duration_seconds"`
	Uploader        string   `json:"uploader"`
	ThumbnailRef    string   `json:"thumbnail_ref"`
	Formats         []Format `json:"formats"`
}

type Format struct {
	ID       string `json:"id"`
	Ext      string `json:"ext"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
	VCodec   string `json:"vcodec"`
	ACodec   string `json:"acodec"`
	Note     string `json:"note"`
}

func (m *Metadata) Clone() *Metadata {
	c := *m
	c.Formats = append([]Format(nil), m.Formats...)
	return &c
}

// LargestFileSize returns the biggest known format size, or 0 when no format
// reports one.
func (m *Metadata) LargestFileSize() int64 {
	var largest int64
	for _, f := range m.Formats {
		if f.FileSize > largest {
			largest = f.FileSize
		}
	}
	return largest
}

func (f Format) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f Format) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}
