package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/infrastructure/validation"
	"github.com/bnema/scenefetch/internal/service"
)

const (
	maxBodyBytes        = 16 << 10
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// JobQueue is the slice of the queue manager the API drives.
type JobQueue interface {
	StartJob(sourceRef string, opts domain.Options) (string, error)
	CancelJob(id string) error
	GetStatus(id string) (*domain.Session, error)
	List() []*domain.Session
	Stats() service.Stats
}

type Prober interface {
	Probe(ctx context.Context, sourceRef string, onRetry service.RetryHook) (*domain.Metadata, error)
}

type Maintenance interface {
	Sweep(ctx context.Context) service.SweepReport
	ForceCleanAll() error
}

type HistoryReader interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context, limit int) ([]*domain.Session, error)
}

type DiskReporter interface {
	FreeBytes(ctx context.Context, path string) (uint64, error)
}

type Handlers struct {
	queue       JobQueue
	prober      Prober
	maintenance Maintenance
	history     HistoryReader
	disk        DiskReporter
	tempRoot    string
	version     string
}

func NewHandlers(queue JobQueue, prober Prober, maintenance Maintenance, history HistoryReader, disk DiskReporter, tempRoot, version string) *Handlers {
	return &Handlers{
		queue:       queue,
		prober:      prober,
		maintenance: maintenance,
		history:     history,
		disk:        disk,
		tempRoot:    tempRoot,
		version:     version,
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Detail *domain.ErrorInfo `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrInvalidSourceRef):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "download queue is full")
	case errors.Is(err, domain.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		if info, ok := domain.AsErrorInfo(err); ok {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: info.UserMessage, Detail: &info})
			return
		}
		logger.Error.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type createJobRequest struct {
	URL     string         `json:"url"`
	Options domain.Options `json:"options"`
}

type createJobResponse struct {
	ID      string          `json:"id"`
	Session *domain.Session `json:"session,omitempty"`
}

func (h *Handlers) CreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createJobRequest
		if !decodeBody(w, r, &req) {
			return
		}
		ref, err := validation.ValidateSourceURL(req.URL)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		id, err := h.queue.StartJob(ref, req.Options)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		snapshot, _ := h.queue.GetStatus(id)
		w.Header().Set("Location", "/api/jobs/"+id)
		writeJSON(w, http.StatusAccepted, createJobResponse{ID: id, Session: snapshot})
	}
}

func (h *Handlers) ListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := h.queue.List()
		if status := r.URL.Query().Get("status"); status != "" {
			filtered := sessions[:0]
			for _, s := range sessions {
				if string(s.Status) == status {
					filtered = append(filtered, s)
				}
			}
			sessions = filtered
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// GetJob falls back to history once a session has been pruned from memory.
func (h *Handlers) GetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s, err := h.queue.GetStatus(id)
		if errors.Is(err, domain.ErrNotFound) && h.history != nil {
			s, err = h.history.Get(r.Context(), id)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func (h *Handlers) CancelJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := h.queue.CancelJob(id); err != nil {
			writeServiceError(w, err)
			return
		}
		s, err := h.queue.GetStatus(id)
		if err != nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type statsResponse struct {
	Queue     service.Stats `json:"queue"`
	FreeBytes uint64        `json:"free_bytes"`
	Version   string        `json:"version"`
}

func (h *Handlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statsResponse{Queue: h.queue.Stats(), Version: h.version}
		if h.disk != nil {
			free, err := h.disk.FreeBytes(r.Context(), h.tempRoot)
			if err != nil {
				logger.Warn.Printf("stats: free space: %v", err)
			}
			resp.FreeBytes = free
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.history == nil {
			writeJSON(w, http.StatusOK, []*domain.Session{})
			return
		}
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxHistoryLimit)
		}
		sessions, err := h.history.List(r.Context(), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if sessions == nil {
			sessions = []*domain.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

type probeRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) Probe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req probeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		ref, err := validation.ValidateSourceURL(req.URL)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		md, err := h.prober.Probe(r.Context(), ref, nil)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, md)
	}
}

func (h *Handlers) Sweep() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.maintenance.Sweep(r.Context()))
	}
}

// Purge wipes the whole temp root, live sessions included.
func (h *Handlers) Purge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.maintenance.ForceCleanAll(); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
	}
}
