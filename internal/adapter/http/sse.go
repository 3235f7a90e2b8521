package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/service"
)

const keepAliveInterval = 15 * time.Second

type SessionSubscriber interface {
	Subscribe(sessionID string) chan service.SessionEvent
	Unsubscribe(sessionID string, ch chan service.SessionEvent)
}

type SSEHandler struct {
	events SessionSubscriber
	queue  JobQueue
}

func NewSSEHandler(events SessionSubscriber, queue JobQueue) *SSEHandler {
	return &SSEHandler{
		events: events,
		queue:  queue,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sseWriteJSON(w http.ResponseWriter, eventName string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sseWrite(w, eventName, string(data))
	return nil
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Events streams one session: a "snapshot" event with the current state,
// then one event per change named after its kind. The stream ends after a
// terminal event.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		// Subscribe first so nothing published between the snapshot and the
		// subscription is lost.
		ch := h.events.Subscribe(id)
		defer h.events.Unsubscribe(id, ch)

		session, err := h.queue.GetStatus(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := sseWriteJSON(w, "snapshot", session); err != nil {
			logger.Error.Printf("sse: encode snapshot %s: %v", id, err)
			return
		}
		if session.Status.IsTerminal() {
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := sseWriteJSON(w, string(event.Kind), event); err != nil {
					logger.Error.Printf("sse: encode event %s: %v", id, err)
					return
				}
				if event.Kind.IsTerminal() {
					return
				}
			}
		}
	}
}
