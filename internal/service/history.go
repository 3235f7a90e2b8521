package service

import (
	"context"
	"time"

	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/port"
)

const historyWriteTimeout = 5 * time.Second

// HistoryRecorder persists the snapshot of every session that reaches a
// terminal state.
type HistoryRecorder struct {
	bus     *EventBus
	history port.SessionHistory
	events  chan SessionEvent
}

// NewHistoryRecorder subscribes immediately so no terminal event published
// after construction is missed.
func NewHistoryRecorder(bus *EventBus, history port.SessionHistory) *HistoryRecorder {
	return &HistoryRecorder{
		bus:     bus,
		history: history,
		events:  bus.SubscribeAll(EventCompleted, EventFailed, EventCancelled),
	}
}

// Run records events until ctx is done, then drains what is already buffered.
func (h *HistoryRecorder) Run(ctx context.Context) error {
	defer h.bus.UnsubscribeAll(h.events)

	for {
		select {
		case ev := <-h.events:
			h.record(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-h.events:
					h.record(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (h *HistoryRecorder) record(ev SessionEvent) {
	if ev.Snapshot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := h.history.Record(ctx, ev.Snapshot); err != nil {
		logger.Error.Printf("history: record session %s: %v", ev.SessionID, err)
	}
}
