package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/port/mocks"
)

func TestHistoryRecorder_RecordsTerminalEvents(t *testing.T) {
	bus := NewEventBus()
	history := mocks.NewSessionHistoryMock(t)
	recorded := make(chan string, 4)

	history.EXPECT().Record(mock.Anything, mock.AnythingOfType("*domain.Session")).
		Run(func(ctx context.Context, s *domain.Session) { recorded <- s.ID }).
		Return(nil).Times(2)

	rec := NewHistoryRecorder(bus, history)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	bus.Publish(SessionEvent{SessionID: "a", Kind: EventProgress, Snapshot: &domain.Session{ID: "a"}})
	bus.Publish(SessionEvent{SessionID: "a", Kind: EventCompleted, Snapshot: &domain.Session{ID: "a"}})
	bus.Publish(SessionEvent{SessionID: "b", Kind: EventFailed, Snapshot: &domain.Session{ID: "b"}})

	assert.Equal(t, "a", <-recorded)
	assert.Equal(t, "b", <-recorded)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestHistoryRecorder_DrainsOnShutdown(t *testing.T) {
	bus := NewEventBus()
	history := mocks.NewSessionHistoryMock(t)
	history.EXPECT().Record(mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	rec := NewHistoryRecorder(bus, history)
	bus.Publish(SessionEvent{SessionID: "c", Kind: EventCancelled, Snapshot: &domain.Session{ID: "c"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, rec.Run(ctx))
}
