package service

import (
	"context"
	"sync"
)

// CancelToken flags cancellation intent for one session. Downloaders poll
// Cancelled or select on Done; the queue cannot interrupt them itself.
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewCancelToken(parent context.Context) *CancelToken {
	ctx, cancel := context.WithCancel(parent)
	return &CancelToken{ctx: ctx, cancel: cancel}
}

func (t *CancelToken) Cancel() {
	t.once.Do(t.cancel)
}

func (t *CancelToken) Cancelled() bool {
	return t.ctx.Err() != nil
}

func (t *CancelToken) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Context is cancelled together with the token.
func (t *CancelToken) Context() context.Context {
	return t.ctx
}
