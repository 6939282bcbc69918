package batch

import (
	"context"
	"time"
)

// Clock abstracts the inter-job delay so tests can run the loop instantly.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
