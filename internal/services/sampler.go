package services

import (
	"context"
	"time"
)

// Sampler names, used as metric labels and log fields.
const (
	SamplerForeground = "foreground"
	SamplerNetwork    = "network"
)

// Sampler is driven by a Loop: Tick observes once, Flush persists what was
// observed so far.
type Sampler interface {
	Name() string
	Tick(ctx context.Context)
	Flush(ctx context.Context) error
}

// queryContext bounds one OS query.
func queryContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
