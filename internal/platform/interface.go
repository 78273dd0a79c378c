package platform

import (
	"context"
	"errors"
	"iter"
	"time"
)

var (
	// ErrNoForeground means nothing owns the foreground right now (locked
	// screen, desktop focused, no display).
	ErrNoForeground = errors.New("no foreground process")

	// ErrUnsupported means the capability has no implementation on this OS.
	ErrUnsupported = errors.New("not supported on this platform")
)

// DefaultQueryTimeout caps a single OS query.
const DefaultQueryTimeout = 3 * time.Second

// ProcessRef identifies a process. Only a ProcessResolver interprets it.
type ProcessRef struct {
	PID uint32
}

// ForegroundObserver reports which process owns the active foreground surface.
type ForegroundObserver interface {
	ForegroundProcess(ctx context.Context) (ProcessRef, error)
}

// ProcessResolver turns a ProcessRef into a display name: the executable's
// base name without extension.
type ProcessResolver interface {
	ProcessName(ctx context.Context, ref ProcessRef) (string, error)
}

// ResolvedHostnameSource enumerates hostnames the OS resolver recently
// answered for. Every call re-queries the OS; the returned sequence is
// finite and may be ranged once.
type ResolvedHostnameSource interface {
	ResolvedHostnames(ctx context.Context) (iter.Seq[string], error)
}

// Options tunes the platform collaborators.
type Options struct {
	// QueryTimeout bounds each OS query. Zero means DefaultQueryTimeout.
	QueryTimeout time.Duration

	// HostnameCommand, when set, replaces the built-in hostname source with
	// an external command printing one hostname per line.
	HostnameCommand []string
}

func (o Options) timeout() time.Duration {
	if o.QueryTimeout <= 0 {
		return DefaultQueryTimeout
	}
	return o.QueryTimeout
}

// Platform bundles the collaborators for the running OS.
type Platform struct {
	Foreground ForegroundObserver
	Resolver   ProcessResolver
	Hostnames  ResolvedHostnameSource
}

// New returns the collaborators for the running OS.
func New(opts Options) *Platform {
	p := newNative(opts)
	if len(opts.HostnameCommand) > 0 {
		p.Hostnames = NewCommandHostnameSource(opts.timeout(), opts.HostnameCommand[0], opts.HostnameCommand[1:]...)
	}
	return p
}

// withTimeout applies the query cap unless ctx already has a tighter deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= d {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

type unsupportedHostnames struct{}

func (unsupportedHostnames) ResolvedHostnames(context.Context) (iter.Seq[string], error) {
	return nil, ErrUnsupported
}
