//go:build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// xdotoolObserver asks xdotool for the PID owning the active X11 window.
type xdotoolObserver struct {
	timeout time.Duration
}

func (o xdotoolObserver) ForegroundProcess(ctx context.Context) (ProcessRef, error) {
	out, err := runCommand(ctx, o.timeout, "xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return ProcessRef{}, err
	}
	pid, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 32)
	if err != nil || pid == 0 {
		return ProcessRef{}, ErrNoForeground
	}
	return ProcessRef{PID: uint32(pid)}, nil
}

// procResolver reads the process name from /proc.
type procResolver struct {
	root string
}

func (r procResolver) ProcessName(ctx context.Context, ref ProcessRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/comm", r.root, ref.PID))
	if err != nil {
		return "", fmt.Errorf("resolve pid %d: %w", ref.PID, err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", fmt.Errorf("resolve pid %d: empty name", ref.PID)
	}
	return name, nil
}

func newNative(opts Options) *Platform {
	return &Platform{
		Foreground: xdotoolObserver{timeout: opts.timeout()},
		Resolver:   procResolver{root: "/proc"},
		Hostnames:  unsupportedHostnames{},
	}
}
