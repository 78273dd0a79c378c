//go:build darwin

package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const frontmostScript = `tell application "System Events" to get unix id of first process whose frontmost is true`

type osascriptObserver struct {
	timeout time.Duration
}

func (o osascriptObserver) ForegroundProcess(ctx context.Context) (ProcessRef, error) {
	out, err := runCommand(ctx, o.timeout, "osascript", "-e", frontmostScript)
	if err != nil {
		return ProcessRef{}, err
	}
	pid, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 32)
	if err != nil || pid == 0 {
		return ProcessRef{}, ErrNoForeground
	}
	return ProcessRef{PID: uint32(pid)}, nil
}

type psResolver struct {
	timeout time.Duration
}

func (r psResolver) ProcessName(ctx context.Context, ref ProcessRef) (string, error) {
	out, err := runCommand(ctx, r.timeout, "ps", "-p", strconv.FormatUint(uint64(ref.PID), 10), "-o", "comm=")
	if err != nil {
		return "", fmt.Errorf("resolve pid %d: %w", ref.PID, err)
	}
	name := filepath.Base(strings.TrimSpace(string(out)))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." {
		return "", fmt.Errorf("resolve pid %d: empty name", ref.PID)
	}
	return name, nil
}

func newNative(opts Options) *Platform {
	return &Platform{
		Foreground: osascriptObserver{timeout: opts.timeout()},
		Resolver:   psResolver{timeout: opts.timeout()},
		Hostnames:  unsupportedHostnames{},
	}
}
