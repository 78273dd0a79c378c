package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os/exec"
	"strings"
	"time"
)

// runCommand runs name with args under a deadline and returns stdout.
func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	// don't wait on grandchildren holding stdout after a kill
	cmd.WaitDelay = 500 * time.Millisecond
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// lines yields each trimmed, non-empty line of out.
func lines(out []byte) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(bytes.NewReader(out))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

// CommandHostnameSource runs an external command and treats every output
// line as a hostname.
type CommandHostnameSource struct {
	name    string
	args    []string
	timeout time.Duration
}

var _ ResolvedHostnameSource = (*CommandHostnameSource)(nil)

// NewCommandHostnameSource creates a hostname source backed by name args...
func NewCommandHostnameSource(timeout time.Duration, name string, args ...string) *CommandHostnameSource {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &CommandHostnameSource{name: name, args: args, timeout: timeout}
}

// ResolvedHostnames runs the command. Empty output is an error so the
// caller skips the tick.
func (c *CommandHostnameSource) ResolvedHostnames(ctx context.Context) (iter.Seq[string], error) {
	out, err := runCommand(ctx, c.timeout, c.name, c.args...)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, errEmptyOutput
	}
	return lines(out), nil
}

var errEmptyOutput = errors.New("command produced no output")
