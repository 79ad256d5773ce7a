// Package debuglog is the best-effort secondary log channel.
//
// Lines look like "[2025-02-10 00:55:09] message". Failures to write the
// file are printed to the fallback writer and otherwise ignored.
package debuglog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hazz-dev/pingwatch/internal/checker"
)

// Channel appends timestamped lines to a text file.
type Channel struct {
	path     string
	fallback io.Writer
	now      func() time.Time
	mu       sync.Mutex
}

// New returns a Channel writing to path. A nil fallback means os.Stderr.
func New(path string, fallback io.Writer) *Channel {
	if fallback == nil {
		fallback = os.Stderr
	}
	return &Channel{
		path:     path,
		fallback: fallback,
		now:      time.Now,
	}
}

// SetNow replaces the clock used for line timestamps.
func (c *Channel) SetNow(now func() time.Time) {
	c.now = now
}

// Path returns the debug file path.
func (c *Channel) Path() string {
	return c.path
}

// Printf formats a message and appends it as one line. Safe on a nil Channel.
func (c *Channel) Printf(format string, args ...any) {
	if c == nil {
		return
	}
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\r\n")
	line := fmt.Sprintf("[%s] %s\n", c.now().UTC().Format(checker.TimestampLayout), msg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.append(line); err != nil {
		fmt.Fprintf(c.fallback, "Error writing debug log: %v\n", err)
		io.WriteString(c.fallback, line)
	}
}

func (c *Channel) append(line string) error {
	if c.path == "" {
		return fmt.Errorf("no debug log path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
