// Package display delivers drained log records to the user.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/hazz-dev/pingwatch/internal/logfile"
)

// Sink receives drained records in file order.
type Sink interface {
	Show(ctx context.Context, r logfile.Record) error
}

// Level is the severity a record is shown with.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LevelOf classifies a record. A message mentioning "Error" wins over the
// success flag.
func LevelOf(r logfile.Record) Level {
	switch {
	case strings.Contains(r.Message, "Error"):
		return LevelError
	case !r.Success:
		return LevelWarning
	default:
		return LevelOK
	}
}

// Line renders a record as "[timestamp] message".
func Line(r logfile.Record) string {
	return fmt.Sprintf("[%s] %s", r.Timestamp, r.Message)
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
)

var levelColors = map[Level]string{
	LevelOK:      colorGreen,
	LevelWarning: colorYellow,
	LevelError:   colorRed,
}

// TerminalSink prints one line per record.
type TerminalSink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewTerminalSink prints to f, coloured by level when f is a terminal.
func NewTerminalSink(f *os.File) *TerminalSink {
	fd := f.Fd()
	return NewWriterSink(f, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// NewWriterSink prints to w.
func NewWriterSink(w io.Writer, color bool) *TerminalSink {
	return &TerminalSink{w: w, color: color}
}

func (t *TerminalSink) Show(_ context.Context, r logfile.Record) error {
	line := Line(r)
	if t.color {
		line = levelColors[LevelOf(r)] + line + colorReset
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.w, line)
	return err
}
