package logfile

import (
	"os"
	"path/filepath"

	"github.com/hazz-dev/pingwatch/internal/checker"
	"github.com/hazz-dev/pingwatch/internal/pingerr"
)

// DebugLog receives write failures.
type DebugLog interface {
	Printf(format string, args ...any)
}

// Writer appends outcomes to the log file. It never truncates the file.
type Writer struct {
	path  string
	debug DebugLog
}

// NewWriter returns a Writer appending to path. debug may be nil.
func NewWriter(path string, debug DebugLog) *Writer {
	return &Writer{path: path, debug: debug}
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes o as one line. The file is reopened for every record so a
// truncation by the reader is always observed. Failures are reported to the
// debug channel and returned as ErrPersistence; callers may ignore them.
func (w *Writer) Append(o checker.Outcome) error {
	return w.AppendRecord(FromOutcome(o))
}

// AppendRecord writes r as one line.
func (w *Writer) AppendRecord(r Record) error {
	line, err := r.MarshalLine()
	if err != nil {
		return w.fail(pingerr.New(pingerr.ErrPersistence, err, "encoding record"))
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return w.fail(pingerr.New(pingerr.ErrPersistence, err, "creating log directory"))
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return w.fail(pingerr.New(pingerr.ErrPersistence, err, "opening log file"))
	}

	// A single write keeps the line contiguous under O_APPEND.
	if _, err := f.Write(line); err != nil {
		f.Close()
		return w.fail(pingerr.New(pingerr.ErrPersistence, err, "writing log file"))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return w.fail(pingerr.New(pingerr.ErrPersistence, err, "flushing log file"))
	}
	if err := f.Close(); err != nil {
		return w.fail(pingerr.New(pingerr.ErrPersistence, err, "closing log file"))
	}
	return nil
}

func (w *Writer) fail(err error) error {
	if w.debug != nil {
		w.debug.Printf("Error writing to log file %s: %v", w.path, err)
	}
	return err
}
