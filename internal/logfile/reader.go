package logfile

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/hazz-dev/pingwatch/internal/pingerr"
)

// Reader drains the log file.
type Reader struct {
	path    string
	skipped int
}

// NewReader returns a Reader draining path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the log file path.
func (r *Reader) Path() string {
	return r.path
}

// Skipped returns how many unparsable lines the last Drain dropped.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Drain reads every record currently in the file, oldest first, and then
// empties the file. A missing file yields no records. The file is left
// untouched when it has no lines, and unparsable lines are skipped.
//
// If the file cannot be truncated no records are returned, so that a later
// Drain does not deliver them twice.
func (r *Reader) Drain() ([]Record, error) {
	r.skipped = 0

	lines, err := r.readLines()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, pingerr.New(pingerr.ErrPersistence, err, "reading log file")
	}
	if len(lines) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, pingerr.New(pingerr.ErrPersistence, err, "truncating log file")
	}
	f.Close()

	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		rec, err := ParseLine(line)
		if err != nil {
			r.skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Reader) readLines() ([][]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			lines = append(lines, line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
