// Package logfile implements the durable, append-only outcome log that the
// runner writes and a separate consumer drains.
//
// The file holds one JSON object per line:
//
//	{"timestamp": "2025-02-10 00:55:09", "message": "✓ Successfully pinged ...: 200", "success": true}
//
// Writers only ever append whole lines. The reader truncates the file only
// after a non-empty read, so an append racing a drain can lose at most that
// record, never interleave bytes with another one.
package logfile

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hazz-dev/pingwatch/internal/checker"
	"github.com/hazz-dev/pingwatch/internal/pingerr"
)

// Record is one line of the log file.
type Record struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Success   bool   `json:"success"`
}

// FromOutcome converts a check outcome to its on-disk form.
func FromOutcome(o checker.Outcome) Record {
	return Record{
		Timestamp: o.Timestamp(),
		Message:   o.Message(),
		Success:   o.Success(),
	}
}

// MarshalLine encodes r as a single newline-terminated JSON line, with a
// space after every colon and comma and the fields in declaration order.
func (r Record) MarshalLine() ([]byte, error) {
	ts, err := json.Marshal(r.Timestamp)
	if err != nil {
		return nil, err
	}
	msg, err := json.Marshal(r.Message)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "{\"timestamp\": %s, \"message\": %s, \"success\": %t}\n", ts, msg, r.Success), nil
}

var errMissingField = errors.New("missing field")

// ParseLine decodes one log line. All three fields must be present.
func ParseLine(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Record{}, pingerr.New(pingerr.ErrParse, nil, "empty line")
	}

	var raw struct {
		Timestamp *string `json:"timestamp"`
		Message   *string `json:"message"`
		Success   *bool   `json:"success"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, pingerr.New(pingerr.ErrParse, err, "decoding record")
	}
	switch {
	case raw.Timestamp == nil:
		return Record{}, pingerr.New(pingerr.ErrParse, errMissingField, "timestamp")
	case raw.Message == nil:
		return Record{}, pingerr.New(pingerr.ErrParse, errMissingField, "message")
	case raw.Success == nil:
		return Record{}, pingerr.New(pingerr.ErrParse, errMissingField, "success")
	}

	return Record{
		Timestamp: *raw.Timestamp,
		Message:   *raw.Message,
		Success:   *raw.Success,
	}, nil
}
