package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/codec"
	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// DeadLetterFileName is the journal of events whose writes were abandoned.
const DeadLetterFileName = "deadletter.jsonl"

// DeadLetter appends abandoned events to a JSON-lines journal so they can be
// replayed into the store later.
type DeadLetter struct {
	mu   sync.Mutex
	path string
}

// NewDeadLetter returns a journal writing to path. The file is created on
// first use.
func NewDeadLetter(path string) *DeadLetter {
	return &DeadLetter{path: path}
}

// Path returns the journal location.
func (d *DeadLetter) Path() string { return d.path }

type deadLetterEntry struct {
	FailedAt time.Time       `json:"failed_at"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error"`
	Event    json.RawMessage `json:"event"`
}

// Append records ev together with the last write error.
func (d *DeadLetter) Append(ev event.Event, attempts int, cause error) error {
	body, err := codec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	line, err := json.Marshal(deadLetterEntry{
		FailedAt: time.Now().UTC(),
		Attempts: attempts,
		Error:    errString(cause),
		Event:    body,
	})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(d.path), 0o700); err != nil {
		return fmt.Errorf("create dead letter dir: %w", err)
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open dead letter journal: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
