// Package eventlog persists the orchestrator's displaybus events as a
// single append-only JSON-lines file under a user-local directory (spec.md
// §6 "Persisted state"), the diagnostic record a human or support tool reads
// after the fact. It is not consulted by the orchestrator itself — it has no
// read path, only an append path — so it never becomes a second source of
// truth for the session's own state machine.
//
// File-locking is adapted from the teacher's internal/storage.FileLock: a
// flock-based exclusive lock taken for the lifetime of the writer rather
// than per-write, since this process is the only writer for the whole
// session.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/trioagent/trio/internal/displaybus"
)

// Entry is one line of the diagnostic log.
type Entry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionID"`
	Time      time.Time       `json:"time"`
	Type      displaybus.EventType `json:"type"`
	Data      any             `json:"data"`
}

// Writer appends Entry records to a single JSONL file.
type Writer struct {
	sessionID string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// Open creates (or appends to) the event log at path, acquiring an
// exclusive flock for the life of the Writer; while one Writer holds the
// lock, a second Open of the same path fails instead of waiting. sessionID
// tags every entry this writer appends, so entries from successive runs
// appended to the same file can still be told apart.
func Open(path, sessionID string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("eventlog: lock %s: %w", path, err)
	}

	return &Writer{sessionID: sessionID, file: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one Entry derived from a displaybus event.
func (w *Writer) Append(event displaybus.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := Entry{
		ID:        ulid.Make().String(),
		SessionID: w.sessionID,
		Time:      time.Now().UTC(),
		Type:      event.Type,
		Data:      event.Data,
	}
	return w.enc.Encode(entry)
}

// Subscribe wires w to receive every displaybus event, returning the
// unsubscribe func the caller must invoke at shutdown.
func (w *Writer) Subscribe() func() {
	return displaybus.SubscribeAll(func(event displaybus.Event) {
		_ = w.Append(event)
	})
}

// Close releases the flock and closes the underlying file. Idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syscall.Flock(int(w.file.Fd()), syscall.LOCK_UN)
	err := w.file.Close()
	w.file = nil
	return err
}
