package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JournalEntry is one line of the append-only progress log. Workers write
// entries concurrently; the journal is the only shared sink in the run.
type JournalEntry struct {
	Run       string `json:"run"`
	Timestamp string `json:"ts"`
	Unit      string `json:"unit"`
	Format    string `json:"format"`
	Input     string `json:"input"`
	Output    string `json:"output,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Journal appends JSON-line records of every conversion attempt to a file.
type Journal struct {
	mu    sync.Mutex
	f     *os.File
	runID string
}

// OpenJournal opens (or creates) the journal file in append mode and stamps
// this run with a fresh ID.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	return &Journal{f: f, runID: uuid.NewString()}, nil
}

func (j *Journal) RunID() string {
	return j.runID
}

// Record appends one entry. Journal failures are reported but must never
// fail a conversion, so callers typically log the returned error and move on.
func (j *Journal) Record(unit, format, input, output, status, reason string) error {
	entry := JournalEntry{
		Run:       j.runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Unit:      unit,
		Format:    format,
		Input:     input,
		Output:    output,
		Status:    status,
		Reason:    reason,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending journal entry: %w", err)
	}
	return nil
}

func (j *Journal) Close() error {
	return j.f.Close()
}
