package app

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"abstkit/internal/errors"
)

// LedgerEntry is one submitted batch as kept in the ledger CSV
type LedgerEntry struct {
	InputFile   string
	BatchID     string
	InputFileID string
}

// Ledger is the headerless request_input_id.csv: input_file,batch_id,input_file_id
type Ledger struct {
	path string
	mu   sync.Mutex
}

// NewLedger creates a ledger backed by path
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file location
func (l *Ledger) Path() string {
	return l.path
}

// Append adds one row, creating the file if needed
func (l *Ledger) Append(entry LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open ledger %s", l.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{entry.InputFile, entry.BatchID, entry.InputFileID}); err != nil {
		return errors.Wrap(err, "failed to write ledger row")
	}
	w.Flush()
	return w.Error()
}

// Entries reads all rows; a missing ledger is empty
func (l *Ledger) Entries() ([]LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ledger %s", l.path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var entries []LedgerEntry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read ledger %s", l.path)
		}
		if len(rec) < 3 {
			continue
		}
		entries = append(entries, LedgerEntry{
			InputFile:   strings.TrimPrefix(rec[0], "\ufeff"),
			BatchID:     rec[1],
			InputFileID: rec[2],
		})
	}
	return entries, nil
}

// BatchIDs returns distinct batch IDs in ledger order
func (l *Ledger) BatchIDs() ([]string, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if e.BatchID == "" || seen[e.BatchID] {
			continue
		}
		seen[e.BatchID] = true
		ids = append(ids, e.BatchID)
	}
	return ids, nil
}
