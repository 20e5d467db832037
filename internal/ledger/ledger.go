// Package ledger records which documents a run has finished so that an
// interrupted batch can resume without reprocessing them.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppiankov/absredact/internal/model"
)

// Ledger tracks completed documents
type Ledger interface {
	IsProcessed(docID string) bool
	MarkProcessed(docID string, outcome model.Outcome) error
}

// FileLedger appends document ids to a found log and a failed log, one id
// per line. Both logs are read once when the ledger is opened.
type FileLedger struct {
	foundPath  string
	failedPath string

	mu        sync.Mutex
	processed map[string]model.Outcome
}

// Open loads both logs; missing logs are treated as empty
func Open(foundPath, failedPath string) (*FileLedger, error) {
	l := &FileLedger{
		foundPath:  foundPath,
		failedPath: failedPath,
		processed:  make(map[string]model.Outcome),
	}
	if err := l.load(foundPath, model.OutcomeFound); err != nil {
		return nil, err
	}
	if err := l.load(failedPath, model.OutcomeFailed); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLedger) load(path string, outcome model.Outcome) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			l.processed[id] = outcome
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read ledger %s: %w", path, err)
	}
	return nil
}

// IsProcessed reports whether docID is in either log
func (l *FileLedger) IsProcessed(docID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[docID]
	return ok
}

// MarkProcessed appends docID to the log matching outcome. Skipped
// documents are not recorded.
func (l *FileLedger) MarkProcessed(docID string, outcome model.Outcome) error {
	var path string
	switch outcome {
	case model.OutcomeFound:
		path = l.foundPath
	case model.OutcomeFailed:
		path = l.failedPath
	default:
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := f.WriteString(docID + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}

	l.processed[docID] = outcome
	return nil
}

// Reset deletes both logs and forgets every recorded document
func (l *FileLedger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, path := range []string{l.foundPath, l.failedPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reset ledger: %w", err)
		}
	}
	l.processed = make(map[string]model.Outcome)
	return nil
}

// Counts returns how many documents each log holds
func (l *FileLedger) Counts() (found, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range l.processed {
		if o == model.OutcomeFound {
			found++
		} else {
			failed++
		}
	}
	return found, failed
}
