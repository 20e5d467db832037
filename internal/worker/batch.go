package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/absredact/internal/model"
)

// Processor redacts one document given its input file name
type Processor interface {
	ProcessDocument(ctx context.Context, name string) *model.DocResult
}

// DocumentJob processes one input file
type DocumentJob struct {
	Index     int
	Name      string
	Processor Processor
}

// Execute runs the processor and tags the result with the job index
func (j *DocumentJob) Execute(ctx context.Context) Result {
	return &DocumentResult{
		Index:  j.Index,
		Result: j.Processor.ProcessDocument(ctx, j.Name),
	}
}

// DocumentResult wraps a document outcome with its input position
type DocumentResult struct {
	Index  int
	Result *model.DocResult
}

// GetError returns the document error, if any
func (r *DocumentResult) GetError() error {
	return r.Result.GetError()
}

// BatchProcessor runs documents through a processor concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessDocuments processes every name and returns the results in input
// order. Documents not started before ctx is cancelled are absent.
func (b *BatchProcessor) ProcessDocuments(ctx context.Context, names []string) []*model.DocResult {
	if len(names) == 0 {
		return []*model.DocResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	refused := false
	for i, name := range names {
		if !pool.Submit(&DocumentJob{Index: i, Name: name, Processor: b.processor}) {
			refused = true
			break
		}
	}

	var results []Result
	if refused {
		// cancelled: drop whatever is still queued
		results = pool.Shutdown()
	} else {
		results = pool.Wait()
	}

	ordered := make([]*model.DocResult, len(names))
	for _, r := range results {
		dr := r.(*DocumentResult)
		ordered[dr.Index] = dr.Result
	}

	out := ordered[:0]
	for _, r := range ordered {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ReadIDsFromFile reads document ids or file names, one per line. Blank
// lines and # comments are skipped; duplicates are dropped.
func ReadIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return ids, nil
}
