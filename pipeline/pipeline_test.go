package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/google/go-cmp/cmp"
)

type mockWriter struct {
	mu       sync.Mutex
	batches  [][]*models.Review
	closed   bool
	writeErr error
}

func (mw *mockWriter) Write(reviews []*models.Review) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.Review, len(reviews))
	copy(copyBatch, reviews)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return nil
}

func (mw *mockWriter) all() []*models.Review {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.Review
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

var joes = models.Target{URL: "http://example.test/biz/joes?osq=pizza", Name: "Joe's Pizza", DeclaredTotal: 25}

func TestPipelineProcessTagsRowsInOrder(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)

	page1 := []models.Row{
		{Text: "Great", Reviewer: "Alice", Rating: 5},
		{Text: "Great", Reviewer: "Alice", Rating: 5},
	}
	page2 := []models.Row{
		{Text: "Meh", Reviewer: "Bob", Rating: 2},
	}

	if err := p.Process(joes, page1); err != nil {
		t.Fatalf("process page 1: %v", err)
	}
	if err := p.Process(joes, page2); err != nil {
		t.Fatalf("process page 2: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	want := []*models.Review{
		{TargetName: "Joe's Pizza", DeclaredTotal: 25, Text: "Great", Reviewer: "Alice", Rating: 5},
		{TargetName: "Joe's Pizza", DeclaredTotal: 25, Text: "Great", Reviewer: "Alice", Rating: 5},
		{TargetName: "Joe's Pizza", DeclaredTotal: 25, Text: "Meh", Reviewer: "Bob", Rating: 2},
	}
	if diff := cmp.Diff(want, writer.all()); diff != "" {
		t.Fatalf("reviews mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 1}, writer.batchSizes()); diff != "" {
		t.Fatalf("one batch per page expected (-want +got):\n%s", diff)
	}

	metrics := p.GetMetrics()
	if got := metrics["written_rows"].(int64); got != 3 {
		t.Fatalf("written_rows = %d, want 3", got)
	}
}

func TestPipelineEmptyPageWritesNothing(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)

	if err := p.Process(joes, nil); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := len(writer.batchSizes()); got != 0 {
		t.Fatalf("batches = %d, want 0", got)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(&mockWriter{})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	err := p.Process(joes, []models.Row{{Text: "late"}})
	if !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func TestPipelineWriteErrorIsSticky(t *testing.T) {
	boom := errors.New("disk full")
	p := NewPipeline(&mockWriter{writeErr: boom})

	if err := p.Process(joes, []models.Row{{Text: "x"}}); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if err := p.Process(joes, []models.Row{{Text: "y"}}); !errors.Is(err, boom) {
		t.Fatalf("expected sticky write error, got %v", err)
	}
	if err := p.Close(); !errors.Is(err, boom) {
		t.Fatalf("close should report write error, got %v", err)
	}
}
