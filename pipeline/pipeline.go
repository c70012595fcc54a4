package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(reviews []*models.Review) error
	Close() error
	Validate() error
}

// OpenFunc creates the output for a target once page 1 has been read.
type OpenFunc func(target models.Target) (OutputWriter, error)

// Pipeline tags extracted rows with their target and writes them one page
// at a time. Rows are written in the order they are given and are never
// deduplicated.
type Pipeline struct {
	writer OutputWriter

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline around writer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{
		writer:   writer,
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}
}

// Process writes the rows of one page. An empty page writes nothing.
func (p *Pipeline) Process(target models.Target, rows []models.Row) error {
	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}
	if len(rows) == 0 {
		return nil
	}

	batch := make([]*models.Review, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, &models.Review{
			TargetName:    target.Name,
			DeclaredTotal: target.DeclaredTotal,
			Text:          row.Text,
			Reviewer:      row.Reviewer,
			Rating:        row.Rating,
		})
	}

	if err := p.writer.Write(batch); err != nil {
		err = fmt.Errorf("write batch: %w", err)
		p.setErr(err)
		return err
	}
	p.metrics.addBatch(len(batch))
	return nil
}

// Close prevents more submissions and returns the first write error.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("rows", metrics["written_rows"].(int64)),
					slog.Int64("batches", metrics["written_batches"].(int64)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	p.closed = true
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu      sync.Mutex
	rows    int64
	batches int64
}

func newMetrics() metrics {
	return metrics{}
}

func (m *metrics) addBatch(rows int) {
	m.mu.Lock()
	m.rows += int64(rows)
	m.batches++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"written_rows":    m.rows,
		"written_batches": m.batches,
	}
}
