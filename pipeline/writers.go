package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

// CSVHeader is the header row of the review table.
var CSVHeader = []string{"Target Name", "Declared Total", "Review Text", "Reviewer", "Rating"}

// CSVWriter appends reviews to a CSV file. The file is opened and closed
// around every Write so no handle outlives a page.
type CSVWriter struct {
	path string
	mu   sync.Mutex
}

// NewCSVWriter creates (or truncates) the file and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close csv file: %w", err)
	}

	return &CSVWriter{path: filename}, nil
}

// Write appends reviews to the CSV output.
func (cw *CSVWriter) Write(reviews []*models.Review) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	f, err := os.OpenFile(cw.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	for _, review := range reviews {
		record := []string{
			review.TargetName,
			strconv.Itoa(review.DeclaredTotal),
			review.Text,
			review.Reviewer,
			strconv.Itoa(review.Rating),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return f.Close()
}

// Close is a no-op; Write never leaves the file open.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures the file exists and holds at least the header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// Path returns the output file path.
func (cw *CSVWriter) Path() string {
	return cw.path
}

// JSONWriter appends newline-delimited JSON records.
type JSONWriter struct {
	path string
	mu   sync.Mutex
}

// NewJSONWriter creates (or truncates) the JSONL file.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close json file: %w", err)
	}
	return &JSONWriter{path: filename}, nil
}

// Write appends reviews in JSONL format.
func (jw *JSONWriter) Write(reviews []*models.Review) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	f, err := os.OpenFile(jw.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open json file: %w", err)
	}
	defer f.Close()

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	for _, review := range reviews {
		if err := encoder.Encode(review); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := buffer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return f.Close()
}

// Close is a no-op; Write never leaves the file open.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures the JSON file exists. An empty file is a valid table
// with no reviews.
func (jw *JSONWriter) Validate() error {
	if _, err := os.Stat(jw.path); err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	return nil
}

// Path returns the output file path.
func (jw *JSONWriter) Path() string {
	return jw.path
}

// WriteProfileCSV writes a single-row profile table to filename.
func WriteProfileCSV(filename string, profile *models.Profile) error {
	if err := ensureDir(filename); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	records := [][]string{
		{"Restaurant Name", "Address", "Phone Number", "Website", "Star Rating", "Total Reviews", "Cuisine Category"},
		{profile.Name, profile.Address, profile.Phone, profile.Website, profile.StarRating, profile.TotalReviews, profile.Categories},
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("write profile csv: %w", err)
	}
	return f.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
