package pipeline

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/google/go-cmp/cmp"
)

func sampleReviews() []*models.Review {
	return []*models.Review{
		{TargetName: "Joe's Pizza", DeclaredTotal: 25, Text: "Best slice, \"hands down\".", Reviewer: "Alice B.", Rating: 5},
		{TargetName: "Joe's Pizza", DeclaredTotal: 25, Text: "No review text", Reviewer: "Unknown reviewer", Rating: 0},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

func TestCSVWriterSingleHeaderAcrossPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "Joe's_Pizza_reviews.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	reviews := sampleReviews()
	if err := writer.Write(reviews[:1]); err != nil {
		t.Fatalf("write page 1: %v", err)
	}
	if err := writer.Write(reviews[1:]); err != nil {
		t.Fatalf("write page 2: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	want := [][]string{
		CSVHeader,
		{"Joe's Pizza", "25", "Best slice, \"hands down\".", "Alice B.", "5"},
		{"Joe's Pizza", "25", "No review text", "Unknown reviewer", "0"},
	}
	if diff := cmp.Diff(want, readCSV(t, path)); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVWriterHeaderOnlyWhenNoRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}
}

func TestCSVWriterTruncatesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rerun.csv")
	if err := os.WriteFile(path, []byte("stale,data\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := NewCSVWriter(path); err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if diff := cmp.Diff([][]string{CSVHeader}, readCSV(t, path)); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write(sampleReviews()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	var got []*models.Review
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var decoded models.Review
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		got = append(got, &decoded)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if diff := cmp.Diff(sampleReviews(), got); diff != "" {
		t.Fatalf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reviews.csv")
	jsonPath := filepath.Join(dir, "reviews.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write(sampleReviews()); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if got := len(readCSV(t, csvPath)); got != 3 {
		t.Fatalf("csv records=%d, want 3", got)
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestSQLiteWriterKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.db")

	writer, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("create sqlite writer: %v", err)
	}
	reviews := sampleReviews()
	if err := writer.Write(reviews[:1]); err != nil {
		t.Fatalf("write page 1: %v", err)
	}
	if err := writer.Write(reviews[1:]); err != nil {
		t.Fatalf("write page 2: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT target_name, declared_total, review_text, reviewer, rating FROM reviews ORDER BY id`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var got []*models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.TargetName, &r.DeclaredTotal, &r.Text, &r.Reviewer, &r.Rating); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, &r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if diff := cmp.Diff(reviews, got); diff != "" {
		t.Fatalf("sqlite mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteWriterTruncatesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rerun.db")
	reviews := sampleReviews()

	for run := 0; run < 2; run++ {
		writer, err := NewSQLiteWriter(path)
		if err != nil {
			t.Fatalf("run %d: create sqlite writer: %v", run, err)
		}
		if err := writer.Write(reviews[:1]); err != nil {
			t.Fatalf("run %d: write: %v", run, err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("run %d: close: %v", run, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows after two single-row runs = %d, want 1", n)
	}
}

func TestWriteProfileCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.csv")
	profile := &models.Profile{
		Name:         "Joe's Pizza",
		Address:      "7 Carmine St",
		Phone:        "Not Available",
		Website:      "https://www.joespizzanyc.com",
		StarRating:   "4.5 star rating",
		TotalReviews: "3788 reviews",
		Categories:   "Pizza, Italian",
	}
	if err := WriteProfileCSV(path, profile); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "Restaurant Name" || records[1][6] != "Pizza, Italian" {
		t.Fatalf("unexpected profile csv: %v", records)
	}
}
