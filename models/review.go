// Package models defines data structures for the harvester.
package models

import "time"

// Target is the restaurant whose reviews are harvested during one run.
type Target struct {
	URL           string
	Name          string
	DeclaredTotal int
}

// Row is a single review as extracted from a page.
type Row struct {
	Text     string
	Reviewer string
	Rating   int
}

// Review is a Row tagged with its target, as written to the output table.
type Review struct {
	TargetName    string `csv:"Target Name" json:"target_name"`
	DeclaredTotal int    `csv:"Declared Total" json:"declared_total"`
	Text          string `csv:"Review Text" json:"review_text"`
	Reviewer      string `csv:"Reviewer" json:"reviewer"`
	Rating        int    `csv:"Rating" json:"rating"`
}

// Page is the extraction result of a single fetch. Rows is nil when the page
// carried no review elements at all.
type Page struct {
	URL       string
	Name      string
	TotalText string
	Rows      []Row
}

// Profile holds the restaurant details shown on its main page.
type Profile struct {
	Name         string `csv:"Restaurant Name" json:"name"`
	Address      string `csv:"Address" json:"address"`
	Phone        string `csv:"Phone Number" json:"phone"`
	Website      string `csv:"Website" json:"website"`
	StarRating   string `csv:"Star Rating" json:"star_rating"`
	TotalReviews string `csv:"Total Reviews" json:"total_reviews"`
	Categories   string `csv:"Cuisine Category" json:"categories"`
}

// HarvestResult holds the overall result of a harvest run.
type HarvestResult struct {
	Target       Target
	PageCount    int
	PagesFetched int
	RowsWritten  int
	RequestCount int
	ErrorCount   int
	ErrorsByType map[string]int
	FailedURLs   []string
	StartTime    time.Time
	EndTime      time.Time
}
