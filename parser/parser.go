package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-reviews/models"
)

// Values substituted when the expected markup is absent.
const (
	DefaultTargetName = "Unknown Restaurant"
	DefaultTotalText  = "0"
	DefaultReviewText = "No review text"
	DefaultReviewer   = "Unknown reviewer"
	DefaultRating     = 0
)

// Selectors are the CSS lookups used against a review page.
type Selectors struct {
	TargetNameSelector   string
	TotalTextSelector    string
	ReviewItemSelector   string
	ReviewTextSelector   string
	ReviewerSelector     string
	RatingMarkerSelector string
}

// DefaultSelectors returns the lookups for the review site's current markup.
func DefaultSelectors() Selectors {
	return Selectors{
		TargetNameSelector:   "h1.y-css-olzveb",
		TotalTextSelector:    "span.y-css-yrt0i5",
		ReviewItemSelector:   "li.y-css-1sqelp2",
		ReviewTextSelector:   "span.raw__09f24__T4Ezm",
		ReviewerSelector:     "a.y-css-1x1e1r2",
		RatingMarkerSelector: "div.y-css-16lknu1",
	}
}

// Name looks up the restaurant name.
func (s Selectors) Name(doc *goquery.Selection) (string, bool) {
	return firstText(doc, s.TargetNameSelector)
}

// TotalText looks up the free text holding the review count, e.g. "3788 reviews".
func (s Selectors) TotalText(doc *goquery.Selection) (string, bool) {
	return firstText(doc, s.TotalTextSelector)
}

// ReviewText looks up the body of a single review item.
func (s Selectors) ReviewText(item *goquery.Selection) (string, bool) {
	return firstText(item, s.ReviewTextSelector)
}

// Reviewer looks up the author of a single review item.
func (s Selectors) Reviewer(item *goquery.Selection) (string, bool) {
	return firstText(item, s.ReviewerSelector)
}

// Rating counts the star markers of a single review item.
func (s Selectors) Rating(item *goquery.Selection) (int, bool) {
	n := item.Find(s.RatingMarkerSelector).Length()
	return n, n > 0
}

// ExtractPage turns a parsed document into a Page. Missing elements degrade
// to the Default* values and never fail the extraction.
func (s Selectors) ExtractPage(doc *goquery.Selection, pageURL string) *models.Page {
	name, ok := s.Name(doc)
	page := &models.Page{
		URL:       pageURL,
		Name:      orDefault(name, ok, DefaultTargetName),
		TotalText: DefaultTotalText,
	}
	if text, ok := s.TotalText(doc); ok {
		page.TotalText = text
	}

	items := doc.Find(s.ReviewItemSelector)
	if items.Length() == 0 {
		return page
	}

	page.Rows = make([]models.Row, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		text, ok := s.ReviewText(item)
		row := models.Row{Text: orDefault(text, ok, DefaultReviewText)}
		reviewer, ok := s.Reviewer(item)
		row.Reviewer = orDefault(reviewer, ok, DefaultReviewer)
		row.Rating = DefaultRating
		if rating, ok := s.Rating(item); ok {
			row.Rating = rating
		}
		page.Rows = append(page.Rows, row)
	})
	return page
}

// ExtractPage extracts a page using DefaultSelectors.
func ExtractPage(doc *goquery.Selection, pageURL string) *models.Page {
	return DefaultSelectors().ExtractPage(doc, pageURL)
}

var firstInteger = regexp.MustCompile(`\d+`)

// ParseDeclaredTotal returns the first integer found in text, or 0 when there
// is none.
func ParseDeclaredTotal(text string) int {
	match := firstInteger.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// PageCount is ceil(total/pageSize).
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// PageURL builds the URL of the page at the zero-based index by appending
// the offset parameter to base.
func PageURL(base string, index, pageSize int) string {
	return base + "&start=" + strconv.Itoa(index*pageSize)
}

var unsafeNameChars = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")

// OutputName derives the output file name for a target, e.g.
// "Joe's Pizza" -> "Joe's_Pizza_reviews.csv".
func OutputName(targetName, ext string) string {
	return unsafeNameChars.Replace(targetName) + "_reviews" + ext
}

func firstText(sel *goquery.Selection, selector string) (string, bool) {
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(found.Text()), true
}

func orDefault(value string, ok bool, fallback string) string {
	if !ok {
		return fallback
	}
	return value
}
