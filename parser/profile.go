package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-reviews/models"
)

const (
	DefaultProfileName  = "Unknown"
	NotAvailable        = "Not Available"
	DefaultTotalReviews = "0"
)

// ProfileSelectors are the CSS lookups used against a restaurant main page.
type ProfileSelectors struct {
	Name         string
	Address      string
	Phone        string
	Website      string
	StarRating   string
	TotalReviews string
	Category     string
}

// DefaultProfileSelectors returns the lookups for the review site's main page.
func DefaultProfileSelectors() ProfileSelectors {
	return ProfileSelectors{
		Name:         "h1",
		Address:      "address",
		Phone:        "p.css-1p9ibgf",
		Website:      "a.css-1um3nx",
		StarRating:   "div.i-stars",
		TotalReviews: "span.css-chan6m",
		Category:     "span.css-ardur",
	}
}

// ExtractProfile reads the restaurant details from a main page.
func (s ProfileSelectors) ExtractProfile(doc *goquery.Selection) *models.Profile {
	name, ok := firstText(doc, s.Name)
	profile := &models.Profile{Name: orDefault(name, ok, DefaultProfileName)}

	address, ok := firstText(doc, s.Address)
	profile.Address = orDefault(address, ok, NotAvailable)

	phone, ok := firstText(doc, s.Phone)
	profile.Phone = orDefault(phone, ok, NotAvailable)

	website, ok := firstAttr(doc, s.Website, "href")
	profile.Website = orDefault(website, ok, NotAvailable)

	rating, ok := firstAttr(doc, s.StarRating, "aria-label")
	profile.StarRating = orDefault(rating, ok, NotAvailable)

	total, ok := firstText(doc, s.TotalReviews)
	profile.TotalReviews = orDefault(total, ok, DefaultTotalReviews)

	categories := doc.Find(s.Category).Map(func(_ int, sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Text())
	})
	profile.Categories = strings.Join(categories, ", ")

	return profile
}

// ExtractProfile extracts a profile using DefaultProfileSelectors.
func ExtractProfile(doc *goquery.Selection) *models.Profile {
	return DefaultProfileSelectors().ExtractProfile(doc)
}

func firstAttr(sel *goquery.Selection, selector, attr string) (string, bool) {
	return sel.Find(selector).First().Attr(attr)
}
