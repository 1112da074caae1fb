package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/amazon-cart-agent/internal/models"
)

const notAvailable = "N/A"

var (
	priceNoise    = regexp.MustCompile(`[^\d.]`)
	digitNoise    = regexp.MustCompile(`[^\d]`)
	ratingPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	asinPattern   = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)
)

type AmazonParser struct {
	titleSelectors []string
	linkSelectors  []string
	priceSelectors []string
}

func NewAmazonParser() *AmazonParser {
	return &AmazonParser{
		titleSelectors: []string{
			"h2 a",
			"h2 span",
			"h2",
		},
		linkSelectors: []string{
			"h2 a[href]",
			"a.a-link-normal[href*='/dp/']",
			"a[href*='/dp/']",
		},
		priceSelectors: []string{
			"span.a-price-whole",
			"span.a-offscreen",
		},
	}
}

// ParseSearchResult reads one search-result container's outer HTML.
func (p *AmazonParser) ParseSearchResult(html string, baseURL string) (*models.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := p.firstText(doc, p.titleSelectors)
	link := p.extractLink(doc, baseURL)
	if title == "" || link == "" {
		return nil, ErrIncomplete
	}

	candidate := &models.Candidate{
		Title:      title,
		URL:        link,
		PriceText:  p.extractPriceText(doc),
		RatingText: p.extractRatingText(doc),
	}

	if asin, ok := doc.Find("[data-asin]").First().Attr("data-asin"); ok && strings.TrimSpace(asin) != "" {
		candidate.ASIN = strings.TrimSpace(asin)
	} else if asin, err := ExtractASIN(link); err == nil {
		candidate.ASIN = asin
	}

	if candidate.PriceText != notAvailable {
		candidate.Price = ParsePrice(candidate.PriceText)
	}
	if candidate.RatingText != notAvailable {
		candidate.Rating = ParseRating(candidate.RatingText)
	}

	return candidate, nil
}

func (p *AmazonParser) firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		text := normalizeSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func (p *AmazonParser) extractLink(doc *goquery.Document, baseURL string) string {
	for _, selector := range p.linkSelectors {
		href, ok := doc.Find(selector).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		return resolveURL(baseURL, strings.TrimSpace(href))
	}
	return ""
}

func (p *AmazonParser) extractPriceText(doc *goquery.Document) string {
	for _, selector := range p.priceSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return notAvailable
}

func (p *AmazonParser) extractRatingText(doc *goquery.Document) string {
	html, err := doc.Find("span.a-icon-alt").First().Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return notAvailable
	}
	return strings.TrimSpace(html)
}

// ParsePrice keeps digits and decimal points. Without a decimal point the
// value is whole currency units; anything that does not form a number is
// unknown (nil).
func ParsePrice(text string) *float64 {
	cleaned := priceNoise.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}

	if !strings.Contains(cleaned, ".") {
		whole, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return models.Float(whole)
	}

	if strings.Count(cleaned, ".") > 1 || cleaned == "." {
		return nil
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return models.Float(value)
}

// ParseRating returns the first decimal or integer number in text.
func ParseRating(text string) *float64 {
	match := ratingPattern.FindString(text)
	if match == "" {
		return nil
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return models.Float(value)
}

// ParseWholeNumber drops every non-digit, so "50,000" and "₹50000" both read
// as 50000. Blank input is unconstrained.
func ParseWholeNumber(text string) *float64 {
	cleaned := digitNoise.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return models.Float(float64(value))
}

func ExtractASIN(link string) (string, error) {
	matches := asinPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", ErrNoASIN
	}
	return matches[1], nil
}

func resolveURL(baseURL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}

	base, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return href
	}
	return base.ResolveReference(ref).String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
