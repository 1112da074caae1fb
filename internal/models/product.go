package models

import (
	"math"
	"time"
)

// Candidate is one scraped search-result entry. Price and Rating are nil when
// the raw text could not be parsed.
type Candidate struct {
	ASIN       string   `json:"asin"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	PriceText  string   `json:"price_text"`
	Price      *float64 `json:"price,omitempty"`
	RatingText string   `json:"rating_text"`
	Rating     *float64 `json:"rating,omitempty"`
}

// Criteria bounds the search results. A nil bound means unconstrained.
type Criteria struct {
	MinPrice  *float64 `json:"min_price,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
}

func (c Criteria) IsEmpty() bool {
	return c.MinPrice == nil && c.MaxPrice == nil && c.MinRating == nil
}

type AddPath string

const (
	AddPathInline     AddPath = "inline"
	AddPathVisual     AddPath = "visual"
	AddPathDetailPage AddPath = "detail_page"
)

type AddedItem struct {
	Title   string    `json:"title"`
	ASIN    string    `json:"asin,omitempty"`
	Path    AddPath   `json:"path"`
	AddedAt time.Time `json:"added_at"`
}

func NewAddedItem(title, asin string, path AddPath) AddedItem {
	return AddedItem{
		Title:   title,
		ASIN:    asin,
		Path:    path,
		AddedAt: time.Now(),
	}
}

// Rect is an on-screen bounding box in CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Center() (float64, float64) {
	return r.Left + r.Width/2, r.Top + r.Height/2
}

// Contains reports whether the point lies inside the rectangle, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Left+r.Width && y >= r.Top && y <= r.Top+r.Height
}

func (r Rect) DistanceSq(other Rect) float64 {
	ax, ay := r.Center()
	bx, by := other.Center()
	return math.Pow(ax-bx, 2) + math.Pow(ay-by, 2)
}

func Float(v float64) *float64 {
	return &v
}
