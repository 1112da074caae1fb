package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/maltedev/amazon-cart-agent/internal/storage"
)

const visualTargetText = "add to cart"

// ErrTargetMoved means a mapped target no longer resolves to the product it
// was mapped to, for example after the page re-rendered.
var ErrTargetMoved = errors.New("click target no longer maps to its product")

type ProductBox struct {
	ASIN string
	Box  models.Rect
}

type Assignment struct {
	ASIN      string
	Contained bool
}

// Assign maps each target rectangle to a product. A product whose box
// contains the target's centre wins; otherwise the product with the nearest
// centre does. Ties go to the product that comes first in products. With no
// products every assignment is empty.
func Assign(targets []models.Rect, products []ProductBox) []Assignment {
	assignments := make([]Assignment, len(targets))

	for i, target := range targets {
		if len(products) == 0 {
			continue
		}

		cx, cy := target.Center()
		found := false
		for _, p := range products {
			if p.Box.Contains(cx, cy) {
				assignments[i] = Assignment{ASIN: p.ASIN, Contained: true}
				found = true
				break
			}
		}
		if found {
			continue
		}

		best := 0
		bestDist := target.DistanceSq(products[0].Box)
		for j := 1; j < len(products); j++ {
			if d := target.DistanceSq(products[j].Box); d < bestDist {
				best, bestDist = j, d
			}
		}
		assignments[i] = Assignment{ASIN: products[best].ASIN}
	}

	return assignments
}

// SelectClicks picks at most one target per product, in order of first
// appearance, keeping only allowed products. An empty allowed set allows
// everything.
func SelectClicks(assignments []Assignment, allowed map[string]bool) []int {
	seen := make(map[string]bool)
	var picks []int

	for i, a := range assignments {
		if len(allowed) > 0 && !allowed[a.ASIN] {
			continue
		}
		if a.ASIN != "" {
			if seen[a.ASIN] {
				continue
			}
			seen[a.ASIN] = true
		}
		picks = append(picks, i)
	}
	return picks
}

type DiagnosticWriter interface {
	SaveDiagnostic(entries []storage.DiagnosticEntry) (string, error)
}

type VisualResult struct {
	Targets        int
	DiagnosticPath string
	Attempts       []Attempt
	Added          []models.AddedItem
}

// VisualFallback clicks "add to cart" text matches anywhere on the page by
// mapping them onto product containers geometrically.
type VisualFallback struct {
	logger *slog.Logger
	adder  *Adder
	dump   DiagnosticWriter
}

func NewVisualFallback(logger *slog.Logger, adder *Adder, dump DiagnosticWriter) *VisualFallback {
	return &VisualFallback{
		logger: logger.With("component", "visual"),
		adder:  adder,
		dump:   dump,
	}
}

// Run maps every text match onto items, writes the diagnostic dump, and
// clicks allowed matches until budget items are confirmed.
func (v *VisualFallback) Run(ctx context.Context, page locator.Scope, items []Item, allowed []models.Candidate, budget int) VisualResult {
	var res VisualResult
	if budget <= 0 {
		return res
	}

	targets, err := page.QueryText(visualTargetText)
	if err != nil {
		v.logger.Warn("text scan failed", "error", err)
		return res
	}
	res.Targets = len(targets)
	v.logger.Info("scanning add to cart text matches", "count", len(targets))

	var (
		boxes    []models.Rect
		boxed    []locator.Element
		products []ProductBox
		titles   = make(map[string]string)
	)
	for _, t := range targets {
		box, err := t.BoundingBox()
		if err != nil || (box.Width == 0 && box.Height == 0) {
			continue
		}
		boxes = append(boxes, box)
		boxed = append(boxed, t)
	}
	for _, item := range items {
		if item.Candidate.ASIN == "" {
			continue
		}
		box, err := item.Container.BoundingBox()
		if err != nil {
			continue
		}
		products = append(products, ProductBox{ASIN: item.Candidate.ASIN, Box: box})
		titles[item.Candidate.ASIN] = item.Candidate.Title
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		if c.ASIN != "" {
			allowedSet[c.ASIN] = true
		}
		if c.Title != "" {
			titles[c.ASIN] = c.Title
		}
	}

	assignments := Assign(boxes, products)
	v.writeDiagnostic(&res, boxed, assignments, allowedSet)

	for _, i := range SelectClicks(assignments, allowedSet) {
		if len(res.Added) >= budget || ctx.Err() != nil {
			break
		}

		asin := assignments[i].ASIN
		attempt := Attempt{
			Candidate: models.Candidate{ASIN: asin, Title: titles[asin]},
			Path:      models.AddPathVisual,
			Strategy:  "visual-mapping",
		}

		if err := boxed[i].ScrollIntoView(); err != nil {
			v.logger.Debug("scroll into view failed", "asin", asin, "error", err)
		}
		if !stillMapped(boxed[i], asin, items) {
			attempt.Outcome = OutcomeFailed
			attempt.Err = ErrTargetMoved
			v.logger.Warn("skipping target that moved since mapping", "asin", asin)
			res.Attempts = append(res.Attempts, attempt)
			v.adder.report(attempt)
			continue
		}
		mechanism, outcome, err := v.adder.ClickAndConfirm(ctx, page, boxed[i])
		attempt.Mechanism = mechanism.String()
		attempt.Outcome = outcome
		attempt.Err = err

		if outcome == OutcomeAdded {
			res.Added = append(res.Added, models.NewAddedItem(titles[asin], asin, models.AddPathVisual))
			v.logger.Info("added via visual mapping", "asin", asin, "contained", assignments[i].Contained)
		} else {
			v.logger.Warn("visual click not confirmed", "asin", asin, "outcome", outcome, "error", err)
		}
		res.Attempts = append(res.Attempts, attempt)
		v.adder.report(attempt)
	}

	return res
}

// stillMapped re-reads the target and the product containers in the current
// layout and checks the target still maps to asin.
func stillMapped(target locator.Element, asin string, items []Item) bool {
	box, err := target.BoundingBox()
	if err != nil || (box.Width == 0 && box.Height == 0) {
		return false
	}

	var products []ProductBox
	for _, item := range items {
		if item.Candidate.ASIN == "" {
			continue
		}
		if b, err := item.Container.BoundingBox(); err == nil {
			products = append(products, ProductBox{ASIN: item.Candidate.ASIN, Box: b})
		}
	}
	return Assign([]models.Rect{box}, products)[0].ASIN == asin
}

func (v *VisualFallback) writeDiagnostic(res *VisualResult, targets []locator.Element, assignments []Assignment, allowed map[string]bool) {
	if v.dump == nil {
		return
	}

	entries := make([]storage.DiagnosticEntry, len(targets))
	for i, t := range targets {
		html, err := t.OuterHTML()
		if err != nil {
			html = ""
		}
		entries[i] = storage.DiagnosticEntry{
			Index:        i,
			InferredASIN: assignments[i].ASIN,
			Allowed:      len(allowed) == 0 || allowed[assignments[i].ASIN],
			HTML:         html,
		}
	}

	path, err := v.dump.SaveDiagnostic(entries)
	if err != nil {
		v.logger.Warn("could not write diagnostic dump", "error", err)
		return
	}
	res.DiagnosticPath = path
}
