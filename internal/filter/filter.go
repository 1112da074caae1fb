package filter

import (
	"github.com/maltedev/amazon-cart-agent/internal/models"
)

type Reason string

const (
	ReasonNone          Reason = ""
	ReasonPriceUnknown  Reason = "price unknown"
	ReasonBelowMinPrice Reason = "below min price"
	ReasonAboveMaxPrice Reason = "above max price"
	ReasonRatingUnknown Reason = "rating unknown"
	ReasonBelowRating   Reason = "below min rating"
)

type Verdict struct {
	Keep   bool
	Reason Reason
}

type Rejection struct {
	Candidate models.Candidate
	Reason    Reason
}

// Evaluate applies only the bounds that are set. An unknown value on a
// bounded dimension cannot be confirmed and is rejected. Bounds are inclusive.
func Evaluate(c models.Criteria, p models.Candidate) Verdict {
	if c.MinPrice != nil || c.MaxPrice != nil {
		if p.Price == nil {
			return Verdict{Reason: ReasonPriceUnknown}
		}
		if c.MinPrice != nil && *p.Price < *c.MinPrice {
			return Verdict{Reason: ReasonBelowMinPrice}
		}
		if c.MaxPrice != nil && *p.Price > *c.MaxPrice {
			return Verdict{Reason: ReasonAboveMaxPrice}
		}
	}

	if c.MinRating != nil {
		if p.Rating == nil {
			return Verdict{Reason: ReasonRatingUnknown}
		}
		if *p.Rating < *c.MinRating {
			return Verdict{Reason: ReasonBelowRating}
		}
	}

	return Verdict{Keep: true}
}

// Apply splits candidates, preserving their order.
func Apply(c models.Criteria, candidates []models.Candidate) ([]models.Candidate, []Rejection) {
	kept := make([]models.Candidate, 0, len(candidates))
	var rejected []Rejection

	for _, candidate := range candidates {
		verdict := Evaluate(c, candidate)
		if verdict.Keep {
			kept = append(kept, candidate)
			continue
		}
		rejected = append(rejected, Rejection{Candidate: candidate, Reason: verdict.Reason})
	}

	return kept, rejected
}
