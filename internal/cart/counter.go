package cart

import (
	"strings"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/parser"
)

const CartCountSelector = "#nav-cart-count"

var ConfirmationPhrases = []string{"added to cart", "added to your cart"}

// Snapshot is the page's confirmation state at one instant.
type Snapshot struct {
	Count      int
	CountKnown bool
	// Confirmations counts confirmation phrases in the page text.
	Confirmations int
}

// ConfirmedSince reports whether either confirmation signal moved forward
// relative to before. A confirmation that was already on the page does not
// count.
func (s Snapshot) ConfirmedSince(before Snapshot) bool {
	if s.CountKnown && before.CountKnown && s.Count > before.Count {
		return true
	}
	return s.Confirmations > before.Confirmations
}

type Counter struct {
	CountSelector string
	Phrases       []string
}

func NewCounter() *Counter {
	return &Counter{
		CountSelector: CartCountSelector,
		Phrases:       ConfirmationPhrases,
	}
}

// Snapshot reads both signals. Either may be missing; read failures leave
// the zero value in place.
func (c *Counter) Snapshot(page locator.Scope) Snapshot {
	var snap Snapshot

	if els, err := page.Query(c.CountSelector); err == nil && len(els) > 0 {
		if text, err := els[0].Text(); err == nil {
			if n := parser.ParseWholeNumber(text); n != nil {
				snap.Count = int(*n)
				snap.CountKnown = true
			}
		}
	}

	if els, err := page.Query("body"); err == nil && len(els) > 0 {
		if text, err := els[0].Text(); err == nil {
			lower := strings.ToLower(text)
			for _, phrase := range c.Phrases {
				snap.Confirmations += strings.Count(lower, strings.ToLower(phrase))
			}
		}
	}

	return snap
}
