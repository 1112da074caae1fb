// Package locator finds actionable controls inside unstable storefront markup.
//
// A Resolver walks an ordered list of Strategies against a Scope (a product
// container or a whole page) and returns the first element any strategy
// matches. Strategies are ordered from most to least specific so that an
// exact attribute match always wins over a free-text one.
package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maltedev/amazon-cart-agent/internal/models"
)

var ErrNotFound = errors.New("no strategy matched")

type Scope interface {
	// Query returns elements matching a CSS selector, in document order.
	Query(selector string) ([]Element, error)
	// QueryText returns the innermost elements whose own text, value or
	// aria-label contains text, case-insensitively, in document order.
	QueryText(text string) ([]Element, error)
}

type Element interface {
	Scope

	Text() (string, error)
	Attr(name string) (string, error)
	Visible() (bool, error)

	ScrollIntoView() error
	BoundingBox() (models.Rect, error)
	OuterHTML() (string, error)

	ScriptClick() error
	PointerClick() error
	DispatchClick() error
	// AncestorClick clicks the nearest a, button or input at or above the
	// element.
	AncestorClick() error
}

type Strategy struct {
	Name     string
	Selector string
	// Text, when set, requires one of the phrases in the element's text or in
	// one of MatchAttrs.
	Text           []string
	MatchAttrs     []string
	RequireVisible bool
}

type Match struct {
	Element  Element
	Strategy string
	// Index is the strategy's position in the resolver's list.
	Index int
}

type Resolver struct {
	strategies []Strategy
}

func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

func (r *Resolver) Strategies() []Strategy {
	return r.strategies
}

// Resolve returns the first element matched by the earliest strategy. Query
// errors count as a miss for that strategy. No retries happen here.
func (r *Resolver) Resolve(scope Scope) (*Match, error) {
	var misses []string

	for i, strategy := range r.strategies {
		el, err := strategy.find(scope)
		if err != nil {
			misses = append(misses, fmt.Sprintf("%s: %v", strategy.Name, err))
			continue
		}
		if el != nil {
			return &Match{Element: el, Strategy: strategy.Name, Index: i}, nil
		}
		misses = append(misses, strategy.Name)
	}

	if len(misses) == 0 {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrNotFound, strings.Join(misses, ", "))
}

func (s Strategy) find(scope Scope) (Element, error) {
	candidates, err := scope.Query(s.Selector)
	if err != nil {
		return nil, err
	}

	for _, el := range candidates {
		if len(s.Text) > 0 && !s.matchesText(el) {
			continue
		}
		if s.RequireVisible {
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
		}
		return el, nil
	}

	return nil, nil
}

func (s Strategy) matchesText(el Element) bool {
	values := make([]string, 0, 1+len(s.MatchAttrs))
	if text, err := el.Text(); err == nil {
		values = append(values, text)
	}
	for _, attr := range s.MatchAttrs {
		if value, err := el.Attr(attr); err == nil {
			values = append(values, value)
		}
	}

	for _, value := range values {
		if ContainsAny(value, s.Text...) {
			return true
		}
	}
	return false
}

// ContainsAny is a case-insensitive substring test against several phrases.
func ContainsAny(s string, phrases ...string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
