// Package prompt asks for the search term and filter bounds on the console.
// Blank answers mean "no constraint".
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/maltedev/amazon-cart-agent/internal/parser"
)

type Request struct {
	Query    string
	Criteria models.Criteria
}

type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask reads the search term, min price, max price and min rating in that
// order. A closed input counts as blank answers.
func (p *Prompter) Ask(defaultQuery string) (Request, error) {
	req := Request{Query: defaultQuery}

	query, err := p.line("Product to search: ")
	if err != nil {
		return req, err
	}
	if query != "" {
		req.Query = query
	}

	minPrice, err := p.line("Min price (leave blank for no min): ")
	if err != nil {
		return req, err
	}
	req.Criteria.MinPrice = parser.ParseWholeNumber(minPrice)

	maxPrice, err := p.line("Max price (leave blank for no max): ")
	if err != nil {
		return req, err
	}
	req.Criteria.MaxPrice = parser.ParseWholeNumber(maxPrice)

	minRating, err := p.line("Minimum rating (e.g. 4.0) (leave blank for no min): ")
	if err != nil {
		return req, err
	}
	req.Criteria.MinRating = parser.ParseRating(minRating)

	return req, nil
}

func (p *Prompter) line(label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label); err != nil {
		return "", err
	}

	text, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(text), nil
}
