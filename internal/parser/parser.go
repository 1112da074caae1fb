package parser

import (
	"errors"

	"github.com/maltedev/amazon-cart-agent/internal/models"
)

var (
	ErrIncomplete = errors.New("search result has no title or link")
	ErrNoASIN     = errors.New("no ASIN in URL")
)

type Parser interface {
	ParseSearchResult(html string, baseURL string) (*models.Candidate, error)
}
