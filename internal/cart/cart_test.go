package cart

import (
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/locator/locatortest"
	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAdder() *Adder {
	return NewAdder(testLogger(), nil, Options{
		ConfirmTimeout: 150 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
}

// bumpCartCount makes every successful click on an element whose id is in
// ids increase #nav-cart-count, like the storefront's cart badge.
func bumpCartCount(doc *locatortest.Document, ids ...string) {
	count := 0
	doc.AfterClick = func(el *locatortest.Element, _ locator.Mechanism) {
		for _, id := range ids {
			if el.ID() == id {
				count++
				doc.SetText("#nav-cart-count", strconv.Itoa(count))
				return
			}
		}
	}
}

func itemsFrom(t *testing.T, doc *locatortest.Document) []Item {
	t.Helper()
	containers, err := doc.Query("div[data-asin]")
	require.NoError(t, err)

	items := make([]Item, 0, len(containers))
	for _, c := range containers {
		asin, err := c.Attr("data-asin")
		require.NoError(t, err)
		items = append(items, Item{
			Candidate: models.Candidate{ASIN: asin, Title: "Laptop " + asin},
			Container: c,
		})
	}
	return items
}
