package locator_test

import (
	"errors"
	"testing"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/locator/locatortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const productHTML = `<div id="product" data-asin="B0CX23V2ZK">
	<div data-csa-c-content-id="s-search-add-to-cart-action" data-csa-c-item-id="B0OTHER000">
		<button id="other-item" name="submit.addToCart">Add to cart</button>
	</div>
	<div data-csa-c-content-id="s-search-add-to-cart-action" data-csa-c-item-id="B0CX23V2ZK">
		<button id="exact" name="submit.addToCart">Add to cart</button>
	</div>
	<button id="buy-now">Buy Now</button>
</div>`

func TestResolveReturnsEarliestStrategy(t *testing.T) {
	doc := locatortest.MustParse(productHTML)
	resolver := locator.NewResolver(locator.AddToCart("B0CX23V2ZK")...)

	match, err := resolver.Resolve(doc)
	require.NoError(t, err)

	assert.Equal(t, "item-action-button", match.Strategy)
	assert.Equal(t, 0, match.Index)
	assert.Equal(t, "exact", match.Element.(*locatortest.Element).ID())
}

func TestResolveWithoutASINSkipsExactStrategy(t *testing.T) {
	doc := locatortest.MustParse(productHTML)
	resolver := locator.NewResolver(locator.AddToCart("")...)

	match, err := resolver.Resolve(doc)
	require.NoError(t, err)

	assert.Equal(t, "action-button", match.Strategy)
	assert.Equal(t, "other-item", match.Element.(*locatortest.Element).ID(), "first match in document order")
}

func TestResolveFallsThroughToText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		strategy string
		id       string
	}{
		{
			name:     "Input by value",
			html:     `<div><input id="legacy" type="submit" value="Add to Cart"></div>`,
			strategy: "labelled-input",
			id:       "legacy",
		},
		{
			name:     "Input by aria-label",
			html:     `<div><input id="aria" type="submit" aria-label="ADD TO CART"></div>`,
			strategy: "labelled-input",
			id:       "aria",
		},
		{
			name:     "Button with span text",
			html:     `<div><button id="buy">Buy now</button><button id="span-btn"><span>Add to cart</span></button></div>`,
			strategy: "button-text",
			id:       "span-btn",
		},
		{
			name:     "Hidden button skipped for link",
			html:     `<div><button id="hidden-btn" style="display: none">Add to cart</button><a id="link" href="#"><span>Add to Cart</span></a></div>`,
			strategy: "link-text",
			id:       "link",
		},
		{
			name:     "Generic amazon button",
			html:     `<div><span class="a-button"><input id="generic" type="submit"></span></div>`,
			strategy: "generic-button",
			id:       "generic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := locatortest.MustParse(tt.html)
			match, err := locator.NewResolver(locator.AddToCart("B0CX23V2ZK")...).Resolve(doc)
			require.NoError(t, err)

			assert.Equal(t, tt.strategy, match.Strategy)
			assert.Equal(t, tt.id, match.Element.(*locatortest.Element).ID())
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	doc := locatortest.MustParse(`<div><button>Buy Now</button></div>`)

	_, err := locator.NewResolver(locator.AddToCart("B0CX23V2ZK")...).Resolve(doc)
	assert.ErrorIs(t, err, locator.ErrNotFound)
}

func TestResolveIsOrderPreserving(t *testing.T) {
	doc := locatortest.MustParse(`<div>
		<a id="first-link" href="#">proceed to checkout</a>
		<button id="later">proceed to checkout</button>
		<span id="sc-buy-box-ptc-button">Proceed to Buy</span>
	</div>`)

	strategies := locator.ProceedToCheckout()
	match, err := locator.NewResolver(strategies...).Resolve(doc)
	require.NoError(t, err)

	// buy-box-ptc (index 1) matches; link (3) and button (4) also would.
	assert.Equal(t, 1, match.Index)
	assert.Equal(t, "sc-buy-box-ptc-button", match.Element.(*locatortest.Element).ID())

	// Removing strategies 0..1 makes the link the earliest match, never the button.
	match, err = locator.NewResolver(strategies[2:]...).Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "proceed-link", match.Strategy)
	assert.Equal(t, "first-link", match.Element.(*locatortest.Element).ID())
}

type failingScope struct {
	mock.Mock
}

func (s *failingScope) Query(selector string) ([]locator.Element, error) {
	args := s.Called(selector)
	els, _ := args.Get(0).([]locator.Element)
	return els, args.Error(1)
}

func (s *failingScope) QueryText(text string) ([]locator.Element, error) {
	args := s.Called(text)
	els, _ := args.Get(0).([]locator.Element)
	return els, args.Error(1)
}

func TestResolveTreatsQueryErrorsAsMiss(t *testing.T) {
	doc := locatortest.MustParse(`<div><button id="second">x</button></div>`)
	second, err := doc.Query("#second")
	require.NoError(t, err)

	scope := &failingScope{}
	scope.On("Query", "#first").Return(nil, errors.New("frame detached")).Once()
	scope.On("Query", "#second").Return(second, nil).Once()

	resolver := locator.NewResolver(
		locator.Strategy{Name: "first", Selector: "#first"},
		locator.Strategy{Name: "second", Selector: "#second"},
	)

	match, err := resolver.Resolve(scope)
	require.NoError(t, err)
	assert.Equal(t, "second", match.Strategy)
	scope.AssertExpectations(t)
}

func TestContainsAny(t *testing.T) {
	assert.True(t, locator.ContainsAny("Proceed to Buy (2 items)", "proceed to buy"))
	assert.True(t, locator.ContainsAny("ADD TO CART", "nope", "add to cart"))
	assert.False(t, locator.ContainsAny("Add to Wish List", "add to cart"))
	assert.False(t, locator.ContainsAny("anything", ""))
}
