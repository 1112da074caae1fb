package locator

import "fmt"

const addToCartAction = "s-search-add-to-cart-action"

var (
	addToCartPhrases = []string{"add to cart"}
	basketPhrases    = []string{"add to cart", "add to basket"}
	proceedPhrases   = []string{"proceed to buy", "proceed to checkout"}
)

// AddToCart covers the add control inside one search-result container.
// The exact item-scoped strategy is only included when asin is known.
func AddToCart(asin string) []Strategy {
	var strategies []Strategy

	if asin != "" {
		strategies = append(strategies, Strategy{
			Name: "item-action-button",
			Selector: fmt.Sprintf(
				"div[data-csa-c-content-id='%s'][data-csa-c-item-id='%s'] button[name='submit.addToCart']",
				addToCartAction, asin,
			),
		})
	}

	return append(strategies,
		Strategy{
			Name:     "action-button",
			Selector: fmt.Sprintf("div[data-csa-c-content-id='%s'] button[name='submit.addToCart']", addToCartAction),
		},
		Strategy{
			Name:     "named-button",
			Selector: "button[name='submit.addToCart']",
		},
		Strategy{
			Name:           "labelled-input",
			Selector:       "input",
			Text:           addToCartPhrases,
			MatchAttrs:     []string{"value", "aria-label"},
			RequireVisible: true,
		},
		Strategy{
			Name:           "button-text",
			Selector:       "button",
			Text:           addToCartPhrases,
			RequireVisible: true,
		},
		Strategy{
			Name:           "link-text",
			Selector:       "a",
			Text:           addToCartPhrases,
			RequireVisible: true,
		},
		Strategy{
			Name:           "generic-button",
			Selector:       "input[name='submit.add-to-cart'], button.a-button, .a-button input",
			RequireVisible: true,
		},
	)
}

// ProductPageAddToCart covers the buy box on a product detail page.
func ProductPageAddToCart() []Strategy {
	return []Strategy{
		{Name: "buy-box-id", Selector: "#add-to-cart-button"},
		{Name: "buy-box-name", Selector: "[name='submit.add-to-cart']"},
		{Name: "buy-box-input", Selector: "input#add-to-cart-button"},
		{
			Name:           "buy-box-text",
			Selector:       "button",
			Text:           basketPhrases,
			RequireVisible: true,
		},
	}
}

// ProceedToCheckout covers the cart page's checkout control across locales.
func ProceedToCheckout() []Strategy {
	return []Strategy{
		{Name: "retail-checkout-name", Selector: "[name='proceedToRetailCheckout']"},
		{Name: "buy-box-ptc", Selector: "#sc-buy-box-ptc-button"},
		{Name: "proceed-input", Selector: "input", Text: proceedPhrases, MatchAttrs: []string{"value"}},
		{Name: "proceed-link", Selector: "a", Text: proceedPhrases},
		{Name: "proceed-button", Selector: "button", Text: proceedPhrases},
	}
}
