package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/locator/locatortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	*locatortest.Document
	url       string
	navigated []string
	navErr    error
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	if p.navErr != nil {
		return p.navErr
	}
	p.url = url
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, message string, timeout time.Duration) error {
	return m.Called(message, timeout).Error(0)
}

func testAdvancer(n Notifier) *Advancer {
	return NewAdvancer(slog.New(slog.NewTextHandler(io.Discard, nil)), n, Options{
		BaseURL:       "https://www.amazon.in/",
		Timeout:       80 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		NotifyTimeout: time.Minute,
	})
}

func TestCartURL(t *testing.T) {
	assert.Equal(t, "https://www.amazon.in/gp/cart/view.html?ref_=nav_cart", CartURL("https://www.amazon.in"))
	assert.Equal(t, "https://www.amazon.in/gp/cart/view.html?ref_=nav_cart", CartURL("https://www.amazon.in/"))
}

func TestAdvanceReachesCheckout(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		strategy string
		arrive   func(p *fakePage)
		marker   string
	}{
		{
			name:     "Retail checkout button and URL marker",
			html:     `<input name="proceedToRetailCheckout" type="submit" value="Proceed to Buy">`,
			strategy: "retail-checkout-name",
			arrive:   func(p *fakePage) { p.url = "https://www.amazon.in/checkout/p/p-123/address" },
			marker:   "checkout",
		},
		{
			name:     "Link text and buy URL",
			html:     `<a href="/gp/buy/spc/handlers/display.html">Proceed to checkout</a>`,
			strategy: "proceed-link",
			arrive:   func(p *fakePage) { p.url = "https://www.amazon.in/gp/buy/spc/handlers/display.html" },
			marker:   "/gp/buy",
		},
		{
			name:     "Mixed-case buy URL",
			html:     `<a href="/GP/BUY/spc/handlers/display.html">Proceed to checkout</a>`,
			strategy: "proceed-link",
			arrive:   func(p *fakePage) { p.url = "https://www.amazon.in/GP/BUY/spc/handlers/display.html" },
			marker:   "/gp/buy",
		},
		{
			name:     "Page marker without URL change",
			html:     `<span id="sc-buy-box-ptc-button"><span>Proceed to Buy</span></span>`,
			strategy: "buy-box-ptc",
			arrive:   func(p *fakePage) { p.Append(`<form id="shippingOptionFormId"></form>`) },
			marker:   "#shippingOptionFormId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakePage{Document: locatortest.MustParse(tt.html)}
			page.AfterClick = func(*locatortest.Element, locator.Mechanism) { tt.arrive(page) }

			notifier := &mockNotifier{}
			notifier.On("Notify", PaymentMessage, time.Minute).Return(nil).Once()

			res, err := testAdvancer(notifier).Advance(context.Background(), page)
			require.NoError(t, err)

			assert.True(t, res.Reached)
			assert.True(t, res.Notified)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.Equal(t, tt.marker, res.Marker)
			assert.Equal(t, []string{"https://www.amazon.in/gp/cart/view.html?ref_=nav_cart"}, page.navigated)
			notifier.AssertExpectations(t)
		})
	}
}

func TestAdvanceNeverArrives(t *testing.T) {
	page := &fakePage{Document: locatortest.MustParse(`<input name="proceedToRetailCheckout" type="submit">`)}
	notifier := &mockNotifier{}

	res, err := testAdvancer(notifier).Advance(context.Background(), page)

	assert.ErrorIs(t, err, ErrNotReached)
	assert.False(t, res.Reached)
	assert.Len(t, page.Clicks(), 1)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestAdvanceNoProceedControl(t *testing.T) {
	page := &fakePage{Document: locatortest.MustParse(`<h1>Your Amazon Cart is empty.</h1>`)}

	_, err := testAdvancer(nil).Advance(context.Background(), page)

	assert.ErrorIs(t, err, ErrNotReached)
	assert.ErrorIs(t, err, locator.ErrNotFound)
}

func TestAdvanceCartNavigationFails(t *testing.T) {
	page := &fakePage{Document: locatortest.MustParse(``), navErr: errors.New("net::ERR_TIMED_OUT")}

	_, err := testAdvancer(nil).Advance(context.Background(), page)
	assert.ErrorIs(t, err, ErrNotReached)
}

func TestAdvanceNotificationTimeoutIsNotFatal(t *testing.T) {
	page := &fakePage{Document: locatortest.MustParse(`<input name="proceedToRetailCheckout" type="submit">`)}
	page.AfterClick = func(*locatortest.Element, locator.Mechanism) { page.url = "https://www.amazon.in/checkout/entry" }

	notifier := &mockNotifier{}
	notifier.On("Notify", PaymentMessage, time.Minute).Return(errors.New("alert not dismissed"))

	res, err := testAdvancer(notifier).Advance(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, res.Reached)
	assert.False(t, res.Notified)
}
