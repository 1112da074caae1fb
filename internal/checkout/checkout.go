// Package checkout moves a filled cart to the first checkout screen and stops
// there. It never touches payment entry.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/wait"
)

const (
	cartPath       = "/gp/cart/view.html?ref_=nav_cart"
	PaymentMessage = "Please enter your payment details to complete the purchase."
)

var ErrNotReached = errors.New("checkout not reached")

var (
	urlMarkers  = []string{"checkout", "/gp/buy"}
	pageMarkers = []string{"#shippingOptionFormId", "[name='placeYourOrder1']"}
)

type Page interface {
	locator.Scope
	URL() string
	Navigate(ctx context.Context, url string) error
}

type Notifier interface {
	// Notify shows a blocking message and returns once it is dismissed or
	// timeout passes.
	Notify(ctx context.Context, message string, timeout time.Duration) error
}

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	PollInterval  time.Duration
	NotifyTimeout time.Duration
}

type Result struct {
	Reached   bool   `json:"reached"`
	Strategy  string `json:"strategy,omitempty"`
	Mechanism string `json:"mechanism,omitempty"`
	URL       string `json:"url,omitempty"`
	Marker    string `json:"marker,omitempty"`
	Notified  bool   `json:"notified"`
}

type Advancer struct {
	logger   *slog.Logger
	notifier Notifier
	opts     Options
}

func NewAdvancer(logger *slog.Logger, notifier Notifier, opts Options) *Advancer {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Advancer{
		logger:   logger.With("component", "checkout"),
		notifier: notifier,
		opts:     opts,
	}
}

func CartURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + cartPath
}

// Advance opens the cart, clicks the proceed control and waits for a
// checkout marker. A run that does not arrive returns ErrNotReached and
// leaves the page where it is.
func (a *Advancer) Advance(ctx context.Context, page Page) (Result, error) {
	var res Result

	cartURL := CartURL(a.opts.BaseURL)
	if err := page.Navigate(ctx, cartURL); err != nil {
		return res, fmt.Errorf("%w: open cart: %v", ErrNotReached, err)
	}
	a.logger.Info("navigated to cart", "url", cartURL)

	resolver := locator.NewResolver(locator.ProceedToCheckout()...)
	var match *locator.Match
	err := wait.Until(ctx, wait.Fixed(a.opts.PollInterval, a.opts.Timeout), func() (bool, error) {
		m, err := resolver.Resolve(page)
		if err != nil {
			return false, err
		}
		match = m
		return true, nil
	})
	if err != nil {
		return res, fmt.Errorf("%w: proceed control: %w", ErrNotReached, err)
	}
	res.Strategy = match.Strategy

	mechanism, err := locator.Click(match.Element)
	res.Mechanism = mechanism.String()
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrNotReached, err)
	}
	a.logger.Info("clicked proceed to checkout", "strategy", match.Strategy, "mechanism", mechanism)

	err = wait.Until(ctx, wait.Fixed(a.opts.PollInterval, a.opts.Timeout), func() (bool, error) {
		marker, ok := arrived(page)
		res.Marker = marker
		return ok, nil
	})
	res.URL = page.URL()
	if err != nil {
		return res, fmt.Errorf("%w: no checkout marker at %s: %w", ErrNotReached, res.URL, err)
	}
	res.Reached = true
	a.logger.Info("reached checkout", "url", res.URL, "marker", res.Marker)

	res.Notified = a.notify(ctx)
	return res, nil
}

func (a *Advancer) notify(ctx context.Context) bool {
	if a.notifier == nil {
		return false
	}

	err := a.notifier.Notify(ctx, PaymentMessage, a.opts.NotifyTimeout)
	if err != nil {
		a.logger.Warn("payment notification not acknowledged", "error", err)
		return false
	}
	return true
}

func arrived(page Page) (string, bool) {
	url := strings.ToLower(page.URL())
	for _, marker := range urlMarkers {
		if strings.Contains(url, marker) {
			return marker, true
		}
	}

	for _, selector := range pageMarkers {
		if els, err := page.Query(selector); err == nil && len(els) > 0 {
			return selector, true
		}
	}
	return "", false
}
