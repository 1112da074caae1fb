// Package cart adds search results to the cart and confirms each add.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/maltedev/amazon-cart-agent/internal/ratelimit"
	"github.com/maltedev/amazon-cart-agent/internal/wait"
)

// MaxConfirmTimeout bounds how long a single add waits for confirmation.
const MaxConfirmTimeout = 12 * time.Second

var ErrUnconfirmed = errors.New("no add confirmation observed")

type Outcome int

const (
	OutcomeAdded Outcome = iota
	OutcomeNoControl
	OutcomeClickRejected
	OutcomeUnconfirmed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeNoControl:
		return "no_control"
	case OutcomeClickRejected:
		return "click_rejected"
	case OutcomeUnconfirmed:
		return "unconfirmed"
	default:
		return "failed"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Item is one product container on the results page with what was scraped
// from it.
type Item struct {
	Candidate models.Candidate
	Container locator.Element
}

type Attempt struct {
	Candidate models.Candidate `json:"candidate"`
	Path      models.AddPath   `json:"path"`
	Outcome   Outcome          `json:"outcome"`
	Strategy  string           `json:"strategy,omitempty"`
	Mechanism string           `json:"mechanism,omitempty"`
	Err       error            `json:"-"`
}

type Result struct {
	Attempts []Attempt
	Added    []models.AddedItem
	// ControlsFound counts items whose add control resolved.
	ControlsFound int
}

type Options struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

type Adder struct {
	logger  *slog.Logger
	counter *Counter
	pacer   ratelimit.RateLimiter
	opts    Options

	// OnAttempt is called after every attempt, in order.
	OnAttempt func(Attempt)
}

func NewAdder(logger *slog.Logger, pacer ratelimit.RateLimiter, opts Options) *Adder {
	if opts.ConfirmTimeout <= 0 || opts.ConfirmTimeout > MaxConfirmTimeout {
		opts.ConfirmTimeout = MaxConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if pacer == nil {
		pacer = ratelimit.Nop{}
	}

	return &Adder{
		logger:  logger.With("component", "cart"),
		counter: NewCounter(),
		pacer:   pacer,
		opts:    opts,
	}
}

// AddAll walks items in order and stops once max items are confirmed or the
// items run out. Per-item failures are recorded and skipped.
func (a *Adder) AddAll(ctx context.Context, page locator.Scope, items []Item, max int) Result {
	var res Result

	for _, item := range items {
		if len(res.Added) >= max {
			break
		}
		if ctx.Err() != nil {
			a.logger.Warn("add loop cancelled", "error", ctx.Err())
			break
		}

		attempt := a.addOne(ctx, page, item)
		if attempt.Outcome != OutcomeNoControl {
			res.ControlsFound++
		}
		if attempt.Outcome == OutcomeAdded {
			res.Added = append(res.Added, models.NewAddedItem(item.Candidate.Title, item.Candidate.ASIN, models.AddPathInline))
		}
		res.Attempts = append(res.Attempts, attempt)
		a.report(attempt)
	}

	return res
}

func (a *Adder) addOne(ctx context.Context, page locator.Scope, item Item) Attempt {
	attempt := Attempt{Candidate: item.Candidate, Path: models.AddPathInline}
	log := a.logger.With("asin", item.Candidate.ASIN, "title", item.Candidate.Title)

	if err := item.Container.ScrollIntoView(); err != nil {
		log.Debug("scroll into view failed", "error", err)
	}

	match, err := locator.NewResolver(locator.AddToCart(item.Candidate.ASIN)...).Resolve(item.Container)
	if err != nil {
		log.Warn("no add to cart control", "error", err)
		attempt.Outcome = OutcomeNoControl
		attempt.Err = err
		return attempt
	}
	attempt.Strategy = match.Strategy

	mechanism, outcome, err := a.ClickAndConfirm(ctx, page, match.Element)
	attempt.Mechanism = mechanism.String()
	attempt.Outcome = outcome
	attempt.Err = err

	switch outcome {
	case OutcomeAdded:
		log.Info("added to cart", "strategy", match.Strategy, "mechanism", mechanism)
	case OutcomeUnconfirmed:
		log.Warn("clicked but no confirmation", "strategy", match.Strategy, "mechanism", mechanism)
	default:
		log.Warn("add failed", "outcome", outcome, "error", err)
	}
	return attempt
}

// ClickAndConfirm paces, clicks el through the click cascade and waits for a
// confirmation signal on page.
func (a *Adder) ClickAndConfirm(ctx context.Context, page locator.Scope, el locator.Element) (locator.Mechanism, Outcome, error) {
	if err := a.pacer.Wait(ctx); err != nil {
		return locator.MechanismNone, OutcomeFailed, err
	}

	before := a.counter.Snapshot(page)

	mechanism, err := locator.Click(el)
	if err != nil {
		return mechanism, OutcomeClickRejected, err
	}

	err = wait.Until(ctx, wait.Fixed(a.opts.PollInterval, a.opts.ConfirmTimeout), func() (bool, error) {
		return a.counter.Snapshot(page).ConfirmedSince(before), nil
	})
	switch {
	case err == nil:
		return mechanism, OutcomeAdded, nil
	case errors.Is(err, wait.ErrTimeout):
		return mechanism, OutcomeUnconfirmed, fmt.Errorf("%w within %s", ErrUnconfirmed, a.opts.ConfirmTimeout)
	default:
		return mechanism, OutcomeFailed, err
	}
}

func (a *Adder) report(attempt Attempt) {
	if a.OnAttempt != nil {
		a.OnAttempt(attempt)
	}
}
