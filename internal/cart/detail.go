package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/maltedev/amazon-cart-agent/internal/wait"
)

const (
	variationGroups  = "div#variation_size_name, div#variation_color_name, select#native_dropdown_selected_size_name"
	variationOptions = "li, option, img"
)

// Tab is a product page opened next to the results page.
type Tab interface {
	locator.Scope
	Close() error
}

type TabOpener interface {
	OpenTab(ctx context.Context, url string) (Tab, error)
}

// DetailPageFallback adds candidates from their own product pages. It is the
// last resort when nothing could be added from the results page.
type DetailPageFallback struct {
	logger        *slog.Logger
	adder         *Adder
	opener        TabOpener
	ControlWait   time.Duration
	VariationWait time.Duration
}

func NewDetailPageFallback(logger *slog.Logger, adder *Adder, opener TabOpener) *DetailPageFallback {
	return &DetailPageFallback{
		logger:        logger.With("component", "detail"),
		adder:         adder,
		opener:        opener,
		ControlWait:   10 * time.Second,
		VariationWait: 500 * time.Millisecond,
	}
}

func (d *DetailPageFallback) Run(ctx context.Context, candidates []models.Candidate, budget int) ([]Attempt, []models.AddedItem) {
	var (
		attempts []Attempt
		added    []models.AddedItem
	)

	for _, c := range candidates {
		if len(added) >= budget || ctx.Err() != nil {
			break
		}
		if c.URL == "" {
			continue
		}

		attempt := d.addFromTab(ctx, c)
		if attempt.Outcome == OutcomeAdded {
			added = append(added, models.NewAddedItem(c.Title, c.ASIN, models.AddPathDetailPage))
		}
		attempts = append(attempts, attempt)
		d.adder.report(attempt)
	}

	return attempts, added
}

func (d *DetailPageFallback) addFromTab(ctx context.Context, c models.Candidate) Attempt {
	attempt := Attempt{Candidate: c, Path: models.AddPathDetailPage}
	log := d.logger.With("asin", c.ASIN, "title", c.Title)

	tab, err := d.opener.OpenTab(ctx, c.URL)
	if err != nil {
		log.Warn("could not open product page", "error", err)
		attempt.Outcome = OutcomeFailed
		attempt.Err = err
		return attempt
	}
	defer func() {
		if err := tab.Close(); err != nil {
			log.Debug("close tab failed", "error", err)
		}
	}()

	resolver := locator.NewResolver(locator.ProductPageAddToCart()...)
	var match *locator.Match
	err = wait.Until(ctx, wait.Fixed(d.adder.opts.PollInterval, d.ControlWait), func() (bool, error) {
		m, err := resolver.Resolve(tab)
		if err != nil {
			return false, err
		}
		match = m
		return true, nil
	})
	if err != nil {
		log.Warn("no add to cart control on product page", "error", err)
		attempt.Outcome = OutcomeNoControl
		attempt.Err = err
		return attempt
	}
	attempt.Strategy = match.Strategy

	d.pickVariation(ctx, tab, log)

	mechanism, outcome, err := d.adder.ClickAndConfirm(ctx, tab, match.Element)
	attempt.Mechanism = mechanism.String()
	attempt.Outcome = outcome
	attempt.Err = err

	if outcome == OutcomeAdded {
		log.Info("added to cart from product page", "strategy", match.Strategy)
	} else {
		log.Warn("could not add from product page", "outcome", outcome, "error", err)
	}
	return attempt
}

// pickVariation selects the first option of the first variation group that
// has one. Products without variations are left alone.
func (d *DetailPageFallback) pickVariation(ctx context.Context, tab Tab, log *slog.Logger) {
	groups, err := tab.Query(variationGroups)
	if err != nil {
		return
	}

	for _, group := range groups {
		options, err := group.Query(variationOptions)
		if err != nil || len(options) == 0 {
			continue
		}
		if _, err := locator.Click(options[0]); err != nil {
			continue
		}
		log.Debug("picked variation")

		timer := time.NewTimer(d.VariationWait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		return
	}
}
