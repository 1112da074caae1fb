// Package agent runs one shopping session end to end: sign in, search,
// filter, add to cart and advance to checkout.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/maltedev/amazon-cart-agent/internal/cart"
	"github.com/maltedev/amazon-cart-agent/internal/checkout"
	"github.com/maltedev/amazon-cart-agent/internal/filter"
	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/maltedev/amazon-cart-agent/internal/parser"
	"github.com/maltedev/amazon-cart-agent/internal/progress"
	"github.com/maltedev/amazon-cart-agent/internal/session"
)

// Page is everything the agent needs from the main browser tab.
type Page interface {
	session.Page
	checkout.Page
}

type SampleWriter interface {
	SaveSampleProduct(outerHTML string) (string, error)
}

// Request is the explicit context of one run.
type Request struct {
	BaseURL  string
	Email    string
	Password string
	Query    string
	Criteria models.Criteria
	MaxItems int
}

type Report struct {
	Candidates    []models.Candidate
	Filtered      []models.Candidate
	Rejected      []filter.Rejection
	Attempts      []cart.Attempt
	Added         []models.AddedItem
	VisualInvoked bool
	DetailInvoked bool
	Checkout      checkout.Result
	CheckoutErr   error
}

type Agent struct {
	page     Page
	session  *session.Session
	parser   parser.Parser
	adder    *cart.Adder
	visual   *cart.VisualFallback
	detail   *cart.DetailPageFallback
	advancer *checkout.Advancer
	samples  SampleWriter
	tracker  *progress.Tracker
	logger   *slog.Logger
}

type Deps struct {
	Page     Page
	Session  *session.Session
	Parser   parser.Parser
	Adder    *cart.Adder
	Visual   *cart.VisualFallback
	Detail   *cart.DetailPageFallback
	Advancer *checkout.Advancer
	Samples  SampleWriter
	Tracker  *progress.Tracker
	Logger   *slog.Logger
}

func New(d Deps) *Agent {
	return &Agent{
		page:     d.Page,
		session:  d.Session,
		parser:   d.Parser,
		adder:    d.Adder,
		visual:   d.Visual,
		detail:   d.Detail,
		advancer: d.Advancer,
		samples:  d.Samples,
		tracker:  d.Tracker,
		logger:   d.Logger.With("component", "agent"),
	}
}

// Run returns an error only for authentication failure. Every other problem
// is logged, recorded in the report and the run moves on.
func (a *Agent) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{}
	a.tracker.SetRequest(req.Query, req.Criteria, req.MaxItems)

	a.tracker.SetStage(ctx, progress.StageLogin)
	if err := a.session.Login(ctx, req.Email, req.Password); err != nil {
		a.tracker.Finish(ctx, err)
		return report, err
	}

	a.tracker.SetStage(ctx, progress.StageSearch)
	if err := a.session.Search(ctx, req.Query); err != nil {
		a.logger.Warn("search did not show results", "query", req.Query, "error", err)
	}
	session.DismissOverlays(a.page, a.logger)

	a.tracker.SetStage(ctx, progress.StageFilter)
	items := a.scrape(req.BaseURL, report)
	report.Filtered, report.Rejected = filter.Apply(req.Criteria, report.Candidates)
	a.tracker.SetCandidates(ctx, report.Candidates, report.Filtered)
	a.logger.Info("filtered candidates",
		"scraped", len(report.Candidates),
		"kept", len(report.Filtered),
		"rejected", len(report.Rejected))
	for _, r := range report.Rejected {
		a.logger.Debug("candidate rejected", "title", r.Candidate.Title, "reason", r.Reason)
	}

	a.addToCart(ctx, req, items, report)

	a.tracker.SetStage(ctx, progress.StageCheckout)
	report.Checkout, report.CheckoutErr = a.advancer.Advance(ctx, a.page)
	if report.CheckoutErr != nil {
		a.logger.Warn("checkout page not reached, leaving the browser open for inspection", "error", report.CheckoutErr)
	}
	a.tracker.SetCheckout(ctx, report.Checkout, report.CheckoutErr)

	a.tracker.Finish(ctx, nil)
	return report, nil
}

// scrape parses every result container. All containers become items so the
// visual fallback can map onto them; only fully parsed ones are candidates.
func (a *Agent) scrape(baseURL string, report *Report) []cart.Item {
	containers, err := session.Containers(a.page)
	if err != nil {
		a.logger.Warn("could not read result containers", "error", err)
		return nil
	}
	a.logger.Info("result containers found", "count", len(containers))

	items := make([]cart.Item, 0, len(containers))
	for i, container := range containers {
		asin, _ := container.Attr("data-asin")
		item := cart.Item{
			Candidate: models.Candidate{ASIN: strings.TrimSpace(asin)},
			Container: container,
		}

		html, err := container.OuterHTML()
		if err != nil {
			a.logger.Debug("could not read container html", "index", i, "error", err)
			items = append(items, item)
			continue
		}
		if i == 0 && a.samples != nil {
			if path, err := a.samples.SaveSampleProduct(html); err != nil {
				a.logger.Warn("could not save sample product", "error", err)
			} else {
				a.logger.Info("saved sample product html", "path", path)
			}
		}

		candidate, err := a.parser.ParseSearchResult(html, baseURL)
		if err != nil {
			if !errors.Is(err, parser.ErrIncomplete) {
				a.logger.Debug("could not parse container", "index", i, "error", err)
			}
			items = append(items, item)
			continue
		}
		if candidate.ASIN == "" {
			candidate.ASIN = item.Candidate.ASIN
		}
		item.Candidate = *candidate
		report.Candidates = append(report.Candidates, *candidate)
		items = append(items, item)
	}
	return items
}

func (a *Agent) addToCart(ctx context.Context, req Request, items []cart.Item, report *Report) {
	kept := make(map[string]bool, len(report.Filtered))
	for _, c := range report.Filtered {
		kept[c.URL] = true
	}
	var selected []cart.Item
	for _, item := range items {
		if item.Candidate.URL != "" && kept[item.Candidate.URL] {
			selected = append(selected, item)
		}
	}

	a.tracker.SetStage(ctx, progress.StageAdding)
	res := a.adder.AddAll(ctx, a.page, selected, req.MaxItems)
	a.record(report, res.Attempts, res.Added)

	// Visual mapping runs only after every tried item had no usable control.
	switch {
	case len(selected) == 0:
		a.logger.Info("no candidates passed the filters, skipping cart additions")
	case len(res.Attempts) > 0 && res.ControlsFound == 0 && len(report.Added) < req.MaxItems:
		a.logger.Info("no inline add controls resolved, trying visual mapping")
		a.tracker.SetStage(ctx, progress.StageVisual)
		report.VisualInvoked = true

		visual := a.visual.Run(ctx, a.page, items, report.Filtered, req.MaxItems-len(report.Added))
		a.record(report, visual.Attempts, visual.Added)
	}

	if len(report.Added) == 0 && len(report.Filtered) > 0 {
		a.logger.Info("nothing added from the results page, opening product pages")
		a.tracker.SetStage(ctx, progress.StageDetail)
		report.DetailInvoked = true

		attempts, added := a.detail.Run(ctx, report.Filtered, req.MaxItems)
		a.record(report, attempts, added)
	}

	a.logger.Info("cart additions finished", "added", len(report.Added), "max", req.MaxItems)
}

func (a *Agent) record(report *Report, attempts []cart.Attempt, added []models.AddedItem) {
	report.Attempts = append(report.Attempts, attempts...)
	report.Added = append(report.Added, added...)
	a.tracker.RecordAdded(added...)
}
