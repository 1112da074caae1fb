// Package progress keeps the state of the current run for the status API and
// mirrors every change to the event publisher.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/cart"
	"github.com/maltedev/amazon-cart-agent/internal/checkout"
	"github.com/maltedev/amazon-cart-agent/internal/events"
	"github.com/maltedev/amazon-cart-agent/internal/models"
)

type Stage string

const (
	StageStarting Stage = "starting"
	StageLogin    Stage = "login"
	StageSearch   Stage = "search"
	StageFilter   Stage = "filter"
	StageAdding   Stage = "adding"
	StageVisual   Stage = "visual_fallback"
	StageDetail   Stage = "detail_fallback"
	StageCheckout Stage = "checkout"
	StageDone     Stage = "done"
	StageFailed   Stage = "failed"
)

type AttemptView struct {
	ASIN      string         `json:"asin"`
	Title     string         `json:"title"`
	Path      models.AddPath `json:"path"`
	Outcome   string         `json:"outcome"`
	Strategy  string         `json:"strategy,omitempty"`
	Mechanism string         `json:"mechanism,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type Snapshot struct {
	RunID      string             `json:"run_id"`
	Stage      Stage              `json:"stage"`
	Query      string             `json:"query"`
	Criteria   models.Criteria    `json:"criteria"`
	MaxItems   int                `json:"max_items"`
	StartedAt  time.Time          `json:"started_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Candidates []models.Candidate `json:"candidates"`
	Filtered   []models.Candidate `json:"filtered"`
	Attempts   []AttemptView      `json:"attempts"`
	Added      []models.AddedItem `json:"added"`
	Checkout   *checkout.Result   `json:"checkout,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	publisher events.Publisher
	logger    *slog.Logger
}

func NewTracker(runID string, publisher events.Publisher, logger *slog.Logger) *Tracker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	now := time.Now()
	return &Tracker{
		snap: Snapshot{
			RunID:     runID,
			Stage:     StageStarting,
			StartedAt: now,
			UpdatedAt: now,
		},
		publisher: publisher,
		logger:    logger.With("component", "progress"),
	}
}

func (t *Tracker) RunID() string {
	return t.snap.RunID
}

func (t *Tracker) SetRequest(query string, criteria models.Criteria, maxItems int) {
	t.update(func(s *Snapshot) {
		s.Query = query
		s.Criteria = criteria
		s.MaxItems = maxItems
	})
}

func (t *Tracker) SetStage(ctx context.Context, stage Stage) {
	t.update(func(s *Snapshot) { s.Stage = stage })
	t.publish(ctx, events.EventTypeStageChanged, map[string]Stage{"stage": stage})
}

func (t *Tracker) SetCandidates(ctx context.Context, all, filtered []models.Candidate) {
	t.update(func(s *Snapshot) {
		s.Candidates = append([]models.Candidate(nil), all...)
		s.Filtered = append([]models.Candidate(nil), filtered...)
	})
	t.publish(ctx, events.EventTypeCandidatesFiltered, map[string]int{
		"scraped": len(all),
		"kept":    len(filtered),
	})
}

// RecordAttempt is shaped to be used as cart.Adder.OnAttempt.
func (t *Tracker) RecordAttempt(ctx context.Context, a cart.Attempt) {
	view := AttemptView{
		ASIN:      a.Candidate.ASIN,
		Title:     a.Candidate.Title,
		Path:      a.Path,
		Outcome:   a.Outcome.String(),
		Strategy:  a.Strategy,
		Mechanism: a.Mechanism,
	}
	if a.Err != nil {
		view.Error = a.Err.Error()
	}

	t.update(func(s *Snapshot) { s.Attempts = append(s.Attempts, view) })
	t.publish(ctx, events.EventTypeAddAttempted, view)
}

func (t *Tracker) RecordAdded(items ...models.AddedItem) {
	t.update(func(s *Snapshot) { s.Added = append(s.Added, items...) })
}

func (t *Tracker) SetCheckout(ctx context.Context, res checkout.Result, err error) {
	t.update(func(s *Snapshot) {
		s.Checkout = &res
		if err != nil {
			s.Error = err.Error()
		}
	})
	t.publish(ctx, events.EventTypeCheckoutFinished, res)
}

func (t *Tracker) Finish(ctx context.Context, err error) {
	stage := StageDone
	if err != nil {
		stage = StageFailed
	}
	t.update(func(s *Snapshot) {
		s.Stage = stage
		if err != nil {
			s.Error = err.Error()
		}
	})

	snap := t.Snapshot()
	t.publish(ctx, events.EventTypeRunFinished, map[string]any{
		"stage": stage,
		"added": len(snap.Added),
		"error": snap.Error,
	})
}

// Snapshot returns a copy that is safe to use after further updates.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.snap
	s.Candidates = append([]models.Candidate(nil), t.snap.Candidates...)
	s.Filtered = append([]models.Candidate(nil), t.snap.Filtered...)
	s.Attempts = append([]AttemptView(nil), t.snap.Attempts...)
	s.Added = append([]models.AddedItem(nil), t.snap.Added...)
	if t.snap.Checkout != nil {
		c := *t.snap.Checkout
		s.Checkout = &c
	}
	return s
}

func (t *Tracker) Close() error {
	return t.publisher.Close()
}

func (t *Tracker) update(fn func(s *Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.snap)
	t.snap.UpdatedAt = time.Now()
}

func (t *Tracker) publish(ctx context.Context, eventType events.EventType, payload any) {
	if err := t.publisher.Publish(ctx, events.New(t.snap.RunID, eventType, payload)); err != nil {
		t.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
