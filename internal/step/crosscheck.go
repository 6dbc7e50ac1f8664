package step

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/region"
)

// CrossCheckAPI is the collaborator surface the cross-check step needs.
type CrossCheckAPI interface {
	AssignCrossCheck(ctx context.Context, userID string) (api.CrossCheckAssignment, error)
	SubmitCrossCheck(ctx context.Context, r api.CrossCheckReview) error
}

type review struct {
	item     api.CrossCheckItem
	region   *region.Selector
	reviewed bool
}

// CrossCheck has the donor mark the keyword span in other donors'
// recordings, or flag them as unclear.
type CrossCheck struct {
	client CrossCheckAPI
	logger *slog.Logger

	mu         sync.Mutex
	userID     string
	loaded     bool
	reviews    []*review
	current    int
	fired      bool
	onComplete func()
}

// NewCrossCheck creates the cross-check step.
func NewCrossCheck(client CrossCheckAPI, logger *slog.Logger) *CrossCheck {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossCheck{client: client, logger: logger}
}

// OnComplete registers fn to run once the assignment is exhausted.
func (c *CrossCheck) OnComplete(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onComplete = fn
}

// Mount loads the donor's review assignment. An empty assignment is
// exhausted immediately.
func (c *CrossCheck) Mount(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.loaded && c.userID == userID {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	assignment, err := c.client.AssignCrossCheck(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cross-check assignment: %w", err)
	}

	c.mu.Lock()
	c.userID = userID
	c.reviews = make([]*review, len(assignment.Items))
	for i, item := range assignment.Items {
		c.reviews[i] = &review{item: item, region: region.New(item.Duration)}
	}
	c.current = 0
	c.fired = false
	c.loaded = true
	done := c.checkDoneLocked()
	c.mu.Unlock()

	c.logger.Info("cross-check assigned", "count", len(assignment.Items))
	notify(done)

	return nil
}

// Unmount is a no-op; the step never captures audio.
func (c *CrossCheck) Unmount() {}

// Current returns the item under review and its selected span.
func (c *CrossCheck) Current() (item api.CrossCheckItem, start, end float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.currentLocked()
	if r == nil {
		return api.CrossCheckItem{}, 0, 0, false
	}
	start, end = r.region.Span()
	return r.item, start, end, true
}

// AdjustRegion applies fn to the current item's selector.
func (c *CrossCheck) AdjustRegion(fn func(sel *region.Selector)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.currentLocked()
	if r == nil {
		return ErrNotReady
	}
	fn(r.region)
	return nil
}

// Submit sends the selected keyword span for the current item. Empty spans,
// as on a zero-length clip, are refused locally; such items can only be
// skipped.
func (c *CrossCheck) Submit(ctx context.Context) error {
	c.mu.Lock()
	r := c.currentLocked()
	if r == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	if r.region.Length() <= 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: recording %s", ErrRegionEmpty, r.item.ID)
	}
	if spanTooLong(r.region.Length()) {
		c.mu.Unlock()
		return ErrRegionTooLong
	}
	start, end := r.region.Span()
	userID := c.userID
	c.mu.Unlock()

	return c.send(ctx, r, api.CrossCheckReview{
		UserID:       userID,
		RecordingID:  r.item.ID,
		KeywordStart: &start,
		KeywordEnd:   &end,
	})
}

// Skip flags the current item as unclear.
func (c *CrossCheck) Skip(ctx context.Context) error {
	c.mu.Lock()
	r := c.currentLocked()
	if r == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	userID := c.userID
	c.mu.Unlock()

	return c.send(ctx, r, api.CrossCheckReview{
		UserID:      userID,
		RecordingID: r.item.ID,
		Unclear:     true,
	})
}

// Exhausted reports whether every assigned item was reviewed.
func (c *CrossCheck) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loaded && c.currentLocked() == nil
}

// Completed is Exhausted.
func (c *CrossCheck) Completed() bool {
	return c.Exhausted()
}

// Progress returns reviewed items and the assignment size.
func (c *CrossCheck) Progress() (reviewed, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.reviews {
		if r.reviewed {
			reviewed++
		}
	}
	return reviewed, len(c.reviews)
}

func (c *CrossCheck) send(ctx context.Context, r *review, body api.CrossCheckReview) error {
	if err := c.client.SubmitCrossCheck(ctx, body); err != nil {
		c.logger.Warn("cross-check submit failed", "recording", body.RecordingID, "error", err)
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	c.mu.Lock()
	r.reviewed = true
	c.advanceLocked()
	done := c.checkDoneLocked()
	c.mu.Unlock()

	notify(done)
	return nil
}

// currentLocked returns the first unreviewed item at or after current, or
// nil when none remain.
func (c *CrossCheck) currentLocked() *review {
	if !c.loaded {
		return nil
	}
	for i := c.current; i < len(c.reviews); i++ {
		if !c.reviews[i].reviewed {
			return c.reviews[i]
		}
	}
	return nil
}

func (c *CrossCheck) advanceLocked() {
	for c.current < len(c.reviews) && c.reviews[c.current].reviewed {
		c.current++
	}
}

func (c *CrossCheck) checkDoneLocked() func() {
	if c.fired || c.currentLocked() != nil {
		return nil
	}
	c.fired = true
	return c.onComplete
}
