// Package wizard sequences the five donor steps, gating forward navigation on
// step completion and mirroring progress to the collaborator.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/pkg/channels"
)

const mirrorTimeout = 5 * time.Second

var (
	// ErrNotFinishable is returned by Finish before the last step is complete.
	ErrNotFinishable = errors.New("wizard cannot finish before the last step is complete")
	// ErrClosed is returned by navigation after Finish or Cancel.
	ErrClosed = errors.New("wizard is closed")
	// ErrAlreadyStarted is returned by Resume once a donor is set.
	ErrAlreadyStarted = errors.New("wizard already has a donor")
	// ErrNotRestartable is returned by Restart on steps without a reset.
	ErrNotRestartable = errors.New("step cannot be restarted")
)

// StepController is a step the wizard mounts while it is active.
type StepController interface {
	Mount(ctx context.Context, userID string) error
	Unmount()
	Completed() bool
}

// ProfileStep is the first step. It creates the donor on navigation.
type ProfileStep interface {
	StepController
	Validate(form api.Profile) error
	Submit(ctx context.Context, form api.Profile) (api.User, error)
	Restore(userID string)
	UserID() string
}

// SessionAPI mirrors the wizard to the collaborator.
type SessionAPI interface {
	StartSession(ctx context.Context, userID string) (api.Session, error)
	UpdateProgress(ctx context.Context, p api.SessionProgress) error
	CompleteSession(ctx context.Context, ref api.SessionRef) error
	CancelSession(ctx context.Context, ref api.SessionRef) error
	CurrentSessionByPhone(ctx context.Context, phone string) (api.Session, error)
}

// StepSet holds one controller per step.
type StepSet struct {
	Profile    ProfileStep
	MicCheck   StepController
	Keywords   StepController
	Sentences  StepController
	CrossCheck StepController
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithEvents publishes every transition on ch without blocking.
func WithEvents(ch chan<- Event) Option {
	return func(c *Controller) {
		c.events = ch
	}
}

// Controller is the wizard state machine. Navigation calls are serialized;
// step completion may be reported from any goroutine.
type Controller struct {
	profile ProfileStep
	steps   map[Step]StepController
	session SessionAPI
	logger  *slog.Logger
	events  chan<- Event

	nav sync.Mutex

	mu         sync.Mutex
	current    Step
	form       api.Profile
	userID     string
	sessionID  string
	completion map[Step]bool
	finished   bool
	cancelled  bool
}

type completionNotifier interface {
	OnComplete(fn func())
}

type resetter interface {
	Reset()
}

// New creates a wizard positioned on the profile step. Step controllers that
// report their own completion are wired to StepCompleted.
func New(set StepSet, session SessionAPI, opts ...Option) *Controller {
	c := &Controller{
		profile: set.Profile,
		steps: map[Step]StepController{
			StepProfile:    set.Profile,
			StepMicCheck:   set.MicCheck,
			StepKeyword:    set.Keywords,
			StepSentence:   set.Sentences,
			StepCrossCheck: set.CrossCheck,
		},
		session:    session,
		logger:     slog.Default(),
		current:    StepProfile,
		completion: make(map[Step]bool),
	}
	for _, o := range opts {
		o(c)
	}

	for s, ctrl := range c.steps {
		if n, ok := ctrl.(completionNotifier); ok {
			n.OnComplete(func() { c.StepCompleted(s) })
		}
	}

	return c
}

// Current returns the active step.
func (c *Controller) Current() Step {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// UserID returns the donor ID, or "" before the profile is submitted.
func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.userID
}

// SessionID returns the remote session ID, or "" if none was started.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}

// Finished reports whether the wizard completed.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.finished
}

// Cancelled reports whether the donor abandoned the wizard.
func (c *Controller) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cancelled
}

// SetForm stores the profile draft submitted when leaving step 1.
func (c *Controller) SetForm(form api.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.form = form
}

// Form returns the profile draft.
func (c *Controller) Form() api.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.form
}

// IsStepCompleted reports whether s is done, either by its controller's own
// state or because it was flagged complete.
func (c *Controller) IsStepCompleted(s Step) bool {
	c.mu.Lock()
	flagged := c.completion[s]
	ctrl := c.steps[s]
	c.mu.Unlock()

	if flagged {
		return true
	}
	if ctrl == nil {
		return false
	}
	return ctrl.Completed()
}

// Percent is the share of completed steps, 0..100.
func (c *Controller) Percent() int {
	done := 0
	for _, s := range Steps {
		if c.IsStepCompleted(s) {
			done++
		}
	}
	return done * 100 / len(Steps)
}

// StepCompleted flags s complete and mirrors progress.
func (c *Controller) StepCompleted(s Step) {
	c.mu.Lock()
	already := c.completion[s]
	c.completion[s] = true
	c.mu.Unlock()

	if already {
		return
	}

	c.logger.Info("step completed", "step", s.String())
	c.publish(EventStepCompleted, s)
	c.mirrorProgress(s)
}

// Next moves forward one step when the current step is complete. On the
// profile step a valid draft is submitted first and the remote session is
// started. It reports whether a transition happened; the error explains why
// not, or carries a mount failure of the entered step.
func (c *Controller) Next(ctx context.Context) (bool, error) {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	if c.finished || c.cancelled {
		c.mu.Unlock()
		return false, ErrClosed
	}
	cur := c.current
	form := c.form
	c.mu.Unlock()

	if cur == StepProfile && !c.profile.Completed() {
		if err := c.profile.Validate(form); err != nil {
			return false, err
		}
		if err := c.submitProfile(ctx, form); err != nil {
			return false, err
		}
	}

	if !c.IsStepCompleted(cur) || cur == StepCrossCheck {
		return false, nil
	}

	return true, c.moveTo(ctx, cur+1)
}

// Back moves to the previous step. It is a no-op on the profile step.
func (c *Controller) Back(ctx context.Context) (bool, error) {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	if c.finished || c.cancelled {
		c.mu.Unlock()
		return false, ErrClosed
	}
	cur := c.current
	c.mu.Unlock()

	if cur == StepProfile {
		return false, nil
	}

	return true, c.moveTo(ctx, cur-1)
}

// Reload remounts the current step, e.g. after a failed load.
func (c *Controller) Reload(ctx context.Context) error {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	cur, userID := c.current, c.userID
	c.mu.Unlock()

	return c.steps[cur].Mount(ctx, userID)
}

// Restart discards the current step's recordings and clears its completion
// flag, so the step has to be done again before Next moves on.
func (c *Controller) Restart(ctx context.Context) error {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	if c.finished || c.cancelled {
		c.mu.Unlock()
		return ErrClosed
	}
	cur := c.current
	c.mu.Unlock()

	r, ok := c.steps[cur].(resetter)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRestartable, cur)
	}
	r.Reset()

	c.mu.Lock()
	delete(c.completion, cur)
	c.mu.Unlock()

	c.logger.Info("step restarted", "step", cur.String())
	c.publish(EventStepEntered, cur)
	c.mirrorProgress(cur)

	return nil
}

// Finish completes the wizard from the last step.
func (c *Controller) Finish(ctx context.Context) error {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	if c.finished || c.cancelled {
		c.mu.Unlock()
		return ErrClosed
	}
	cur := c.current
	ref := api.SessionRef{SessionID: c.sessionID, UserID: c.userID}
	c.mu.Unlock()

	if cur != StepCrossCheck || !c.IsStepCompleted(StepCrossCheck) {
		return ErrNotFinishable
	}

	if ref.SessionID != "" {
		if err := c.session.CompleteSession(ctx, ref); err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}
	}

	c.steps[cur].Unmount()

	c.mu.Lock()
	c.finished = true
	c.mu.Unlock()

	c.logger.Info("wizard finished", "user", ref.UserID, "session", ref.SessionID)
	c.publish(EventFinished, cur)

	return nil
}

// Cancel abandons the wizard. The remote cancel is best effort.
func (c *Controller) Cancel(ctx context.Context) {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	if c.finished || c.cancelled {
		c.mu.Unlock()
		return
	}
	cur := c.current
	ref := api.SessionRef{SessionID: c.sessionID, UserID: c.userID}
	c.cancelled = true
	c.mu.Unlock()

	c.steps[cur].Unmount()

	if ref.SessionID != "" {
		if err := c.session.CancelSession(ctx, ref); err != nil {
			c.logger.Debug("failed to cancel remote session", "error", err)
		}
	}

	c.logger.Info("wizard cancelled", "step", cur.String())
	c.publish(EventCancelled, cur)
}

// Resume continues the in-progress session registered to phone. Steps before
// the resumed one count as complete.
func (c *Controller) Resume(ctx context.Context, phone string) error {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	started := c.userID != "" || c.finished || c.cancelled
	c.mu.Unlock()
	if started {
		return ErrAlreadyStarted
	}

	sess, err := c.session.CurrentSessionByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	target, err := StepFromAPIName(sess.Step)
	if err != nil {
		return err
	}

	c.profile.Restore(sess.UserID)

	c.mu.Lock()
	c.userID = sess.UserID
	c.sessionID = sess.ID
	for _, s := range Steps {
		if s < target {
			c.completion[s] = true
		}
	}
	c.mu.Unlock()

	c.logger.Info("resuming session", "session", sess.ID, "step", target.String())

	if target == StepProfile {
		return nil
	}
	return c.moveTo(ctx, target)
}

func (c *Controller) submitProfile(ctx context.Context, form api.Profile) error {
	user, err := c.profile.Submit(ctx, form)
	if err != nil {
		return err
	}

	sess, err := c.session.StartSession(ctx, user.ID)
	if err != nil {
		c.logger.Debug("failed to start remote session", "error", err)
	}

	c.mu.Lock()
	c.userID = user.ID
	c.sessionID = sess.ID
	c.mu.Unlock()

	c.logger.Info("donor created", "user", user.ID, "session", sess.ID)
	c.StepCompleted(StepProfile)

	return nil
}

// moveTo unmounts the current step, enters next and mounts it. Must be
// called with nav held.
func (c *Controller) moveTo(ctx context.Context, next Step) error {
	c.mu.Lock()
	prev := c.current
	c.current = next
	userID := c.userID
	c.mu.Unlock()

	if prev != next {
		c.steps[prev].Unmount()
	}

	c.logger.Info("entered step", "step", next.String(), "from", prev.String())
	c.publish(EventStepEntered, next)
	c.mirrorProgress(next)

	if err := c.steps[next].Mount(ctx, userID); err != nil {
		return fmt.Errorf("failed to load %s: %w", next, err)
	}

	return nil
}

// mirrorProgress sends the current step and percent. Failures are logged and
// swallowed.
func (c *Controller) mirrorProgress(s Step) {
	c.mu.Lock()
	p := api.SessionProgress{SessionID: c.sessionID, UserID: c.userID, Step: c.current.APIName()}
	c.mu.Unlock()

	if p.SessionID == "" {
		return
	}
	p.Percent = c.Percent()

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if err := c.session.UpdateProgress(ctx, p); err != nil {
		c.logger.Debug("failed to mirror progress", "step", s.String(), "error", err)
	}
}

func (c *Controller) publish(kind EventKind, s Step) {
	if c.events == nil {
		return
	}

	ev := Event{Kind: kind, Step: s, Percent: c.Percent(), UserID: c.UserID()}
	if err := channels.SendNonBlock(c.events, ev); err != nil {
		c.logger.Debug("dropped wizard event", "kind", kind.String(), "error", err)
	}
}
