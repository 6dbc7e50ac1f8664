package step

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/capture"
	"github.com/alkime/voicebank/internal/recording"
	"github.com/alkime/voicebank/internal/script"
	"github.com/alkime/voicebank/internal/validate"
	"github.com/alkime/voicebank/pkg/collections"
)

// KeywordAPI is the collaborator surface the keyword step needs.
type KeywordAPI interface {
	Keywords(ctx context.Context) (api.KeywordList, error)
	UploadKeyword(ctx context.Context, up api.KeywordUpload) (api.KeywordUploadResult, error)
}

// Keywords records a fixed number of repeats of every keyword. Repeats of a
// keyword are gated serially, and the step moves on by itself once every
// repeat of the current keyword is accepted.
type Keywords struct {
	deps     Deps
	client   KeywordAPI
	repeats  int
	duration time.Duration

	mu         sync.Mutex
	userID     string
	loaded     bool
	keywords   []api.Keyword
	slots      [][]*recording.Attempt
	current    int
	completed  map[string]bool
	fired      bool
	onComplete func()
}

// NewKeywords creates the keyword step.
func NewKeywords(deps Deps, client KeywordAPI, repeats int, duration time.Duration) *Keywords {
	return &Keywords{
		deps:      deps,
		client:    client,
		repeats:   max(repeats, 1),
		duration:  duration,
		completed: make(map[string]bool),
	}
}

// OnComplete registers fn to run once when the last keyword completes.
func (k *Keywords) OnComplete(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.onComplete = fn
}

// Mount loads the keyword list for userID. Progress survives remounting for
// the same donor.
func (k *Keywords) Mount(ctx context.Context, userID string) error {
	k.mu.Lock()
	if k.loaded && k.userID == userID {
		k.mu.Unlock()
		return nil
	}
	k.mu.Unlock()

	list, err := k.client.Keywords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load keywords: %w", err)
	}

	k.mu.Lock()
	k.userID = userID
	k.keywords = list.Keywords
	k.resetLocked()
	k.loaded = true
	done := k.checkDoneLocked()
	k.mu.Unlock()

	k.deps.logger().Info("keywords loaded", "count", len(list.Keywords), "repeats", k.repeats)
	notify(done)

	return nil
}

// Unmount tears down any running capture.
func (k *Keywords) Unmount() {
	k.deps.Recorder.Close()
}

// Reset discards every attempt and the completion set.
func (k *Keywords) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.resetLocked()
}

func (k *Keywords) resetLocked() {
	k.slots = make([][]*recording.Attempt, len(k.keywords))
	for i := range k.slots {
		k.slots[i] = make([]*recording.Attempt, k.repeats)
		for j := range k.slots[i] {
			k.slots[i][j] = recording.NewAttempt(j)
		}
	}
	k.current = 0
	k.completed = make(map[string]bool)
	k.fired = false
}

// Record captures repeat slot of the current keyword and runs it through
// validation, script matching and upload. It returns the slot's resulting
// status. A slot left in Processing after an ErrUploadFailed error can be
// resent with RetryUpload.
func (k *Keywords) Record(ctx context.Context, slot int, onAmplitude func(int)) (recording.Status, error) {
	k.mu.Lock()
	a, kw, err := k.beginLocked(slot)
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rec, err := k.deps.Recorder.Start(ctx, onAmplitude, k.duration)
	if err != nil {
		k.mu.Lock()
		_ = a.Abort()
		k.mu.Unlock()
		if errors.Is(err, capture.ErrMicUnavailable) {
			k.deps.logger().Warn("microphone unavailable", "error", err)
		}
		return recording.Idle{}, err
	}

	k.mu.Lock()
	err = a.Captured(rec.Clip)
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	outcome, err := k.deps.judge(ctx, rec, func(transcript string) validate.Outcome {
		return script.MatchKeyword(transcript, kw.Text)
	})
	if err != nil {
		k.mu.Lock()
		a.Replace()
		k.mu.Unlock()
		return recording.Idle{}, err
	}

	if !outcome.Accepted {
		k.mu.Lock()
		defer k.mu.Unlock()
		if err := a.Reject(outcome.Reason); err != nil {
			return nil, err
		}
		k.deps.logger().Info("keyword repeat rejected", "keyword", kw.ID, "slot", slot, "reason", outcome.Reason)
		return a.Status, nil
	}

	return k.upload(ctx, a, kw)
}

// RetryUpload resends a repeat whose upload failed in transit.
func (k *Keywords) RetryUpload(ctx context.Context, slot int) (recording.Status, error) {
	k.mu.Lock()
	if !k.loaded {
		k.mu.Unlock()
		return nil, ErrNotReady
	}
	if slot < 0 || slot >= k.repeats {
		k.mu.Unlock()
		return nil, fmt.Errorf("%w: slot %d out of range", ErrNotReady, slot)
	}
	a := k.slots[k.current][slot]
	kw := k.keywords[k.current]
	pending := a.PendingUpload
	k.mu.Unlock()

	if !pending {
		return nil, fmt.Errorf("%w: slot %d has no pending upload", ErrNotReady, slot)
	}

	return k.upload(ctx, a, kw)
}

// Retry discards a rejected repeat so it can be recorded again.
func (k *Keywords) Retry(slot int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.loaded {
		return ErrNotReady
	}
	if slot < 0 || slot >= k.repeats {
		return fmt.Errorf("%w: slot %d out of range", ErrNotReady, slot)
	}

	return k.slots[k.current][slot].Retry()
}

// Next moves to the following unfinished keyword. The current keyword must be
// complete.
func (k *Keywords) Next() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.loaded || len(k.keywords) == 0 {
		return ErrNotReady
	}
	if !k.completed[k.keywords[k.current].ID] {
		return fmt.Errorf("%w: keyword %q is not complete", ErrNotReady, k.keywords[k.current].Text)
	}

	k.advanceLocked()
	return nil
}

// Progress returns accepted repeats across all keywords and how many are
// required.
func (k *Keywords) Progress() (completed, required int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, slots := range k.slots {
		completed += collections.Count(slots, func(a *recording.Attempt) bool {
			return recording.IsAccepted(a.Status)
		})
	}

	return completed, len(k.keywords) * k.repeats
}

// Completed reports whether every repeat of every keyword is accepted.
func (k *Keywords) Completed() bool {
	k.mu.Lock()
	loaded := k.loaded
	k.mu.Unlock()
	if !loaded {
		return false
	}

	completed, required := k.Progress()
	return completed == required
}

// SlotView is the display state of one repeat.
type SlotView struct {
	Status        recording.Status
	PendingUpload bool
}

// KeywordSnapshot is the display state of the step.
type KeywordSnapshot struct {
	Keyword   api.Keyword
	Index     int
	Total     int
	Slots     []SlotView
	Completed int
	Required  int
	Done      bool
}

// Snapshot returns the current keyword and its slots.
func (k *Keywords) Snapshot() KeywordSnapshot {
	completed, required := k.Progress()

	k.mu.Lock()
	defer k.mu.Unlock()

	snap := KeywordSnapshot{
		Index:     k.current,
		Total:     len(k.keywords),
		Completed: completed,
		Required:  required,
		Done:      k.loaded && completed == required,
	}
	if !k.loaded || len(k.keywords) == 0 {
		return snap
	}

	snap.Keyword = k.keywords[k.current]
	snap.Slots = collections.Apply(k.slots[k.current], func(a *recording.Attempt) SlotView {
		return SlotView{Status: a.Status, PendingUpload: a.PendingUpload}
	})

	return snap
}

func (k *Keywords) beginLocked(slot int) (*recording.Attempt, api.Keyword, error) {
	if !k.loaded || len(k.keywords) == 0 {
		return nil, api.Keyword{}, ErrNotReady
	}
	if slot < 0 || slot >= k.repeats {
		return nil, api.Keyword{}, fmt.Errorf("%w: slot %d out of range", ErrNotReady, slot)
	}

	slots := k.slots[k.current]
	if slot > 0 && !recording.IsAccepted(slots[slot-1].Status) {
		return nil, api.Keyword{}, ErrSlotLocked
	}

	a := slots[slot]
	if !recording.IsIdle(a.Status) {
		return nil, api.Keyword{}, fmt.Errorf("%w: slot %d is %s", ErrSlotBusy, slot, a.Status)
	}
	if err := a.Begin(); err != nil {
		return nil, api.Keyword{}, err
	}

	return a, k.keywords[k.current], nil
}

func (k *Keywords) upload(ctx context.Context, a *recording.Attempt, kw api.Keyword) (recording.Status, error) {
	k.mu.Lock()
	clip := a.Clip
	userID := k.userID
	k.mu.Unlock()

	enc, err := k.deps.encode(clip, fmt.Sprintf("%s-%d", kw.ID, a.Index))
	if err != nil {
		return k.markPending(a, err)
	}

	res, err := k.client.UploadKeyword(ctx, api.KeywordUpload{
		UserID:      userID,
		Keyword:     kw.Text,
		KeywordID:   kw.ID,
		RepeatIndex: a.Index,
		Audio:       enc,
	})
	if err != nil {
		return k.markPending(a, err)
	}

	k.mu.Lock()
	if !res.Accepted {
		a.PendingUpload = false
		err := a.Reject(ReasonRejectedByServer)
		status := a.Status
		k.mu.Unlock()
		k.deps.logger().Info("keyword repeat rejected by server", "keyword", kw.ID, "slot", a.Index)
		return status, err
	}

	if err := a.Accept(); err != nil {
		k.mu.Unlock()
		return nil, err
	}
	a.Uploaded = true
	status := a.Status
	done := k.keywordAcceptedLocked(kw)
	k.mu.Unlock()

	k.deps.logger().Debug("keyword repeat accepted", "keyword", kw.ID, "slot", a.Index)
	notify(done)

	return status, nil
}

func (k *Keywords) markPending(a *recording.Attempt, cause error) (recording.Status, error) {
	k.mu.Lock()
	a.PendingUpload = true
	status := a.Status
	k.mu.Unlock()

	k.deps.logger().Warn("keyword upload failed", "slot", a.Index, "error", cause)
	return status, fmt.Errorf("%w: %w", ErrUploadFailed, cause)
}

// keywordAcceptedLocked records completion of kw when all its repeats are in
// and advances. It returns the completion callback when it is due.
func (k *Keywords) keywordAcceptedLocked(kw api.Keyword) func() {
	idx := -1
	for i := range k.keywords {
		if k.keywords[i].ID == kw.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	done := collections.All(k.slots[idx], func(a *recording.Attempt) bool {
		return recording.IsAccepted(a.Status)
	})
	if !done {
		return nil
	}

	k.completed[kw.ID] = true
	if idx == k.current {
		k.advanceLocked()
	}

	return k.checkDoneLocked()
}

// advanceLocked moves to the next unfinished keyword after the current one,
// wrapping around. It stays put when everything is complete.
func (k *Keywords) advanceLocked() {
	n := len(k.keywords)
	for step := 1; step < n; step++ {
		i := (k.current + step) % n
		if !k.completed[k.keywords[i].ID] {
			k.current = i
			return
		}
	}
}

// checkDoneLocked returns the completion callback the first time every
// keyword is complete.
func (k *Keywords) checkDoneLocked() func() {
	if k.fired || len(k.completed) < len(k.keywords) {
		return nil
	}
	k.fired = true
	return k.onComplete
}
