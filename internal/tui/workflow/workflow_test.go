package workflow

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/recording"
	"github.com/alkime/voicebank/internal/region"
	"github.com/alkime/voicebank/internal/step"
	"github.com/alkime/voicebank/internal/tui/components/meter"
	"github.com/alkime/voicebank/internal/validate"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// outputChecker provides helpers for testing teatest output.
type outputChecker struct {
	intervl, timeout time.Duration
}

func defaultChecker() outputChecker {
	return outputChecker{
		intervl: 50 * time.Millisecond,
		timeout: 3 * time.Second,
	}
}

func (o outputChecker) check(t *testing.T, tm *teatest.TestModel, checkFunc func(buf []byte) bool) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), checkFunc,
		teatest.WithCheckInterval(o.intervl),
		teatest.WithDuration(o.timeout))
}

func (o outputChecker) checkString(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	o.check(t, tm, func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	})
}

// checkStrings waits for a single frame holding every substring. Each check
// consumes the output it reads, so consecutive checks cannot share a frame.
func (o outputChecker) checkStrings(t *testing.T, tm *teatest.TestModel, subs ...string) {
	t.Helper()
	o.check(t, tm, func(buf []byte) bool {
		for _, sub := range subs {
			if !bytes.Contains(buf, []byte(sub)) {
				return false
			}
		}
		return true
	})
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newMeter() (*meter.History, meter.Model) {
	h := meter.NewHistory(16)
	return h, meter.New(h, 16, 1)
}

// fakeKeywords implements KeywordRecorder for testing.
type fakeKeywords struct {
	mu       sync.Mutex
	snap     step.KeywordSnapshot
	record   func(f *fakeKeywords, slot int) (recording.Status, error)
	upload   func(f *fakeKeywords, slot int) (recording.Status, error)
	recorded []int
	retried  []int
	uploads  []int
	nextErr  error
}

func newFakeKeywords(word string, slots int) *fakeKeywords {
	views := make([]step.SlotView, slots)
	for i := range views {
		views[i] = step.SlotView{Status: recording.Idle{}}
	}
	return &fakeKeywords{snap: step.KeywordSnapshot{
		Keyword:  api.Keyword{ID: "kw-" + word, Text: word},
		Total:    2,
		Slots:    views,
		Required: 2 * slots,
	}}
}

func (f *fakeKeywords) setSlot(i int, v step.SlotView) {
	f.snap.Slots[i] = v
}

func (f *fakeKeywords) Record(_ context.Context, slot int, onAmplitude func(int)) (recording.Status, error) {
	onAmplitude(80)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, slot)
	if f.record == nil {
		return recording.Idle{}, nil
	}
	return f.record(f, slot)
}

func (f *fakeKeywords) RetryUpload(_ context.Context, slot int) (recording.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, slot)
	if f.upload == nil {
		return nil, step.ErrNotReady
	}
	return f.upload(f, slot)
}

func (f *fakeKeywords) Retry(slot int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, slot)
	f.snap.Slots[slot] = step.SlotView{Status: recording.Idle{}}
	return nil
}

func (f *fakeKeywords) Next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextErr
}

func (f *fakeKeywords) Snapshot() step.KeywordSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snap
	snap.Slots = append([]step.SlotView(nil), f.snap.Slots...)
	return snap
}

func (f *fakeKeywords) calls() (recorded, uploads, retried []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.recorded...), append([]int(nil), f.uploads...), append([]int(nil), f.retried...)
}

// fakeSentences implements SentenceRecorder for testing.
type fakeSentences struct {
	mu        sync.Mutex
	snap      step.SentenceSnapshot
	sel       *region.Selector
	outcome   validate.Outcome
	uploadErr error
	records   int
	uploads   int
}

func newFakeSentences(texts ...string) *fakeSentences {
	views := make([]step.SentenceView, len(texts))
	for i, text := range texts {
		views[i] = step.SentenceView{
			Sentence: api.Sentence{ID: fmt.Sprintf("s%d", i+1), Text: text, Keyword: "stop"},
			Status:   recording.Idle{},
		}
	}
	return &fakeSentences{snap: step.SentenceSnapshot{Sentences: views}}
}

func (f *fakeSentences) Select(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.snap.Sentences) {
		return step.ErrNotReady
	}
	f.snap.Current = i
	return nil
}

func (f *fakeSentences) Record(_ context.Context, onAmplitude func(int)) (validate.Outcome, error) {
	onAmplitude(60)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++

	cur := &f.snap.Sentences[f.snap.Current]
	cur.Message = f.outcome.Reason
	if !f.outcome.Accepted {
		cur.Status = recording.Rejected{Reason: f.outcome.Reason}
		return f.outcome, nil
	}

	cur.Status = recording.Accepted{}
	cur.Message = step.MessagePassed
	f.sel = region.New(4)
	cur.HasRegion = true
	cur.Start, cur.End = f.sel.Span()
	cur.Duration = f.sel.Duration()
	return f.outcome, nil
}

func (f *fakeSentences) AdjustRegion(fn func(sel *region.Selector)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sel == nil {
		return step.ErrNotReady
	}
	fn(f.sel)
	cur := &f.snap.Sentences[f.snap.Current]
	cur.Start, cur.End = f.sel.Span()
	return nil
}

func (f *fakeSentences) Upload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.snap.Sentences[f.snap.Current].Uploaded = true
	f.snap.Completed++
	return nil
}

func (f *fakeSentences) Snapshot() step.SentenceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snap
	snap.Sentences = append([]step.SentenceView(nil), f.snap.Sentences...)
	return snap
}

// fakeReviewer implements Reviewer for testing.
type fakeReviewer struct {
	mu      sync.Mutex
	items   []api.CrossCheckItem
	sel     *region.Selector
	pos     int
	sent    []bool // true when skipped
	sendErr error
}

func newFakeReviewer(items ...api.CrossCheckItem) *fakeReviewer {
	f := &fakeReviewer{items: items}
	if len(items) > 0 {
		f.sel = region.New(items[0].Duration)
	}
	return f
}

func (f *fakeReviewer) Current() (api.CrossCheckItem, float64, float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.items) {
		return api.CrossCheckItem{}, 0, 0, false
	}
	start, end := f.sel.Span()
	return f.items[f.pos], start, end, true
}

func (f *fakeReviewer) AdjustRegion(fn func(sel *region.Selector)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.sel)
	return nil
}

func (f *fakeReviewer) Submit(context.Context) error { return f.send(false) }

func (f *fakeReviewer) Skip(context.Context) error { return f.send(true) }

func (f *fakeReviewer) send(skip bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, skip)
	f.pos++
	if f.pos < len(f.items) {
		f.sel = region.New(f.items[f.pos].Duration)
	}
	return nil
}

func (f *fakeReviewer) Progress() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, len(f.items)
}

func (f *fakeReviewer) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos >= len(f.items)
}

func (f *fakeReviewer) sentSnapshot() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.sent...)
}

// fakeMic implements MicChecker for testing.
type fakeMic struct {
	mu     sync.Mutex
	level  int
	passed bool
	runs   int
}

func (f *fakeMic) Run(_ context.Context, onAmplitude func(int)) (bool, error) {
	onAmplitude(f.level)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.passed = f.passed || f.level > 8
	return f.passed, nil
}

func (f *fakeMic) Passed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passed
}

func (f *fakeMic) LastLevel() int {
	return f.level
}
