package step

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/audio"
	"github.com/alkime/voicebank/internal/capture"
	"github.com/alkime/voicebank/internal/recording"
	"github.com/alkime/voicebank/internal/region"
	"github.com/alkime/voicebank/internal/script"
	"github.com/alkime/voicebank/internal/validate"
)

// MessagePassed is shown for a sentence attempt that passed every check.
const MessagePassed = "passed"

// SentenceAPI is the collaborator surface the sentence step needs.
type SentenceAPI interface {
	AssignSentences(ctx context.Context, userID string) (api.SentenceAssignment, error)
	UploadSentence(ctx context.Context, up api.SentenceUpload) (api.SentenceUploadResult, error)
}

type sentenceItem struct {
	sentence  api.Sentence
	attempt   *recording.Attempt
	region    *region.Selector
	message   string
	uploading bool
}

// Sentences walks the donor through their assigned sentences. Each accepted
// recording gets a region selector for marking the keyword before upload.
type Sentences struct {
	deps     Deps
	client   SentenceAPI
	duration time.Duration

	mu         sync.Mutex
	userID     string
	loaded     bool
	items      []*sentenceItem
	current    int
	completed  map[string]bool
	fired      bool
	onComplete func()
}

// NewSentences creates the sentence step.
func NewSentences(deps Deps, client SentenceAPI, duration time.Duration) *Sentences {
	return &Sentences{
		deps:      deps,
		client:    client,
		duration:  duration,
		completed: make(map[string]bool),
	}
}

// OnComplete registers fn to run once when every sentence is uploaded.
func (s *Sentences) OnComplete(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onComplete = fn
}

// Mount loads the donor's sentence assignment.
func (s *Sentences) Mount(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.loaded && s.userID == userID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	assignment, err := s.client.AssignSentences(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load sentence assignment: %w", err)
	}

	s.mu.Lock()
	s.userID = userID
	s.items = make([]*sentenceItem, len(assignment.Sentences))
	for i, sen := range assignment.Sentences {
		s.items[i] = &sentenceItem{sentence: sen, attempt: recording.NewAttempt(i)}
	}
	s.current = 0
	s.completed = make(map[string]bool)
	s.fired = false
	s.loaded = true
	done := s.checkDoneLocked()
	s.mu.Unlock()

	s.deps.logger().Info("sentences assigned", "count", len(assignment.Sentences))
	notify(done)

	return nil
}

// Unmount tears down any running capture.
func (s *Sentences) Unmount() {
	s.deps.Recorder.Close()
}

// Reset discards every attempt and the completion set.
func (s *Sentences) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.items {
		it.attempt = recording.NewAttempt(i)
		it.region = nil
		it.message = ""
	}
	s.current = 0
	s.completed = make(map[string]bool)
	s.fired = false
}

// Select moves to sentence i.
func (s *Sentences) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("%w: sentence %d out of range", ErrNotReady, i)
	}
	s.current = i
	return nil
}

// Record captures the current sentence, replacing any earlier attempt, and
// judges it. The returned outcome carries the donor-facing message.
func (s *Sentences) Record(ctx context.Context, onAmplitude func(int)) (validate.Outcome, error) {
	s.mu.Lock()
	it, err := s.beginLocked()
	s.mu.Unlock()
	if err != nil {
		return validate.Outcome{}, err
	}

	rec, err := s.deps.Recorder.Start(ctx, onAmplitude, s.duration)
	if err != nil {
		s.mu.Lock()
		_ = it.attempt.Abort()
		s.mu.Unlock()
		if errors.Is(err, capture.ErrMicUnavailable) {
			s.deps.logger().Warn("microphone unavailable", "error", err)
		}
		return validate.Outcome{}, err
	}

	s.mu.Lock()
	err = it.attempt.Captured(rec.Clip)
	s.mu.Unlock()
	if err != nil {
		return validate.Outcome{}, err
	}

	outcome, err := s.deps.judge(ctx, rec, func(transcript string) validate.Outcome {
		return script.MatchSentence(transcript, it.sentence.Text)
	})
	if err != nil {
		s.mu.Lock()
		it.attempt.Replace()
		s.mu.Unlock()
		return validate.Outcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !outcome.Accepted {
		it.message = outcome.Reason
		return outcome, it.attempt.Reject(outcome.Reason)
	}

	if err := it.attempt.Accept(); err != nil {
		return validate.Outcome{}, err
	}
	it.region = region.New(rec.Clip.Seconds())
	it.message = MessagePassed

	return validate.Outcome{Accepted: true, Reason: MessagePassed}, nil
}

// AdjustRegion applies fn to the current sentence's region selector.
func (s *Sentences) AdjustRegion(fn func(sel *region.Selector)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.currentLocked()
	if err != nil {
		return err
	}
	if it.region == nil {
		return fmt.Errorf("%w: no accepted recording to mark", ErrNotReady)
	}

	fn(it.region)
	return nil
}

// Upload sends the accepted recording with its keyword span. Spans longer
// than MaxKeywordSpan are refused before any network call. On success the
// sentence completes and the step moves to the next one.
func (s *Sentences) Upload(ctx context.Context) error {
	s.mu.Lock()
	it, err := s.currentLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if it.uploading {
		s.mu.Unlock()
		return fmt.Errorf("%w: sentence %s is uploading", ErrSlotBusy, it.sentence.ID)
	}
	if !recording.IsAccepted(it.attempt.Status) || it.attempt.Uploaded || it.region == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no accepted recording to upload", ErrNotReady)
	}
	if it.region.Length() <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: sentence %s", ErrRegionEmpty, it.sentence.ID)
	}
	if spanTooLong(it.region.Length()) {
		s.mu.Unlock()
		return ErrRegionTooLong
	}
	start, end := it.region.Span()
	att, clip := it.attempt, it.attempt.Clip
	up := api.SentenceUpload{
		UserID:       s.userID,
		SentenceID:   it.sentence.ID,
		KeywordStart: start,
		KeywordEnd:   end,
		Duration:     it.region.Duration(),
	}
	it.uploading = true
	s.mu.Unlock()

	err = s.send(ctx, clip, up)

	s.mu.Lock()
	it.uploading = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if it.attempt != att {
		s.mu.Unlock()
		s.deps.logger().Info("discarding upload of a reset sentence", "sentence", it.sentence.ID)
		return nil
	}
	att.Uploaded = true
	s.completed[it.sentence.ID] = true
	if s.items[s.current] == it && s.current < len(s.items)-1 {
		s.current++
	}
	done := s.checkDoneLocked()
	s.mu.Unlock()

	s.deps.logger().Info("sentence uploaded", "sentence", it.sentence.ID, "start", start, "end", end)
	notify(done)

	return nil
}

// Progress returns uploaded sentences and how many are assigned.
func (s *Sentences) Progress() (completed, required int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.completed), len(s.items)
}

// Completed reports whether every assigned sentence is uploaded.
func (s *Sentences) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded && len(s.completed) == len(s.items)
}

// SentenceView is the display state of one sentence.
type SentenceView struct {
	Sentence api.Sentence
	Status   recording.Status
	Message  string
	Uploaded bool
	// HasRegion is set once the recording is accepted; Start and End are the
	// keyword span and Duration the clip length, all in seconds.
	HasRegion  bool
	Start, End float64
	Duration   float64
}

// SentenceSnapshot is the display state of the step.
type SentenceSnapshot struct {
	Current   int
	Sentences []SentenceView
	Completed int
	Done      bool
}

// Snapshot returns the display state of every sentence.
func (s *Sentences) Snapshot() SentenceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SentenceSnapshot{
		Current:   s.current,
		Sentences: make([]SentenceView, len(s.items)),
		Completed: len(s.completed),
		Done:      s.loaded && len(s.completed) == len(s.items),
	}
	for i, it := range s.items {
		v := SentenceView{
			Sentence: it.sentence,
			Status:   it.attempt.Status,
			Message:  it.message,
			Uploaded: s.completed[it.sentence.ID],
		}
		if it.region != nil {
			v.HasRegion = true
			v.Start, v.End = it.region.Span()
			v.Duration = it.region.Duration()
		}
		snap.Sentences[i] = v
	}

	return snap
}

func (s *Sentences) send(ctx context.Context, clip audio.Clip, up api.SentenceUpload) error {
	enc, err := s.deps.encode(clip, up.SentenceID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	up.Audio = enc

	res, err := s.client.UploadSentence(ctx, up)
	if err != nil {
		s.deps.logger().Warn("sentence upload failed", "sentence", up.SentenceID, "error", err)
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if !res.Success {
		return fmt.Errorf("%w: sentence %s was not stored", ErrUploadFailed, up.SentenceID)
	}
	return nil
}

func (s *Sentences) currentLocked() (*sentenceItem, error) {
	if !s.loaded || len(s.items) == 0 {
		return nil, ErrNotReady
	}
	return s.items[s.current], nil
}

func (s *Sentences) beginLocked() (*sentenceItem, error) {
	it, err := s.currentLocked()
	if err != nil {
		return nil, err
	}

	switch it.attempt.Status.(type) {
	case recording.Recording, recording.Processing:
		return nil, fmt.Errorf("%w: sentence %s is %s", ErrSlotBusy, it.sentence.ID, it.attempt.Status)
	}
	if it.uploading {
		return nil, fmt.Errorf("%w: sentence %s is uploading", ErrSlotBusy, it.sentence.ID)
	}

	it.attempt.Replace()
	it.region = nil
	it.message = ""
	if err := it.attempt.Begin(); err != nil {
		return nil, err
	}

	return it, nil
}

// checkDoneLocked returns the completion callback the first time every
// sentence is uploaded.
func (s *Sentences) checkDoneLocked() func() {
	if s.fired || len(s.completed) < len(s.items) {
		return nil
	}
	s.fired = true
	return s.onComplete
}
