// Package step implements the per-step controllers of the donor wizard:
// profile, microphone check, keyword repeats, sentences and cross-check.
//
// Controllers are safe for concurrent use. Captures, transcription and
// network calls run outside the controller lock.
package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/audio"
	"github.com/alkime/voicebank/internal/capture"
	"github.com/alkime/voicebank/internal/validate"
	"golang.org/x/sync/errgroup"
)

// MaxKeywordSpan is the longest keyword region, in seconds, a sentence
// upload or cross-check review may carry.
const MaxKeywordSpan = 2.0

// spanEpsilon absorbs float drift from repeated nudges.
const spanEpsilon = 1e-9

// ReasonRejectedByServer is the attempt reason when the collaborator refuses
// a keyword repeat.
const ReasonRejectedByServer = "rejected by server"

var (
	// ErrUploadFailed wraps transport and collaborator failures on upload.
	// The clip is kept so the upload can be retried.
	ErrUploadFailed = errors.New("upload failed")
	// ErrSlotLocked is returned when recording a repeat whose predecessor is
	// not accepted yet.
	ErrSlotLocked = errors.New("previous repeat must be accepted first")
	// ErrSlotBusy is returned when recording a slot that is not idle.
	ErrSlotBusy = errors.New("slot is busy")
	// ErrNotReady is returned when an operation's precondition does not hold.
	ErrNotReady = errors.New("step not ready")
	// ErrRegionTooLong is returned by uploads whose keyword span exceeds
	// MaxKeywordSpan.
	ErrRegionTooLong = errors.New("keyword span must be 2 seconds or shorter")
	// ErrRegionEmpty is returned when the keyword span has no length.
	ErrRegionEmpty = errors.New("keyword span is empty")
	// ErrInvalidForm wraps profile form validation failures.
	ErrInvalidForm = errors.New("invalid profile")
)

// Recorder runs one capture at a time.
type Recorder interface {
	Start(ctx context.Context, onAmplitude func(int), duration time.Duration) (*capture.Recording, error)
	Close()
}

// Validator judges clip quality locally.
type Validator interface {
	Validate(clip audio.Clip) validate.Outcome
}

// Encoder prepares clips for upload.
type Encoder interface {
	Encode(clip audio.Clip) ([]byte, error)
	ContentType() string
	Extension() string
}

// Deps are the collaborators shared by the recording steps.
type Deps struct {
	Recorder  Recorder
	Validator Validator
	Encoder   Encoder
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// judge runs the local validator and the transcript wait concurrently. The
// script check only runs when local validation passed and a transcript is
// available; transcription failures skip it.
func (d Deps) judge(ctx context.Context, rec *capture.Recording, match func(string) validate.Outcome) (validate.Outcome, error) {
	var (
		local      validate.Outcome
		transcript string
		heard      bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		local = d.Validator.Validate(rec.Clip)
		return nil
	})
	if rec.Transcript != nil {
		g.Go(func() error {
			text, err := rec.Transcript.Wait(gctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger().Debug("transcript unavailable, skipping script check", "error", err)
				return nil
			}
			transcript, heard = text, true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return validate.Outcome{}, err
	}

	if !local.Accepted || !heard {
		return local, nil
	}

	return match(transcript), nil
}

func (d Deps) encode(clip audio.Clip, name string) (api.Audio, error) {
	data, err := d.Encoder.Encode(clip)
	if err != nil {
		return api.Audio{}, fmt.Errorf("failed to encode clip: %w", err)
	}

	return api.Audio{
		Data:        data,
		Filename:    name + d.Encoder.Extension(),
		ContentType: d.Encoder.ContentType(),
	}, nil
}

func spanTooLong(length float64) bool {
	return length > MaxKeywordSpan+spanEpsilon
}

// notify calls fn when set. Completion callbacks run outside the controller
// lock.
func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
