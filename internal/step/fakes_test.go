package step_test

import (
	"context"
	"sync"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/audio"
	"github.com/alkime/voicebank/internal/capture"
	"github.com/alkime/voicebank/internal/step"
	"github.com/alkime/voicebank/internal/validate"
)

const sampleRate = 16000

func loudClip(seconds float64) audio.Clip {
	samples := make([]int16, int(seconds*sampleRate))
	for i := range samples {
		if (i/20)%2 == 0 {
			samples[i] = 8000
		} else {
			samples[i] = -8000
		}
	}
	return audio.NewClip(samples, sampleRate)
}

func silentClip(seconds float64) audio.Clip {
	return audio.NewClip(make([]int16, int(seconds*sampleRate)), sampleRate)
}

type take struct {
	clip       audio.Clip
	transcript *capture.Transcript
	amplitudes []int
	err        error
}

// fakeRecorder hands out queued takes; with none queued it returns a loud
// clip without a transcript.
type fakeRecorder struct {
	mu     sync.Mutex
	takes  []take
	starts int
	closes int
}

func (f *fakeRecorder) queue(takes ...take) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.takes = append(f.takes, takes...)
}

func (f *fakeRecorder) Start(_ context.Context, onAmplitude func(int), _ time.Duration) (*capture.Recording, error) {
	f.mu.Lock()
	f.starts++
	t := take{clip: loudClip(1)}
	if len(f.takes) > 0 {
		t, f.takes = f.takes[0], f.takes[1:]
	}
	f.mu.Unlock()

	if onAmplitude != nil {
		for _, a := range t.amplitudes {
			onAmplitude(a)
		}
	}
	if t.err != nil {
		return nil, t.err
	}
	return &capture.Recording{Clip: t.clip, Transcript: t.transcript}, nil
}

func (f *fakeRecorder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(audio.Clip) ([]byte, error) { return []byte("mp3"), nil }
func (fakeEncoder) ContentType() string               { return "audio/mpeg" }
func (fakeEncoder) Extension() string                 { return ".mp3" }

// fakeAPI implements every collaborator interface the steps use.
type fakeAPI struct {
	mu sync.Mutex

	keywords  []api.Keyword
	sentences []api.Sentence
	items     []api.CrossCheckItem

	uploadErr     error
	rejectKeyword bool
	createErr     error

	// sentenceGate, when set, holds UploadSentence until it is closed.
	// sentenceStarted is signalled as each held upload begins.
	sentenceGate    chan struct{}
	sentenceStarted chan struct{}

	keywordUploads  []api.KeywordUpload
	sentenceUploads []api.SentenceUpload
	reviews         []api.CrossCheckReview
	profiles        []api.Profile
}

func (f *fakeAPI) setUploadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadErr = err
}

func (f *fakeAPI) Keywords(context.Context) (api.KeywordList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.KeywordList{Keywords: f.keywords, Total: len(f.keywords)}, nil
}

func (f *fakeAPI) UploadKeyword(_ context.Context, up api.KeywordUpload) (api.KeywordUploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return api.KeywordUploadResult{}, f.uploadErr
	}
	f.keywordUploads = append(f.keywordUploads, up)
	return api.KeywordUploadResult{Accepted: !f.rejectKeyword}, nil
}

func (f *fakeAPI) AssignSentences(context.Context, string) (api.SentenceAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.SentenceAssignment{Sentences: f.sentences}, nil
}

func (f *fakeAPI) UploadSentence(_ context.Context, up api.SentenceUpload) (api.SentenceUploadResult, error) {
	if f.sentenceGate != nil {
		f.sentenceStarted <- struct{}{}
		<-f.sentenceGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return api.SentenceUploadResult{}, f.uploadErr
	}
	f.sentenceUploads = append(f.sentenceUploads, up)
	return api.SentenceUploadResult{Success: true}, nil
}

func (f *fakeAPI) AssignCrossCheck(context.Context, string) (api.CrossCheckAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.CrossCheckAssignment{Items: f.items}, nil
}

func (f *fakeAPI) SubmitCrossCheck(_ context.Context, r api.CrossCheckReview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.reviews = append(f.reviews, r)
	return nil
}

func (f *fakeAPI) CreateUser(_ context.Context, p api.Profile) (api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return api.User{}, f.createErr
	}
	f.profiles = append(f.profiles, p)
	return api.User{ID: "u-1", Profile: p}, nil
}

func newDeps(rec *fakeRecorder) step.Deps {
	return step.Deps{
		Recorder:  rec,
		Validator: validate.New(validate.DefaultThresholds()),
		Encoder:   fakeEncoder{},
	}
}
