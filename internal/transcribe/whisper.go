// Package transcribe turns captured clips into text using OpenAI Whisper.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alkime/voicebank/internal/audio"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Whisper transcribes clips with the Whisper API.
type Whisper struct {
	client   openai.Client
	language string
	encoder  audio.MP3Encoder
	logger   *slog.Logger
}

type config struct {
	baseURL  string
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Whisper transcriber.
type Option func(*config)

// WithBaseURL overrides the OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithLanguage hints the spoken language as an ISO-639-1 code.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New creates a Whisper transcriber.
func New(apiKey string, opts ...Option) (*Whisper, error) {
	if apiKey == "" {
		return nil, errors.New("API key required: set one with `donor config set-key openai`")
	}

	cfg := &config{logger: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Whisper{
		client:   openai.NewClient(reqOpts...),
		language: cfg.language,
		logger:   cfg.logger,
	}, nil
}

// Transcribe encodes the clip and sends it to Whisper.
func (w *Whisper) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	data, err := w.encoder.Encode(clip)
	if err != nil {
		return "", fmt.Errorf("failed to encode clip for transcription: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  &namedReader{Reader: bytes.NewReader(data), name: "clip" + w.encoder.Extension()},
		Model: openai.AudioModelWhisper1,
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}

	start := time.Now()
	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription via Whisper API: %w", err)
	}

	w.logger.Debug("transcribed clip",
		"seconds", clip.Seconds(),
		"elapsed", time.Since(start),
		"chars", len(resp.Text))

	return resp.Text, nil
}

// namedReader gives the multipart upload a filename so the API can infer the
// audio format.
type namedReader struct {
	*bytes.Reader
	name string
}

func (r *namedReader) Name() string { return r.name }

func (r *namedReader) ContentType() string { return audio.MP3Encoder{}.ContentType() }
