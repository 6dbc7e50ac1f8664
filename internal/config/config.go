package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Env  string `envconfig:"ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	// Security settings
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode    string `envconfig:"CSP_MODE" default:"relaxed"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Sandbox collaborator settings
	MediaDir           string `envconfig:"MEDIA_DIR" default:"./media"`
	CorpusPath         string `envconfig:"CORPUS_PATH" default:""`
	SentencesPerUser   int    `envconfig:"SENTENCES_PER_USER" default:"5"`
	CrossChecksPerUser int    `envconfig:"CROSSCHECKS_PER_USER" default:"3"`

	// Donor client settings
	APIBaseURL string     `envconfig:"VOICEBANK_API_URL" default:"http://localhost:8080"`
	Recording  Recording  `envconfig:"RECORDING"`
	Validation Validation `envconfig:"VALIDATION"`
}

// Recording holds capture timing and repeat settings for the wizard steps.
type Recording struct {
	SampleRate        int           `envconfig:"SAMPLE_RATE" default:"16000"`
	KeywordDuration   time.Duration `envconfig:"KEYWORD_DURATION" default:"2s"`
	SentenceDuration  time.Duration `envconfig:"SENTENCE_DURATION" default:"15s"`
	MicCheckDuration  time.Duration `envconfig:"MIC_CHECK_DURATION" default:"3s"`
	MeterInterval     time.Duration `envconfig:"METER_INTERVAL" default:"16ms"`
	RepeatsPerKeyword int           `envconfig:"REPEATS_PER_KEYWORD" default:"5"`
	MicThreshold      int           `envconfig:"MIC_THRESHOLD" default:"8"`
}

// Validation holds the local audio validator thresholds.
type Validation struct {
	MinDuration          time.Duration `envconfig:"MIN_DURATION" default:"250ms"`
	SilenceDB            float64       `envconfig:"SILENCE_DB" default:"-50"`
	MinLoudnessDB        float64       `envconfig:"MIN_LOUDNESS_DB" default:"-40"`
	MinVoicedRatio       float64       `envconfig:"MIN_VOICED_RATIO" default:"0.05"`
	FrameLength          time.Duration `envconfig:"FRAME_LENGTH" default:"30ms"`
	FrameEnergyThreshold float64       `envconfig:"FRAME_ENERGY_THRESHOLD" default:"0.01"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional for development)
	if err := godotenv.Load(); err != nil {
		// Not an error if file doesn't exist (expected in production)
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	// Parse environment variables into config struct
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate returns an error if the loaded values cannot drive the wizard.
func (c *Config) Validate() error {
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid RECORDING_SAMPLE_RATE %d: must be positive", c.Recording.SampleRate)
	}

	if c.Recording.RepeatsPerKeyword <= 0 {
		return fmt.Errorf("invalid RECORDING_REPEATS_PER_KEYWORD %d: must be positive",
			c.Recording.RepeatsPerKeyword)
	}

	if c.Validation.FrameLength <= 0 {
		return fmt.Errorf("invalid VALIDATION_FRAME_LENGTH %s: must be positive", c.Validation.FrameLength)
	}

	if c.Validation.MinLoudnessDB < c.Validation.SilenceDB {
		return fmt.Errorf("VALIDATION_MIN_LOUDNESS_DB (%v) must not be below VALIDATION_SILENCE_DB (%v)",
			c.Validation.MinLoudnessDB, c.Validation.SilenceDB)
	}

	return nil
}

// BuildCSP constructs Content Security Policy based on mode.
func BuildCSP(mode string) string {
	if mode == "strict" {
		// Production CSP
		return "default-src 'self'; " +
			"media-src 'self'; " +
			"object-src 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
	}

	// Development/relaxed CSP
	return "default-src 'self'; " +
		"media-src 'self' blob: data:; " +
		"style-src 'self' 'unsafe-inline'"
}
