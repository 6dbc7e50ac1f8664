package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/audio"
	"github.com/alkime/voicebank/internal/capture"
	"github.com/alkime/voicebank/internal/config"
	"github.com/alkime/voicebank/internal/keyring"
	applog "github.com/alkime/voicebank/internal/logger"
	"github.com/alkime/voicebank/internal/step"
	"github.com/alkime/voicebank/internal/transcribe"
	"github.com/alkime/voicebank/internal/tui"
	"github.com/alkime/voicebank/internal/tui/components/meter"
	"github.com/alkime/voicebank/internal/validate"
	"github.com/alkime/voicebank/internal/wizard"
	"github.com/alkime/voicebank/internal/workdir"
	"github.com/alkime/voicebank/pkg/channels"
	tea "github.com/charmbracelet/bubbletea"
)

// eventBuffer is the per-subscriber buffer for wizard events.
const eventBuffer = 16

// CLI defines the donor command structure.
type CLI struct {
	// Default wizard command (runs when no subcommand given)
	Wizard WizardCmd `cmd:"" default:"withargs" help:"Launch the donation wizard"`

	// Subcommands
	Devices DevicesCmd `cmd:"" help:"List available audio devices"`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration"`
}

// WizardCmd is the default command that runs the donor TUI.
type WizardCmd struct {
	APIURL       string `flag:"" name:"api-url" optional:"" help:"Collaborator base URL (overrides VOICEBANK_API_URL)"`
	Language     string `flag:"" default:"en" help:"Transcription language hint"`
	OpenAIAPIKey string `flag:"" env:"OPENAI_API_KEY" help:"OpenAI API key for transcript checks"`
}

// Run executes the wizard command.
//
//nolint:funlen // CLI command with multiple setup steps
func (c *WizardCmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.APIURL != "" {
		cfg.APIBaseURL = c.APIURL
	}

	if err := workdir.Prep(); err != nil {
		return fmt.Errorf("failed to prepare working directory: %w", err)
	}

	// The TUI owns stdout, so logs go to a file.
	logPath, err := workdir.LogPath()
	if err != nil {
		return err
	}
	logger, logFile, err := applog.SetupFileLogger(cfg, logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve API key: environment variable takes priority, fallback to keychain
	if c.OpenAIAPIKey == "" {
		if secret, err := keyring.Get(keyring.OpenAI); err == nil {
			c.OpenAIAPIKey = secret
		} else {
			logger.Debug("keychain lookup failed", "key", "openai", "error", err)
		}
	}

	// Without a key the script check is skipped and only local checks run.
	var transcriber capture.Transcriber
	if c.OpenAIAPIKey != "" {
		w, err := transcribe.New(c.OpenAIAPIKey,
			transcribe.WithLanguage(c.Language),
			transcribe.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create transcriber: %w", err)
		}
		transcriber = w
	} else {
		logger.Info("no OpenAI key configured, transcript checks disabled")
	}

	dev := audio.NewDevice(audio.DefaultDeviceConfig(cfg.Recording.SampleRate))
	session := capture.NewSession(dev, transcriber, capture.Config{
		MeterInterval: cfg.Recording.MeterInterval,
	}, logger)
	defer session.Close()

	client := api.New(cfg.APIBaseURL, api.WithLogger(logger))

	deps := step.Deps{
		Recorder: session,
		Validator: validate.New(validate.Thresholds{
			MinDuration:          cfg.Validation.MinDuration,
			SilenceDB:            cfg.Validation.SilenceDB,
			MinLoudnessDB:        cfg.Validation.MinLoudnessDB,
			MinVoicedRatio:       cfg.Validation.MinVoicedRatio,
			FrameLength:          cfg.Validation.FrameLength,
			FrameEnergyThreshold: cfg.Validation.FrameEnergyThreshold,
		}),
		Encoder: audio.MP3Encoder{},
		Logger:  logger,
	}

	micCheck := step.NewMicCheck(deps, cfg.Recording.MicCheckDuration, cfg.Recording.MicThreshold)
	keywords := step.NewKeywords(deps, client, cfg.Recording.RepeatsPerKeyword, cfg.Recording.KeywordDuration)
	sentences := step.NewSentences(deps, client, cfg.Recording.SentenceDuration)
	crossCheck := step.NewCrossCheck(client, logger)

	// Wizard events fan out to the TUI and the log journal.
	tuiEvents := make(chan wizard.Event, eventBuffer)
	journal := make(chan wizard.Event, eventBuffer)

	events := channels.NewBroadcaster[wizard.Event]()
	if err := events.Subscribe(tuiEvents); err != nil {
		return err
	}
	if err := events.Subscribe(journal); err != nil {
		return err
	}

	eventCtx, stopEvents := context.WithCancel(ctx)
	input, err := events.Run(eventCtx)
	if err != nil {
		stopEvents()
		return fmt.Errorf("failed to start event broadcaster: %w", err)
	}

	wiz := wizard.New(wizard.StepSet{
		Profile:    step.NewProfile(client),
		MicCheck:   micCheck,
		Keywords:   keywords,
		Sentences:  sentences,
		CrossCheck: crossCheck,
	}, client, wizard.WithLogger(logger), wizard.WithEvents(input))

	wg := sync.WaitGroup{}
	wg.Go(func() {
		for {
			select {
			case ev := <-journal:
				logger.Info("wizard event",
					"kind", ev.Kind.String(),
					"step", ev.Step.String(),
					"percent", ev.Percent,
					"user", ev.UserID)
			case <-eventCtx.Done():
				return
			}
		}
	})

	app := tui.New(ctx, tui.Config{
		Wizard:       wiz,
		MicCheck:     micCheck,
		Keywords:     keywords,
		Sentences:    sentences,
		CrossCheck:   crossCheck,
		Events:       tuiEvents,
		History:      meter.NewHistory(64),
		MicThreshold: cfg.Recording.MicThreshold,
		BaseURL:      cfg.APIBaseURL,
		Logger:       logger,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, runErr := p.Run()

	stopEvents()
	events.Wait()
	wg.Wait()

	for i, st := range events.Stats() {
		if st.Dropped > 0 {
			logger.Debug("wizard events dropped", "subscriber", i, "dropped", st.Dropped)
		}
	}

	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}

	if wiz.Finished() {
		fmt.Println("\nthanks for donating your voice. bye!")
	} else {
		fmt.Println("\nsession cancelled. bye!")
	}

	return nil
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	adev := audio.NewDevice(nil)
	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
		)
	}

	return nil
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey   SetKeyCmd   `cmd:"" help:"Store an API key in system keychain"`
	ListKeys ListKeysCmd `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"openai" help:"Service name (openai)"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("API key cannot be empty")
	}

	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Set(apiKey, c.Secret); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("%s API key stored in keychain\n", c.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, apiKey := range keyring.AllAPIKeys() {
		if keyring.IsSet(apiKey) {
			fmt.Printf("%s: configured\n", apiKey.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", apiKey.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'donor config set-key <service> <key>' to configure.")
	}

	return nil
}

func main() {
	// Set up text-based logger for CLI output
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("donor"),
		kong.Description("Donate keyword and sentence recordings to the voice bank."))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
