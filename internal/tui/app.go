// Package tui is the donor's terminal front end. The App model hosts one
// workflow screen per wizard step and drives wizard navigation.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/tui/components/labeledspinner"
	"github.com/alkime/voicebank/internal/tui/components/meter"
	"github.com/alkime/voicebank/internal/tui/components/stepbar"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/alkime/voicebank/internal/tui/workflow"
	"github.com/alkime/voicebank/internal/wizard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// meterColumns is how many amplitude readings the meter shows.
const meterColumns = 48

// Wizard is the navigation surface the app drives.
type Wizard interface {
	Current() wizard.Step
	Percent() int
	IsStepCompleted(s wizard.Step) bool
	Form() api.Profile
	SetForm(form api.Profile)
	Next(ctx context.Context) (bool, error)
	Back(ctx context.Context) (bool, error)
	Reload(ctx context.Context) error
	Restart(ctx context.Context) error
	Finish(ctx context.Context) error
	Cancel(ctx context.Context)
	Resume(ctx context.Context, phone string) error
	Finished() bool
}

// Config wires the app to the wizard and its step controllers.
type Config struct {
	Wizard     Wizard
	MicCheck   workflow.MicChecker
	Keywords   workflow.KeywordRecorder
	Sentences  workflow.SentenceRecorder
	CrossCheck workflow.Reviewer

	// Events is a subscription to wizard events. Optional.
	Events <-chan wizard.Event
	// History receives amplitude readings from every capture.
	History *meter.History
	// MicThreshold is shown as the mic check pass mark.
	MicThreshold int
	// BaseURL resolves relative cross-check audio links.
	BaseURL string
	Logger  *slog.Logger
}

type navKind int

const (
	navNext navKind = iota
	navBack
	navFinish
	navReload
	navRestart
	navResume
)

type navDoneMsg struct {
	kind  navKind
	moved bool
	err   error
}

type eventMsg struct {
	event wizard.Event
}

type cancelledMsg struct{}

// percentDial exposes wizard progress as a uictl.CappedDial.
type percentDial struct {
	w Wizard
}

func (p percentDial) Read() int {
	return p.w.Percent()
}

func (p percentDial) Cap() (int, int) {
	return p.w.Percent(), 100
}

// App is the root bubbletea model.
type App struct {
	ctx     context.Context
	cfg     Config
	keys    KeyMap
	logger  *slog.Logger
	meter   meter.Model
	bar     stepbar.Model
	spinner labeledspinner.Model

	profile *workflow.ProfileScreen
	screens map[wizard.Step]tea.Model

	busy      bool
	notice    string
	noticeErr bool
	finished  bool
	quitting  bool
}

// New creates the app. ctx bounds every controller call it makes.
func New(ctx context.Context, cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	history := cfg.History
	if history == nil {
		history = meter.NewHistory(meterColumns)
		cfg.History = history
	}

	m := meter.New(history, meterColumns, 3)

	names := make([]string, len(wizard.Steps))
	for i, s := range wizard.Steps {
		names[i] = s.String()
	}

	profile := workflow.NewProfile(cfg.Wizard.Form())

	return &App{
		ctx:     ctx,
		cfg:     cfg,
		keys:    DefaultKeyMap(),
		logger:  logger,
		meter:   m,
		bar:     stepbar.New(names, percentDial{w: cfg.Wizard}, 40),
		spinner: labeledspinner.New(spinner.Dot, "Working...", "", ""),
		profile: profile,
		screens: map[wizard.Step]tea.Model{
			wizard.StepProfile:    profile,
			wizard.StepMicCheck:   workflow.NewMicCheck(ctx, cfg.MicCheck, history, m, cfg.MicThreshold),
			wizard.StepKeyword:    workflow.NewKeywords(ctx, cfg.Keywords, history, m),
			wizard.StepSentence:   workflow.NewSentences(ctx, cfg.Sentences, history, m),
			wizard.StepCrossCheck: workflow.NewCrossCheck(ctx, cfg.CrossCheck, cfg.BaseURL),
		},
	}
}

// Init starts the meter and the event subscription.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.meter.Init(),
		a.screen().Init(),
		a.listen(),
	)
}

func (a *App) screen() tea.Model {
	return a.screens[a.cfg.Wizard.Current()]
}

// listen waits for the next wizard event.
func (a *App) listen() tea.Cmd {
	if a.cfg.Events == nil {
		return nil
	}
	ch := a.cfg.Events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

// Update handles global keys and navigation results and delegates everything
// else to the active screen.
func (a *App) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			return a, cmd
		}
		if a.busy || a.finished {
			return a, nil
		}

	case meter.TickMsg:
		var cmd tea.Cmd
		a.meter, cmd = a.meter.Update(msg)
		return a, cmd

	case spinner.TickMsg:
		if msg.ID == a.spinner.Spinner.ID() {
			if !a.busy {
				return a, nil
			}
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}

	case workflow.SubmitProfileMsg:
		a.cfg.Wizard.SetForm(msg.Form)
		return a, a.navigate(navNext, "Saving profile...")

	case workflow.ResumeMsg:
		return a, a.resume(msg.Phone)

	case navDoneMsg:
		return a, a.navDone(msg)

	case eventMsg:
		a.onEvent(msg.event)
		return a, a.listen()

	case cancelledMsg:
		return a, tea.Quit
	}

	updated, cmd := a.screen().Update(teaMsg)
	a.screens[a.cfg.Wizard.Current()] = updated

	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, a.keys.ForceQuit), key.Matches(msg, a.keys.Quit):
		return a.quit(), true
	}

	if a.busy || a.finished {
		return nil, false
	}

	switch {
	case key.Matches(msg, a.keys.Next):
		if a.cfg.Wizard.Current() == wizard.StepProfile {
			a.cfg.Wizard.SetForm(a.profile.Form())
		}
		return a.navigate(navNext, "Saving..."), true
	case key.Matches(msg, a.keys.Back):
		return a.navigate(navBack, "Loading..."), true
	case key.Matches(msg, a.keys.Finish):
		return a.navigate(navFinish, "Finishing..."), true
	case key.Matches(msg, a.keys.Reload):
		return a.navigate(navReload, "Reloading..."), true
	case key.Matches(msg, a.keys.Restart) && restartable(a.cfg.Wizard.Current()):
		return a.navigate(navRestart, "Restarting..."), true
	}

	return nil, false
}

func (a *App) quit() tea.Cmd {
	if a.quitting {
		return tea.Quit
	}
	a.quitting = true

	if a.finished || a.cfg.Wizard.Finished() {
		return tea.Quit
	}

	w, ctx := a.cfg.Wizard, a.ctx
	return func() tea.Msg {
		w.Cancel(context.WithoutCancel(ctx))
		return cancelledMsg{}
	}
}

func (a *App) navigate(kind navKind, label string) tea.Cmd {
	a.busy = true
	a.notice = ""
	a.spinner = a.spinner.WithLabel(label, "")

	w, ctx := a.cfg.Wizard, a.ctx
	return tea.Batch(a.spinner.Init(), func() tea.Msg {
		var (
			moved bool
			err   error
		)
		switch kind {
		case navNext:
			moved, err = w.Next(ctx)
		case navBack:
			moved, err = w.Back(ctx)
		case navFinish:
			err = w.Finish(ctx)
		case navReload:
			err = w.Reload(ctx)
		case navRestart:
			err = w.Restart(ctx)
		}
		return navDoneMsg{kind: kind, moved: moved, err: err}
	})
}

func (a *App) resume(phone string) tea.Cmd {
	a.busy = true
	a.notice = ""
	a.spinner = a.spinner.WithLabel("Looking up your session...", "")

	w, ctx := a.cfg.Wizard, a.ctx
	return tea.Batch(a.spinner.Init(), func() tea.Msg {
		err := w.Resume(ctx, phone)
		return navDoneMsg{kind: navResume, moved: err == nil, err: err}
	})
}

func (a *App) navDone(msg navDoneMsg) tea.Cmd {
	a.busy = false

	if msg.err != nil {
		a.logger.Debug("navigation failed", "kind", msg.kind, "error", msg.err)
		a.setNotice(describeNavError(msg.err), true)
	}

	switch {
	case msg.kind == navFinish && msg.err == nil:
		a.finished = true
		return nil
	case msg.kind == navNext && !msg.moved && msg.err == nil:
		if a.cfg.Wizard.Current() == wizard.StepCrossCheck {
			a.setNotice("This is the last step. Press ctrl+f to finish.", false)
		} else {
			a.setNotice("Finish this step first.", true)
		}
	case msg.kind == navResume && msg.err == nil:
		a.setNotice("Welcome back.", false)
	case msg.kind == navRestart && msg.err == nil:
		a.setNotice("Step restarted. Record everything again.", false)
	}

	if msg.moved || msg.kind == navReload || msg.kind == navRestart {
		return a.screen().Init()
	}
	return nil
}

func (a *App) onEvent(ev wizard.Event) {
	a.logger.Debug("wizard event", "kind", ev.Kind.String(), "step", ev.Step.String(), "percent", ev.Percent)

	switch ev.Kind {
	case wizard.EventStepCompleted:
		a.setNotice(fmt.Sprintf("✓ %s complete", ev.Step), false)
	case wizard.EventFinished:
		a.finished = true
	}
}

func (a *App) setNotice(text string, isErr bool) {
	a.notice = text
	a.noticeErr = isErr
}

func describeNavError(err error) string {
	switch {
	case errors.Is(err, wizard.ErrNotFinishable):
		return "Review every assigned recording before finishing."
	case errors.Is(err, wizard.ErrAlreadyStarted):
		return "A session is already in progress."
	case errors.Is(err, wizard.ErrClosed):
		return "This session is closed."
	case errors.Is(err, wizard.ErrNotRestartable):
		return "This step cannot be restarted."
	}
	return err.Error()
}

// View renders the step bar, the active screen and the status line.
func (a *App) View() string {
	if a.finished {
		return style.Success.Render("✓ Thank you! Your recordings were donated.") + "\n\n" +
			style.Help.Render("Press esc to exit.") + "\n"
	}

	cur := a.cfg.Wizard.Current()
	bar := a.bar.SetCurrent(int(cur) - 1)
	for i, s := range wizard.Steps {
		bar = bar.SetDone(i, a.cfg.Wizard.IsStepCompleted(s))
	}

	var sb strings.Builder

	sb.WriteString(bar.View())
	sb.WriteString("\n\n")
	sb.WriteString(a.screen().View())
	sb.WriteString("\n\n")

	switch {
	case a.busy:
		sb.WriteString(a.spinner.Inline())
	case a.notice != "" && a.noticeErr:
		sb.WriteString(style.Error.Render(a.notice))
	case a.notice != "":
		sb.WriteString(style.Success.Render(a.notice))
	}
	sb.WriteString("\n")

	sb.WriteString(renderKeyHelp(a.keys.Next, " "))
	sb.WriteString(renderKeyHelp(a.keys.Back, " "))
	if cur == wizard.StepCrossCheck {
		sb.WriteString(renderKeyHelp(a.keys.Finish, " "))
	}
	sb.WriteString(renderKeyHelp(a.keys.Reload, " "))
	if restartable(cur) {
		sb.WriteString(renderKeyHelp(a.keys.Restart, " "))
	}
	sb.WriteString(renderKeyHelp(a.keys.Quit, "\n"))

	return sb.String()
}

// restartable reports whether the step keeps recordings that Restart discards.
func restartable(s wizard.Step) bool {
	return s == wizard.StepKeyword || s == wizard.StepSentence
}

func renderKeyHelp(keyBinding key.Binding, suffix ...string) string {
	s := style.Help.Render("[") + style.Key.Render(keyBinding.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(keyBinding.Help().Desc)

	return s + strings.Join(suffix, "")
}
