package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alkime/voicebank/internal/tui/components/labeledspinner"
	"github.com/alkime/voicebank/internal/tui/components/meter"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type micCheckDoneMsg struct {
	passed bool
	err    error
}

type micCheckKeyMap struct {
	Run key.Binding
}

// MicCheckScreen records a short sample and reports whether the microphone
// picked up speech.
type MicCheckScreen struct {
	ctx       context.Context
	ctrl      MicChecker
	history   *meter.History
	meter     meter.Model
	spinner   labeledspinner.Model
	keys      micCheckKeyMap
	threshold int

	running bool
	ran     bool
	err     error
}

// NewMicCheck creates the mic check screen. threshold is the level shown as
// the pass mark.
func NewMicCheck(ctx context.Context, ctrl MicChecker, history *meter.History, m meter.Model, threshold int) *MicCheckScreen {
	return &MicCheckScreen{
		ctx:       ctx,
		ctrl:      ctrl,
		history:   history,
		meter:     m,
		threshold: threshold,
		spinner:   labeledspinner.New(spinner.Points, "Listening...", "", ""),
		keys: micCheckKeyMap{
			Run: key.NewBinding(key.WithKeys("r", " "), key.WithHelp("space", "test microphone")),
		},
	}
}

// Init resets transient state when the step is entered.
func (m *MicCheckScreen) Init() tea.Cmd {
	m.running = false
	return nil
}

// Update starts the check and collects its result.
func (m *MicCheckScreen) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Run) && !m.running {
			m.running = true
			m.err = nil
			m.history.Reset()
			return m, tea.Batch(m.spinner.Init(), m.runCmd())
		}

	case micCheckDoneMsg:
		m.running = false
		m.ran = true
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *MicCheckScreen) runCmd() tea.Cmd {
	return func() tea.Msg {
		passed, err := m.ctrl.Run(m.ctx, m.history.Push)
		return micCheckDoneMsg{passed: passed, err: err}
	}
}

// View renders the meter and verdict.
func (m *MicCheckScreen) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Microphone check"))
	sb.WriteString("\n")
	sb.WriteString(style.Subtitle.Render("Say a few words at your normal speaking volume."))
	sb.WriteString("\n\n")

	sb.WriteString(m.meter.View())
	sb.WriteString("\n\n")

	switch {
	case m.running:
		sb.WriteString(m.spinner.Inline())
		sb.WriteString(" ")
		sb.WriteString(style.Subtitle.Render(fmt.Sprintf("level %d", m.history.Latest())))
	case m.err != nil:
		sb.WriteString(style.Error.Render("Microphone error: " + describeError(m.err)))
	case m.ctrl.Passed():
		sb.WriteString(style.Success.Render(fmt.Sprintf("✓ Microphone OK (level %d)", m.ctrl.LastLevel())))
	case m.ran:
		sb.WriteString(style.Warning.Render(fmt.Sprintf(
			"Too quiet (level %d, need above %d). Move closer and try again.", m.ctrl.LastLevel(), m.threshold)))
	default:
		sb.WriteString(style.Muted.Render("Not tested yet."))
	}

	sb.WriteString("\n\n")
	sb.WriteString(renderHelpLine(m.keys.Run))

	return sb.String()
}
