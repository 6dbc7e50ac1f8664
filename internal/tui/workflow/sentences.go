package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alkime/voicebank/internal/step"
	"github.com/alkime/voicebank/internal/tui/components/labeledspinner"
	"github.com/alkime/voicebank/internal/tui/components/meter"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/alkime/voicebank/internal/validate"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type sentenceRecordedMsg struct {
	outcome validate.Outcome
	err     error
}

type sentenceUploadedMsg struct {
	err error
}

type sentenceKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Record key.Binding
	Upload key.Binding
}

func defaultSentenceKeyMap() sentenceKeyMap {
	return sentenceKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "previous sentence")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "next sentence")),
		Record: key.NewBinding(key.WithKeys("r", " "), key.WithHelp("space", "record")),
		Upload: key.NewBinding(key.WithKeys("u", "enter"), key.WithHelp("enter", "upload")),
	}
}

// SentencesScreen records each assigned sentence and lets the donor mark the
// keyword before uploading.
type SentencesScreen struct {
	ctx     context.Context
	ctrl    SentenceRecorder
	history *meter.History
	meter   meter.Model
	spinner labeledspinner.Model
	keys    sentenceKeyMap
	region  regionKeys

	busy bool
	err  error
}

// NewSentences creates the sentence screen.
func NewSentences(ctx context.Context, ctrl SentenceRecorder, history *meter.History, m meter.Model) *SentencesScreen {
	return &SentencesScreen{
		ctx:     ctx,
		ctrl:    ctrl,
		history: history,
		meter:   m,
		spinner: labeledspinner.New(spinner.Points, "Recording...", "", ""),
		keys:    defaultSentenceKeyMap(),
		region:  defaultRegionKeys(),
	}
}

// Init resets transient state when the step is entered.
func (s *SentencesScreen) Init() tea.Cmd {
	s.busy = false
	s.err = nil
	return nil
}

// Update handles selection, recording, span edits and uploads.
func (s *SentencesScreen) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		return s, s.handleKey(msg)

	case sentenceRecordedMsg:
		s.busy = false
		s.err = msg.err
		return s, nil

	case sentenceUploadedMsg:
		s.busy = false
		s.err = msg.err
		return s, nil

	case spinner.TickMsg:
		if !s.busy {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	}

	return s, nil
}

func (s *SentencesScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if fn, ok := s.region.edit(msg); ok {
		s.err = s.ctrl.AdjustRegion(fn)
		return nil
	}

	snap := s.ctrl.Snapshot()
	n := len(snap.Sentences)

	switch {
	case key.Matches(msg, s.keys.Up):
		if n > 0 {
			s.err = s.ctrl.Select((snap.Current - 1 + n) % n)
		}
	case key.Matches(msg, s.keys.Down):
		if n > 0 {
			s.err = s.ctrl.Select((snap.Current + 1) % n)
		}
	case key.Matches(msg, s.keys.Record):
		s.history.Reset()
		return s.start("Recording...", func() tea.Msg {
			outcome, err := s.ctrl.Record(s.ctx, s.history.Push)
			return sentenceRecordedMsg{outcome: outcome, err: err}
		})
	case key.Matches(msg, s.keys.Upload):
		return s.start("Uploading...", func() tea.Msg {
			return sentenceUploadedMsg{err: s.ctrl.Upload(s.ctx)}
		})
	}

	return nil
}

func (s *SentencesScreen) start(label string, op tea.Cmd) tea.Cmd {
	s.busy = true
	s.err = nil
	s.spinner = s.spinner.WithLabel(label, "")
	return tea.Batch(s.spinner.Init(), op)
}

// View renders the sentence list, the current sentence and its span.
func (s *SentencesScreen) View() string {
	snap := s.ctrl.Snapshot()

	var sb strings.Builder

	sb.WriteString(style.Title.Render("Read each sentence aloud"))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(fmt.Sprintf("(%d/%d uploaded)", snap.Completed, len(snap.Sentences))))
	sb.WriteString("\n\n")

	if len(snap.Sentences) == 0 {
		sb.WriteString(style.Muted.Render("Loading sentences..."))
		return sb.String()
	}

	for i, v := range snap.Sentences {
		mark := statusMark(v.Status, false)
		if v.Uploaded {
			mark = style.Success.Render("↑")
		}
		line := fmt.Sprintf("%s %d. %s", mark, i+1, truncate(v.Sentence.Text, 60))
		if i == snap.Current {
			line = style.Selected.Render("› ") + line
		} else {
			line = "  " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	cur := snap.Sentences[snap.Current]
	sb.WriteString(style.Panel.Render(highlightKeyword(cur.Sentence.Text, cur.Sentence.Keyword)))
	sb.WriteString("\n")

	switch {
	case cur.Uploaded:
		sb.WriteString(style.Success.Render("✓ Uploaded"))
	case cur.Message == step.MessagePassed:
		sb.WriteString(style.Success.Render("✓ Passed. Mark the keyword, then upload."))
	case cur.Message != "":
		sb.WriteString(style.Error.Render(cur.Message))
	}
	sb.WriteString("\n\n")

	if cur.HasRegion {
		sb.WriteString(renderRegion(cur.Start, cur.End, cur.Duration))
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(s.meter.View())
		sb.WriteString("\n\n")
	}

	switch {
	case s.busy:
		sb.WriteString(s.spinner.Inline())
	case s.err != nil:
		sb.WriteString(style.Error.Render(describeError(s.err)))
	case snap.Done:
		sb.WriteString(style.Success.Render("✓ All sentences uploaded."))
	}
	sb.WriteString("\n\n")

	sb.WriteString(renderHelpLine(s.keys.Record, s.keys.Upload, s.keys.Up, s.keys.Down))
	if cur.HasRegion {
		sb.WriteString("\n")
		sb.WriteString(s.region.help())
	}

	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
