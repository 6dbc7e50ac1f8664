package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alkime/voicebank/internal/recording"
	"github.com/alkime/voicebank/internal/tui/components/labeledspinner"
	"github.com/alkime/voicebank/internal/tui/components/meter"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type keywordDoneMsg struct {
	slot   int
	status recording.Status
	err    error
}

type keywordKeyMap struct {
	Left        key.Binding
	Right       key.Binding
	Record      key.Binding
	RetryUpload key.Binding
	Discard     key.Binding
	Next        key.Binding
}

func defaultKeywordKeyMap() keywordKeyMap {
	return keywordKeyMap{
		Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous repeat")),
		Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next repeat")),
		Record:      key.NewBinding(key.WithKeys("r", " "), key.WithHelp("space", "record")),
		RetryUpload: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "retry upload")),
		Discard:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discard")),
		Next:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next keyword")),
	}
}

// KeywordsScreen records fixed repeats of each keyword.
type KeywordsScreen struct {
	ctx     context.Context
	ctrl    KeywordRecorder
	history *meter.History
	meter   meter.Model
	spinner labeledspinner.Model
	keys    keywordKeyMap

	slot int
	busy bool
	err  error
}

// NewKeywords creates the keyword screen.
func NewKeywords(ctx context.Context, ctrl KeywordRecorder, history *meter.History, m meter.Model) *KeywordsScreen {
	return &KeywordsScreen{
		ctx:     ctx,
		ctrl:    ctrl,
		history: history,
		meter:   m,
		spinner: labeledspinner.New(spinner.Points, "Recording...", "", ""),
		keys:    defaultKeywordKeyMap(),
	}
}

// Init resets transient state when the step is entered.
func (k *KeywordsScreen) Init() tea.Cmd {
	k.busy = false
	k.err = nil
	k.slot = k.firstOpenSlot()
	return nil
}

// Update handles slot selection and recording.
func (k *KeywordsScreen) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		if k.busy {
			return k, nil
		}
		return k, k.handleKey(msg)

	case keywordDoneMsg:
		k.busy = false
		k.err = msg.err
		if msg.err == nil && recording.IsAccepted(msg.status) {
			k.slot = k.firstOpenSlot()
		}
		return k, nil

	case spinner.TickMsg:
		if !k.busy {
			return k, nil
		}
		var cmd tea.Cmd
		k.spinner, cmd = k.spinner.Update(msg)
		return k, cmd
	}

	return k, nil
}

func (k *KeywordsScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	snap := k.ctrl.Snapshot()
	slots := len(snap.Slots)

	switch {
	case key.Matches(msg, k.keys.Left):
		if slots > 0 {
			k.slot = (k.slot - 1 + slots) % slots
		}
	case key.Matches(msg, k.keys.Right):
		if slots > 0 {
			k.slot = (k.slot + 1) % slots
		}
	case key.Matches(msg, k.keys.Record):
		k.history.Reset()
		return k.start("Recording...", func(slot int) (recording.Status, error) {
			return k.ctrl.Record(k.ctx, slot, k.history.Push)
		})
	case key.Matches(msg, k.keys.RetryUpload):
		return k.start("Uploading...", func(slot int) (recording.Status, error) {
			return k.ctrl.RetryUpload(k.ctx, slot)
		})
	case key.Matches(msg, k.keys.Discard):
		k.err = k.ctrl.Retry(k.slot)
	case key.Matches(msg, k.keys.Next):
		k.err = k.ctrl.Next()
		if k.err == nil {
			k.slot = k.firstOpenSlot()
		}
	}

	return nil
}

func (k *KeywordsScreen) start(label string, op func(slot int) (recording.Status, error)) tea.Cmd {
	k.busy = true
	k.err = nil
	k.spinner = k.spinner.WithLabel(label, "")
	slot := k.slot

	return tea.Batch(k.spinner.Init(), func() tea.Msg {
		status, err := op(slot)
		return keywordDoneMsg{slot: slot, status: status, err: err}
	})
}

// firstOpenSlot returns the first slot not yet accepted, or 0.
func (k *KeywordsScreen) firstOpenSlot() int {
	for i, s := range k.ctrl.Snapshot().Slots {
		if !recording.IsAccepted(s.Status) || s.PendingUpload {
			return i
		}
	}
	return 0
}

// View renders the keyword, its repeats and the meter.
func (k *KeywordsScreen) View() string {
	snap := k.ctrl.Snapshot()

	var sb strings.Builder

	sb.WriteString(style.Title.Render(fmt.Sprintf("Keyword %d of %d", snap.Index+1, snap.Total)))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(fmt.Sprintf("(%d/%d repeats done)", snap.Completed, snap.Required)))
	sb.WriteString("\n\n")

	if snap.Keyword.Text == "" {
		sb.WriteString(style.Muted.Render("Loading keywords..."))
		return sb.String()
	}

	sb.WriteString(style.Panel.Render(snap.Keyword.Text))
	sb.WriteString("\n\n")

	for i, slot := range snap.Slots {
		cell := fmt.Sprintf("[%s]", statusMark(slot.Status, slot.PendingUpload))
		if i == k.slot {
			cell = style.Selected.Render(fmt.Sprintf("%d", i+1)) + cell
		} else {
			cell = style.Muted.Render(fmt.Sprintf("%d", i+1)) + cell
		}
		sb.WriteString(cell)
		sb.WriteString(" ")
	}
	sb.WriteString("\n")

	if k.slot < len(snap.Slots) {
		sel := snap.Slots[k.slot]
		sb.WriteString(style.Subtitle.Render(fmt.Sprintf("Repeat %d: ", k.slot+1)))
		sb.WriteString(describeSlot(sel.Status, sel.PendingUpload))
	}
	sb.WriteString("\n\n")

	sb.WriteString(k.meter.View())
	sb.WriteString("\n\n")

	switch {
	case k.busy:
		sb.WriteString(k.spinner.Inline())
	case k.err != nil:
		sb.WriteString(style.Error.Render(describeError(k.err)))
	case snap.Done:
		sb.WriteString(style.Success.Render("✓ All keywords recorded."))
	}
	sb.WriteString("\n\n")

	sb.WriteString(renderHelpLine(k.keys.Record, k.keys.Left, k.keys.Right))
	sb.WriteString("\n")
	sb.WriteString(renderHelpLine(k.keys.Discard, k.keys.RetryUpload, k.keys.Next))

	return sb.String()
}

func describeSlot(s recording.Status, pending bool) string {
	if pending {
		return style.Warning.Render("accepted locally, upload pending")
	}
	switch st := s.(type) {
	case recording.Accepted:
		return style.Success.Render("accepted")
	case recording.Rejected:
		return style.Error.Render("rejected: " + st.Reason)
	case recording.Recording:
		return style.Title.Render("recording")
	case recording.Processing:
		return style.Subtitle.Render("checking")
	}
	return style.Muted.Render("not recorded")
}
