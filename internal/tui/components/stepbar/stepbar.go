// Package stepbar renders the wizard's step breadcrumb and overall progress.
package stepbar

import (
	"fmt"
	"strings"

	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/alkime/voicebank/pkg/uictl"
	"github.com/charmbracelet/bubbles/progress"
)

const (
	markDone    = "✓"
	markCurrent = "›"
	markPending = "·"
)

// Model shows every step with its completion mark and a progress bar fed by
// a percent dial.
type Model struct {
	names    []string
	current  int
	done     []bool
	percent  uictl.CappedDial[int]
	progress progress.Model
}

// New creates a step bar. percent reports overall progress against its cap.
func New(names []string, percent uictl.CappedDial[int], width int) Model {
	return Model{
		names:   names,
		done:    make([]bool, len(names)),
		percent: percent,
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(max(width, 10)),
			progress.WithoutPercentage(),
		),
	}
}

// SetCurrent marks step i as active.
func (m Model) SetCurrent(i int) Model {
	if i >= 0 && i < len(m.names) {
		m.current = i
	}
	return m
}

// SetDone records whether step i is complete.
func (m Model) SetDone(i int, done bool) Model {
	if i >= 0 && i < len(m.done) {
		m.done = append([]bool(nil), m.done...)
		m.done[i] = done
	}
	return m
}

// Current returns the active step index.
func (m Model) Current() int {
	return m.current
}

// View renders the breadcrumb above the progress bar.
func (m Model) View() string {
	crumbs := make([]string, len(m.names))
	for i, name := range m.names {
		label := fmt.Sprintf("%d %s", i+1, name)
		switch {
		case i == m.current:
			crumbs[i] = style.Selected.Render(markCurrent + " " + label)
		case m.done[i]:
			crumbs[i] = style.Success.Render(markDone + " " + label)
		default:
			crumbs[i] = style.Muted.Render(markPending + " " + label)
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(crumbs, "  "))

	if m.percent != nil {
		cur, capValue := m.percent.Cap()
		ratio := 0.0
		if capValue > 0 {
			ratio = float64(cur) / float64(capValue)
		}
		sb.WriteString("\n")
		sb.WriteString(m.progress.ViewAs(ratio))
		sb.WriteString(" ")
		sb.WriteString(style.Subtitle.Render(fmt.Sprintf("%d%%", cur)))
	}

	return sb.String()
}
