package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alkime/voicebank/internal/tui/components/labeledspinner"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type reviewSentMsg struct {
	err error
}

type crossCheckKeyMap struct {
	Submit key.Binding
	Skip   key.Binding
}

// CrossCheckScreen shows other donors' recordings for the donor to mark.
type CrossCheckScreen struct {
	ctx     context.Context
	ctrl    Reviewer
	baseURL string
	spinner labeledspinner.Model
	keys    crossCheckKeyMap
	region  regionKeys

	busy bool
	err  error
}

// NewCrossCheck creates the review screen. baseURL prefixes relative audio
// links so the donor can open them.
func NewCrossCheck(ctx context.Context, ctrl Reviewer, baseURL string) *CrossCheckScreen {
	return &CrossCheckScreen{
		ctx:     ctx,
		ctrl:    ctrl,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		spinner: labeledspinner.New(spinner.Points, "Sending review...", "", ""),
		keys: crossCheckKeyMap{
			Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit span")),
			Skip:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "unclear, skip")),
		},
		region: defaultRegionKeys(),
	}
}

// Init resets transient state when the step is entered.
func (c *CrossCheckScreen) Init() tea.Cmd {
	c.busy = false
	c.err = nil
	return nil
}

// Update handles span edits and review submission.
func (c *CrossCheckScreen) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		if c.busy {
			return c, nil
		}
		return c, c.handleKey(msg)

	case reviewSentMsg:
		c.busy = false
		c.err = msg.err
		return c, nil

	case spinner.TickMsg:
		if !c.busy {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd
	}

	return c, nil
}

func (c *CrossCheckScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if c.ctrl.Exhausted() {
		return nil
	}

	if fn, ok := c.region.edit(msg); ok {
		c.err = c.ctrl.AdjustRegion(fn)
		return nil
	}

	switch {
	case key.Matches(msg, c.keys.Submit):
		return c.send(c.ctrl.Submit)
	case key.Matches(msg, c.keys.Skip):
		return c.send(c.ctrl.Skip)
	}

	return nil
}

func (c *CrossCheckScreen) send(op func(context.Context) error) tea.Cmd {
	c.busy = true
	c.err = nil
	return tea.Batch(c.spinner.Init(), func() tea.Msg {
		return reviewSentMsg{err: op(c.ctx)}
	})
}

// View renders the item under review.
func (c *CrossCheckScreen) View() string {
	reviewed, total := c.ctrl.Progress()

	var sb strings.Builder

	sb.WriteString(style.Title.Render("Check other donors' recordings"))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(fmt.Sprintf("(%d/%d reviewed)", reviewed, total)))
	sb.WriteString("\n\n")

	item, start, end, ok := c.ctrl.Current()
	if !ok {
		sb.WriteString(style.Success.Render("✓ Nothing left to review. Press ctrl+f to finish."))
		if c.err != nil {
			sb.WriteString("\n")
			sb.WriteString(style.Error.Render(describeError(c.err)))
		}
		return sb.String()
	}

	sb.WriteString(style.Panel.Render(highlightKeyword(item.Text, item.Keyword)))
	sb.WriteString("\n")

	audioURL := item.AudioURL
	if strings.HasPrefix(audioURL, "/") {
		audioURL = c.baseURL + audioURL
	}
	sb.WriteString(style.Label.Render("Audio: "))
	sb.WriteString(style.Muted.Render(audioURL))
	sb.WriteString("\n")
	sb.WriteString(style.Subtitle.Render(fmt.Sprintf("Mark where %q is spoken.", item.Keyword)))
	sb.WriteString("\n\n")

	sb.WriteString(renderRegion(start, end, item.Duration))
	sb.WriteString("\n\n")

	switch {
	case c.busy:
		sb.WriteString(c.spinner.Inline())
	case c.err != nil:
		sb.WriteString(style.Error.Render(describeError(c.err)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(renderHelpLine(c.keys.Submit, c.keys.Skip))
	sb.WriteString("\n")
	sb.WriteString(c.region.help())

	return sb.String()
}
