package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alkime/voicebank/internal/recording"
	"github.com/alkime/voicebank/internal/region"
	"github.com/alkime/voicebank/internal/step"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// nudgeStep is how far one key press moves a region edge, in seconds.
const nudgeStep = 0.1

// regionWidth is the column width of the span bar.
const regionWidth = 40

func renderKeyHelp(keyBinding key.Binding, suffix ...string) string {
	s := style.Help.Render("[") + style.Key.Render(keyBinding.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(keyBinding.Help().Desc)

	s += strings.Join(suffix, "")

	return s
}

// renderHelpLine renders bindings on one line.
func renderHelpLine(bindings ...key.Binding) string {
	parts := make([]string, len(bindings))
	for i, b := range bindings {
		parts[i] = renderKeyHelp(b)
	}
	return strings.Join(parts, " ")
}

// regionKeys are the span editing bindings shared by the sentence and
// cross-check screens.
type regionKeys struct {
	StartLeft  key.Binding
	StartRight key.Binding
	EndLeft    key.Binding
	EndRight   key.Binding
}

func defaultRegionKeys() regionKeys {
	return regionKeys{
		StartLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "start -0.1s")),
		StartRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "start +0.1s")),
		EndLeft:    key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "end -0.1s")),
		EndRight:   key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "end +0.1s")),
	}
}

// edit maps a key press to a selector edit. ok is false for other keys.
func (k regionKeys) edit(msg tea.KeyMsg) (fn func(*region.Selector), ok bool) {
	switch {
	case key.Matches(msg, k.StartLeft):
		return func(sel *region.Selector) { sel.Nudge(region.Start, -nudgeStep) }, true
	case key.Matches(msg, k.StartRight):
		return func(sel *region.Selector) { sel.Nudge(region.Start, nudgeStep) }, true
	case key.Matches(msg, k.EndLeft):
		return func(sel *region.Selector) { sel.Nudge(region.End, -nudgeStep) }, true
	case key.Matches(msg, k.EndRight):
		return func(sel *region.Selector) { sel.Nudge(region.End, nudgeStep) }, true
	}
	return nil, false
}

func (k regionKeys) help() string {
	return renderHelpLine(k.StartLeft, k.StartRight, k.EndLeft, k.EndRight)
}

// renderRegion draws the span over the clip as a bar with timings.
func renderRegion(start, end, duration float64) string {
	var bar strings.Builder
	if duration > 0 {
		from := int(start / duration * regionWidth)
		to := max(int(end/duration*regionWidth), from+1)
		for i := range regionWidth {
			if i >= from && i < to {
				bar.WriteRune('█')
			} else {
				bar.WriteRune('─')
			}
		}
	}

	length := end - start
	lengthStyle := style.Success
	if length > step.MaxKeywordSpan+1e-9 {
		lengthStyle = style.Error
	}

	return style.Progress.Render(bar.String()) + "\n" +
		style.Label.Render("Keyword: ") +
		fmt.Sprintf("%.2fs – %.2fs ", start, end) +
		lengthStyle.Render(fmt.Sprintf("(%.2fs", length)) +
		style.Muted.Render(fmt.Sprintf(" of %.2fs)", duration))
}

// highlightKeyword styles the first case-insensitive occurrence of keyword.
func highlightKeyword(text, keyword string) string {
	i := strings.Index(strings.ToLower(text), strings.ToLower(keyword))
	if keyword == "" || i < 0 {
		return text
	}
	return text[:i] + style.Keyword.Render(text[i:i+len(keyword)]) + text[i+len(keyword):]
}

// statusMark is the short glyph for an attempt status.
func statusMark(s recording.Status, pending bool) string {
	switch {
	case pending:
		return style.Warning.Render("↑")
	case recording.IsAccepted(s):
		return style.Success.Render("✓")
	case recording.IsRejected(s):
		return style.Error.Render("✗")
	}

	switch s.(type) {
	case recording.Recording:
		return style.Title.Render("●")
	case recording.Processing:
		return style.Subtitle.Render("…")
	}
	return " "
}

// describeError turns a controller error into a donor-facing line.
func describeError(err error) string {
	switch {
	case errors.Is(err, step.ErrUploadFailed):
		return "Upload failed. Press u to try again."
	case errors.Is(err, step.ErrSlotLocked):
		return "This repeat is already accepted."
	case errors.Is(err, step.ErrSlotBusy):
		return "Still working on this one."
	case errors.Is(err, step.ErrRegionTooLong):
		return "Keyword span must be 2 seconds or shorter."
	case errors.Is(err, step.ErrRegionEmpty):
		return "Keyword span is empty. Widen it, or skip if the keyword cannot be heard."
	case errors.Is(err, step.ErrNotReady):
		return "Not ready yet."
	}
	return err.Error()
}
