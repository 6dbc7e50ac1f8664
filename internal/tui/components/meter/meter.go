// Package meter provides a TUI component that draws recent microphone
// amplitude as a scrolling bar chart.
package meter

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/voicebank/internal/audio"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/alkime/voicebank/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Block characters for amplitude visualization (8 levels, bottom to top).
// Index 0 = empty (space), 1-8 = increasing fill levels.
const blockChars = " ▁▂▃▄▅▆▇█"

// maxAmplitude is the top of the 0..100 amplitude scale.
const maxAmplitude = 100

// TickMsg triggers a meter redraw.
type TickMsg struct{}

// History keeps the most recent amplitude readings. Push is safe to call from
// the capture goroutine while the UI reads.
type History struct {
	buf  *audio.RingBuffer[int]
	size int
}

// NewHistory creates a history holding the last size readings.
func NewHistory(size int) *History {
	size = max(size, 1)
	return &History{buf: audio.NewRingBuffer[int](size), size: size}
}

// Push records one amplitude reading.
func (h *History) Push(level int) {
	h.buf.Write(level)
}

// Read returns the readings oldest first. It satisfies uictl.Levels[int].
func (h *History) Read() []int {
	return h.buf.ReadSamples(h.size)
}

// Latest returns the newest reading, or 0 when empty.
func (h *History) Latest() int {
	last := h.buf.ReadSamples(1)
	if len(last) == 0 {
		return 0
	}
	return last[0]
}

// Reset clears the history.
func (h *History) Reset() {
	h.buf.Reset()
}

// Model draws amplitude readings as vertical bars (left=older,
// right=newer). Readings are on the 0..100 scale reported by capture.
type Model struct {
	levels uictl.Levels[int]
	width  int
	height int
}

// New creates a meter width columns wide and height rows tall.
func New(levels uictl.Levels[int], width, height int) Model {
	return Model{
		levels: levels,
		width:  max(width, 1),
		height: max(height, 1),
	}
}

// Init returns the initial tick command.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles tick messages for animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, m.tick()
	}

	return m, nil
}

// View renders the meter.
func (m Model) View() string {
	if m.levels == nil {
		return m.renderEmpty()
	}

	readings := m.levels.Read()
	if len(readings) == 0 {
		return m.renderEmpty()
	}

	return m.renderBars(readings)
}

// tick schedules the next redraw at ~20 FPS.
func (m Model) tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// renderBars right-aligns the newest readings, one column each.
func (m Model) renderBars(readings []int) string {
	if len(readings) > m.width {
		readings = readings[len(readings)-m.width:]
	}

	cols := make([]int, m.width)
	offset := m.width - len(readings)
	for i, r := range readings {
		cols[offset+i] = columnLevel(r, m.height*8)
	}

	runes := []rune(blockChars)

	var sb strings.Builder
	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		var rowSB strings.Builder
		for _, level := range cols {
			rowSB.WriteRune(runes[m.blockIndexForRow(level, row)])
		}

		sb.WriteString(style.Progress.Render(rowSB.String()))
	}

	return sb.String()
}

// blockIndexForRow returns the block character index (0-8) for a column level
// at a row. Row 0 is the top.
func (m Model) blockIndexForRow(level, row int) int {
	rowFromBottom := m.height - 1 - row
	fill := level - rowFromBottom*8

	switch {
	case fill <= 0:
		return 0
	case fill >= 8:
		return 8
	default:
		return fill
	}
}

// renderEmpty draws a baseline on the bottom row.
func (m Model) renderEmpty() string {
	var sb strings.Builder

	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		fill := " "
		if row == m.height-1 {
			fill = "▁"
		}
		sb.WriteString(style.Muted.Render(strings.Repeat(fill, m.width)))
	}

	return sb.String()
}

// columnLevel maps a 0..100 amplitude to 0..maxLevel. The square root keeps
// quiet speech visible.
func columnLevel(amp, maxLevel int) int {
	if amp <= 0 {
		return 0
	}
	amp = min(amp, maxAmplitude)

	scaled := math.Sqrt(float64(amp)/maxAmplitude) * float64(maxLevel)
	return min(int(math.Ceil(scaled)), maxLevel)
}
