package meter_test

import (
	"strings"
	"testing"

	"github.com/alkime/voicebank/internal/tui/components/meter"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// fixedLevels implements uictl.Levels[int] for testing.
type fixedLevels []int

func (f fixedLevels) Read() []int {
	return f
}

func TestMeter_EmptyView(t *testing.T) {
	t.Parallel()

	m := meter.New(fixedLevels(nil), 5, 1)
	assert.Equal(t, "▁▁▁▁▁", m.View())
}

func TestMeter_NilLevels(t *testing.T) {
	t.Parallel()

	m := meter.New(nil, 5, 2)
	assert.Equal(t, "     \n▁▁▁▁▁", m.View())
}

func TestMeter_Silence(t *testing.T) {
	t.Parallel()

	m := meter.New(fixedLevels{0, 0, 0, 0, 0}, 5, 1)
	assert.Equal(t, "     ", m.View())
}

func TestMeter_FullScale(t *testing.T) {
	t.Parallel()

	m := meter.New(fixedLevels{100, 100, 100, 100, 100}, 5, 2)
	assert.Equal(t, "█████\n█████", m.View())
}

func TestMeter_NewestOnTheRight(t *testing.T) {
	t.Parallel()

	m := meter.New(fixedLevels{100, 100}, 5, 1)
	assert.Equal(t, "   ██", m.View())
}

func TestMeter_KeepsLastWidthReadings(t *testing.T) {
	t.Parallel()

	m := meter.New(fixedLevels{100, 100, 100, 0, 0, 0}, 3, 1)
	assert.Equal(t, "   ", m.View(), "oldest readings scroll off the left edge")
}

func TestMeter_QuietSpeechIsVisible(t *testing.T) {
	t.Parallel()

	m := meter.New(fixedLevels{1, 25, 100}, 3, 1)
	runes := []rune(m.View())
	require.Len(t, runes, 3)
	assert.NotEqual(t, ' ', runes[0], "a reading of 1 should still draw a bar")
	assert.Less(t, strings.IndexRune(" ▁▂▃▄▅▆▇█", runes[0]), strings.IndexRune(" ▁▂▃▄▅▆▇█", runes[1]))
	assert.Equal(t, '█', runes[2])
}

func TestHistory(t *testing.T) {
	t.Parallel()

	h := meter.NewHistory(3)
	assert.Empty(t, h.Read())
	assert.Zero(t, h.Latest())

	for _, v := range []int{10, 20, 30, 40} {
		h.Push(v)
	}
	assert.Equal(t, []int{20, 30, 40}, h.Read())
	assert.Equal(t, 40, h.Latest())

	h.Reset()
	assert.Empty(t, h.Read())
}
