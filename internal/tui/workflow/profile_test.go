package workflow

import (
	"testing"

	"github.com/alkime/voicebank/internal/api"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(p *ProfileScreen, s string) {
	for _, r := range s {
		_, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestProfileScreen_FillAndSubmit(t *testing.T) {
	t.Parallel()

	p := NewProfile(api.Profile{})

	typeText(p, "Ada")
	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(p, "+15551234567")
	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	typeText(p, "female")
	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	typeText(p, "1990")
	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(p, "North")

	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(SubmitProfileMsg)
	require.True(t, ok)
	assert.Equal(t, api.Profile{
		Name:      "Ada",
		Phone:     "+15551234567",
		Gender:    "female",
		BirthYear: 1990,
		Region:    "North",
	}, msg.Form)
}

func TestProfileScreen_PrefillAndFocusWrap(t *testing.T) {
	t.Parallel()

	form := api.Profile{Name: "Lin", Phone: "+4420", Gender: "other", BirthYear: 1975, Region: "West"}
	p := NewProfile(form)

	assert.Equal(t, form, p.Form())

	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, fieldRegion, p.focus)

	_, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, fieldBirthYear, p.focus)

	p.SetForm(api.Profile{})
	assert.Equal(t, api.Profile{}, p.Form())
}

func TestProfileScreen_Resume(t *testing.T) {
	t.Parallel()

	p := NewProfile(api.Profile{Phone: " +15550001111 "})

	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)

	msg, ok := cmd().(ResumeMsg)
	require.True(t, ok)
	assert.Equal(t, "+15550001111", msg.Phone)
}

func TestProfileScreen_View(t *testing.T) {
	t.Parallel()

	p := NewProfile(api.Profile{Name: "Ada"})
	view := p.View()

	assert.Contains(t, view, "Tell us about yourself")
	assert.Contains(t, view, "Birth year")
	assert.Contains(t, view, "Ada")
}
