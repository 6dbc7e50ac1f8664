package workflow

import (
	"strconv"
	"strings"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// SubmitProfileMsg asks the app to save the form and move to the next step.
type SubmitProfileMsg struct {
	Form api.Profile
}

// ResumeMsg asks the app to resume an in-progress session by phone.
type ResumeMsg struct {
	Phone string
}

const (
	fieldName = iota
	fieldPhone
	fieldGender
	fieldBirthYear
	fieldRegion
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:      "Name",
	fieldPhone:     "Phone",
	fieldGender:    "Gender",
	fieldBirthYear: "Birth year",
	fieldRegion:    "Region",
}

type profileKeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
	Resume    key.Binding
}

func defaultProfileKeyMap() profileKeyMap {
	return profileKeyMap{
		NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue")),
		Resume:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "resume by phone")),
	}
}

// ProfileScreen is the donor form.
type ProfileScreen struct {
	keys   profileKeyMap
	inputs [fieldCount]textinput.Model
	focus  int
}

// NewProfile creates the form, prefilled from form.
func NewProfile(form api.Profile) *ProfileScreen {
	p := &ProfileScreen{keys: defaultProfileKeyMap()}

	placeholders := [fieldCount]string{
		fieldName:      "Full name",
		fieldPhone:     "+15551234567",
		fieldGender:    "male / female / other",
		fieldBirthYear: "1990",
		fieldRegion:    "Region",
	}
	for i := range p.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.CharLimit = 64
		in.Width = 32
		p.inputs[i] = in
	}
	p.inputs[fieldBirthYear].CharLimit = 4

	p.SetForm(form)
	p.inputs[p.focus].Focus()

	return p
}

// SetForm replaces the field values.
func (p *ProfileScreen) SetForm(form api.Profile) {
	p.inputs[fieldName].SetValue(form.Name)
	p.inputs[fieldPhone].SetValue(form.Phone)
	p.inputs[fieldGender].SetValue(form.Gender)
	p.inputs[fieldRegion].SetValue(form.Region)
	if form.BirthYear != 0 {
		p.inputs[fieldBirthYear].SetValue(strconv.Itoa(form.BirthYear))
	} else {
		p.inputs[fieldBirthYear].SetValue("")
	}
}

// Form returns the current field values. An unparseable birth year is 0 and
// fails validation downstream.
func (p *ProfileScreen) Form() api.Profile {
	year, _ := strconv.Atoi(strings.TrimSpace(p.inputs[fieldBirthYear].Value()))
	return api.Profile{
		Name:      p.inputs[fieldName].Value(),
		Phone:     p.inputs[fieldPhone].Value(),
		Gender:    p.inputs[fieldGender].Value(),
		BirthYear: year,
		Region:    p.inputs[fieldRegion].Value(),
	}
}

// Init starts the cursor blink.
func (p *ProfileScreen) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles field navigation and typing.
func (p *ProfileScreen) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := teaMsg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, p.keys.NextField):
			return p, p.setFocus(p.focus + 1)
		case key.Matches(km, p.keys.PrevField):
			return p, p.setFocus(p.focus - 1)
		case key.Matches(km, p.keys.Resume):
			phone := strings.TrimSpace(p.inputs[fieldPhone].Value())
			return p, func() tea.Msg { return ResumeMsg{Phone: phone} }
		case key.Matches(km, p.keys.Submit):
			if p.focus < fieldCount-1 {
				return p, p.setFocus(p.focus + 1)
			}
			form := p.Form()
			return p, func() tea.Msg { return SubmitProfileMsg{Form: form} }
		}
	}

	var cmd tea.Cmd
	p.inputs[p.focus], cmd = p.inputs[p.focus].Update(teaMsg)

	return p, cmd
}

func (p *ProfileScreen) setFocus(i int) tea.Cmd {
	i = (i + fieldCount) % fieldCount
	p.inputs[p.focus].Blur()
	p.focus = i
	return p.inputs[p.focus].Focus()
}

// View renders the form.
func (p *ProfileScreen) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Tell us about yourself"))
	sb.WriteString("\n\n")

	for i, in := range p.inputs {
		label := style.Label.Render(padRight(fieldLabels[i], 12))
		if i == p.focus {
			label = style.Selected.Render(padRight(fieldLabels[i], 12))
		}
		sb.WriteString(label)
		sb.WriteString(in.View())
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(renderHelpLine(p.keys.NextField, p.keys.Submit, p.keys.Resume))

	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
