package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pdxmph/contacts/internal/contacts"
	"github.com/pdxmph/contacts/internal/validation"
)

// contactForm is the add/edit overlay. It has one text input per
// validation field, in the same order.
type contactForm struct {
	fields    []validation.Field
	inputs    []textinput.Model
	focus     int
	editingID string // empty when adding
	errors    validation.Errors
}

func newContactForm(fields []validation.Field) contactForm {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.Label
		ti.Width = 40
		ti.CharLimit = 100
		ti.Prompt = ""
		ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230"))
		ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
		inputs[i] = ti
	}
	return contactForm{fields: fields, inputs: inputs}
}

// open resets the form, prefilled from c when editing
func (f *contactForm) open(c *contacts.Contact) tea.Cmd {
	f.editingID = ""
	var values map[string]string
	if c != nil {
		f.editingID = c.ID
		values = contacts.InputFrom(*c).Values()
	}
	for i := range f.inputs {
		f.inputs[i].SetValue(values[f.fields[i].Name])
		f.inputs[i].Blur()
	}
	f.focus = -1
	f.errors = nil
	return f.focusField(0)
}

// focusField moves focus. Focusing an input clears the displayed error
// messages.
func (f *contactForm) focusField(i int) tea.Cmd {
	if i < 0 || i >= len(f.inputs) || i == f.focus {
		return nil
	}
	if f.focus >= 0 {
		f.inputs[f.focus].Blur()
	}
	f.focus = i
	f.errors = nil
	return f.inputs[i].Focus()
}

func (f *contactForm) next() tea.Cmd {
	return f.focusField(f.focus + 1)
}

func (f *contactForm) prev() tea.Cmd {
	return f.focusField(f.focus - 1)
}

func (f *contactForm) onLastField() bool {
	return f.focus == len(f.inputs)-1
}

func (f *contactForm) isEditing() bool {
	return f.editingID != ""
}

// updateInput forwards a key to the focused input
func (f *contactForm) updateInput(msg tea.Msg) tea.Cmd {
	if f.focus < 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *contactForm) setWidth(w int) {
	for i := range f.inputs {
		f.inputs[i].Width = w
	}
}

// input collects the current values
func (f contactForm) input() contacts.Input {
	values := make(map[string]string, len(f.inputs))
	for i, ti := range f.inputs {
		values[f.fields[i].Name] = ti.Value()
	}
	return contacts.Input{
		Name:        values[validation.FieldName],
		Surname:     values[validation.FieldSurname],
		Email:       values[validation.FieldEmail],
		PhoneNumber: values[validation.FieldPhoneNumber],
	}
}
