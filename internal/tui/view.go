package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230"))

	favoriteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("70"))

	activeActionStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("63")).
				Foreground(lipgloss.Color("230")).
				Padding(0, 1)

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

var actionLabels = [actionCount]string{"Edit", "Delete", "Select"}

// View renders the whole screen from the current state
func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit, any other key to continue.", m.err)
	}

	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	switch m.mode {
	case modeForm:
		return m.renderForm()
	case modeConfirm:
		return m.renderConfirmation()
	}

	list := m.renderList(m.width-2, m.height-3)
	content := borderStyle.Width(m.width - 2).Height(m.height - 3).Render(list)

	return lipgloss.JoinVertical(lipgloss.Left, content, m.renderHelp())
}

// renderList renders the contact table, with the action menu under the
// row it belongs to
func (m Model) renderList(width, height int) string {
	var lines []string

	if m.mode == modeFilter || m.filter.Value() != "" {
		filterView := m.filter.View()
		if filterView == "" {
			filterView = "> " + m.filter.Placeholder
		}
		lines = append(lines, filterView, "")
		height -= 2
	}

	st := m.store.Snapshot()
	visible := m.visibleContacts()

	header := fmt.Sprintf("Contacts (%d)", len(visible))
	var indicators []string
	if m.favoritesOnly {
		indicators = append(indicators, "favorites")
	}
	if st.IsSelecting {
		indicators = append(indicators, fmt.Sprintf("selecting: %d", len(st.Selected)))
	}
	if len(indicators) > 0 {
		header += " [" + strings.Join(indicators, ", ") + "]"
	}
	lines = append(lines, header, strings.Repeat("─", max(0, width-2)))

	if len(visible) == 0 {
		if len(st.Contacts) == 0 {
			lines = append(lines, labelStyle.Render("No contacts yet. Press a to add one."))
		} else {
			lines = append(lines, labelStyle.Render("No matching contacts."))
		}
		return strings.Join(lines, "\n")
	}

	// Keep the cursor row in view; the menu line takes one row
	visibleHeight := height - 3
	if m.mode == modeTooltip {
		visibleHeight--
	}
	visibleHeight = max(1, visibleHeight)
	startIdx := 0
	if m.selected >= visibleHeight {
		startIdx = m.selected - visibleHeight + 1
	}

	for i := startIdx; i < len(visible) && i < startIdx+visibleHeight; i++ {
		c := visible[i]

		var line string
		if st.IsSelecting {
			if st.Selected.Has(c.ID) {
				line = "[x] "
			} else {
				line = "[ ] "
			}
		}

		star := "  "
		if st.Favorites.Has(c.ID) {
			star = "★ "
		}

		line += star + c.FullName()
		line += " " + labelStyle.Render("<"+c.Email+">")
		if c.PhoneNumber != "" {
			line += " " + labelStyle.Render(c.PhoneNumber)
		}

		if i == m.selected {
			line = selectedStyle.Render(line)
		} else if st.Favorites.Has(c.ID) {
			line = strings.Replace(line, "★", favoriteStyle.Render("★"), 1)
		}
		lines = append(lines, line)

		if m.mode == modeTooltip && m.tooltip.contactID == c.ID {
			lines = append(lines, "    "+m.renderTooltip())
		}
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderTooltip() string {
	parts := make([]string, 0, actionCount)
	for i, label := range actionLabels {
		if i == ActionSelect && m.store.IsSelected(m.tooltip.contactID) {
			label = "Deselect"
		}
		if i == m.tooltip.action {
			parts = append(parts, activeActionStyle.Render(label))
		} else {
			parts = append(parts, actionStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

// renderHelp renders the help line, with the last status message if any
func (m Model) renderHelp() string {
	var help string
	switch m.mode {
	case modeFilter:
		help = " Type to filter • ↑/↓: navigate • Enter: apply • Esc: clear"
	case modeTooltip:
		help = " ←/→: choose action • Enter: run • ↑/↓: move • Esc: close"
	default:
		if m.store.Snapshot().IsSelecting {
			help = " x: toggle • D: delete selected • v/Esc: stop selecting • q: quit"
		} else {
			help = " j/k: navigate • Enter: actions • a: add • e: edit • d: delete • f: favorite • F: favorites • v: select • /: filter • q: quit"
		}
	}

	if m.status != "" {
		return statusStyle.Render(" "+m.status) + " │" + help
	}
	return help
}

// renderForm renders the add/edit form overlay
func (m Model) renderForm() string {
	var lines []string
	if m.form.isEditing() {
		title := "Edit Contact"
		if c, ok := m.store.Get(m.form.editingID); ok {
			title += ": " + c.FullName()
		}
		lines = append(lines, title)
	} else {
		lines = append(lines, "New Contact")
	}
	lines = append(lines, strings.Repeat("─", 40), "")

	labelWidth := 0
	for _, f := range m.form.fields {
		labelWidth = max(labelWidth, len(f.Label))
	}

	for i, f := range m.form.fields {
		label := fmt.Sprintf("%-*s  ", labelWidth+1, f.Label+":")

		var fieldView string
		if i == m.form.focus {
			fieldView = label + m.form.inputs[i].View()
		} else {
			value := m.form.inputs[i].Value()
			if value == "" {
				value = labelStyle.Render(m.form.inputs[i].Placeholder)
			}
			fieldView = label + value
		}
		lines = append(lines, fieldView)

		if msg, ok := m.form.errors[f.Name]; ok {
			lines = append(lines, strings.Repeat(" ", len(label))+errorStyle.Render(msg))
		} else {
			lines = append(lines, "")
		}
	}

	lines = append(lines, "", "Tab/↓: next field • Shift+Tab/↑: previous • Ctrl+S: save • Esc: cancel")

	box := borderStyle.
		Padding(1).
		Width(min(70, max(40, m.width-4))).
		Render(strings.Join(lines, "\n"))

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(box)
}

// renderConfirmation renders the delete confirmation prompt
func (m Model) renderConfirmation() string {
	var prompt string
	if m.confirm.bulk {
		n := len(m.confirm.ids)
		prompt = fmt.Sprintf("Delete %d selected contact%s? (y/n)", n, plural(n))
	} else {
		var name string
		if len(m.confirm.ids) > 0 {
			if c, ok := m.store.Get(m.confirm.ids[0]); ok {
				name = c.FullName()
			}
		}
		prompt = fmt.Sprintf("Delete contact '%s'? (y/n)", name)
	}

	width := 60
	height := 7

	content := lipgloss.NewStyle().
		Width(width-4).
		Height(height-4).
		Align(lipgloss.Center, lipgloss.Center).
		Render(prompt)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(width).
		Height(height).
		Render(content)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(box)
}
