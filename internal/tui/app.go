package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/pdxmph/contacts/internal/contacts"
	"github.com/pdxmph/contacts/internal/storage"
	"github.com/pdxmph/contacts/internal/validation"
)

type mode int

const (
	modeList mode = iota
	modeFilter
	modeForm
	modeTooltip
	modeConfirm
)

// Tooltip actions, in display order
const (
	ActionEdit = iota
	ActionDelete
	ActionSelect
	actionCount
)

// tooltip is the action menu anchored to one contact. It is keyed by
// contact id, not by row, so a re-render never moves it to another
// contact.
type tooltip struct {
	contactID string
	action    int
}

// confirmation is a pending delete waiting for y/n
type confirmation struct {
	ids  []string
	bulk bool
}

// storageChangedMsg reports a write to storage by another process
type storageChangedMsg struct{}

// Model represents the main application state
type Model struct {
	ctx   context.Context
	store *contacts.Store
	log   *zap.SugaredLogger

	confirmDelete bool

	width  int
	height int
	mode   mode

	// Row under the cursor, kept both as an index into the visible rows
	// and as the contact id it points at
	selected   int
	selectedID string

	filter        textinput.Model
	favoritesOnly bool

	form    contactForm
	tooltip tooltip
	confirm confirmation

	changes <-chan struct{}
	status  string
	err     error
}

// Options configures the UI
type Options struct {
	ConfirmDelete bool
	Logger        *zap.SugaredLogger
}

// New creates a new application model. When the store's backend can
// report external changes the model subscribes to them until ctx is done.
func New(ctx context.Context, store *contacts.Store, opts Options) (Model, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	// Setup filter input
	ti := textinput.New()
	ti.Placeholder = "Filter contacts..."
	ti.Width = 30
	ti.CharLimit = 50
	ti.Prompt = "> "
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230"))
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	m := Model{
		ctx:           ctx,
		store:         store,
		log:           log.Named("tui"),
		confirmDelete: opts.ConfirmDelete,
		filter:        ti,
		form:          newContactForm(validation.Contact.Fields()),
	}

	if w, ok := store.Backend().(storage.Watcher); ok {
		changes, err := w.Watch(ctx, store.Key())
		if err != nil {
			return Model{}, fmt.Errorf("watching storage: %w", err)
		}
		m.changes = changes
	}

	m.syncSelection()
	return m, nil
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storageChangedMsg{}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 0 {
			m.filter.Width = m.width/2 - 4
			m.form.setWidth(min(40, m.width-30))
		}
		return m, nil

	case storageChangedMsg:
		m.reconcile()
		return m, waitForChange(m.changes)

	case tea.KeyMsg:
		if m.err != nil {
			if msg.String() == "q" || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			// Any other key dismisses the error
			m.err = nil
			return m, nil
		}
		m.status = ""

		switch m.mode {
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeForm:
			return m.updateForm(msg)
		case modeTooltip:
			return m.updateTooltip(msg)
		case modeFilter:
			return m.updateFilter(msg)
		default:
			return m.updateList(msg)
		}
	}

	return m, nil
}

// updateList handles keys in normal mode
func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		m.moveCursor(1)

	case "k", "up":
		m.moveCursor(-1)

	case "/":
		m.mode = modeFilter
		m.filter.Reset()
		m.filter.Focus()
		return m, textinput.Blink

	case "esc":
		// Clear filter first, then leave select mode
		if m.filter.Value() != "" {
			m.filter.Reset()
			m.syncSelection()
			return m, nil
		}
		if m.store.Snapshot().IsSelecting {
			m.setErr(m.store.SetSelecting(m.ctx, false))
		}

	case "F":
		m.favoritesOnly = !m.favoritesOnly
		m.syncSelection()

	case "a":
		return m.openForm(nil)

	case "e":
		if c, ok := m.current(); ok {
			return m.openForm(&c)
		}

	case "d":
		if c, ok := m.current(); ok {
			return m.requestDelete(c.ID)
		}

	case "f":
		if c, ok := m.current(); ok {
			on, err := m.store.ToggleFavorite(m.ctx, c.ID)
			if m.setErr(err) {
				return m, nil
			}
			if on {
				m.status = fmt.Sprintf("Added %s to favorites", c.FullName())
			} else {
				m.status = fmt.Sprintf("Removed %s from favorites", c.FullName())
			}
			m.syncSelection()
		}

	case "enter", "t":
		if c, ok := m.current(); ok {
			m.openTooltip(c.ID)
		}

	case "v":
		selecting := m.store.Snapshot().IsSelecting
		m.setErr(m.store.SetSelecting(m.ctx, !selecting))

	case "x", " ":
		if c, ok := m.current(); ok && m.store.Snapshot().IsSelecting {
			_, err := m.store.ToggleSelected(m.ctx, c.ID)
			m.setErr(err)
		}

	case "D":
		st := m.store.Snapshot()
		if st.IsSelecting && len(st.Selected) > 0 {
			return m.requestBulkDelete()
		}
		if st.IsSelecting {
			m.status = "Nothing selected"
		}
	}

	return m, nil
}

// updateFilter handles keys while typing a filter
func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.filter.Reset()
		m.filter.Blur()
		m.syncSelection()
		return m, nil
	case "enter":
		m.mode = modeList
		m.filter.Blur()
		m.syncSelection()
		return m, nil
	case "up":
		m.moveCursor(-1)
		return m, nil
	case "down":
		m.moveCursor(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.syncSelection()
	return m, cmd
}

// updateForm handles keys while the add/edit form is open
func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab", "down":
		return m, m.form.next()
	case "shift+tab", "up":
		return m, m.form.prev()
	case "ctrl+s":
		return m.submitForm()
	case "enter":
		if m.form.onLastField() {
			return m.submitForm()
		}
		return m, m.form.next()
	}

	return m, m.form.updateInput(msg)
}

// updateTooltip handles keys while a row's action menu is open. Moving
// the cursor blurs the row and closes the menu before the move.
func (m Model) updateTooltip(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h", "shift+tab":
		m.tooltip.action = (m.tooltip.action + actionCount - 1) % actionCount
		return m, nil
	case "right", "l", "tab":
		m.tooltip.action = (m.tooltip.action + 1) % actionCount
		return m, nil
	case "j", "down":
		m.closeTooltip()
		m.moveCursor(1)
		return m, nil
	case "k", "up":
		m.closeTooltip()
		m.moveCursor(-1)
		return m, nil
	case "enter":
		return m.runTooltipAction()
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	// Anything else dismisses the menu
	m.closeTooltip()
	return m, nil
}

// updateConfirm handles the y/n delete prompt; any key but y cancels
func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pending := m.confirm
	m.confirm = confirmation{}
	m.mode = modeList

	switch msg.String() {
	case "y", "Y":
		if pending.bulk {
			m.deleteIDs(pending.ids)
		} else {
			for _, id := range pending.ids {
				m.deleteContact(id)
			}
		}
	default:
		m.status = "Delete cancelled"
	}
	return m, nil
}

func (m *Model) openTooltip(id string) {
	m.tooltip = tooltip{contactID: id, action: ActionEdit}
	m.mode = modeTooltip
	m.setErr(m.store.SetTooltipActive(m.ctx, true))
}

func (m *Model) closeTooltip() {
	if m.mode == modeTooltip {
		m.mode = modeList
	}
	m.tooltip = tooltip{}
	m.setErr(m.store.SetTooltipActive(m.ctx, false))
}

// runTooltipAction fires the chosen action, but only while the anchored
// contact still exists and is still the row under the cursor
func (m Model) runTooltipAction() (tea.Model, tea.Cmd) {
	t := m.tooltip
	m.closeTooltip()

	c, ok := m.store.Get(t.contactID)
	if !ok {
		m.status = "Contact no longer exists"
		m.syncSelection()
		return m, nil
	}
	if cur, ok := m.current(); !ok || cur.ID != c.ID {
		m.status = "Menu was for another contact"
		return m, nil
	}

	switch t.action {
	case ActionEdit:
		return m.openForm(&c)
	case ActionDelete:
		return m.requestDelete(c.ID)
	case ActionSelect:
		on, err := m.store.ToggleSelected(m.ctx, c.ID)
		if !m.setErr(err) && on {
			m.status = fmt.Sprintf("Selected %s", c.FullName())
		}
	}
	return m, nil
}

func (m Model) openForm(c *contacts.Contact) (tea.Model, tea.Cmd) {
	if m.setErr(m.store.SetEditing(m.ctx, true)) {
		return m, nil
	}
	m.mode = modeForm
	return m, tea.Batch(m.form.open(c), textinput.Blink)
}

func (m *Model) closeForm() {
	m.mode = modeList
	m.form.editingID = ""
	m.form.errors = nil
	m.setErr(m.store.SetEditing(m.ctx, false))
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	in := m.form.input()

	var (
		c   contacts.Contact
		err error
	)
	if m.form.isEditing() {
		c, err = m.store.Update(m.ctx, m.form.editingID, in)
	} else {
		c, err = m.store.Add(m.ctx, in)
	}

	var verrs validation.Errors
	switch {
	case err == nil:
	case errors.As(err, &verrs):
		m.form.errors = verrs
		return m, nil
	case errors.Is(err, contacts.ErrDuplicateEmail):
		m.form.errors = validation.Errors{validation.FieldEmail: "The email is already in use"}
		return m, nil
	case errors.Is(err, contacts.ErrNotFound):
		m.closeForm()
		m.status = "Contact no longer exists"
		m.syncSelection()
		return m, nil
	default:
		m.setErr(err)
		return m, nil
	}

	if m.form.isEditing() {
		m.status = fmt.Sprintf("Saved %s", c.FullName())
	} else {
		m.status = fmt.Sprintf("Added %s", c.FullName())
	}
	m.closeForm()
	m.selectedID = c.ID
	m.syncSelection()
	return m, nil
}

func (m Model) requestDelete(id string) (tea.Model, tea.Cmd) {
	if !m.confirmDelete {
		m.deleteContact(id)
		return m, nil
	}
	m.confirm = confirmation{ids: []string{id}}
	m.mode = modeConfirm
	return m, nil
}

func (m Model) requestBulkDelete() (tea.Model, tea.Cmd) {
	if !m.confirmDelete {
		m.deleteSelected()
		return m, nil
	}
	m.confirm = confirmation{ids: m.store.Snapshot().Selected.Sorted(), bulk: true}
	m.mode = modeConfirm
	return m, nil
}

func (m *Model) deleteContact(id string) {
	c, _ := m.store.Get(id)
	err := m.store.Delete(m.ctx, id)
	switch {
	case errors.Is(err, contacts.ErrNotFound):
		m.status = "Contact no longer exists"
	case m.setErr(err):
		return
	default:
		m.status = fmt.Sprintf("Deleted %s", c.FullName())
	}
	m.syncSelection()
}

// deleteIDs removes the contacts named in a confirmed bulk prompt
func (m *Model) deleteIDs(ids []string) {
	n, err := m.store.DeleteIDs(m.ctx, ids)
	if m.setErr(err) {
		return
	}
	m.status = fmt.Sprintf("Deleted %d contact%s", n, plural(n))
	m.syncSelection()
}

func (m *Model) deleteSelected() {
	n, err := m.store.DeleteSelected(m.ctx)
	if m.setErr(err) {
		return
	}
	m.status = fmt.Sprintf("Deleted %d contact%s", n, plural(n))
	m.syncSelection()
}

// reconcile reloads state written elsewhere and drops UI references to
// contacts that disappeared
func (m *Model) reconcile() {
	if m.setErr(m.store.Reload(m.ctx)) {
		return
	}

	if m.mode == modeTooltip {
		if _, ok := m.store.Get(m.tooltip.contactID); !ok {
			m.closeTooltip()
			m.status = "Contact was removed elsewhere"
		}
	}
	if m.mode == modeForm && m.form.isEditing() {
		if _, ok := m.store.Get(m.form.editingID); !ok {
			m.closeForm()
			m.status = "Contact was removed elsewhere"
		}
	}
	if m.mode == modeConfirm {
		remaining := make([]string, 0, len(m.confirm.ids))
		for _, id := range m.confirm.ids {
			if _, ok := m.store.Get(id); ok {
				remaining = append(remaining, id)
			}
		}
		m.confirm.ids = remaining
		if len(remaining) == 0 {
			m.mode = modeList
			m.confirm = confirmation{}
			m.status = "Contact was removed elsewhere"
		}
	}

	m.syncSelection()
}

// setErr records a storage failure; it reports whether err was non-nil
func (m *Model) setErr(err error) bool {
	if err == nil {
		return false
	}
	m.log.Errorw("operation failed", "error", err)
	m.err = err
	return true
}

// visibleContacts returns contacts matching the current filters, in
// insertion order
func (m Model) visibleContacts() []contacts.Contact {
	all := m.store.Contacts()
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))

	visible := make([]contacts.Contact, 0, len(all))
	for _, c := range all {
		if m.favoritesOnly && !m.store.IsFavorite(c.ID) {
			continue
		}
		if query != "" && !matches(c, query) {
			continue
		}
		visible = append(visible, c)
	}
	return visible
}

func matches(c contacts.Contact, query string) bool {
	for _, field := range []string{c.Name, c.Surname, c.FullName(), c.Email, c.PhoneNumber} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// current returns the contact under the cursor
func (m Model) current() (contacts.Contact, bool) {
	visible := m.visibleContacts()
	if m.selected < 0 || m.selected >= len(visible) {
		return contacts.Contact{}, false
	}
	return visible[m.selected], true
}

func (m *Model) moveCursor(delta int) {
	visible := m.visibleContacts()
	if len(visible) == 0 {
		return
	}
	m.selected = max(0, min(len(visible)-1, m.selected+delta))
	m.selectedID = visible[m.selected].ID
}

// syncSelection re-finds the cursor row by contact id after the list
// changed; if that contact is gone the cursor stays at the same position,
// clamped to the list
func (m *Model) syncSelection() {
	visible := m.visibleContacts()
	if len(visible) == 0 {
		m.selected = 0
		m.selectedID = ""
		return
	}
	for i, c := range visible {
		if c.ID == m.selectedID {
			m.selected = i
			return
		}
	}
	m.selected = max(0, min(len(visible)-1, m.selected))
	m.selectedID = visible[m.selected].ID
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
