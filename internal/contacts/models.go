package contacts

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pdxmph/contacts/internal/validation"
)

// Contact represents a single address-book entry
type Contact struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Surname     string    `json:"surname" yaml:"surname"`
	Email       string    `json:"email" yaml:"email"`
	PhoneNumber string    `json:"phone-number,omitempty" yaml:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// FullName joins name and surname
func (c Contact) FullName() string {
	return strings.TrimSpace(c.Name + " " + c.Surname)
}

// Input holds the values submitted by the add/edit form
type Input struct {
	Name        string `json:"name" yaml:"name"`
	Surname     string `json:"surname" yaml:"surname"`
	Email       string `json:"email" yaml:"email"`
	PhoneNumber string `json:"phone-number,omitempty" yaml:"phone_number,omitempty"`
}

// InputFrom returns the form values of an existing contact
func InputFrom(c Contact) Input {
	return Input{
		Name:        c.Name,
		Surname:     c.Surname,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
	}
}

// Values keys the input by form field name
func (in Input) Values() map[string]string {
	return map[string]string{
		validation.FieldName:        in.Name,
		validation.FieldSurname:     in.Surname,
		validation.FieldEmail:       in.Email,
		validation.FieldPhoneNumber: in.PhoneNumber,
	}
}

func (in Input) trimmed() Input {
	return Input{
		Name:        strings.TrimSpace(in.Name),
		Surname:     strings.TrimSpace(in.Surname),
		Email:       strings.TrimSpace(in.Email),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}
}

// IDSet is a set of contact ids, stored as a sorted array
type IDSet map[string]struct{}

// Has reports whether id is in the set
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s IDSet) clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted array
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of ids
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	*s = set
	return nil
}

// State is the application state mirrored to persistent storage
type State struct {
	Contacts        []Contact `json:"contacts"`
	Favorites       IDSet     `json:"favorites"`
	Selected        IDSet     `json:"selected"`
	IsEditing       bool      `json:"isEditing"`
	IsSelecting     bool      `json:"isSelecting"`
	IsTooltipActive bool      `json:"isTooltipActive"`
}

// InitialState is the state of an empty address book
func InitialState() State {
	return State{
		Contacts:  []Contact{},
		Favorites: IDSet{},
		Selected:  IDSet{},
	}
}

// Clone returns a deep copy
func (s State) Clone() State {
	c := s
	c.Contacts = append([]Contact{}, s.Contacts...)
	c.Favorites = s.Favorites.clone()
	c.Selected = s.Selected.clone()
	return c
}

func (s State) indexOf(id string) int {
	for i, c := range s.Contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// emailTaken reports whether another contact already uses email
func (s State) emailTaken(email, exceptID string) bool {
	for _, c := range s.Contacts {
		if c.ID != exceptID && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

// prune drops favorite and selected ids without a matching contact
func (s *State) prune() {
	known := make(map[string]bool, len(s.Contacts))
	for _, c := range s.Contacts {
		known[c.ID] = true
	}
	for id := range s.Favorites {
		if !known[id] {
			delete(s.Favorites, id)
		}
	}
	for id := range s.Selected {
		if !known[id] {
			delete(s.Selected, id)
		}
	}
}

// removeAll drops the contacts whose id is in ids, along with their
// favorite and selection marks, and returns the removed ids in list order
func (s *State) removeAll(ids IDSet) []string {
	var removed []string
	kept := s.Contacts[:0]
	for _, c := range s.Contacts {
		if ids.Has(c.ID) {
			removed = append(removed, c.ID)
			delete(s.Favorites, c.ID)
			delete(s.Selected, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	s.Contacts = kept
	return removed
}
