package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/pdxmph/contacts/internal/contacts"
	"github.com/pdxmph/contacts/internal/validation"
)

// promptContact fills in through an interactive form. Each field is
// checked against the contact rules as it is left.
func promptContact(in *contacts.Input, title string) error {
	targets := map[string]*string{
		validation.FieldName:        &in.Name,
		validation.FieldSurname:     &in.Surname,
		validation.FieldEmail:       &in.Email,
		validation.FieldPhoneNumber: &in.PhoneNumber,
	}

	fields := make([]huh.Field, 0, len(targets))
	for _, f := range validation.Contact.Fields() {
		value, ok := targets[f.Name]
		if !ok {
			continue
		}
		name := f.Name
		input := huh.NewInput().
			Key(name).
			Title(f.Label).
			Value(value).
			Validate(func(s string) error {
				return validation.Contact.ValidateField(name, strings.TrimSpace(s))
			})
		if !f.Rule.Required {
			input = input.Description("optional")
		}
		fields = append(fields, input)
	}

	form := huh.NewForm(huh.NewGroup(fields...).Title(title))
	if err := form.Run(); err != nil {
		return fmt.Errorf("contact form: %w", err)
	}
	return nil
}

// confirmDelete asks before deleting targets
func confirmDelete(targets []contacts.Contact) (bool, error) {
	title := fmt.Sprintf("Delete %d contacts?", len(targets))
	if len(targets) == 1 {
		title = fmt.Sprintf("Delete contact '%s'?", targets[0].FullName())
	}

	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}
