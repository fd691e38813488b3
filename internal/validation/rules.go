package validation

import "regexp"

// Field names used by the contact form
const (
	FieldName        = "name"
	FieldSurname     = "surname"
	FieldEmail       = "email"
	FieldPhoneNumber = "phone-number"
)

// Rule is the declarative rule set carried by a form field.
// Zero MinLength or MaxLength means no bound.
type Rule struct {
	Required  bool
	Pattern   *regexp.Regexp
	MinLength int
	MaxLength int
}

// Field describes a single form input and its validation rules
type Field struct {
	Name  string
	Label string
	Kind  string // text, email or tel
	Rule  Rule
}

var (
	personNamePattern = regexp.MustCompile(`(?i)^[a-z ,.'-]+$`)
	emailPattern      = regexp.MustCompile(`(?i)^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)
	phonePattern      = regexp.MustCompile(`(?i)^\s*(?:\+?(\d{1,3}))?[-. (]*(\d{3})[-. )]*(\d{3})[-. ]*(\d{3})(?: *x(\d+))?\s*$`)
)

// ContactFields is the field set of the add/edit contact form, in display order
var ContactFields = []Field{
	{
		Name:  FieldName,
		Label: "Name",
		Kind:  "text",
		Rule: Rule{
			Required:  true,
			Pattern:   personNamePattern,
			MinLength: 2,
			MaxLength: 20,
		},
	},
	{
		Name:  FieldSurname,
		Label: "Surname",
		Kind:  "text",
		Rule: Rule{
			Required:  true,
			Pattern:   personNamePattern,
			MinLength: 2,
			MaxLength: 20,
		},
	},
	{
		Name:  FieldEmail,
		Label: "Email",
		Kind:  "email",
		Rule: Rule{
			Required: true,
			Pattern:  emailPattern,
		},
	},
	{
		Name:  FieldPhoneNumber,
		Label: "Phone Number",
		Kind:  "tel",
		Rule: Rule{
			Pattern: phonePattern,
		},
	},
}
