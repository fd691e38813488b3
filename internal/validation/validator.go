package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Errors maps a field name to a human readable message.
// An empty Errors means the submitted values are valid.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return "invalid contact: " + strings.Join(parts, "; ")
}

// Schema validates submitted form values against a set of fields
type Schema struct {
	fields   []Field
	byName   map[string]Field
	validate *validator.Validate
}

// check is a single validator tag and the message used when it fails
type check struct {
	tag     string
	message string
}

// NewSchema builds a schema for the given fields. Each field with a
// pattern gets its own registered validator tag.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields:   fields,
		byName:   make(map[string]Field, len(fields)),
		validate: validator.New(),
	}

	for _, f := range fields {
		if _, exists := s.byName[f.Name]; exists {
			return nil, fmt.Errorf("field %s declared twice", f.Name)
		}
		s.byName[f.Name] = f

		if f.Rule.Pattern == nil {
			continue
		}
		re := f.Rule.Pattern
		err := s.validate.RegisterValidation(patternTag(f.Name), func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
		if err != nil {
			return nil, fmt.Errorf("registering pattern for %s: %w", f.Name, err)
		}
	}

	return s, nil
}

// MustSchema is like NewSchema but panics on error
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Contact is the schema of the contact form
var Contact = MustSchema(ContactFields...)

// Fields returns the schema's fields in declaration order
func (s *Schema) Fields() []Field {
	return s.fields
}

// Validate walks every declared field and returns the failing ones.
// Values for undeclared fields are ignored; missing values count as blank.
func (s *Schema) Validate(values map[string]string) Errors {
	errs := Errors{}
	for _, f := range s.fields {
		if msg := s.checkField(f, values[f.Name]); msg != "" {
			errs[f.Name] = msg
		}
	}
	return errs
}

// ValidateField checks a single value, for forms that validate as the user types
func (s *Schema) ValidateField(name, value string) error {
	f, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("unknown field %s", name)
	}
	if msg := s.checkField(f, value); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func (s *Schema) checkField(f Field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" && !f.Rule.Required {
		return ""
	}

	for _, c := range checksFor(f) {
		if err := s.validate.Var(value, c.tag); err != nil {
			return c.message
		}
	}
	return ""
}

// checksFor lists the checks of a field in evaluation order; the first
// failure wins.
func checksFor(f Field) []check {
	subject := strings.ToLower(f.Label)
	var checks []check
	if f.Rule.Required {
		checks = append(checks, check{"required", fmt.Sprintf("The %s is required", subject)})
	}
	if f.Rule.MinLength > 0 {
		checks = append(checks, check{fmt.Sprintf("min=%d", f.Rule.MinLength), fmt.Sprintf("The %s is too short", subject)})
	}
	if f.Rule.MaxLength > 0 {
		checks = append(checks, check{fmt.Sprintf("max=%d", f.Rule.MaxLength), fmt.Sprintf("The %s is too long", subject)})
	}
	if f.Rule.Pattern != nil {
		checks = append(checks, check{patternTag(f.Name), fmt.Sprintf("The %s is not valid", subject)})
	}
	return checks
}

func patternTag(field string) string {
	return "pattern_" + strings.ReplaceAll(field, "-", "_")
}
