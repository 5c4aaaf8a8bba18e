// Package validation checks bug form drafts before they are submitted.
package validation

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joescharf/bugboard/internal/models"
)

// MaxTitleLength is the longest title accepted, in characters.
const MaxTitleLength = 100

// Field keys used in Errors.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
)

// Error codes reported per field.
const (
	TitleRequired       = "TITLE_REQUIRED"
	TitleTooLong        = "TITLE_TOO_LONG"
	DescriptionRequired = "DESCRIPTION_REQUIRED"
)

// Errors maps a draft field to the code of the rule it broke.
type Errors map[string]string

// OK reports whether the draft had no violations.
func (e Errors) OK() bool { return len(e) == 0 }

// Error renders the violations in field order, e.g.
// "description: DESCRIPTION_REQUIRED; title: TITLE_TOO_LONG".
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + e[f]
	}
	return strings.Join(parts, "; ")
}

// Validate checks every rule and reports all violations. The length rule
// runs after the required rule so it owns the title slot when both apply.
func Validate(d models.Draft) Errors {
	errs := Errors{}
	if strings.TrimSpace(d.Title) == "" {
		errs[FieldTitle] = TitleRequired
	}
	if strings.TrimSpace(d.Description) == "" {
		errs[FieldDescription] = DescriptionRequired
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		errs[FieldTitle] = TitleTooLong
	}
	return errs
}
