package models

import (
	"fmt"
	"strings"
)

// Draft is the editable copy of a bug used while a create or edit form is
// open. Every field carries a usable default.
type Draft struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Status      Status   `json:"status"`
	Reporter    string   `json:"reporter"`
	Assignee    string   `json:"assignee"`
	Tags        []string `json:"tags"`
}

// NewDraft returns a blank draft for a new bug.
func NewDraft() Draft {
	return Draft{
		Severity: SeverityMedium,
		Status:   StatusTodo,
		Reporter: DefaultReporter,
		Assignee: DefaultAssignee,
		Tags:     []string{},
	}
}

// DraftFromBug seeds a draft from an existing bug.
func DraftFromBug(b *Bug) Draft {
	return Draft{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Severity:    b.Severity,
		Status:      b.Status,
		Reporter:    b.Reporter,
		Assignee:    b.Assignee,
		Tags:        append([]string{}, b.Tags...),
	}
}

// Clone returns a copy with its own tag slice.
func (d Draft) Clone() Draft {
	d.Tags = append([]string{}, d.Tags...)
	return d
}

// AddTag trims raw and appends it unless it is blank or already present.
// It reports whether the tag set changed.
func (d *Draft) AddTag(raw string) bool {
	tag := strings.TrimSpace(raw)
	if tag == "" {
		return false
	}
	for _, t := range d.Tags {
		if t == tag {
			return false
		}
	}
	d.Tags = append(d.Tags, tag)
	return true
}

// RemoveTag drops the exact tag. It reports whether anything was removed.
func (d *Draft) RemoveTag(tag string) bool {
	for i, t := range d.Tags {
		if t == tag {
			d.Tags = append(d.Tags[:i:i], d.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// Input converts the draft into a create payload with blank tags dropped.
func (d Draft) Input() BugInput {
	return BugInput{
		Title:       d.Title,
		Description: d.Description,
		Severity:    d.Severity,
		Status:      d.Status,
		Reporter:    d.Reporter,
		Assignee:    d.Assignee,
		Tags:        CleanTags(d.Tags),
	}.WithDefaults()
}

// Patch converts the draft into a full-field update.
func (d Draft) Patch() BugPatch {
	in := d.Input()
	return BugPatch{
		Title:       &in.Title,
		Description: &in.Description,
		Severity:    &in.Severity,
		Status:      &in.Status,
		Reporter:    &in.Reporter,
		Assignee:    &in.Assignee,
		Tags:        in.Tags,
	}
}

// StatusFilter narrows the board to one status, or shows all of them.
type StatusFilter string

// FilterAll passes every status.
const FilterAll StatusFilter = "all"

// Matches reports whether a bug with status s passes the filter.
func (f StatusFilter) Matches(s Status) bool {
	return f == "" || f == FilterAll || Status(f) == s
}

// ParseStatusFilter accepts "all" or any status.
func ParseStatusFilter(v string) (StatusFilter, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, string(FilterAll)) {
		return FilterAll, nil
	}
	s, err := ParseStatus(v)
	if err != nil {
		return "", fmt.Errorf("invalid status filter %q (want all, todo, in-progress, resolved)", v)
	}
	return StatusFilter(s), nil
}

// View is the layout the bug collection is presented in.
type View string

const (
	ViewBoard View = "board"
	ViewList  View = "list"
)

// ParseView accepts "board" or "list".
func ParseView(v string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(v))) {
	case ViewBoard:
		return ViewBoard, nil
	case ViewList:
		return ViewList, nil
	}
	return "", fmt.Errorf("invalid view %q (want board, list)", v)
}
