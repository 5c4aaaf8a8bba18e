package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity represents how badly a bug hurts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ParseSeverity converts user input into a Severity.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid severity %q (want low, medium, high, critical)", v)
	}
	return s, nil
}

// Status represents the board column a bug lives in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusResolved}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// ParseStatus converts user input into a Status. Underscores are accepted
// in place of the hyphen so "in_progress" works on the command line.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), "_", "-"))
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q (want todo, in-progress, resolved)", v)
	}
	return s, nil
}

// Default values applied to new bugs.
const (
	DefaultReporter = "Dev Team"
	DefaultAssignee = "Unassigned"
)

// Bug is a tracked defect record.
type Bug struct {
	ID          int64     `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Status      Status    `json:"status" yaml:"status"`
	Reporter    string    `json:"reporter" yaml:"reporter"`
	Assignee    string    `json:"assignee" yaml:"assignee"`
	Tags        []string  `json:"tags" yaml:"tags"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a deep copy so callers can't alias the tag slice.
func (b *Bug) Clone() *Bug {
	if b == nil {
		return nil
	}
	c := *b
	c.Tags = append([]string(nil), b.Tags...)
	return &c
}

// BugInput carries the caller-supplied fields of a new bug. The repository
// assigns the id and timestamps.
type BugInput struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Status      Status   `json:"status" yaml:"status"`
	Reporter    string   `json:"reporter" yaml:"reporter"`
	Assignee    string   `json:"assignee" yaml:"assignee"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// WithDefaults fills empty fields with the standard defaults.
func (in BugInput) WithDefaults() BugInput {
	if in.Severity == "" {
		in.Severity = SeverityMedium
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if in.Reporter == "" {
		in.Reporter = DefaultReporter
	}
	if in.Assignee == "" {
		in.Assignee = DefaultAssignee
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	return in
}

// BugPatch is a partial update. Nil fields are left unchanged; a non-nil
// Tags slice replaces the tag set.
type BugPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Reporter    *string   `json:"reporter,omitempty"`
	Assignee    *string   `json:"assignee,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// StatusPatch returns a patch that only moves the bug to status.
func StatusPatch(status Status) BugPatch {
	return BugPatch{Status: &status}
}

// Empty reports whether the patch changes nothing.
func (p BugPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Severity == nil &&
		p.Status == nil && p.Reporter == nil && p.Assignee == nil && p.Tags == nil
}

// Apply merges the patch into b and stamps UpdatedAt with now.
func (p BugPatch) Apply(b *Bug, now time.Time) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Severity != nil {
		b.Severity = *p.Severity
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Reporter != nil {
		b.Reporter = *p.Reporter
	}
	if p.Assignee != nil {
		b.Assignee = *p.Assignee
	}
	if p.Tags != nil {
		b.Tags = append([]string{}, p.Tags...)
	}
	if now.Before(b.CreatedAt) {
		now = b.CreatedAt
	}
	b.UpdatedAt = now
}

// CleanTags trims tags and drops blanks and exact duplicates, keeping the
// first occurrence of each.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
