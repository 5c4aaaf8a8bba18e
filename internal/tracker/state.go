package tracker

import (
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/validation"
)

// Phase is the loading phase of the bug collection. Loading and error are
// mutually exclusive.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
)

// Form is an open create or edit session.
type Form struct {
	Draft   models.Draft      `json:"draft"`
	Errors  validation.Errors `json:"errors"`
	Editing bool              `json:"editing"`
	// Session increments each time a form is opened, so a submit that
	// settles late does not close a form opened after it started.
	Session int `json:"session"`
}

// State is an immutable snapshot of the tracker session. Transitions never
// modify a State in place; they return a new value with fresh slices, so a
// snapshot handed to a renderer stays valid. Bug ids start at 1, so a zero
// SelectedID means nothing is selected.
type State struct {
	Bugs       []*models.Bug       `json:"bugs"`
	Comments   []*models.Comment   `json:"comments"`
	Phase      Phase               `json:"phase"`
	Err        string              `json:"error,omitempty"`
	SelectedID int64               `json:"selectedId,omitempty"`
	View       models.View         `json:"view"`
	Query      string              `json:"query"`
	Filter     models.StatusFilter `json:"filter"`
	Drag       Drag                `json:"drag"`
	Form       *Form               `json:"form,omitempty"`

	sessions int
}

// transition is a pure state change for one intent.
type transition func(State) State

func initialState() State {
	return State{
		Bugs:     []*models.Bug{},
		Comments: []*models.Comment{},
		Phase:    PhaseIdle,
		View:     models.ViewBoard,
		Filter:   models.FilterAll,
	}
}

// Bug returns the canonical record for id.
func (s State) Bug(id int64) (*models.Bug, bool) {
	for _, b := range s.Bugs {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// Selected returns the selected bug, refreshed from the canonical list.
func (s State) Selected() *models.Bug {
	if s.SelectedID == 0 {
		return nil
	}
	b, _ := s.Bug(s.SelectedID)
	return b
}

// --- loading ---

func loadStarted() transition {
	return func(s State) State {
		s.Phase = PhaseLoading
		s.Err = ""
		return s
	}
}

func bugsLoaded(bugs []*models.Bug) transition {
	return func(s State) State {
		s.Bugs = append([]*models.Bug{}, bugs...)
		s.Phase = PhaseIdle
		s.Err = ""
		return s
	}
}

func bugsLoadFailed(msg string) transition {
	return func(s State) State {
		s.Phase = PhaseError
		s.Err = msg
		return s
	}
}

func commentsLoaded(comments []*models.Comment) transition {
	return func(s State) State {
		s.Comments = append([]*models.Comment{}, comments...)
		return s
	}
}

// --- collection merges ---

func replaceBug(bugs []*models.Bug, bug *models.Bug) []*models.Bug {
	out := make([]*models.Bug, len(bugs))
	for i, b := range bugs {
		if b.ID == bug.ID {
			out[i] = bug
		} else {
			out[i] = b
		}
	}
	return out
}

func withoutBug(bugs []*models.Bug, id int64) []*models.Bug {
	out := make([]*models.Bug, 0, len(bugs))
	for _, b := range bugs {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// formSubmitted merges the authoritative record returned by the repository
// and ends the form session that produced it.
func formSubmitted(bug *models.Bug, editing bool, session int) transition {
	return func(s State) State {
		if editing {
			s.Bugs = replaceBug(s.Bugs, bug)
		} else {
			s.Bugs = append([]*models.Bug{bug}, s.Bugs...)
		}
		if s.Form != nil && s.Form.Session == session {
			s.Form = nil
		}
		s.SelectedID = 0
		return s
	}
}

func formRejected(errs validation.Errors) transition {
	return func(s State) State {
		if s.Form == nil {
			return s
		}
		f := *s.Form
		f.Errors = errs
		s.Form = &f
		return s
	}
}

func bugDeleted(id int64) transition {
	return func(s State) State {
		s.Bugs = withoutBug(s.Bugs, id)
		s.SelectedID = 0
		s.Form = nil
		return s
	}
}

func statusChanged(bug *models.Bug) transition {
	return func(s State) State {
		s.Bugs = replaceBug(s.Bugs, bug)
		return s
	}
}

// --- pure UI transitions ---

func selectBug(id int64) transition {
	return func(s State) State {
		s.SelectedID = id
		return s
	}
}

func openForm(draft models.Draft, editing bool) transition {
	return func(s State) State {
		s.sessions++
		s.Form = &Form{
			Draft:   draft.Clone(),
			Errors:  validation.Errors{},
			Editing: editing,
			Session: s.sessions,
		}
		return s
	}
}

func openCreateForm() transition {
	return openForm(models.NewDraft(), false)
}

func openEditForm(bug *models.Bug) transition {
	return func(s State) State {
		s = openForm(models.DraftFromBug(bug), true)(s)
		s.SelectedID = bug.ID
		return s
	}
}

func closeForm() transition {
	return func(s State) State {
		s.Form = nil
		return s
	}
}

// editDraft applies fn to a copy of the open draft.
func editDraft(fn func(*models.Draft)) transition {
	return func(s State) State {
		if s.Form == nil {
			return s
		}
		f := *s.Form
		f.Draft = f.Draft.Clone()
		fn(&f.Draft)
		s.Form = &f
		return s
	}
}

func addTag(raw string) transition {
	return editDraft(func(d *models.Draft) { d.AddTag(raw) })
}

func removeTag(tag string) transition {
	return editDraft(func(d *models.Draft) { d.RemoveTag(tag) })
}

func setQuery(q string) transition {
	return func(s State) State {
		s.Query = q
		return s
	}
}

func setFilter(f models.StatusFilter) transition {
	return func(s State) State {
		s.Filter = f
		return s
	}
}

func setView(v models.View) transition {
	return func(s State) State {
		s.View = v
		return s
	}
}

func dragStarted(bug *models.Bug) transition {
	return func(s State) State {
		s.Drag = s.Drag.Start(bug)
		return s
	}
}
