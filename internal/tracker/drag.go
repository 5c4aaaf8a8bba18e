package tracker

import "github.com/joescharf/bugboard/internal/models"

// Drag is the drag-relocate machine: idle (zero value) or dragging one bug.
type Drag struct {
	BugID int64 `json:"bugId,omitempty"`
}

// Active reports whether a bug is being dragged.
func (d Drag) Active() bool { return d.BugID != 0 }

// Start begins dragging bug. Starting a new drag replaces any earlier one.
func (d Drag) Start(bug *models.Bug) Drag {
	if bug == nil {
		return d
	}
	return Drag{BugID: bug.ID}
}

// Relocation is the status change a drop proposes.
type Relocation struct {
	BugID int64
	From  models.Status
	To    models.Status
}

// Drop ends the drag. It returns the idle machine and, when the dragged bug
// still exists and its current status differs from a valid target, the
// relocation to perform. Dropping while idle, onto the bug's own column, or
// onto no valid target yields no relocation.
func (d Drag) Drop(target models.Status, bugs []*models.Bug) (Drag, *Relocation) {
	if !d.Active() || !target.Valid() {
		return Drag{}, nil
	}
	for _, b := range bugs {
		if b.ID != d.BugID {
			continue
		}
		if b.Status == target {
			return Drag{}, nil
		}
		return Drag{}, &Relocation{BugID: b.ID, From: b.Status, To: target}
	}
	return Drag{}, nil
}
