package models

import "time"

// ActivityAction names what happened to a bug.
type ActivityAction string

const (
	ActivityCreated       ActivityAction = "created"
	ActivityUpdated       ActivityAction = "updated"
	ActivityStatusChanged ActivityAction = "status_changed"
	ActivityDeleted       ActivityAction = "deleted"
)

// Activity is an entry in a bug's audit trail.
type Activity struct {
	ID        string         `json:"id"`
	BugID     int64          `json:"bugId"`
	Action    ActivityAction `json:"action"`
	Detail    string         `json:"detail"`
	Timestamp time.Time      `json:"timestamp"`
}
