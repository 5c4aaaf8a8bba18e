package models

import "time"

// Comment is a discussion note attached to a bug. Comments whose bug has
// been deleted are kept.
type Comment struct {
	ID        string    `json:"id" yaml:"id"`
	BugID     int64     `json:"bugId" yaml:"bugId"`
	Author    string    `json:"author" yaml:"author"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// CommentsFor returns the comments attached to bugID, in input order.
func CommentsFor(comments []*Comment, bugID int64) []*Comment {
	var out []*Comment
	for _, c := range comments {
		if c.BugID == bugID {
			out = append(out, c)
		}
	}
	return out
}
