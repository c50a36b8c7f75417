package models

import "time"

// DefaultDescription is stored when a channel is created without one.
const DefaultDescription = "No description"

// Channel is a named conversation scope. Private is fixed at creation and
// Members is only meaningful when Private is true; a public channel treats
// every identity as an implicit member.
type Channel struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Private     bool       `json:"private"`
	Members     []Identity `json:"members"`
	CreatedAt   time.Time  `json:"createdAt"`
	Creator     Identity   `json:"creator"`
	EditedAt    time.Time  `json:"editedAt"`
}

// ContainsUserID reports whether id is in the explicit member set.
func (c *Channel) ContainsUserID(id int64) bool {
	for _, m := range c.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of the explicit member set in insertion order.
func (c *Channel) MemberIDs() []int64 {
	ids := make([]int64, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.ID)
	}
	return ids
}
