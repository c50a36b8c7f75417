package models

import "time"

// Message belongs to exactly one channel for its lifetime. Only the creator
// may edit or delete it.
type Message struct {
	ID        int64      `json:"id"`
	ChannelID int64      `json:"channelID"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	Creator   Identity   `json:"creator"`
	EditedAt  time.Time  `json:"editedAt"`
	Reactions []Reaction `json:"reactions"`
	Stars     []int64    `json:"stars,omitempty"`
}

// Reaction is unique per (message, user); a later reaction by the same user
// replaces the prior one.
type Reaction struct {
	User     Identity `json:"user"`
	Reaction string   `json:"reaction"`
}

// ReactionBy returns the user's reaction and whether one exists.
func (m *Message) ReactionBy(userID int64) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.User.ID == userID {
			return r, true
		}
	}
	return Reaction{}, false
}

// StarredBy reports whether userID has starred the message.
func (m *Message) StarredBy(userID int64) bool {
	for _, id := range m.Stars {
		if id == userID {
			return true
		}
	}
	return false
}
