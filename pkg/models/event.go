package models

// Event types published to the broker after a lifecycle mutation commits.
const (
	EventChannelNew    = "channel-new"
	EventChannelUpdate = "channel-update"
	EventChannelDelete = "channel-delete"
	EventMessageNew    = "message-new"
	EventMessageUpdate = "message-update"
	EventMessageDelete = "message-delete"
)

// Event is the broker envelope consumed by the real-time gateway. An empty
// UserIDs slice means broadcast to everyone; a populated slice addresses
// only the listed identities. Delete events carry just the id of the
// removed entity.
type Event struct {
	ID        string   `json:"eventID,omitempty"`
	Type      string   `json:"type"`
	Channel   *Channel `json:"channel,omitempty"`
	Message   *Message `json:"message,omitempty"`
	ChannelID int64    `json:"channelID,omitempty"`
	MessageID int64    `json:"messageID,omitempty"`
	UserIDs   []int64  `json:"userIDs"`
}

// Recipients returns the recipient list for a channel: nil (broadcast) for
// public channels, the member ids for private ones.
func Recipients(c *Channel) []int64 {
	if c == nil || !c.Private {
		return []int64{}
	}
	return c.MemberIDs()
}
