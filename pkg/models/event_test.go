package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecipients(t *testing.T) {
	// nil and public channels broadcast
	require.Empty(t, Recipients(nil))
	require.Empty(t, Recipients(&Channel{ID: 1, Name: "general"}))

	private := &Channel{
		ID: 2, Name: "ops", Private: true,
		Members: []Identity{{ID: 1}, {ID: 2}, {ID: 3}},
	}
	require.Equal(t, []int64{1, 2, 3}, Recipients(private))
}

func TestEventEnvelopeShape(t *testing.T) {
	b, err := json.Marshal(Event{Type: EventChannelNew, UserIDs: []int64{}})
	require.NoError(t, err)
	// broadcast keeps an explicit empty array, never null
	require.JSONEq(t, `{"type":"channel-new","userIDs":[]}`, string(b))

	b, err = json.Marshal(Event{Type: EventMessageDelete, MessageID: 7, ChannelID: 3, UserIDs: []int64{1, 2}})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"message-delete","messageID":7,"channelID":3,"userIDs":[1,2]}`, string(b))
}
