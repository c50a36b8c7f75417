// Package messages implements the message lifecycle scoped to a channel:
// post, edit, delete, reactions and stars. Channel membership is checked
// through the authorization gate on every call; creator-only mutations are
// additionally enforced atomically at the store boundary.
package messages

import (
	"time"

	"channeld/pkg/authz"
	"channeld/pkg/errs"
	"channeld/pkg/models"
	"channeld/pkg/notify"
	"channeld/pkg/store"
	"channeld/pkg/validation"
)

// Post persists a new message authored by ident in the channel and
// announces it to the channel's current member set.
func Post(ident models.Identity, chID int64, body string) (models.Message, error) {
	if err := validation.MessageBody(body); err != nil {
		return models.Message{}, err
	}
	ch, err := authz.RequireMember(chID, ident)
	if err != nil {
		return models.Message{}, err
	}
	now := time.Now().UTC()
	m, err := store.CreateMessage(models.Message{
		ChannelID: chID,
		Body:      body,
		CreatedAt: now,
		EditedAt:  now,
		Creator:   ident,
	})
	if err != nil {
		return models.Message{}, err
	}
	notify.Publish(models.Event{
		Type:    models.EventMessageNew,
		Message: &m,
		UserIDs: models.Recipients(&ch),
	})
	return m, nil
}

// Edit replaces the body; message creator only. Recipients are resolved
// before the write commits: once the edit has persisted, nothing on the
// notification side may fail the request.
func Edit(ident models.Identity, msgID int64, newBody string) (models.Message, error) {
	if err := validation.MessageBody(newBody); err != nil {
		return models.Message{}, err
	}
	cur, err := store.GetMessage(msgID)
	if err != nil {
		return models.Message{}, err
	}
	recipients, err := channelRecipients(cur.ChannelID)
	if err != nil {
		return models.Message{}, err
	}
	m, err := store.UpdateMessageBody(msgID, ident.ID, newBody, time.Now().UTC())
	if err != nil {
		return models.Message{}, err
	}
	notify.Publish(models.Event{
		Type:    models.EventMessageUpdate,
		Message: &m,
		UserIDs: recipients,
	})
	return m, nil
}

// Delete removes the message; creator only. The recipient set is resolved
// before the row goes away, since membership is looked up through the
// message's channel.
func Delete(ident models.Identity, msgID int64) error {
	m, err := store.GetMessage(msgID)
	if err != nil {
		return err
	}
	if m.Creator.ID != ident.ID {
		return errs.ErrForbidden
	}
	recipients, err := channelRecipients(m.ChannelID)
	if err != nil {
		return err
	}
	if _, err := store.DeleteMessage(msgID, ident.ID); err != nil {
		return err
	}
	notify.Publish(models.Event{
		Type:      models.EventMessageDelete,
		MessageID: msgID,
		ChannelID: m.ChannelID,
		UserIDs:   recipients,
	})
	return nil
}

// React records ident's reaction on the message; channel membership
// required. Reacting twice with the same token is a no-op success; a
// different token replaces the prior reaction.
func React(ident models.Identity, msgID int64, token string) (models.Message, error) {
	if err := validation.ReactionToken(token); err != nil {
		return models.Message{}, err
	}
	m, ch, err := requireMessageMember(ident, msgID)
	if err != nil {
		return models.Message{}, err
	}
	m, changed, err := store.SetReaction(msgID, ident, token)
	if err != nil {
		return models.Message{}, err
	}
	if changed {
		notify.Publish(models.Event{
			Type:    models.EventMessageUpdate,
			Message: &m,
			UserIDs: models.Recipients(&ch),
		})
	}
	return m, nil
}

// Unreact removes ident's reaction if present; idempotent.
func Unreact(ident models.Identity, msgID int64) (models.Message, error) {
	_, ch, err := requireMessageMember(ident, msgID)
	if err != nil {
		return models.Message{}, err
	}
	m, changed, err := store.RemoveReaction(msgID, ident.ID)
	if err != nil {
		return models.Message{}, err
	}
	if changed {
		notify.Publish(models.Event{
			Type:    models.EventMessageUpdate,
			Message: &m,
			UserIDs: models.Recipients(&ch),
		})
	}
	return m, nil
}

// Star marks the message for ident; idempotent, membership required.
func Star(ident models.Identity, msgID int64) (models.Message, error) {
	_, _, err := requireMessageMember(ident, msgID)
	if err != nil {
		return models.Message{}, err
	}
	m, _, err := store.SetStar(msgID, ident.ID)
	return m, err
}

// Unstar clears the star for ident; idempotent, membership required.
func Unstar(ident models.Identity, msgID int64) (models.Message, error) {
	_, _, err := requireMessageMember(ident, msgID)
	if err != nil {
		return models.Message{}, err
	}
	m, _, err := store.RemoveStar(msgID, ident.ID)
	return m, err
}

// requireMessageMember loads the message and checks ident's membership on
// its channel.
func requireMessageMember(ident models.Identity, msgID int64) (models.Message, models.Channel, error) {
	m, err := store.GetMessage(msgID)
	if err != nil {
		return models.Message{}, models.Channel{}, err
	}
	ch, err := authz.RequireMember(m.ChannelID, ident)
	if err != nil {
		return models.Message{}, models.Channel{}, err
	}
	return m, ch, nil
}

func channelRecipients(chID int64) ([]int64, error) {
	ch, err := store.GetChannel(chID)
	if err != nil {
		return nil, err
	}
	return models.Recipients(&ch), nil
}
