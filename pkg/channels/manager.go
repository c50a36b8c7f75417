// Package channels implements the channel lifecycle: create, list with
// visibility filtering, paged message fetch, rename/describe, delete and
// membership management. Every operation re-validates authorization on the
// call itself; nothing is cached between requests. Events are emitted
// after the store commit and never fail the operation.
package channels

import (
	"fmt"
	"time"

	"channeld/pkg/authz"
	"channeld/pkg/errs"
	"channeld/pkg/models"
	"channeld/pkg/notify"
	"channeld/pkg/store"
	"channeld/pkg/validation"
)

// DefaultMessagePage caps how many messages a channel fetch returns.
const DefaultMessagePage = 100

// Create builds and persists a channel owned by ident. For private
// channels the creator plus every id in memberIDs becomes a member;
// duplicates are collapsed and an unknown id fails the whole creation
// with ErrUnknownReference, leaving nothing behind.
func Create(ident models.Identity, name, description string, private bool, memberIDs []int64) (models.Channel, error) {
	if err := validation.ChannelName(name); err != nil {
		return models.Channel{}, err
	}
	if err := validation.Description(description); err != nil {
		return models.Channel{}, err
	}
	if description == "" {
		description = models.DefaultDescription
	}
	now := time.Now().UTC()
	ch, err := store.CreateChannel(models.Channel{
		Name:        name,
		Description: description,
		Private:     private,
		CreatedAt:   now,
		EditedAt:    now,
		Creator:     ident,
	}, memberIDs)
	if err != nil {
		return models.Channel{}, err
	}
	notify.Publish(models.Event{
		Type:    models.EventChannelNew,
		Channel: &ch,
		UserIDs: models.Recipients(&ch),
	})
	return ch, nil
}

// ListVisible returns every public channel plus every private channel
// where ident is a member.
func ListVisible(ident models.Identity) ([]models.Channel, error) {
	all, err := store.ListChannels()
	if err != nil {
		return nil, err
	}
	out := []models.Channel{}
	for _, ch := range all {
		if authz.IsMember(&ch, ident) {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Messages returns the most recent limit messages of the channel,
// oldest-first, after a membership check. limit <= 0 or > the page cap
// falls back to the cap.
func Messages(ident models.Identity, chID int64, limit int) ([]models.Message, error) {
	if _, err := authz.RequireMember(chID, ident); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultMessagePage {
		limit = DefaultMessagePage
	}
	return store.ListMessages(chID, limit)
}

// Update renames and/or re-describes the channel; creator only. At least
// one of newName/newDescription must be supplied; unspecified fields keep
// their previous values.
func Update(ident models.Identity, chID int64, newName, newDescription string) (models.Channel, error) {
	if newName == "" && newDescription == "" {
		return models.Channel{}, fmt.Errorf("%w: nothing to update", errs.ErrInvalidArgument)
	}
	if newName != "" {
		if err := validation.ChannelName(newName); err != nil {
			return models.Channel{}, err
		}
	}
	if err := validation.Description(newDescription); err != nil {
		return models.Channel{}, err
	}
	ch, err := store.UpdateChannel(chID, ident.ID, newName, newDescription, time.Now().UTC())
	if err != nil {
		return models.Channel{}, err
	}
	notify.Publish(models.Event{
		Type:    models.EventChannelUpdate,
		Channel: &ch,
		UserIDs: models.Recipients(&ch),
	})
	return ch, nil
}

// Delete cascades the channel away (memberships, messages, channel row)
// and notifies the pre-deletion member set; creator only.
func Delete(ident models.Identity, chID int64) error {
	ch, err := store.DeleteChannelCascade(chID, ident.ID)
	if err != nil {
		return err
	}
	notify.Publish(models.Event{
		Type:      models.EventChannelDelete,
		ChannelID: chID,
		UserIDs:   models.Recipients(&ch),
	})
	return nil
}

// AddMember adds a user to a private channel; creator only. A duplicate
// add yields ErrConflict and an unknown user ErrUnknownReference. The
// changed member set is announced as a channel update.
func AddMember(ident models.Identity, chID, newMemberID int64) (models.Channel, error) {
	ch, err := store.AddMember(chID, ident.ID, newMemberID)
	if err != nil {
		return models.Channel{}, err
	}
	notify.Publish(models.Event{
		Type:    models.EventChannelUpdate,
		Channel: &ch,
		UserIDs: models.Recipients(&ch),
	})
	return ch, nil
}

// RemoveMember removes a user from a private channel; creator only.
// Removing a non-member yields ErrNotMember.
func RemoveMember(ident models.Identity, chID, memberID int64) (models.Channel, error) {
	ch, err := store.RemoveMember(chID, ident.ID, memberID)
	if err != nil {
		return models.Channel{}, err
	}
	notify.Publish(models.Event{
		Type:    models.EventChannelUpdate,
		Channel: &ch,
		UserIDs: models.Recipients(&ch),
	})
	return ch, nil
}
