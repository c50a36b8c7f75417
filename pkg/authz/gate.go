// Package authz is the authorization gate: pure predicates over store
// results deciding whether an identity may read or mutate a channel.
// A channel lookup miss is surfaced as ErrNotFound, distinctly from an
// authorization miss (ErrForbidden), so handlers can choose 404 vs 403.
package authz

import (
	"channeld/pkg/errs"
	"channeld/pkg/models"
	"channeld/pkg/store"
)

// IsCreator reports whether identity created the channel.
func IsCreator(ch *models.Channel, ident models.Identity) bool {
	return ch.Creator.ID == ident.ID
}

// IsMember reports whether identity may read the channel: every identity
// is an implicit member of a public channel; a private channel requires a
// membership row.
func IsMember(ch *models.Channel, ident models.Identity) bool {
	if !ch.Private {
		return true
	}
	return ch.ContainsUserID(ident.ID)
}

// RequireMember fetches the channel and fails with ErrNotFound when it
// does not exist and ErrForbidden when identity is not a member.
func RequireMember(chID int64, ident models.Identity) (models.Channel, error) {
	ch, err := store.GetChannel(chID)
	if err != nil {
		return models.Channel{}, err
	}
	if !IsMember(&ch, ident) {
		return models.Channel{}, errs.ErrForbidden
	}
	return ch, nil
}

// RequireCreator fetches the channel and fails with ErrNotFound when it
// does not exist and ErrForbidden when identity is not the creator.
func RequireCreator(chID int64, ident models.Identity) (models.Channel, error) {
	ch, err := store.GetChannel(chID)
	if err != nil {
		return models.Channel{}, err
	}
	if !IsCreator(&ch, ident) {
		return models.Channel{}, errs.ErrForbidden
	}
	return ch, nil
}
