package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"

	"channeld/pkg/errs"
	"channeld/pkg/logger"
	"channeld/pkg/models"
)

// CreateChannel persists the channel row and, for private channels, its
// membership rows (creator first, then memberIDs in order, deduplicated) in
// one batch. Any member id that does not resolve in the user registry
// aborts the whole batch with ErrUnknownReference, so a half-created
// channel can never be observed.
func CreateChannel(ch models.Channel, memberIDs []int64) (models.Channel, error) {
	if db == nil {
		return models.Channel{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	batch := db.NewBatch()
	defer batch.Close()

	id, err := nextSeq(batch, "channel")
	if err != nil {
		return models.Channel{}, err
	}
	ch.ID = id
	ch.Members = nil

	if ch.Private {
		ordered := append([]int64{ch.Creator.ID}, memberIDs...)
		seen := map[int64]struct{}{}
		seq := 0
		for _, uid := range ordered {
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			ident, err := GetIdentity(uid)
			if err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					return models.Channel{}, fmt.Errorf("%w: user %d", errs.ErrUnknownReference, uid)
				}
				return models.Channel{}, err
			}
			mb, err := json.Marshal(ident)
			if err != nil {
				return models.Channel{}, fmt.Errorf("marshal member: %w", err)
			}
			if err := batch.Set(chMemberKey(id, seq), mb, nil); err != nil {
				return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
			}
			if err := batch.Set(chMemberIdxKey(id, uid), []byte(strconv.Itoa(seq)), nil); err != nil {
				return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
			}
			ch.Members = append(ch.Members, ident)
			seq++
		}
	}

	cb, err := json.Marshal(stripMembers(ch))
	if err != nil {
		return models.Channel{}, fmt.Errorf("marshal channel: %w", err)
	}
	if err := batch.Set(chMetaKey(id), cb, nil); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := commit(batch); err != nil {
		return models.Channel{}, err
	}
	opsTotal.WithLabelValues("create_channel").Inc()
	logger.Info("channel_saved", "channel", id, "private", ch.Private, "members", len(ch.Members))
	return ch, nil
}

// stripMembers returns a copy without the member list; members live in
// their own rows.
func stripMembers(ch models.Channel) models.Channel {
	ch.Members = nil
	return ch
}

// GetChannel returns the channel with its member list attached in
// insertion order.
func GetChannel(id int64) (models.Channel, error) {
	var ch models.Channel
	if err := getJSON(chMetaKey(id), &ch); err != nil {
		return models.Channel{}, err
	}
	members, err := ChannelMembers(id)
	if err != nil {
		return models.Channel{}, err
	}
	ch.Members = members
	return ch, nil
}

// ChannelMembers returns the explicit member rows in insertion order.
func ChannelMembers(id int64) ([]models.Identity, error) {
	members := []models.Identity{}
	err := prefixScan(chMemberPrefix(id), func(k, v []byte) bool {
		var ident models.Identity
		if json.Unmarshal(v, &ident) == nil {
			members = append(members, ident)
		}
		return true
	})
	return members, err
}

// ListChannels returns every channel with members attached.
func ListChannels() ([]models.Channel, error) {
	metas := []models.Channel{}
	err := prefixScan([]byte("channel:"), func(k, v []byte) bool {
		if !isMetaKey(k) {
			return true
		}
		var ch models.Channel
		if json.Unmarshal(v, &ch) == nil {
			metas = append(metas, ch)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	for i := range metas {
		members, err := ChannelMembers(metas[i].ID)
		if err != nil {
			return nil, err
		}
		metas[i].Members = members
	}
	return metas, nil
}

func isMetaKey(k []byte) bool {
	return len(k) > 5 && string(k[len(k)-5:]) == ":meta"
}

// UpdateChannel applies the non-empty name/description to the channel row
// iff creatorID matches, in the manner of a conditional UPDATE checked by
// affected rows. Returns the updated channel with members.
func UpdateChannel(id, creatorID int64, newName, newDescription string, editedAt time.Time) (models.Channel, error) {
	if db == nil {
		return models.Channel{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	var ch models.Channel
	if err := getJSON(chMetaKey(id), &ch); err != nil {
		return models.Channel{}, err
	}
	if ch.Creator.ID != creatorID {
		return models.Channel{}, errs.ErrForbidden
	}
	if newName != "" {
		ch.Name = newName
	}
	if newDescription != "" {
		ch.Description = newDescription
	}
	ch.EditedAt = editedAt
	cb, err := json.Marshal(stripMembers(ch))
	if err != nil {
		return models.Channel{}, fmt.Errorf("marshal channel: %w", err)
	}
	if err := db.Set(chMetaKey(id), cb, pebble.Sync); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	opsTotal.WithLabelValues("update_channel").Inc()
	members, err := ChannelMembers(id)
	if err != nil {
		return models.Channel{}, err
	}
	ch.Members = members
	return ch, nil
}

// DeleteChannelCascade removes membership rows, then message rows (and
// their locators), then the channel row, all in one batch, iff creatorID
// matches. It returns the channel as it was before deletion, members
// attached, so the caller can address the delete notification.
func DeleteChannelCascade(id, creatorID int64) (models.Channel, error) {
	if db == nil {
		return models.Channel{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	var ch models.Channel
	if err := getJSON(chMetaKey(id), &ch); err != nil {
		return models.Channel{}, err
	}
	if ch.Creator.ID != creatorID {
		return models.Channel{}, errs.ErrForbidden
	}
	members, err := ChannelMembers(id)
	if err != nil {
		return models.Channel{}, err
	}
	ch.Members = members

	batch := db.NewBatch()
	defer batch.Close()

	// memberships first, then messages, then the channel row
	for _, prefix := range [][]byte{chMemberPrefix(id), chMemberIdxPrefix(id)} {
		if err := deletePrefix(batch, prefix); err != nil {
			return models.Channel{}, err
		}
	}
	err = prefixScan(chMsgPrefix(id), func(k, v []byte) bool {
		var m models.Message
		if json.Unmarshal(v, &m) == nil {
			_ = batch.Delete(msgLocatorKey(m.ID), nil)
		}
		_ = batch.Delete(k, nil)
		return true
	})
	if err != nil {
		return models.Channel{}, err
	}
	if err := batch.Delete(chMetaKey(id), nil); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := commit(batch); err != nil {
		return models.Channel{}, err
	}
	opsTotal.WithLabelValues("delete_channel").Inc()
	logger.Info("channel_deleted", "channel", id, "members", len(members))
	return ch, nil
}

func deletePrefix(batch *pebble.Batch, prefix []byte) error {
	return prefixScan(prefix, func(k, v []byte) bool {
		_ = batch.Delete(k, nil)
		return true
	})
}

// AddMember inserts a membership row iff creatorID owns the channel, the
// channel is private, the user exists, and no row for the user is present.
// Exactly one of two concurrent identical calls succeeds; the other
// observes ErrConflict.
func AddMember(chID, creatorID, newMemberID int64) (models.Channel, error) {
	if db == nil {
		return models.Channel{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	var ch models.Channel
	if err := getJSON(chMetaKey(chID), &ch); err != nil {
		return models.Channel{}, err
	}
	if ch.Creator.ID != creatorID {
		return models.Channel{}, errs.ErrForbidden
	}
	if !ch.Private {
		return models.Channel{}, fmt.Errorf("%w: public channels have no explicit members", errs.ErrInvalidArgument)
	}
	if _, closer, err := db.Get(chMemberIdxKey(chID, newMemberID)); err == nil {
		_ = closer.Close()
		return models.Channel{}, fmt.Errorf("%w: user %d is already a member", errs.ErrConflict, newMemberID)
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	ident, err := GetIdentity(newMemberID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return models.Channel{}, fmt.Errorf("%w: user %d", errs.ErrUnknownReference, newMemberID)
		}
		return models.Channel{}, err
	}

	// next insertion seq is one past the highest existing row, not the row
	// count; earlier removals may have left gaps
	seq := 0
	prefix := chMemberPrefix(chID)
	if err := prefixScan(prefix, func(k, v []byte) bool {
		if n, err := strconv.Atoi(string(k[len(prefix):])); err == nil && n >= seq {
			seq = n + 1
		}
		return true
	}); err != nil {
		return models.Channel{}, err
	}

	batch := db.NewBatch()
	defer batch.Close()
	mb, err := json.Marshal(ident)
	if err != nil {
		return models.Channel{}, fmt.Errorf("marshal member: %w", err)
	}
	if err := batch.Set(chMemberKey(chID, seq), mb, nil); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := batch.Set(chMemberIdxKey(chID, newMemberID), []byte(strconv.Itoa(seq)), nil); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := commit(batch); err != nil {
		return models.Channel{}, err
	}
	opsTotal.WithLabelValues("add_member").Inc()
	logger.Info("member_added", "channel", chID, "user", newMemberID)

	members, err := ChannelMembers(chID)
	if err != nil {
		return models.Channel{}, err
	}
	ch.Members = members
	return ch, nil
}

// RemoveMember deletes a membership row iff creatorID owns the channel.
// Removing the creator is rejected: the creator is always a member of a
// private channel.
func RemoveMember(chID, creatorID, memberID int64) (models.Channel, error) {
	if db == nil {
		return models.Channel{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	var ch models.Channel
	if err := getJSON(chMetaKey(chID), &ch); err != nil {
		return models.Channel{}, err
	}
	if ch.Creator.ID != creatorID {
		return models.Channel{}, errs.ErrForbidden
	}
	if !ch.Private {
		return models.Channel{}, fmt.Errorf("%w: public channels have no explicit members", errs.ErrInvalidArgument)
	}
	if memberID == ch.Creator.ID {
		return models.Channel{}, fmt.Errorf("%w: cannot remove the channel creator", errs.ErrInvalidArgument)
	}
	raw, closer, err := db.Get(chMemberIdxKey(chID, memberID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Channel{}, fmt.Errorf("%w: user %d", errs.ErrNotMember, memberID)
		}
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	seq, _ := strconv.Atoi(string(raw))
	_ = closer.Close()

	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(chMemberKey(chID, seq), nil); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := batch.Delete(chMemberIdxKey(chID, memberID), nil); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := commit(batch); err != nil {
		return models.Channel{}, err
	}
	opsTotal.WithLabelValues("remove_member").Inc()
	logger.Info("member_removed", "channel", chID, "user", memberID)

	members, err := ChannelMembers(chID)
	if err != nil {
		return models.Channel{}, err
	}
	ch.Members = members
	return ch, nil
}
