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

// CreateMessage persists the channel-scoped message row and its global
// locator in one batch. The channel must exist.
func CreateMessage(m models.Message) (models.Message, error) {
	if db == nil {
		return models.Message{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	var ch models.Channel
	if err := getJSON(chMetaKey(m.ChannelID), &ch); err != nil {
		return models.Message{}, err
	}

	batch := db.NewBatch()
	defer batch.Close()
	id, err := nextSeq(batch, "message")
	if err != nil {
		return models.Message{}, err
	}
	m.ID = id
	if m.Reactions == nil {
		m.Reactions = []models.Reaction{}
	}
	mb, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	if err := batch.Set(chMsgKey(m.ChannelID, id), mb, nil); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := batch.Set(msgLocatorKey(id), []byte(strconv.FormatInt(m.ChannelID, 10)), nil); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := commit(batch); err != nil {
		return models.Message{}, err
	}
	opsTotal.WithLabelValues("create_message").Inc()
	logger.Info("message_saved", "channel", m.ChannelID, "id", id)
	return m, nil
}

// GetMessage looks a message up by id via its locator row.
func GetMessage(id int64) (models.Message, error) {
	if db == nil {
		return models.Message{}, notOpen()
	}
	raw, closer, err := db.Get(msgLocatorKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, errs.ErrNotFound
		}
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	chID, _ := strconv.ParseInt(string(raw), 10, 64)
	_ = closer.Close()
	var m models.Message
	if err := getJSON(chMsgKey(chID, id), &m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// ListMessages returns the most recent limit messages of a channel ordered
// oldest-first. The channel must exist; limit <= 0 means no cap.
func ListMessages(chID int64, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, notOpen()
	}
	var ch models.Channel
	if err := getJSON(chMetaKey(chID), &ch); err != nil {
		return nil, err
	}
	out := []models.Message{}
	err := prefixScan(chMsgPrefix(chID), func(k, v []byte) bool {
		var m models.Message
		if err := json.Unmarshal(v, &m); err == nil {
			out = append(out, m)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// mutateMessage loads a message under mu, applies fn, and writes it back.
// fn returning false skips the write (no-op mutation).
func mutateMessage(id int64, fn func(*models.Message) (bool, error)) (models.Message, error) {
	if db == nil {
		return models.Message{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	raw, closer, err := db.Get(msgLocatorKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, errs.ErrNotFound
		}
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	chID, _ := strconv.ParseInt(string(raw), 10, 64)
	_ = closer.Close()

	var m models.Message
	if err := getJSON(chMsgKey(chID, id), &m); err != nil {
		return models.Message{}, err
	}
	changed, err := fn(&m)
	if err != nil {
		return models.Message{}, err
	}
	if !changed {
		return m, nil
	}
	mb, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	if err := db.Set(chMsgKey(chID, id), mb, pebble.Sync); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return m, nil
}

// UpdateMessageBody replaces the body iff creatorID authored the message.
func UpdateMessageBody(id, creatorID int64, body string, editedAt time.Time) (models.Message, error) {
	m, err := mutateMessage(id, func(m *models.Message) (bool, error) {
		if m.Creator.ID != creatorID {
			return false, errs.ErrForbidden
		}
		m.Body = body
		m.EditedAt = editedAt
		return true, nil
	})
	if err == nil {
		opsTotal.WithLabelValues("update_message").Inc()
	}
	return m, err
}

// DeleteMessage removes the message row and its locator in one batch iff
// creatorID authored it, and returns the deleted message.
func DeleteMessage(id, creatorID int64) (models.Message, error) {
	if db == nil {
		return models.Message{}, notOpen()
	}
	mu.Lock()
	defer mu.Unlock()

	raw, closer, err := db.Get(msgLocatorKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, errs.ErrNotFound
		}
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	chID, _ := strconv.ParseInt(string(raw), 10, 64)
	_ = closer.Close()

	var m models.Message
	if err := getJSON(chMsgKey(chID, id), &m); err != nil {
		return models.Message{}, err
	}
	if m.Creator.ID != creatorID {
		return models.Message{}, errs.ErrForbidden
	}

	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(chMsgKey(chID, id), nil); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := batch.Delete(msgLocatorKey(id), nil); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if err := commit(batch); err != nil {
		return models.Message{}, err
	}
	opsTotal.WithLabelValues("delete_message").Inc()
	logger.Info("message_deleted", "channel", chID, "id", id)
	return m, nil
}

// SetReaction records user's reaction on a message. A second reaction by
// the same user replaces the prior token; the same token is a no-op.
// The returned bool reports whether anything changed.
func SetReaction(msgID int64, user models.Identity, token string) (models.Message, bool, error) {
	changed := false
	m, err := mutateMessage(msgID, func(m *models.Message) (bool, error) {
		for i, r := range m.Reactions {
			if r.User.ID == user.ID {
				if r.Reaction == token {
					return false, nil
				}
				m.Reactions[i].Reaction = token
				changed = true
				return true, nil
			}
		}
		m.Reactions = append(m.Reactions, models.Reaction{User: user, Reaction: token})
		changed = true
		return true, nil
	})
	return m, changed, err
}

// RemoveReaction removes user's reaction if present; absent is a no-op.
func RemoveReaction(msgID, userID int64) (models.Message, bool, error) {
	changed := false
	m, err := mutateMessage(msgID, func(m *models.Message) (bool, error) {
		for i, r := range m.Reactions {
			if r.User.ID == userID {
				m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
				changed = true
				return true, nil
			}
		}
		return false, nil
	})
	return m, changed, err
}

// SetStar stars the message for userID; idempotent.
func SetStar(msgID, userID int64) (models.Message, bool, error) {
	changed := false
	m, err := mutateMessage(msgID, func(m *models.Message) (bool, error) {
		if m.StarredBy(userID) {
			return false, nil
		}
		m.Stars = append(m.Stars, userID)
		changed = true
		return true, nil
	})
	return m, changed, err
}

// RemoveStar unstars the message for userID; idempotent.
func RemoveStar(msgID, userID int64) (models.Message, bool, error) {
	changed := false
	m, err := mutateMessage(msgID, func(m *models.Message) (bool, error) {
		for i, id := range m.Stars {
			if id == userID {
				m.Stars = append(m.Stars[:i], m.Stars[i+1:]...)
				changed = true
				return true, nil
			}
		}
		return false, nil
	})
	return m, changed, err
}
