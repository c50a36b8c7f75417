package store

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"channeld/pkg/errs"
)

// outboxSeq reduces key collisions when multiple events share the same
// nanosecond timestamp.
var outboxSeq uint64

// OutboxEntry is a buffered broker event awaiting republish.
type OutboxEntry struct {
	Key     string
	Payload []byte
	Time    time.Time
}

func outboxKey(ts int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("outbox:%020d-%06d", ts, seq))
}

// AppendOutbox buffers a serialized event that could not be published.
func AppendOutbox(payload []byte) error {
	if db == nil {
		return notOpen()
	}
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&outboxSeq, 1)
	if err := db.Set(outboxKey(ts, s), payload, pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	opsTotal.WithLabelValues("outbox_append").Inc()
	return nil
}

// ListOutbox returns pending entries oldest-first.
func ListOutbox() ([]OutboxEntry, error) {
	out := []OutboxEntry{}
	err := prefixScan([]byte("outbox:"), func(k, v []byte) bool {
		e := OutboxEntry{Key: string(k), Payload: v}
		// key layout: outbox:<20-digit ns>-<6-digit seq>
		if len(e.Key) >= 27 {
			if ts, serr := strconv.ParseInt(e.Key[7:27], 10, 64); serr == nil {
				e.Time = time.Unix(0, ts).UTC()
			}
		}
		out = append(out, e)
		return true
	})
	return out, err
}

// DeleteOutbox removes the given entries in one batch.
func DeleteOutbox(keys []string) error {
	if db == nil {
		return notOpen()
	}
	if len(keys) == 0 {
		return nil
	}
	batch := db.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete([]byte(k), nil); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
		}
	}
	return commit(batch)
}
