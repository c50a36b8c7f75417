// Package store is the adapter between the managers and the backing Pebble
// database. It owns the keyspace, translates storage failures into domain
// error kinds, and makes every multi-key mutation atomic through a single
// synced batch. It performs no authorization logic beyond the conditional
// creator guards that keep check-then-write sequences atomic.
//
// Keyspace (all values JSON):
//
//	sys:seq:channel                         int64 counter
//	sys:seq:message                         int64 counter
//	user:<016x id>                          Identity registry row
//	channel:<016x id>:meta                  Channel (without members)
//	channel:<016x id>:member:<06d seq>      Identity membership row
//	channel:<016x id>:memberidx:<016x uid>  membership uniqueness index
//	channel:<016x id>:msg:<016x mid>        Message (key order == creation order)
//	msg:<016x mid>                          channel id locator
//	outbox:<020d ns>-<06d seq>              buffered broker event
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"

	"channeld/pkg/errs"
	"channeld/pkg/logger"
	"channeld/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string

	// mu serializes all mutations so read-check-then-write sequences (seq
	// allocation, duplicate-membership checks, creator guards) commit
	// exactly once under concurrency.
	mu sync.Mutex
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package. cacheSize <= 0 leaves the
// pebble default in place.
func Open(path string, cacheSize int64) error {
	opts := &pebble.Options{}
	if cacheSize > 0 {
		cache := pebble.NewCache(cacheSize)
		defer cache.Unref()
		opts.Cache = cache
	}
	logger.Info("opening_pebble_db", "path", path)
	var err error
	db, err = pebble.Open(path, opts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpen() error {
	return fmt.Errorf("%w: pebble not opened; call store.Open first", errs.ErrStoreUnavailable)
}

// nextSeq allocates the next id for the given entity kind. Callers must
// hold mu; the write rides in batch so the allocation commits with the row
// it numbers.
func nextSeq(batch *pebble.Batch, kind string) (int64, error) {
	key := []byte("sys:seq:" + kind)
	var cur int64
	v, closer, err := db.Get(key)
	switch {
	case err == nil:
		cur, _ = strconv.ParseInt(string(v), 10, 64)
		_ = closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
		cur = 0
	default:
		return 0, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	cur++
	if err := batch.Set(key, []byte(strconv.FormatInt(cur, 10)), nil); err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return cur, nil
}

func getJSON(key []byte, v interface{}) error {
	if db == nil {
		return notOpen()
	}
	raw, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("corrupt row %q: %w", key, err)
	}
	return nil
}

// prefixScan calls fn for every key/value pair under prefix in key order.
// fn returning false stops the scan early.
func prefixScan(prefix []byte, fn func(k, v []byte) bool) error {
	if db == nil {
		return notOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	defer iter.Close()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		v := append([]byte(nil), iter.Value()...)
		if !fn(k, v) {
			break
		}
	}
	return iter.Error()
}

func commit(batch *pebble.Batch) error {
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// key builders

func userKey(id int64) []byte {
	return []byte(fmt.Sprintf("user:%016x", id))
}

func chMetaKey(id int64) []byte {
	return []byte(fmt.Sprintf("channel:%016x:meta", id))
}

func chMemberPrefix(id int64) []byte {
	return []byte(fmt.Sprintf("channel:%016x:member:", id))
}

func chMemberKey(id int64, seq int) []byte {
	return []byte(fmt.Sprintf("channel:%016x:member:%06d", id, seq))
}

func chMemberIdxPrefix(id int64) []byte {
	return []byte(fmt.Sprintf("channel:%016x:memberidx:", id))
}

func chMemberIdxKey(id, userID int64) []byte {
	return []byte(fmt.Sprintf("channel:%016x:memberidx:%016x", id, userID))
}

func chMsgPrefix(id int64) []byte {
	return []byte(fmt.Sprintf("channel:%016x:msg:", id))
}

func chMsgKey(chID, msgID int64) []byte {
	return []byte(fmt.Sprintf("channel:%016x:msg:%016x", chID, msgID))
}

func msgLocatorKey(id int64) []byte {
	return []byte(fmt.Sprintf("msg:%016x", id))
}

// PutIdentity upserts an identity into the user registry. The registry is
// what membership inserts resolve against, so an unknown member id maps to
// a foreign-key style failure.
func PutIdentity(id models.Identity) error {
	if db == nil {
		return notOpen()
	}
	b, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := db.Set(userKey(id.ID), b, pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// GetIdentity returns the registered identity for id.
func GetIdentity(id int64) (models.Identity, error) {
	var ident models.Identity
	if err := getJSON(userKey(id), &ident); err != nil {
		return models.Identity{}, err
	}
	return ident, nil
}
