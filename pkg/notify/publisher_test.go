package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"channeld/pkg/config"
	"channeld/pkg/models"
	"channeld/pkg/store"
)

type fakeConn struct {
	mu         sync.Mutex
	subjects   []string
	payloads   [][]byte
	publishErr error
	closed     bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func testCfg() config.BrokerConfig {
	return config.BrokerConfig{
		URL:           "nats://fake:4222",
		Subject:       "channeld.events",
		RetryInterval: config.Duration(time.Millisecond),
		MaxAttempts:   3,
	}
}

func waitState(t *testing.T, p *Publisher, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return p.State() == want }, time.Second, time.Millisecond,
		"want state %s, have %s", want, p.State())
}

func TestConnectAndPublish(t *testing.T) {
	conn := &fakeConn{}
	p := newWithDialer(testCfg(), func(url string, timeout time.Duration, onClosed func(error)) (brokerConn, error) {
		return conn, nil
	})
	p.Start()
	waitState(t, p, StateConnected)
	defer p.Close()

	p.Publish(models.Event{Type: models.EventChannelNew, Channel: &models.Channel{ID: 1, Name: "general"}})
	require.Equal(t, 1, conn.count())
	require.Equal(t, "channeld.events", conn.subjects[0])

	var ev models.Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &ev))
	require.NotEmpty(t, ev.ID)
	require.Equal(t, models.EventChannelNew, ev.Type)
	// empty recipient list still serializes, meaning broadcast
	require.NotNil(t, ev.UserIDs)
	require.Empty(t, ev.UserIDs)
}

func TestDegradedAfterExhaustedCycle(t *testing.T) {
	dials := 0
	p := newWithDialer(testCfg(), func(url string, timeout time.Duration, onClosed func(error)) (brokerConn, error) {
		dials++
		return nil, errors.New("connection refused")
	})
	p.Start()
	waitState(t, p, StateDegraded)
	defer p.Close()
	require.Equal(t, 3, dials)
}

func TestReconnectCycleResetsAttempts(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	var lost func(error)
	p := newWithDialer(testCfg(), func(url string, timeout time.Duration, onClosed func(error)) (brokerConn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		lost = onClosed
		return &fakeConn{}, nil
	})
	p.Start()
	waitState(t, p, StateConnected)
	defer p.Close()

	// a lost connection starts a fresh cycle instead of giving up
	mu.Lock()
	cb := lost
	mu.Unlock()
	cb(errors.New("broker restarted"))
	waitState(t, p, StateConnected)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, dials)
}

func TestPublishBuffersToOutboxWhileDown(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir(), 0))
	t.Cleanup(func() { _ = store.Close() })

	p := newWithDialer(testCfg(), func(url string, timeout time.Duration, onClosed func(error)) (brokerConn, error) {
		return nil, errors.New("connection refused")
	})
	// not started: state stays Disconnected
	p.Publish(models.Event{Type: models.EventMessageNew, Message: &models.Message{ID: 5}})

	entries, err := store.ListOutbox()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var ev models.Event
	require.NoError(t, json.Unmarshal(entries[0].Payload, &ev))
	require.Equal(t, models.EventMessageNew, ev.Type)
}

func TestPublishRawErrorTriggersReconnect(t *testing.T) {
	conn := &fakeConn{publishErr: errors.New("broken pipe")}
	dials := 0
	p := newWithDialer(testCfg(), func(url string, timeout time.Duration, onClosed func(error)) (brokerConn, error) {
		dials++
		if dials == 1 {
			return conn, nil
		}
		return &fakeConn{}, nil
	})
	p.Start()
	waitState(t, p, StateConnected)
	defer p.Close()

	require.Error(t, p.PublishRaw([]byte("{}")))
	waitState(t, p, StateConnected)
	require.Equal(t, 2, dials)
}

func TestGlobalPublisherNilDrops(t *testing.T) {
	SetGlobal(nil)
	// must not panic or block
	Publish(models.Event{Type: models.EventChannelDelete, ChannelID: 9})
}
