// Package notify publishes lifecycle events to the broker for the
// real-time gateway. Publishing is strictly best-effort: a failed or
// absent connection is logged and buffered, never surfaced to the request
// path. Persistence failures are hard errors; notification failures are
// soft. The connection handle and retry counter are guarded by a single
// mutex because reconnect attempts run on their own timer, independent of
// request goroutines.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"channeld/pkg/config"
	"channeld/pkg/logger"
	"channeld/pkg/models"
	"channeld/pkg/store"
)

// State is the broker connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateDegraded is entered after a retry cycle exhausts its attempts;
	// Publish becomes log-and-buffer only and HTTP serving continues.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// brokerConn is the minimal connection surface the state machine needs;
// the NATS implementation lives in nats.go and tests substitute fakes.
type brokerConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// dialFunc dials the broker once. onClosed fires when an established
// connection is lost.
type dialFunc func(url string, timeout time.Duration, onClosed func(error)) (brokerConn, error)

// Publisher owns the connect/reconnect state machine.
type Publisher struct {
	cfg  config.BrokerConfig
	dial dialFunc

	mu    sync.Mutex
	state State
	conn  brokerConn
	cycle int // incremented per retry cycle so stale goroutines stand down
	stop  chan struct{}
}

// New builds a publisher dialing NATS at cfg.URL. Start must be called
// before Publish does anything useful.
func New(cfg config.BrokerConfig) *Publisher {
	return &Publisher{cfg: cfg, dial: natsDial, stop: make(chan struct{})}
}

// newWithDialer is the test seam.
func newWithDialer(cfg config.BrokerConfig, dial dialFunc) *Publisher {
	return &Publisher{cfg: cfg, dial: dial, stop: make(chan struct{})}
}

// Start enters Connecting and begins the bounded retry loop in the
// background. It never blocks.
func (p *Publisher) Start() {
	p.mu.Lock()
	p.state = StateConnecting
	p.cycle++
	cycle := p.cycle
	p.mu.Unlock()
	stateGauge.Set(float64(StateConnecting))
	go p.retryLoop(cycle)
}

// retryLoop dials the broker every RetryInterval up to MaxAttempts times.
// The counter belongs to the cycle: a fresh disconnection starts a fresh
// cycle at zero, so a transient broker restart long after startup cannot
// cause a permanent lockout.
func (p *Publisher) retryLoop(cycle int) {
	interval := p.cfg.RetryInterval.Duration()
	for attempt := 1; ; attempt++ {
		p.mu.Lock()
		if p.cycle != cycle {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		conn, err := p.dial(p.cfg.URL, interval, func(cause error) {
			p.onConnectionLost(cycle, cause)
		})
		if err == nil {
			p.mu.Lock()
			if p.cycle != cycle {
				p.mu.Unlock()
				conn.Close()
				return
			}
			p.conn = conn
			p.state = StateConnected
			p.mu.Unlock()
			stateGauge.Set(float64(StateConnected))
			logger.Info("broker_connected", "url", p.cfg.URL, "attempt", attempt)
			return
		}
		logger.Warn("broker_dial_failed", "url", p.cfg.URL, "attempt", attempt, "max", p.cfg.MaxAttempts, "error", err)
		if attempt >= p.cfg.MaxAttempts {
			p.mu.Lock()
			if p.cycle == cycle {
				p.state = StateDegraded
			}
			p.mu.Unlock()
			stateGauge.Set(float64(StateDegraded))
			logger.Error("broker_degraded", "url", p.cfg.URL, "attempts", attempt)
			return
		}
		select {
		case <-p.stop:
			return
		case <-time.After(interval):
		}
	}
}

// onConnectionLost moves Connected -> Disconnected and starts a fresh
// retry cycle with the attempt counter reset.
func (p *Publisher) onConnectionLost(cycle int, cause error) {
	p.mu.Lock()
	if p.cycle != cycle || p.state != StateConnected {
		p.mu.Unlock()
		return
	}
	p.conn = nil
	p.state = StateConnecting
	p.cycle++
	next := p.cycle
	p.mu.Unlock()
	stateGauge.Set(float64(StateConnecting))
	logger.Warn("broker_connection_lost", "url", p.cfg.URL, "error", cause)
	go p.retryLoop(next)
}

// State returns the current connection state.
func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Publish serializes the event and hands it to the broker. It never
// returns an error and never blocks the request path on reconnection:
// when the connection is down the event is logged and buffered to the
// outbox for the sweeper.
func (p *Publisher) Publish(ev models.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.UserIDs == nil {
		ev.UserIDs = []int64{}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("event_marshal_failed", "type", ev.Type, "error", err)
		return
	}
	if err := p.PublishRaw(data); err != nil {
		logger.Warn("event_publish_deferred", "type", ev.Type, "error", err)
		bufferedTotal.Inc()
		if serr := store.AppendOutbox(data); serr != nil {
			logger.Error("event_buffer_failed", "type", ev.Type, "error", serr)
		}
		return
	}
	publishedTotal.WithLabelValues(ev.Type).Inc()
	logger.Info("event_published", "type", ev.Type, "recipients", len(ev.UserIDs))
}

// PublishRaw sends pre-serialized bytes to the broker, returning an error
// when the connection is absent or the write fails. Used by Publish and by
// the outbox sweeper.
func (p *Publisher) PublishRaw(data []byte) error {
	p.mu.Lock()
	conn := p.conn
	state := p.state
	cycle := p.cycle
	p.mu.Unlock()
	if state != StateConnected || conn == nil {
		return errNotConnected{state}
	}
	if err := conn.Publish(p.cfg.Subject, data); err != nil {
		p.onConnectionLost(cycle, err)
		return err
	}
	return nil
}

// Close stops the retry loop and releases the connection.
func (p *Publisher) Close() {
	close(p.stop)
	p.mu.Lock()
	p.cycle++ // invalidate in-flight loops
	conn := p.conn
	p.conn = nil
	p.state = StateDisconnected
	p.mu.Unlock()
	stateGauge.Set(float64(StateDisconnected))
	if conn != nil {
		conn.Close()
	}
}

type errNotConnected struct{ state State }

func (e errNotConnected) Error() string { return "broker not connected: " + e.state.String() }

// global publisher, set during bootstrap; nil means events are dropped
// with a log line (tests, or notification disabled)

var (
	globalMu sync.RWMutex
	global   *Publisher
)

// SetGlobal installs the process-wide publisher used by the managers.
func SetGlobal(p *Publisher) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = p
}

// Global returns the installed publisher or nil.
func Global() *Publisher {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Publish sends the event through the installed publisher. Without one the
// event is dropped with a debug line; callers never observe an error
// either way.
func Publish(ev models.Event) {
	p := Global()
	if p == nil {
		logger.Debug("event_dropped_no_publisher", "type", ev.Type)
		return
	}
	p.Publish(ev)
}
