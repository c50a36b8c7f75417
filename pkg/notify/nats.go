package notify

import (
	"time"

	"github.com/nats-io/nats.go"
)

type natsConn struct {
	nc *nats.Conn
}

func (c *natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *natsConn) Close() {
	c.nc.Close()
}

// natsDial performs a single dial attempt; the state machine in this
// package owns retries, so the client's built-in reconnection is disabled
// and connection loss is reported through the closed handler.
func natsDial(url string, timeout time.Duration, onClosed func(error)) (brokerConn, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.ClosedHandler(func(nc *nats.Conn) {
			onClosed(nc.LastError())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &natsConn{nc: nc}, nil
}
