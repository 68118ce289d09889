package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces notification subjects on the bus. The full
// subject is tradeconnect.notifications.<template>.
const subjectPrefix = "tradeconnect.notifications."

// NatsDispatcher publishes notification events to NATS.
type NatsDispatcher struct {
	conn *nats.Conn
}

// NewNatsDispatcher creates a dispatcher over an existing connection.
func NewNatsDispatcher(conn *nats.Conn) *NatsDispatcher {
	return &NatsDispatcher{conn: conn}
}

var _ Dispatcher = (*NatsDispatcher)(nil)

// Dispatch publishes the message on its template subject.
func (d *NatsDispatcher) Dispatch(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := d.conn.Publish(subjectPrefix+string(msg.Template), data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
