package bridge

import (
	"context"
	"fmt"
)

const (
	TopicDecisions = "credit.decisions"
	TopicAlerts    = "credit.alerts"
)

// Transport is the opaque at-least-once delivery channel the engine sits
// behind. Broker adapters implement it; the engine never sees queue
// mechanics, only message bytes.
type Transport interface {
	// Receive blocks until a request message arrives or ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	Publish(ctx context.Context, topic string, body []byte) error
}

// ChanTransport is an in-process Transport over buffered channels. Tests and
// single-process deployments use it directly; redelivery is the producer's
// concern, matching broker semantics.
type ChanTransport struct {
	requests  chan []byte
	published map[string]chan []byte
}

func NewChanTransport(buffer int) *ChanTransport {
	return &ChanTransport{
		requests: make(chan []byte, buffer),
		published: map[string]chan []byte{
			TopicDecisions: make(chan []byte, buffer),
			TopicAlerts:    make(chan []byte, buffer),
		},
	}
}

// Send enqueues a request as the remote caller would.
func (t *ChanTransport) Send(ctx context.Context, body []byte) error {
	select {
	case t.requests <- body:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Send: %w", ctx.Err())
	}
}

func (t *ChanTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case body := <-t.requests:
		return body, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("Receive: %w", ctx.Err())
	}
}

func (t *ChanTransport) Publish(ctx context.Context, topic string, body []byte) error {
	ch, ok := t.published[topic]
	if !ok {
		return fmt.Errorf("Publish: unknown topic %q", topic)
	}
	select {
	case ch <- body:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Publish: %w", ctx.Err())
	}
}

// Published exposes a topic's outbound channel to the consuming side.
func (t *ChanTransport) Published(topic string) <-chan []byte {
	return t.published[topic]
}
