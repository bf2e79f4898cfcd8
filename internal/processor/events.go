package processor

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// BridgeEvent is the JSON payload published to NATS for each command
// lifecycle transition.
type BridgeEvent struct {
	Type        string `json:"type"` // "dequeued", "executed"
	CommandID   string `json:"command_id"`
	ProcessorID string `json:"processor_id"`
	Status      string `json:"status,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// EventPublisher publishes command lifecycle events to NATS so external
// monitors can follow the mailbox without polling storage themselves.
type EventPublisher struct {
	nc          *nats.Conn
	processorID string
}

// NewEventPublisher connects to NATS with endless reconnects, matching
// the at-most-best-effort role events play here.
func NewEventPublisher(natsURL, processorID string) (*EventPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &EventPublisher{nc: nc, processorID: processorID}, nil
}

// Publish sends one event. Failures are logged and dropped; events never
// block or fail the processing loop.
func (p *EventPublisher) Publish(ev BridgeEvent) {
	ev.ProcessorID = p.processorID
	ev.Timestamp = time.Now().UnixMilli()

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: marshal error: %v", err)
		return
	}

	subject := fmt.Sprintf("bridge.events.%s.%s", p.processorID, ev.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Printf("events: publish error for %s: %v", ev.CommandID, err)
	}
}

// Stop flushes and closes the NATS connection.
func (p *EventPublisher) Stop() {
	p.nc.Flush()
	p.nc.Close()
}
