package mailbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command statuses reported in a Result blob.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Command is the blob a client writes to request a remote execution.
// It is immutable once written and deleted by the processor that consumes it.
type Command struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // always "execute"
	Code      string `json:"code"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Tool      string `json:"tool"`
}

// Result is the blob a processor writes back for a consumed Command.
// It is deleted by the client that reads it.
type Result struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Output    string `json:"output"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Heartbeat is the liveness marker blob, overwritten by the processor
// on every cycle under a fixed name.
type Heartbeat struct {
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Status    string `json:"status"`    // always "running"
	Processor string `json:"processor,omitempty"`
}

// Staleness returns how long ago the heartbeat was written.
func (h Heartbeat) Staleness(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(h.Timestamp))
}

// NewCommandID returns a fresh command identifier. The tool tag and
// millisecond timestamp make ids sortable per origin; the uuid fragment
// rules out same-millisecond collisions.
func NewCommandID(tool string) string {
	return fmt.Sprintf("%s-%d-%s", tool, time.Now().UnixMilli(), uuid.NewString()[:8])
}
