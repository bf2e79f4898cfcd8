// Package processor implements the remote side of the mailbox protocol:
// list pending command blobs, execute each exactly once per processor
// lifetime, write the paired result, delete the consumed command.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/blobbridge/blobbridge/internal/mailbox"
	"github.com/blobbridge/blobbridge/internal/metrics"
	"github.com/blobbridge/blobbridge/internal/storage"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultCallTimeout  = 10 * time.Second
)

// Outcome tags what happened when the processor tried to claim a listed
// command. The protocol does not define two-processor behavior; tagging
// the race keeps it observable instead of silently ignored.
type Outcome int

const (
	// Won: this processor owns the command and will execute it.
	Won Outcome = iota
	// LostRace: the command vanished between listing and fetch, so
	// another processor (or a sweep) consumed it first.
	LostRace
	// AlreadyConsumed: this processor handled the id before; a prior
	// delete must have failed.
	AlreadyConsumed
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "won"
	case LostRace:
		return "lost_race"
	case AlreadyConsumed:
		return "already_consumed"
	default:
		return "unknown"
	}
}

// Config wires a Processor.
type Config struct {
	Store storage.Adapter
	Exec  Executor
	Dedup Dedup

	ProcessorID string
	// PollInterval is the fixed sleep between listing cycles. The
	// processor has no per-command urgency, so no adaptive backoff.
	PollInterval time.Duration
	// RunDuration bounds the processor lifetime; zero means run until
	// the context is cancelled.
	RunDuration time.Duration
	// CallTimeout bounds each individual storage call.
	CallTimeout time.Duration

	// PreExec and PostExec are optional hooks run around each command,
	// typically wired to workspace sync. Hook errors are logged, never
	// fatal.
	PreExec  func(ctx context.Context) error
	PostExec func(ctx context.Context) error

	// Events is an optional lifecycle publisher.
	Events *EventPublisher
}

// Status is a point-in-time snapshot for the status API.
type Status struct {
	ProcessorID   string    `json:"processor_id"`
	Started       time.Time `json:"started"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Processed     int64     `json:"processed"`
	LastCycle     time.Time `json:"last_cycle"`
}

// Processor drives IDLE -> LISTING -> EXECUTING -> RESPONDING cycles.
// Commands are executed strictly sequentially: one finishes, success or
// error, before the next is dequeued.
type Processor struct {
	cfg Config

	mu        sync.Mutex
	started   time.Time
	processed int64
	lastCycle time.Time
}

// New creates a processor. Store, Exec, and Dedup are required.
func New(cfg Config) (*Processor, error) {
	if cfg.Store == nil || cfg.Exec == nil || cfg.Dedup == nil {
		return nil, fmt.Errorf("processor: store, executor, and dedup are required")
	}
	if cfg.ProcessorID == "" {
		cfg.ProcessorID = "proc-local"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Processor{cfg: cfg}, nil
}

// Snapshot returns current counters for the status API.
func (p *Processor) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		ProcessorID: p.cfg.ProcessorID,
		Started:     p.started,
		Processed:   p.processed,
		LastCycle:   p.lastCycle,
	}
	if !p.started.IsZero() {
		s.UptimeSeconds = int64(time.Since(p.started).Seconds())
	}
	return s
}

// Run processes cycles until ctx is done or the configured run duration
// elapses. It returns nil on a clean stop.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()

	if p.cfg.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunDuration)
		defer cancel()
	}

	log.Printf("processor: started (id=%s, interval=%s)", p.cfg.ProcessorID, p.cfg.PollInterval)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("processor: stopping (%d commands processed)", p.Snapshot().Processed)
			return nil
		case <-ticker.C:
			p.Cycle(ctx)
		}
	}
}

// Cycle performs one LISTING pass and handles every newly claimed
// command. Exported so tests and embedding daemons can step the state
// machine without the timing loop.
func (p *Processor) Cycle(ctx context.Context) {
	p.mu.Lock()
	p.lastCycle = time.Now()
	p.mu.Unlock()

	hbCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	if err := writeHeartbeat(hbCtx, p.cfg.Store, p.cfg.ProcessorID); err != nil {
		log.Printf("processor: %v", err)
	}
	cancel()

	listCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	names, err := p.cfg.Store.List(listCtx, mailbox.CommandPrefix)
	cancel()
	if err != nil {
		// Transient storage trouble: skip the cycle, keep the loop.
		log.Printf("processor: list commands: %v", err)
		return
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		id, ok := mailbox.ParseCommandID(name)
		if !ok {
			log.Printf("processor: ignoring unparseable blob name %q", name)
			continue
		}

		cmd, outcome := p.claim(ctx, id, name)
		metrics.ClaimOutcomes.WithLabelValues(outcome.String()).Inc()
		switch outcome {
		case AlreadyConsumed:
			continue
		case LostRace:
			log.Printf("processor: lost race for command %s", id)
			continue
		}

		p.handle(ctx, cmd, name)
	}
}

// claim decides ownership of a listed command id. Dedup is consulted
// before the fetch so a command left behind by a failed delete is never
// re-executed within this processor's lifetime.
func (p *Processor) claim(ctx context.Context, id, name string) (*mailbox.Command, Outcome) {
	if p.cfg.Dedup.Seen(id) {
		return nil, AlreadyConsumed
	}

	getCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	data, err := p.cfg.Store.Get(getCtx, name)
	cancel()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, LostRace
		}
		log.Printf("processor: fetch command %s: %v (retrying next cycle)", id, err)
		return nil, LostRace
	}

	var cmd mailbox.Command
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.ID != id {
		// Malformed command blobs still get a response, or the client
		// would poll until timeout with no explanation.
		cmd = mailbox.Command{ID: id, Type: "execute"}
		log.Printf("processor: malformed command blob %s, responding with error", id)
		return &cmd, Won
	}
	return &cmd, Won
}

// handle runs EXECUTING and RESPONDING for one owned command. Execution
// failures become error results; nothing here may kill the loop.
func (p *Processor) handle(ctx context.Context, cmd *mailbox.Command, name string) {
	if p.cfg.Events != nil {
		p.cfg.Events.Publish(BridgeEvent{Type: "dequeued", CommandID: cmd.ID})
	}
	if p.cfg.PreExec != nil {
		if err := p.cfg.PreExec(ctx); err != nil {
			log.Printf("processor: pre-exec hook: %v", err)
		}
	}

	start := time.Now()
	res := p.execute(ctx, cmd)
	elapsed := time.Since(start)

	metrics.ExecDuration.WithLabelValues(res.Status).Observe(elapsed.Seconds())
	metrics.CommandsProcessed.WithLabelValues(res.Status).Inc()
	log.Printf("processor: command %s finished (status=%s, %dms)", cmd.ID, res.Status, elapsed.Milliseconds())

	p.respond(ctx, cmd.ID, name, res)

	if p.cfg.PostExec != nil {
		if err := p.cfg.PostExec(ctx); err != nil {
			log.Printf("processor: post-exec hook: %v", err)
		}
	}
	if p.cfg.Events != nil {
		p.cfg.Events.Publish(BridgeEvent{
			Type:       "executed",
			CommandID:  cmd.ID,
			Status:     res.Status,
			DurationMS: elapsed.Milliseconds(),
		})
	}
}

func (p *Processor) execute(ctx context.Context, cmd *mailbox.Command) mailbox.Result {
	res := mailbox.Result{ID: cmd.ID, Timestamp: time.Now().UnixMilli()}

	if cmd.Code == "" {
		res.Status = mailbox.StatusError
		res.Error = "empty or malformed command payload"
		return res
	}

	output, err := p.cfg.Exec.Execute(ctx, cmd.Code)
	res.Output = output
	res.Timestamp = time.Now().UnixMilli()
	switch {
	case err == nil:
		res.Status = mailbox.StatusSuccess
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = mailbox.StatusTimeout
		res.Error = err.Error()
	default:
		res.Status = mailbox.StatusError
		res.Error = err.Error()
	}
	return res
}

// respond writes the result blob, marks the id processed, then deletes
// the command blob. The ordering matters: once the id is marked, a
// failed delete only leaves a skippable leftover, never a second
// execution or a second result write.
func (p *Processor) respond(ctx context.Context, id, name string, res mailbox.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Printf("processor: marshal result %s: %v", id, err)
		return
	}

	putCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	err = p.cfg.Store.Put(putCtx, mailbox.ResultBlobName(id), data)
	cancel()
	if err != nil {
		// Result not delivered; leave the command unmarked so the next
		// cycle retries the whole exchange.
		log.Printf("processor: write result %s: %v", id, err)
		return
	}

	if err := p.cfg.Dedup.Mark(id); err != nil {
		log.Printf("processor: mark processed %s: %v", id, err)
	}

	p.mu.Lock()
	p.processed++
	p.mu.Unlock()

	delCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	err = p.cfg.Store.Delete(delCtx, name)
	cancel()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("processor: delete command %s: %v (dedup will skip it)", id, err)
	}
}
