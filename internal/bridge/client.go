// Package bridge implements the client side of the mailbox protocol:
// submit a command blob, poll for the paired result with adaptive
// backoff, consume and delete the result.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/blobbridge/blobbridge/internal/mailbox"
	"github.com/blobbridge/blobbridge/internal/metrics"
	"github.com/blobbridge/blobbridge/internal/storage"
)

const (
	defaultPollTimeout = 60 * time.Second
	defaultCallTimeout = 10 * time.Second
)

// PendingError is returned when no result appeared within the poll
// timeout. It carries the command id so the caller can poll again later
// without resubmitting; the remote side may still execute the command.
type PendingError struct {
	ID     string
	Waited time.Duration
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("command %s still pending after %s", e.ID, e.Waited)
}

// Options configures a Client.
type Options struct {
	// Tool is the origin tag embedded in command ids and envelopes.
	Tool string
	// PollTimeout bounds how long Submit and Poll wait for a result.
	PollTimeout time.Duration
	// CallTimeout bounds each individual storage call, so a hung
	// network round trip cannot eat the whole poll budget.
	CallTimeout time.Duration
}

// Client submits commands and consumes their results.
type Client struct {
	store       storage.Adapter
	tool        string
	pollTimeout time.Duration
	callTimeout time.Duration
}

// NewClient creates a bridge client on top of the given storage adapter.
func NewClient(store storage.Adapter, opts Options) *Client {
	if opts.Tool == "" {
		opts.Tool = "bb"
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Client{
		store:       store,
		tool:        opts.Tool,
		pollTimeout: opts.PollTimeout,
		callTimeout: opts.CallTimeout,
	}
}

// Submit writes a command blob and polls for its result. The write fails
// loudly; everything after it is best-effort polling. The poll deadline
// starts after the write returns, so a slow submission round trip does
// not eat into the caller's wait budget.
//
// On timeout the returned error is a *PendingError carrying the command
// id; the caller may pass it to Poll later without resubmitting.
func (c *Client) Submit(ctx context.Context, code string) (*mailbox.Result, error) {
	id := mailbox.NewCommandID(c.tool)
	cmd := mailbox.Command{
		ID:        id,
		Type:      "execute",
		Code:      code,
		Timestamp: time.Now().UnixMilli(),
		Tool:      c.tool,
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command %s: %w", id, err)
	}

	putCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	err = c.store.Put(putCtx, mailbox.CommandBlobName(id), data)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("submit command %s: %w", id, err)
	}
	metrics.CommandsSubmitted.WithLabelValues(c.tool).Inc()

	return c.Poll(ctx, id)
}

// Poll waits for the result paired with id, using the adaptive backoff
// schedule, until the result appears, ctx is cancelled, or the poll
// timeout elapses. The result blob is deleted after it is read so a
// later call with the same id finds nothing.
func (c *Client) Poll(ctx context.Context, id string) (*mailbox.Result, error) {
	start := time.Now()
	deadline := start.Add(c.pollTimeout)
	sched := newBackoff()

	for {
		if res, ok := c.tryConsume(ctx, id); ok {
			metrics.PollDuration.WithLabelValues(res.Status).Observe(time.Since(start).Seconds())
			return res, nil
		}

		if time.Now().After(deadline) {
			metrics.PollDuration.WithLabelValues("pending").Observe(time.Since(start).Seconds())
			return nil, &PendingError{ID: id, Waited: c.pollTimeout}
		}

		wait := sched.next(time.Since(start))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryConsume attempts one fetch-parse-delete pass for the result blob.
// Every failure mode short of success is treated as "not yet available":
// storage errors inside the poll loop are transient by policy, and a
// blob that fails to parse may still be mid-write.
func (c *Client) tryConsume(ctx context.Context, id string) (*mailbox.Result, bool) {
	name := mailbox.ResultBlobName(id)

	getCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	data, err := c.store.Get(getCtx, name)
	cancel()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && ctx.Err() == nil {
			log.Printf("bridge: poll read for %s: %v (treating as not ready)", id, err)
		}
		return nil, false
	}

	var res mailbox.Result
	if err := json.Unmarshal(data, &res); err != nil || res.ID != id {
		log.Printf("bridge: malformed result blob for %s, continuing to poll", id)
		return nil, false
	}

	delCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	err = c.store.Delete(delCtx, name)
	cancel()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		// The result was read; failing to delete it only risks a stale
		// blob, which the sweeper will catch.
		log.Printf("bridge: delete consumed result %s: %v", id, err)
	}

	return &res, true
}
