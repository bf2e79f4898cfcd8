package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blobbridge/blobbridge/internal/mailbox"
	"github.com/blobbridge/blobbridge/internal/storage"
)

// failingStore rejects every Put, simulating a credential or quota fault.
type failingStore struct {
	storage.Adapter
}

func (f *failingStore) Put(ctx context.Context, name string, data []byte) error {
	return fmt.Errorf("quota exceeded")
}

func writeResult(t *testing.T, store storage.Adapter, res mailbox.Result) {
	t.Helper()
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := store.Put(context.Background(), mailbox.ResultBlobName(res.ID), data); err != nil {
		t.Fatalf("put result: %v", err)
	}
}

// respond consumes the first pending command and writes the given outcome,
// standing in for a live processor.
func respond(t *testing.T, store storage.Adapter, status, output string) {
	t.Helper()
	go func() {
		ctx := context.Background()
		for {
			names, err := store.List(ctx, mailbox.CommandPrefix)
			if err == nil && len(names) > 0 {
				id, ok := mailbox.ParseCommandID(names[0])
				if !ok {
					return
				}
				writeResult(t, store, mailbox.Result{
					ID:        id,
					Status:    status,
					Output:    output,
					Timestamp: time.Now().UnixMilli(),
				})
				store.Delete(ctx, names[0])
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()
}

func TestSubmit_RoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	respond(t, store, mailbox.StatusSuccess, "hello\n")

	c := NewClient(store, Options{Tool: "test", PollTimeout: 5 * time.Second})
	res, err := c.Submit(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Status != mailbox.StatusSuccess {
		t.Errorf("expected success, got %s", res.Status)
	}
	if res.Output != "hello\n" {
		t.Errorf("unexpected output %q", res.Output)
	}

	// Both mailbox blobs are gone after the round trip.
	names, err := store.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty mailbox, found %v", names)
	}
}

func TestSubmit_Failure(t *testing.T) {
	c := NewClient(&failingStore{storage.NewMemoryStore()}, Options{})
	_, err := c.Submit(context.Background(), "echo hi")
	if err == nil {
		t.Fatal("expected submission failure to surface")
	}
	var pending *PendingError
	if errors.As(err, &pending) {
		t.Error("submission failure must not be reported as pending")
	}
}

func TestSubmit_TimeoutIntegrity(t *testing.T) {
	// No processor: the call must return pending no earlier than the
	// poll timeout and no later than one extra interval after it.
	store := storage.NewMemoryStore()
	pollTimeout := 600 * time.Millisecond
	c := NewClient(store, Options{PollTimeout: pollTimeout})

	start := time.Now()
	_, err := c.Submit(context.Background(), "echo hi")
	elapsed := time.Since(start)

	var pending *PendingError
	if !errors.As(err, &pending) {
		t.Fatalf("expected PendingError, got %v", err)
	}
	if pending.ID == "" {
		t.Error("pending outcome must carry the command id")
	}
	if elapsed < pollTimeout {
		t.Errorf("returned before the timeout: %s < %s", elapsed, pollTimeout)
	}
	if elapsed > pollTimeout+defaultFastInterval+200*time.Millisecond {
		t.Errorf("returned too long after the timeout: %s", elapsed)
	}
}

func TestPoll_ReusesIDAfterTimeout(t *testing.T) {
	store := storage.NewMemoryStore()
	c := NewClient(store, Options{PollTimeout: 200 * time.Millisecond})

	_, err := c.Submit(context.Background(), "sleep forever")
	var pending *PendingError
	if !errors.As(err, &pending) {
		t.Fatalf("expected PendingError, got %v", err)
	}

	// The processor finishes late; the caller re-polls with the same id.
	writeResult(t, store, mailbox.Result{
		ID:        pending.ID,
		Status:    mailbox.StatusSuccess,
		Output:    "late",
		Timestamp: time.Now().UnixMilli(),
	})

	res, err := c.Poll(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if res.Output != "late" {
		t.Errorf("unexpected output %q", res.Output)
	}
}

func TestPoll_ConsumesResultOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	writeResult(t, store, mailbox.Result{ID: "x-1-aa", Status: mailbox.StatusSuccess})

	c := NewClient(store, Options{PollTimeout: time.Second})
	if _, err := c.Poll(context.Background(), "x-1-aa"); err != nil {
		t.Fatalf("first Poll() error: %v", err)
	}

	c2 := NewClient(store, Options{PollTimeout: 200 * time.Millisecond})
	_, err := c2.Poll(context.Background(), "x-1-aa")
	var pending *PendingError
	if !errors.As(err, &pending) {
		t.Errorf("expected second read of consumed result to find nothing, got %v", err)
	}
}

func TestPoll_IgnoresCorruptResult(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	// A partially written blob must be treated as not-yet-available.
	if err := store.Put(ctx, mailbox.ResultBlobName("x-2-bb"), []byte(`{"id":"x-2`)); err != nil {
		t.Fatalf("put corrupt blob: %v", err)
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		writeResult(t, store, mailbox.Result{ID: "x-2-bb", Status: mailbox.StatusSuccess, Output: "ok"})
	}()

	c := NewClient(store, Options{PollTimeout: 3 * time.Second})
	res, err := c.Poll(ctx, "x-2-bb")
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if res.Output != "ok" {
		t.Errorf("unexpected output %q", res.Output)
	}
}

func TestPoll_CancelledContext(t *testing.T) {
	store := storage.NewMemoryStore()
	c := NewClient(store, Options{PollTimeout: 30 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.Poll(ctx, "never")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt the poll sleep")
	}
}
