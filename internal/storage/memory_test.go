package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "command_a.json", []byte(`{"id":"a"}`)); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	data, err := s.Get(ctx, "command_a.json")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(data) != `{"id":"a"}` {
		t.Errorf("unexpected blob content %q", data)
	}

	if got := s.Len(); got != 1 {
		t.Errorf("expected 1 stored blob, got %d", got)
	}

	if err := s.Delete(ctx, "command_a.json"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, "command_a.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if got := s.Len(); got != 0 {
		t.Errorf("expected empty store after delete, got %d blobs", got)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, name := range []string{"command_1.json", "command_2.json", "result_1.json", "heartbeat.json"} {
		if err := s.Put(ctx, name, []byte("{}")); err != nil {
			t.Fatalf("Put(%s) error: %v", name, err)
		}
	}

	names, err := s.List(ctx, "command_")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 command blobs, got %d: %v", len(names), names)
	}
	if names[0] != "command_1.json" || names[1] != "command_2.json" {
		t.Errorf("unexpected listing %v", names)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Put(ctx, "b.json", []byte("abc")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	data, _ := s.Get(ctx, "b.json")
	data[0] = 'x'

	again, _ := s.Get(ctx, "b.json")
	if string(again) != "abc" {
		t.Errorf("stored blob mutated through returned slice: %q", again)
	}
}

func TestMemoryStore_ContextCancelled(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, "a.json", nil); err == nil {
		t.Error("expected error for cancelled context")
	}
	if _, err := s.List(ctx, ""); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "ftp", Container: "c"})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpen_Memory(t *testing.T) {
	a, err := Open(Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) error: %v", err)
	}
	if _, ok := a.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", a)
	}
}
