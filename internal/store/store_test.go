package store

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *ModuleStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	content := []byte("proc top(in i8 a) { ... }")
	hash, err := s.Put(ctx, "top", content)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if hash != ContentHash(content) {
		t.Fatalf("hash mismatch: got %s", hash)
	}

	got, err := s.Get(ctx, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q", got)
	}

	resolved, err := s.ResolveName(ctx, "top")
	if err != nil {
		t.Fatalf("resolve name: %v", err)
	}
	if resolved != hash {
		t.Fatalf("resolved hash mismatch")
	}
}

func TestPutSameContentTwiceIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	content := []byte("entity e() {}")

	h1, err := s.Put(ctx, "e", content)
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	h2, err := s.Put(ctx, "e", content)
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash, got %s vs %s", h1, h2)
	}
}

func TestPutCollidingNameFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "top", []byte("version one")); err != nil {
		t.Fatalf("put v1: %v", err)
	}
	if _, err := s.Put(ctx, "top", []byte("version two")); err != ErrorNameCollision {
		t.Fatalf("expected ErrorNameCollision, got %v", err)
	}
}

func TestGetUnknownHash(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "deadbeef"); err != ErrorNotFound {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
