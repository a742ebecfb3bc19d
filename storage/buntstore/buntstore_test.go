package buntstore

import (
	"errors"
	"testing"

	"github.com/nullbyte-labs/chainstore/storage"
)

func TestBuntstoreWriteReadRoundTrip(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	factory := s.Factory()
	h, err := factory("chains/abc/key")
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer h.Close()

	if err := h.WriteAt(0, []byte("hello")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := h.WriteAt(5, []byte(" world")); err != nil {
		t.Fatalf("WriteAt append: %v", err)
	}

	info, err := h.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != int64(len("hello world")) {
		t.Fatalf("expected size %d, got %d", len("hello world"), info.Size)
	}

	got, err := h.ReadAt(0, info.Size)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestBuntstoreMissingKeyIsErrNotFound(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	h, _ := s.Factory()("missing")
	if _, err := h.Stat(); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
