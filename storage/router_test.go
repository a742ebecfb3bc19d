package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRouterMasterKeyLivesAtStoreRoot(t *testing.T) {
	root := t.TempDir()
	r := NewDirRouter(root)

	h, err := r.MasterKey()
	if err != nil {
		t.Fatalf("MasterKey: %v", err)
	}
	if err := h.WriteAt(0, []byte("0123456789012345678901234567890x")[:32]); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	h.Close()

	if _, err := os.Stat(filepath.Join(root, MasterKeyPath)); err != nil {
		t.Fatalf("expected master_key at store root: %v", err)
	}
}

func TestRouterChainFansOutByHexPrefix(t *testing.T) {
	root := t.TempDir()
	r := NewDirRouter(root)

	dk := "aabbccdd00112233445566778899aabbccddeeff00112233445566778899aa"
	chainFactory := r.Chain(dk)

	h, err := chainFactory("key")
	if err != nil {
		t.Fatalf("chain factory: %v", err)
	}
	if err := h.WriteAt(0, []byte("pubkey")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	h.Close()

	expected := filepath.Join(root, dk[0:2], dk[2:4], dk, "key")
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("expected file at fanned-out path %s: %v", expected, err)
	}
}

func TestRouterChainIsolatesDistinctDiscoveryKeys(t *testing.T) {
	root := t.TempDir()
	r := NewDirRouter(root)

	dkA := "1111111111111111111111111111111111111111111111111111111111111a"
	dkB := "2222222222222222222222222222222222222222222222222222222222222b"

	ha, _ := r.Chain(dkA)("key")
	ha.WriteAt(0, []byte("A"))
	ha.Close()

	hb, _ := r.Chain(dkB)("key")
	info, err := hb.Stat()
	hb.Close()
	if err == nil && info.Size > 0 {
		t.Fatalf("expected chain B's key file to be empty/absent, found size %d", info.Size)
	}
}
