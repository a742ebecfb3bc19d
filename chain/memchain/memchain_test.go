package memchain

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nullbyte-labs/chainstore/chain"
	"github.com/nullbyte-labs/chainstore/keys"
	"github.com/nullbyte-labs/chainstore/storage/buntstore"
)

func mustOpen(t *testing.T, publicKey, secretKey []byte) *Chain {
	t.Helper()
	store, err := buntstore.Open(":memory:")
	if err != nil {
		t.Fatalf("buntstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	factory := store.Factory()
	keyH, err := factory("key")
	if err != nil {
		t.Fatalf("factory key: %v", err)
	}
	if err := keyH.WriteAt(0, publicKey); err != nil {
		t.Fatalf("write key: %v", err)
	}
	keyH.Close()

	if secretKey != nil {
		secH, err := factory("secret_key")
		if err != nil {
			t.Fatalf("factory secret_key: %v", err)
		}
		if err := secH.WriteAt(0, secretKey); err != nil {
			t.Fatalf("write secret_key: %v", err)
		}
		secH.Close()
	}

	ch, err := New(factory, chain.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	select {
	case <-ch.Ready():
	case err := <-ch.Err():
		t.Fatalf("chain failed to open: %v", err)
	case <-time.After(time.Second):
		t.Fatalf("chain never became ready")
	}

	return ch.(*Chain)
}

func testKeypair(t *testing.T) (pub, sec []byte) {
	t.Helper()
	seed := keys.Derive(bytes.Repeat([]byte{0x5a}, keys.MasterSecretSize), []byte("test"))
	return keys.Keypair(seed)
}

func TestAppendUpdatesLengthAndRoot(t *testing.T) {
	pub, sec := testKeypair(t)
	c := mustOpen(t, pub, sec)

	if !c.Writable() {
		t.Fatalf("expected a writable chain (secret key present)")
	}
	if c.Length() != 0 {
		t.Fatalf("expected empty chain, got length %d", c.Length())
	}

	rootBefore := c.Root()
	if _, err := c.Append([]byte("block one")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if c.Length() != 1 {
		t.Fatalf("expected length 1, got %d", c.Length())
	}
	if c.Root() == rootBefore {
		t.Fatalf("expected the merkle root to change after an append")
	}

	block, ok := c.Block(0)
	if !ok || string(block) != "block one" {
		t.Fatalf("expected to read back the appended block, got %q ok=%v", block, ok)
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	pub, sec := testKeypair(t)
	c := mustOpen(t, pub, sec)
	c.Close()

	if _, err := c.Append([]byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReplicateSyncsBlocksToReadOnlyPeer(t *testing.T) {
	pub, sec := testKeypair(t)
	writer := mustOpen(t, pub, sec)
	reader := mustOpen(t, pub, nil)

	if _, err := writer.Append([]byte("genesis")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	a, b := Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		writer.Replicate(ctx, true, a)
		close(done)
	}()
	go reader.Replicate(ctx, false, b)

	deadline := time.After(2 * time.Second)
	for {
		if reader.Length() >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("reader never received the replicated block")
		case <-time.After(5 * time.Millisecond):
		}
	}

	block, ok := reader.Block(0)
	if !ok || string(block) != "genesis" {
		t.Fatalf("expected replicated block %q, got %q ok=%v", "genesis", block, ok)
	}

	writer.Close()
	a.Destroy()
	<-done
}
