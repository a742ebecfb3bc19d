// Package chain defines the collaborator contracts chainstore consumes but
// does not implement: the append-only log itself, and the peer stream it
// replicates over. Both live outside chainstore's own scope — this package
// only pins down the shape a concrete implementation must have.
package chain

import (
	"context"
	"io"
)

// Options carries everything chainstore threads through to a Chain
// constructor on top of whatever options the caller of Store.Get supplied.
type Options struct {
	// PublicKey is nil for a chain with no known public key yet (the
	// passive-discovery case); otherwise it seeds the chain's identity.
	PublicKey []byte
	SecretKey []byte

	// CreateIfMissing mirrors the factory's create_if_missing = (public_key != nil)
	// rule: a chain discovered passively (public key unknown) must never
	// create new on-disk state.
	CreateIfMissing bool

	// Cache is the per-chain sub-namespace of whatever block/tree cache the
	// caller configured on the store, already scoped so no two chains share
	// cache keys.
	Cache Cache

	// Extra carries any opaque options the caller passed through Store.Get
	// that chainstore itself does not interpret.
	Extra map[string]interface{}
}

// Cache is the sub-cache contract for the recognized cache: {data?, tree?}
// option, minimal enough that chainstore never has to understand what's
// actually being cached.
type Cache interface {
	Namespace(name string) Cache
}

// Chain is an append-only, cryptographically-addressed log. chainstore
// constructs one per discovery key and wires its own storage shim in as the
// backing Storage; it never inspects block contents.
type Chain interface {
	// PublicKey, SecretKey and DiscoveryKey reflect whatever the chain
	// itself resolved at open (from the storage shim or pre-seeded keys);
	// they can differ from the Options the caller supplied only in the
	// "passive discovery" path, where the chain has not yet learned a
	// public key at all.
	PublicKey() []byte
	SecretKey() []byte
	DiscoveryKey() []byte

	// Writable reports whether this node holds the secret key.
	Writable() bool

	// Length is the number of appended entries.
	Length() uint64

	// Ready closes once the chain has finished its asynchronous open
	// (resolving its key material against storage). It never closes if the
	// chain errors instead — check Err().
	Ready() <-chan struct{}

	// Err delivers at most one error (from a failed open) and then is never
	// written to again. A chain that closes cleanly never sends on Err.
	Err() <-chan error

	// Closed closes once the chain has fully torn down.
	Closed() <-chan struct{}

	// Close tears the chain down, releasing its storage handles.
	Close() error

	// Replicate wires the chain onto a shared peer stream as one logical
	// sub-channel of that stream; it does not own the stream's lifecycle.
	Replicate(ctx context.Context, isInitiator bool, stream PeerStream) error
}

// PeerStream is the replication transport: a single connection to a peer,
// multiplexing an arbitrary number of chains (identified by discovery key)
// over it. chainstore never frames bytes itself — it only injects chains
// onto the stream and reacts to discovery-key announcements.
type PeerStream interface {
	// DiscoveryKeys delivers one discovery key per remote announcement
	// asking "do you have this chain?". The channel is not guaranteed to
	// close when the stream is done (memchain's Pipe never closes it), so
	// consumers also watch Done.
	DiscoveryKeys() <-chan []byte

	// Close closes the sub-channel associated with discoveryKey, without
	// tearing down the whole stream (used when a requested chain does not
	// exist locally).
	Close(discoveryKey []byte) error

	// Done closes exactly once, on the stream's finish/end/close, whichever
	// comes first.
	Done() <-chan struct{}

	// Channel returns the sub-channel a Chain uses to exchange its own
	// wire protocol with the remote side of this stream, addressed by
	// discovery key. Both peers calling Channel with the same discovery
	// key get the two ends of one connected pipe. chainstore itself never
	// calls this; it is strictly between a Chain and its PeerStream.
	Channel(discoveryKey []byte) (io.ReadWriteCloser, error)

	// Destroy tears the whole stream down. The engine calls this on every
	// active stream when it closes; a caller-initiated stream teardown goes
	// through whatever mechanism produced Done() instead.
	Destroy() error
}
