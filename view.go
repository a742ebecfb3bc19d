package chainstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/nullbyte-labs/chainstore/chain"
)

// Store is the namespaced outer facade: a user-facing view onto one shared
// engine, with its own namespace name and the set of chains it personally
// owns a reference on. The root Store (returned by New) has name "default"
// and no parent; Store.Namespace returns child views sharing the same
// engine.
type Store struct {
	eng    *engine
	name   string
	parent *Store

	mu    sync.Mutex
	owned map[string]ownedChainRef
}

type ownedChainRef struct {
	chain chain.Chain
}

// Ready blocks until the store has finished opening (loading or creating the
// master secret).
func (s *Store) Ready(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.eng.open() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get resolves opts to a chain, instantiating it on first request and
// deduplicating against both the shared cache and this view's own
// previously-seen chains.
func (s *Store) Get(opts GetOptions) (chain.Chain, error) {
	ch, id, err := s.eng.get(opts)
	if err != nil {
		return nil, err
	}
	s.maybeIncrement(id, ch)
	return ch, nil
}

// Default is equivalent to Get({Name: view.name, Default: true}).
func (s *Store) Default() (chain.Chain, error) {
	return s.Get(GetOptions{Name: []byte(s.name), Default: true})
}

// Namespace returns a new view whose name is parentName + ":" + child when
// the parent itself is namespaced, else just child. A missing/empty child
// defaults to a random 32-byte hex string, matching the engine's own
// random-name fallback for an empty Get.
func (s *Store) Namespace(child string) *Store {
	if child == "" {
		child = randomHexName()
	}
	name := child
	if s.parent != nil {
		name = s.name + ":" + child
	}
	return &Store{
		eng:    s.eng,
		name:   name,
		parent: s,
		owned:  make(map[string]ownedChainRef),
	}
}

// IsLoaded resolves opts and reports whether the shared cache already holds
// it, with no side effects.
func (s *Store) IsLoaded(opts GetOptions) (bool, error) {
	return s.eng.isLoaded(opts)
}

// IsExternal resolves opts and reports whether the cache entry exists and is
// owned by at least one view.
func (s *Store) IsExternal(opts GetOptions) (bool, error) {
	return s.eng.isExternal(opts)
}

// List returns a snapshot of the chains this view owns.
func (s *Store) List() []chain.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chain.Chain, 0, len(s.owned))
	for _, ref := range s.owned {
		out = append(out, ref.chain)
	}
	return out
}

// Replicate wires stream into the replication multiplexer. The root view
// (no parent) replicates every chain in the shared cache with refs > 0;
// child namespaces replicate only what they themselves own.
func (s *Store) Replicate(ctx context.Context, isInitiator bool, stream chain.PeerStream) {
	var chains []chain.Chain
	if s.parent == nil {
		for _, ch := range s.eng.cache.snapshotRefd() {
			chains = append(chains, ch)
		}
	} else {
		chains = s.List()
	}
	s.eng.replicator.replicate(ctx, isInitiator, stream, chains)
}

// Feed delivers one event per chain that becomes ready anywhere in the
// store tree (every view shares the same engine and therefore the same feed).
func (s *Store) Feed() <-chan FeedEvent { return s.eng.feedCh }

// Errors delivers chain-open and cache-eviction errors that are not the
// suppressed UnknownKeypair case.
func (s *Store) Errors() <-chan error { return s.eng.errCh }

// Close releases this view's references. A non-root view decrements refs
// for everything it owns and returns; the root view's close tears down the
// whole engine — every active peer stream is destroyed and every live chain
// is closed.
func (s *Store) Close() error {
	s.mu.Lock()
	owned := s.owned
	s.owned = make(map[string]ownedChainRef)
	s.mu.Unlock()

	for id := range owned {
		s.eng.cache.decrement(id)
	}

	if s.parent != nil {
		return nil
	}
	return s.eng.close()
}

// maybeIncrement guarantees this view contributes at most one ref per chain
// id, regardless of how many times it calls Get for the same id. The id
// comes from the engine's resolver, not from the chain handle — a chain that
// has not finished opening may not know its own discovery key yet.
func (s *Store) maybeIncrement(id string, ch chain.Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned[id]; ok {
		return
	}
	s.owned[id] = ownedChainRef{chain: ch}
	s.eng.cache.increment(id)
}

func randomHexName() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
