package chainstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/nullbyte-labs/chainstore/chain"
	"github.com/nullbyte-labs/chainstore/storage"
)

// engine is the single shared instantiation engine behind every Store built
// from the same backing storage. Exactly one engine exists per Store tree;
// every namespaced view forwards to it.
type engine struct {
	once    sync.Once
	openErr error
	ready   chan struct{}

	router    *storage.Router
	ctor      ChainConstructor
	rootCache chain.Cache
	log       *zap.Logger

	masterKeyOpt []byte

	mu           sync.Mutex
	masterSecret []byte

	cache      *chainCache
	replicator *replicator

	feedCh chan FeedEvent
	errCh  chan error
}

func newEngine(router *storage.Router, opts Options) *engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &engine{
		ready:        make(chan struct{}),
		router:       router,
		ctor:         opts.NewChain,
		rootCache:    opts.Cache,
		log:          log,
		masterKeyOpt: opts.MasterKey,
		cache:        newChainCache(opts.CacheSize),
		feedCh:       make(chan FeedEvent, 64),
		errCh:        make(chan error, 64),
	}
	e.replicator = newReplicator(e)
	e.cache.onEvict = e.handleEvictClose
	e.cache.onSaturated = func(size int) {
		e.log.Warn("cache saturated, exceeding soft cap",
			zap.Bool("cache_saturated", true), zap.Int("size", size))
	}
	return e
}

// open is idempotent and single-shot: it loads or creates the 32-byte
// master secret, from the Options.MasterKey supplied at construction if
// any, else from the storage root's master_key file.
func (e *engine) open() error {
	e.once.Do(func() {
		defer close(e.ready)

		if len(e.masterKeyOpt) == 32 {
			e.masterSecret = append([]byte(nil), e.masterKeyOpt...)
			return
		}

		handle, err := e.router.MasterKey()
		if err != nil {
			e.openErr = err
			return
		}
		defer handle.Close()

		info, statErr := handle.Stat()
		if statErr != nil || info.Size < 32 {
			secret := make([]byte, 32)
			if _, rerr := rand.Read(secret); rerr != nil {
				e.openErr = rerr
				return
			}
			if werr := handle.WriteAt(0, secret); werr != nil {
				e.openErr = werr
				return
			}
			e.masterSecret = secret
			return
		}

		secret, rerr := handle.ReadAt(0, 32)
		if rerr != nil {
			e.openErr = rerr
			return
		}
		e.masterSecret = secret
	})
	<-e.ready
	return e.openErr
}

func (e *engine) isOpen() bool {
	select {
	case <-e.ready:
		return e.openErr == nil
	default:
		return false
	}
}

// get resolves the caller's options, dedupes against the cache, else builds
// the shim, instantiates, caches immediately, and wires lifecycle observers.
// The returned id is the cache key — callers must use it rather than asking
// the chain for its discovery key, which may not be resolved yet.
func (e *engine) get(opts GetOptions) (chain.Chain, string, error) {
	if !e.isOpen() {
		return nil, "", ErrNotOpen
	}

	res, err := resolveKey(e.masterSecret, opts)
	if err != nil {
		return nil, "", err
	}
	id := hex.EncodeToString(res.DiscoveryKey[:])

	if cached, ok := e.cache.get(id); ok {
		return cached, id, nil
	}

	rawFactory := e.router.Chain(id)
	shimmed := keyShim(rawFactory, e.masterSecret, res)

	perChainCache := opts.Cache
	if perChainCache == nil {
		perChainCache = e.rootCache
	}
	if perChainCache != nil {
		perChainCache = perChainCache.Namespace(id)
	}

	ch, err := e.ctor(shimmed, chain.Options{
		PublicKey:       res.PublicKey,
		SecretKey:       res.SecretKey,
		CreateIfMissing: res.PublicKey != nil,
		Cache:           perChainCache,
		Extra:           opts.Extra,
	})
	if err != nil {
		return nil, "", err
	}

	// Insert before the chain signals ready, so concurrent Get calls for
	// the same id dedupe against this handle rather than racing to
	// instantiate twice.
	e.cache.set(id, ch)

	go e.watch(id, ch, opts)

	return ch, id, nil
}

// watch wires the three one-shot ready/error/close observers onto a
// freshly-instantiated chain.
func (e *engine) watch(id string, ch chain.Chain, opts GetOptions) {
	select {
	case <-ch.Ready():
		e.log.Debug("chain ready", zap.String("discovery_key", id))
		e.emitFeed(FeedEvent{Chain: ch, Options: opts})
		e.replicator.injectNew(ch)

	case err := <-ch.Err():
		e.cache.delete(id)
		if errors.Is(err, ErrUnknownKeypair) {
			// Not an error to the caller: the chain simply does not
			// exist locally. Still observable via telemetry.
			e.log.Warn("chain not present locally",
				zap.String("discovery_key", id), zap.Bool("unknown_keypair", true))
			return
		}
		e.log.Error("chain open failed", zap.String("discovery_key", id), zap.Error(err))
		e.emitErr(err)
		// An errored chain never reaches ready and is already out of the
		// cache; nothing left to watch.
		return
	}

	<-ch.Closed()
	e.cache.delete(id)
}

func (e *engine) handleEvictClose(id string, err error) {
	if err != nil {
		e.log.Error("error closing evicted chain", zap.String("discovery_key", id), zap.Error(err))
		e.emitErr(err)
	}
}

func (e *engine) emitFeed(ev FeedEvent) {
	select {
	case e.feedCh <- ev:
	default:
		e.log.Warn("feed channel full, dropping event")
	}
}

func (e *engine) emitErr(err error) {
	select {
	case e.errCh <- err:
	default:
		e.log.Warn("error channel full, dropping event")
	}
}

// isLoaded resolves opts and reports whether the cache already holds the
// resulting id, with no side effects.
func (e *engine) isLoaded(opts GetOptions) (bool, error) {
	if !e.isOpen() {
		return false, ErrNotOpen
	}
	res, err := resolveKey(e.masterSecret, opts)
	if err != nil {
		return false, err
	}
	id := hex.EncodeToString(res.DiscoveryKey[:])
	return e.cache.has(id), nil
}

// isExternal reports whether the cache entry for opts exists and is
// referenced by at least one view.
func (e *engine) isExternal(opts GetOptions) (bool, error) {
	if !e.isOpen() {
		return false, ErrNotOpen
	}
	res, err := resolveKey(e.masterSecret, opts)
	if err != nil {
		return false, err
	}
	id := hex.EncodeToString(res.DiscoveryKey[:])
	_, refs, ok := e.cache.entry(id)
	return ok && refs > 0, nil
}

// checkIfExists reads the "key" file at the expected on-disk path without
// instantiating a chain, used by the replication multiplexer to answer
// remote discovery-key announcements.
func (e *engine) checkIfExists(discoveryKey []byte) (bool, error) {
	id := hex.EncodeToString(discoveryKey)
	factory := e.router.Chain(id)
	h, err := factory("key")
	if err != nil {
		return false, err
	}
	defer h.Close()

	info, err := h.Stat()
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	// The persisted record is a one-byte tag plus the name or public key; a
	// record shorter than that is a torn write, not a chain.
	if info.Size < 2 {
		return false, nil
	}
	if _, err := h.ReadAt(0, info.Size); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// close destroys every active peer stream, then closes every live chain,
// collecting and returning the first error.
func (e *engine) close() error {
	e.replicator.destroyAll()

	var firstErr error
	for id, ch := range e.cache.all() {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.cache.delete(id)
	}
	return firstErr
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
