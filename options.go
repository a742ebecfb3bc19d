package chainstore

import (
	"go.uber.org/zap"

	"github.com/nullbyte-labs/chainstore/chain"
	"github.com/nullbyte-labs/chainstore/storage"
)

// ChainConstructor builds a concrete chain.Chain over factory, the
// key-aware storage shim chainstore has already wired in front of the real
// per-chain Storage. Every Store is opened with exactly one constructor,
// shared by every chain it instantiates.
type ChainConstructor func(factory storage.Factory, opts chain.Options) (chain.Chain, error)

// DefaultCacheSize is the soft cap on the number of cache entries before LRU
// eviction of zero-ref entries kicks in. Pinned entries are never evicted, so
// they can push the cache past this cap.
const DefaultCacheSize = 1000

// Options configures a Store at construction.
type Options struct {
	// CacheSize overrides DefaultCacheSize.
	CacheSize int

	// MasterKey, if set, is used as-is instead of reading/creating
	// storage/master_key. Must be exactly 32 bytes.
	MasterKey []byte

	// Cache is the root block/tree sub-cache handed to every chain,
	// namespaced per chain by the engine before being passed down.
	Cache chain.Cache

	// NewChain constructs the concrete chain.Chain backing every chain this
	// store opens. Required.
	NewChain ChainConstructor

	// Logger receives structured telemetry for feed/error/eviction events.
	// Defaults to zap.NewNop() if nil.
	Logger *zap.Logger
}

// GetOptions is the per-Get/Default configuration. It is a plain struct
// rather than a tagged union — Go has no sum types — with the Key Resolver
// in resolve.go implementing the dispatch table over whichever fields are
// set.
type GetOptions struct {
	// Key is the chain's public key (the "key: k" input shape).
	Key []byte

	// DiscoveryKey requests a chain passively, by announcement token alone.
	DiscoveryKey []byte

	// KeyPair supplies a full keypair directly.
	KeyPair *KeyPair

	// Name requests (deriving if necessary) the chain named Name from the
	// master secret. Default, when true, requires Name to be set and is
	// equivalent to passing Name alone — it exists only so call sites can
	// spell out that intent explicitly.
	Name    []byte
	Default bool

	// Cache overrides the chain-level sub-cache for this one Get call.
	Cache chain.Cache

	// Extra is passed through to the chain verbatim.
	Extra map[string]interface{}
}

// KeyPair is an externally-supplied public/secret key pair.
type KeyPair struct {
	PublicKey []byte
	SecretKey []byte
}

// KeyOption builds the GetOptions for the "byte-string input" shape: a bare
// public key, equivalent to GetOptions{Key: b}.
func KeyOption(b []byte) GetOptions {
	return GetOptions{Key: b}
}

// DiscoveryKeyOption builds the GetOptions for a passive-discovery lookup.
func DiscoveryKeyOption(dk []byte) GetOptions {
	return GetOptions{DiscoveryKey: dk}
}

// NameOption builds the GetOptions for a named, derived chain.
func NameOption(name string) GetOptions {
	return GetOptions{Name: []byte(name), Default: true}
}

// FeedEvent is delivered on Store.Feed() whenever a chain becomes ready,
// carrying the options it was opened with so a listener can tell which
// logical request produced it.
type FeedEvent struct {
	Chain   chain.Chain
	Options GetOptions
}
