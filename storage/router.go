package storage

import (
	"fmt"
)

// MasterKeyPath is the fixed root-level file holding the store's master
// secret.
const MasterKeyPath = "master_key"

// Router maps a chain's discovery key and a logical, chain-internal filename
// to a path understood by the underlying Factory, bounding directory fanout
// with a two-level hex prefix convention: d[0:2]/d[2:4]/d/<name>.
type Router struct {
	factory Factory
}

// NewRouter wraps an arbitrary Factory.
func NewRouter(factory Factory) *Router {
	return &Router{factory: factory}
}

// NewDirRouter wraps a root directory into a file-backed Factory.
func NewDirRouter(root string) *Router {
	return &Router{factory: NewFileFactory(root).Open}
}

// MasterKey opens the store-root master_key file.
func (r *Router) MasterKey() (Handle, error) {
	return r.factory(MasterKeyPath)
}

// Chain returns a Factory scoped to one chain's directory: every name passed
// to it is routed through the two-level prefix convention for discoveryHex.
func (r *Router) Chain(discoveryHex string) Factory {
	if len(discoveryHex) < 4 {
		// Defensive only for malformed hex from a caller bug — discovery keys
		// are always 32 bytes (64 hex chars) in practice.
		discoveryHex = fmt.Sprintf("%04s", discoveryHex)
	}
	prefix := discoveryHex[0:2] + "/" + discoveryHex[2:4] + "/" + discoveryHex + "/"
	return func(name string) (Handle, error) {
		return r.factory(prefix + name)
	}
}
