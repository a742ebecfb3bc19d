package chainstore

import (
	"crypto/rand"

	"github.com/nullbyte-labs/chainstore/keys"
)

// resolved is the Key Resolver's tentative output: identity material that
// may still be incomplete (a passive discovery-key lookup knows only the
// discovery key) pending whatever the key-aware storage shim learns once the
// chain actually opens.
type resolved struct {
	PublicKey    []byte
	SecretKey    []byte
	DiscoveryKey [32]byte
	Name         []byte
}

// resolveKey implements the Key Resolver dispatch table over masterSecret
// and opts.
func resolveKey(masterSecret []byte, opts GetOptions) (resolved, error) {
	switch {
	case opts.KeyPair != nil:
		return resolved{
			PublicKey:    opts.KeyPair.PublicKey,
			SecretKey:    opts.KeyPair.SecretKey,
			DiscoveryKey: keys.DiscoveryKeyOf(opts.KeyPair.PublicKey),
		}, nil

	case opts.Key != nil:
		return resolved{
			PublicKey:    opts.Key,
			DiscoveryKey: keys.DiscoveryKeyOf(opts.Key),
		}, nil

	case len(opts.Name) > 0:
		return deriveNamed(masterSecret, opts.Name), nil

	case opts.Default && len(opts.Name) == 0:
		return resolved{}, ErrMissingName

	case opts.DiscoveryKey != nil:
		var dk [32]byte
		copy(dk[:], opts.DiscoveryKey)
		return resolved{DiscoveryKey: dk}, nil

	default:
		name := make([]byte, 32)
		if _, err := rand.Read(name); err != nil {
			return resolved{}, err
		}
		return deriveNamed(masterSecret, name), nil
	}
}

func deriveNamed(masterSecret []byte, name []byte) resolved {
	seed := keys.Derive(masterSecret, name)
	pk, sk := keys.Keypair(seed)
	return resolved{
		PublicKey:    pk,
		SecretKey:    sk,
		DiscoveryKey: keys.DiscoveryKeyOf(pk),
		Name:         name,
	}
}
