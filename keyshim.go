package chainstore

import (
	"errors"

	"github.com/nullbyte-labs/chainstore/keys"
	"github.com/nullbyte-labs/chainstore/storage"
)

// Tag bytes distinguishing what's persisted in a chain's "key" file: either
// the derivation name (so the store can rehydrate the keypair without ever
// writing the secret key to disk) or a bare externally-supplied public key.
const (
	tagName      byte = 0x01
	tagPublicKey byte = 0x02
)

// keyShim wraps a chain's real per-chain Factory, intercepting the two
// synthetic filenames "key" and "secret_key". Every other filename passes
// through untouched.
func keyShim(real storage.Factory, masterSecret []byte, res resolved) storage.Factory {
	return func(name string) (storage.Handle, error) {
		if name != "key" && name != "secret_key" {
			return real(name)
		}
		return &keyHandle{
			real:         real,
			masterSecret: masterSecret,
			res:          res,
			secret:       name == "secret_key",
		}, nil
	}
}

// keyHandle is a virtual storage.Handle standing in for "key"/"secret_key".
// Reading it triggers identity resolution; the result is persisted to the
// real underlying files on first resolution so a later open of the same
// chain rehydrates from disk.
type keyHandle struct {
	real         storage.Factory
	masterSecret []byte
	res          resolved
	secret       bool
}

func (h *keyHandle) ReadAt(offset int64, length int64) ([]byte, error) {
	pk, sk, err := resolveIdentity(h.real, h.masterSecret, h.res)
	if err != nil {
		return nil, err
	}
	material := pk
	if h.secret {
		if sk == nil {
			return nil, storage.ErrNotFound
		}
		material = sk
	}
	if offset >= int64(len(material)) {
		return []byte{}, nil
	}
	end := offset + length
	if end > int64(len(material)) {
		end = int64(len(material))
	}
	return material[offset:end], nil
}

func (h *keyHandle) Stat() (storage.Info, error) {
	pk, sk, err := resolveIdentity(h.real, h.masterSecret, h.res)
	if err != nil {
		return storage.Info{}, err
	}
	if h.secret {
		if sk == nil {
			return storage.Info{}, storage.ErrNotFound
		}
		return storage.Info{Size: int64(len(sk))}, nil
	}
	return storage.Info{Size: int64(len(pk))}, nil
}

// WriteAt is a no-op: the shim, not the chain, owns persistence of identity
// material (see resolveIdentity). A chain that tries to overwrite its own
// key material is misusing the contract, but silently ignoring the write
// rather than erroring keeps ordinary chains (which never write these
// files at all) unaffected.
func (h *keyHandle) WriteAt(offset int64, data []byte) error { return nil }

func (h *keyHandle) Close() error { return nil }

// resolveIdentity implements the four-way identity-resolution branch:
// persisted name on disk wins (re-derived and verified against the
// resolver's discovery key); otherwise the resolver's own
// keypair/public-key/nothing, in that order.
func resolveIdentity(real storage.Factory, masterSecret []byte, res resolved) (publicKey []byte, secretKey []byte, err error) {
	keyFile, err := real("key")
	if err != nil {
		return nil, nil, err
	}
	defer keyFile.Close()

	info, statErr := keyFile.Stat()
	switch {
	case statErr == nil && info.Size > 1:
		raw, rerr := keyFile.ReadAt(0, info.Size)
		if rerr != nil {
			return nil, nil, rerr
		}
		tag, payload := raw[0], raw[1:]
		switch tag {
		case tagName:
			seed := keys.Derive(masterSecret, payload)
			pk, sk := keys.Keypair(seed)
			if keys.DiscoveryKeyOf(pk) != res.DiscoveryKey {
				return nil, nil, ErrWrongNameStored
			}
			return pk, sk, nil
		case tagPublicKey:
			sk, _ := readSecretKey(real)
			return payload, sk, nil
		default:
			return nil, nil, ErrWrongNameStored
		}

	case statErr != nil && !errors.Is(statErr, storage.ErrNotFound):
		return nil, nil, statErr
	}

	// Nothing persisted yet: fall back to the resolver's own material and
	// persist it for next time.
	switch {
	case res.Name != nil:
		if werr := writeTagged(real, "key", tagName, res.Name); werr != nil {
			return nil, nil, werr
		}
		seed := keys.Derive(masterSecret, res.Name)
		pk, sk := keys.Keypair(seed)
		return pk, sk, nil

	case res.PublicKey != nil:
		if werr := writeTagged(real, "key", tagPublicKey, res.PublicKey); werr != nil {
			return nil, nil, werr
		}
		if res.SecretKey != nil {
			if werr := writeRaw(real, "secret_key", res.SecretKey); werr != nil {
				return nil, nil, werr
			}
		}
		return res.PublicKey, res.SecretKey, nil

	default:
		return nil, nil, ErrUnknownKeypair
	}
}

func readSecretKey(real storage.Factory) ([]byte, error) {
	h, err := real("secret_key")
	if err != nil {
		return nil, err
	}
	defer h.Close()
	info, err := h.Stat()
	if err != nil {
		return nil, err
	}
	return h.ReadAt(0, info.Size)
}

func writeTagged(real storage.Factory, name string, tag byte, payload []byte) error {
	h, err := real(name)
	if err != nil {
		return err
	}
	defer h.Close()
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, tag)
	buf = append(buf, payload...)
	return h.WriteAt(0, buf)
}

func writeRaw(real storage.Factory, name string, payload []byte) error {
	h, err := real(name)
	if err != nil {
		return err
	}
	defer h.Close()
	return h.WriteAt(0, payload)
}
