// Package keys derives deterministic chain keypairs from a store's master
// secret. Every derivation is keyed-hash based (BLAKE3) and reproducible
// byte-for-byte given the same master secret and name.
package keys

import (
	"crypto/ed25519"

	"github.com/zeebo/blake3"
)

// MasterSecretSize is the fixed size of a store's master secret.
const MasterSecretSize = 32

// namespaceTag and discoveryTag are fixed domain-separation strings: one for
// deriving chain seeds, one for deriving discovery keys from a public key.
// Keeping them distinct prevents a derived seed from ever colliding with a
// discovery key even if the inputs happened to match.
const (
	namespaceTag = "chainstore"
	discoveryTag = "chainstore/discovery"
)

// Derive computes the deterministic 32-byte seed for name under
// masterSecret. Two stores sharing masterSecret produce identical seeds (and
// therefore identical keypairs) for identical names; two stores with
// different master secrets practically never collide.
func Derive(masterSecret []byte, name []byte) [32]byte {
	key := paddedKey(masterSecret)
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed only fails on a key of the wrong length; paddedKey always
		// returns exactly 32 bytes.
		panic(err)
	}
	h.Write([]byte(namespaceTag))
	h.Write(name)

	var seed [32]byte
	sum := h.Sum(nil)
	copy(seed[:], sum)
	return seed
}

// Keypair derives the Ed25519 signing keypair for seed.
func Keypair(seed [32]byte) (publicKey []byte, secretKey []byte) {
	sk := ed25519.NewKeyFromSeed(seed[:])
	pk := sk.Public().(ed25519.PublicKey)
	return []byte(pk), []byte(sk)
}

// DiscoveryKeyOf computes the public, collision-resistant announcement token
// for publicKey. It is a deterministic function of publicKey alone: two
// chains with equal public keys always have equal discovery keys.
func DiscoveryKeyOf(publicKey []byte) [32]byte {
	key := paddedKey(publicKey)
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic(err)
	}
	h.Write([]byte(discoveryTag))

	var dk [32]byte
	sum := h.Sum(nil)
	copy(dk[:], sum)
	return dk
}

// paddedKey normalizes an arbitrary-length key to BLAKE3's required 32-byte
// keyed-hash key size by hashing it down (or up, for shorter-than-32 inputs)
// with the unkeyed hash first. Master secrets and public keys are both
// already 32 bytes in every call site in this module; this only guards
// against a future caller passing a different length.
func paddedKey(k []byte) [32]byte {
	if len(k) == 32 {
		var out [32]byte
		copy(out[:], k)
		return out
	}
	return blake3.Sum256(k)
}
