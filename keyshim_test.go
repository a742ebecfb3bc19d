package chainstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nullbyte-labs/chainstore/keys"
	"github.com/nullbyte-labs/chainstore/storage/buntstore"
)

func TestResolveIdentityPersistsDerivedName(t *testing.T) {
	s, err := buntstore.Open(":memory:")
	if err != nil {
		t.Fatalf("buntstore.Open: %v", err)
	}
	defer s.Close()

	master := bytes.Repeat([]byte{0x33}, keys.MasterSecretSize)
	res, err := resolveKey(master, NameOption("default"))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}

	pk1, sk1, err := resolveIdentity(s.Factory(), master, res)
	if err != nil {
		t.Fatalf("resolveIdentity: %v", err)
	}
	if pk1 == nil || sk1 == nil {
		t.Fatalf("expected a full keypair from a named resolution")
	}

	// A second resolution carrying only the discovery key must rehydrate the
	// same keypair from the persisted name.
	passive := resolved{DiscoveryKey: res.DiscoveryKey}
	pk2, sk2, err := resolveIdentity(s.Factory(), master, passive)
	if err != nil {
		t.Fatalf("resolveIdentity (passive): %v", err)
	}
	if !bytes.Equal(pk1, pk2) || !bytes.Equal(sk1, sk2) {
		t.Fatalf("expected the persisted name to rehydrate the identical keypair")
	}
}

func TestResolveIdentityDetectsWrongStoredName(t *testing.T) {
	s, err := buntstore.Open(":memory:")
	if err != nil {
		t.Fatalf("buntstore.Open: %v", err)
	}
	defer s.Close()

	master := bytes.Repeat([]byte{0x33}, keys.MasterSecretSize)

	// Persist the name "alpha" into the chain's key file...
	resAlpha, err := resolveKey(master, NameOption("alpha"))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if _, _, err := resolveIdentity(s.Factory(), master, resAlpha); err != nil {
		t.Fatalf("resolveIdentity: %v", err)
	}

	// ...then resolve against a resolver output expecting a different chain.
	resBeta, err := resolveKey(master, NameOption("beta"))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if _, _, err := resolveIdentity(s.Factory(), master, resBeta); !errors.Is(err, ErrWrongNameStored) {
		t.Fatalf("expected ErrWrongNameStored, got %v", err)
	}
}

func TestResolveIdentityUnknownKeypairOnEmptyStore(t *testing.T) {
	s, err := buntstore.Open(":memory:")
	if err != nil {
		t.Fatalf("buntstore.Open: %v", err)
	}
	defer s.Close()

	master := bytes.Repeat([]byte{0x33}, keys.MasterSecretSize)
	dk := bytes.Repeat([]byte{0x44}, 32)
	passive, err := resolveKey(master, DiscoveryKeyOption(dk))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}

	if _, _, err := resolveIdentity(s.Factory(), master, passive); !errors.Is(err, ErrUnknownKeypair) {
		t.Fatalf("expected ErrUnknownKeypair for a passive resolve with no on-disk record, got %v", err)
	}
}

func TestResolveIdentityPersistsSuppliedPublicKey(t *testing.T) {
	s, err := buntstore.Open(":memory:")
	if err != nil {
		t.Fatalf("buntstore.Open: %v", err)
	}
	defer s.Close()

	master := bytes.Repeat([]byte{0x33}, keys.MasterSecretSize)
	seed := keys.Derive(bytes.Repeat([]byte{0x77}, keys.MasterSecretSize), []byte("elsewhere"))
	pub, sec := keys.Keypair(seed)

	res, err := resolveKey(master, GetOptions{KeyPair: &KeyPair{PublicKey: pub, SecretKey: sec}})
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if _, _, err := resolveIdentity(s.Factory(), master, res); err != nil {
		t.Fatalf("resolveIdentity: %v", err)
	}

	// Rehydrate with only the discovery key: the persisted public key (and
	// secret key file) must come back as-is.
	passive := resolved{DiscoveryKey: res.DiscoveryKey}
	pk, sk, err := resolveIdentity(s.Factory(), master, passive)
	if err != nil {
		t.Fatalf("resolveIdentity (passive): %v", err)
	}
	if !bytes.Equal(pk, pub) || !bytes.Equal(sk, sec) {
		t.Fatalf("expected the persisted keypair back, got pk=%x sk=%x", pk, sk)
	}
}

func TestKeyShimRoutesOtherFilenamesThrough(t *testing.T) {
	s, err := buntstore.Open(":memory:")
	if err != nil {
		t.Fatalf("buntstore.Open: %v", err)
	}
	defer s.Close()

	master := bytes.Repeat([]byte{0x33}, keys.MasterSecretSize)
	res, err := resolveKey(master, NameOption("default"))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	shim := keyShim(s.Factory(), master, res)

	h, err := shim("bitfield")
	if err != nil {
		t.Fatalf("shim(bitfield): %v", err)
	}
	if err := h.WriteAt(0, []byte{0xff}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	h.Close()

	raw, err := s.Factory()("bitfield")
	if err != nil {
		t.Fatalf("raw factory: %v", err)
	}
	got, err := raw.ReadAt(0, 1)
	raw.Close()
	if err != nil || len(got) != 1 || got[0] != 0xff {
		t.Fatalf("expected the bitfield write to pass through to the real storage, got %v %v", got, err)
	}
}
