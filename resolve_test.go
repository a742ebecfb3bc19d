package chainstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nullbyte-labs/chainstore/keys"
)

func TestResolveKeyByName(t *testing.T) {
	master := bytes.Repeat([]byte{0x11}, keys.MasterSecretSize)

	r1, err := resolveKey(master, GetOptions{Name: []byte("default")})
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	r2, err := resolveKey(master, GetOptions{Name: []byte("default")})
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if r1.DiscoveryKey != r2.DiscoveryKey {
		t.Fatalf("expected the same name to resolve to the same discovery key")
	}
	if r1.SecretKey == nil {
		t.Fatalf("expected a named resolution to be writable")
	}
}

func TestResolveKeyDefaultWithoutNameErrors(t *testing.T) {
	master := bytes.Repeat([]byte{0x11}, keys.MasterSecretSize)
	_, err := resolveKey(master, GetOptions{Default: true})
	if !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
}

func TestResolveKeyByDiscoveryKeyIsPassiveOnly(t *testing.T) {
	master := bytes.Repeat([]byte{0x11}, keys.MasterSecretSize)
	dk := bytes.Repeat([]byte{0x22}, 32)

	r, err := resolveKey(master, DiscoveryKeyOption(dk))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if r.PublicKey != nil {
		t.Fatalf("expected a discovery-key-only resolution to carry no public key yet")
	}
	if !bytes.Equal(r.DiscoveryKey[:], dk) {
		t.Fatalf("expected the discovery key to be carried through verbatim")
	}
}

func TestResolveKeyByKeyPairIsWritable(t *testing.T) {
	master := bytes.Repeat([]byte{0x11}, keys.MasterSecretSize)
	seed := keys.Derive(master, []byte("x"))
	pub, sec := keys.Keypair(seed)

	r, err := resolveKey(master, GetOptions{KeyPair: &KeyPair{PublicKey: pub, SecretKey: sec}})
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if !bytes.Equal(r.PublicKey, pub) || !bytes.Equal(r.SecretKey, sec) {
		t.Fatalf("expected the supplied keypair to pass through unchanged")
	}
	if r.DiscoveryKey != keys.DiscoveryKeyOf(pub) {
		t.Fatalf("expected the discovery key to be derived from the supplied public key")
	}
}

func TestResolveKeyEmptyFallsBackToRandomName(t *testing.T) {
	master := bytes.Repeat([]byte{0x11}, keys.MasterSecretSize)
	r1, err := resolveKey(master, GetOptions{})
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	r2, err := resolveKey(master, GetOptions{})
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if r1.DiscoveryKey == r2.DiscoveryKey {
		t.Fatalf("expected two empty Gets to fall back to distinct random names")
	}
}
