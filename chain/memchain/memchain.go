// Package memchain is the reference Chain implementation used by chainstore's
// own tests and demos: an in-memory, append-only block log addressed by an
// Ed25519 keypair, replicated naively (send-everything) over a chain.PeerStream
// sub-channel. It builds only on chainstore's own identity and storage
// contracts rather than any real wire protocol; it exists to make the rest
// of the store exercisable end to end.
package memchain

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/nullbyte-labs/chainstore/chain"
	"github.com/nullbyte-labs/chainstore/keys"
	"github.com/nullbyte-labs/chainstore/storage"
)

// ErrClosed is returned by Append once the chain has been closed.
var ErrClosed = errors.New("memchain: closed")

// Chain is a minimal append-only block log: each block is hashed into a
// running BLAKE3 merkle root, and the whole log is replicated wholesale to
// any peer that asks for it.
type Chain struct {
	factory storage.Factory

	readyCh   chan struct{}
	errCh     chan error
	closedCh  chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	publicKey []byte
	secretKey []byte
	blocks    [][]byte
	root      [32]byte
	closed    bool
}

// New is a chain.Options-shaped constructor: it satisfies the
// chainstore.ChainConstructor signature, so it can be passed directly as
// Options.NewChain.
func New(factory storage.Factory, opts chain.Options) (chain.Chain, error) {
	c := &Chain{
		factory:  factory,
		readyCh:  make(chan struct{}),
		errCh:    make(chan error, 1),
		closedCh: make(chan struct{}),
	}
	go c.open(opts)
	return c, nil
}

func (c *Chain) open(opts chain.Options) {
	keyH, err := c.factory("key")
	if err != nil {
		c.fail(err)
		return
	}
	info, err := keyH.Stat()
	if err != nil {
		keyH.Close()
		c.fail(err)
		return
	}
	pk, err := keyH.ReadAt(0, info.Size)
	keyH.Close()
	if err != nil {
		c.fail(err)
		return
	}

	var sk []byte
	if secretH, serr := c.factory("secret_key"); serr == nil {
		if sinfo, statErr := secretH.Stat(); statErr == nil && sinfo.Size > 0 {
			sk, _ = secretH.ReadAt(0, sinfo.Size)
		}
		secretH.Close()
	}

	c.mu.Lock()
	c.publicKey = pk
	c.secretKey = sk
	c.mu.Unlock()

	close(c.readyCh)
}

func (c *Chain) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

// PublicKey returns the resolved public key, valid only after Ready closes.
func (c *Chain) PublicKey() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publicKey
}

// SecretKey returns the resolved secret key, or nil on a read-only chain.
func (c *Chain) SecretKey() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secretKey
}

// DiscoveryKey derives the discovery key from the resolved public key.
func (c *Chain) DiscoveryKey() []byte {
	dk := keys.DiscoveryKeyOf(c.PublicKey())
	return dk[:]
}

// Writable reports whether this node holds the secret key.
func (c *Chain) Writable() bool {
	return c.SecretKey() != nil
}

// Length returns the number of appended blocks.
func (c *Chain) Length() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.blocks))
}

// Ready closes once the key material has been resolved.
func (c *Chain) Ready() <-chan struct{} { return c.readyCh }

// Err delivers at most one open error.
func (c *Chain) Err() <-chan error { return c.errCh }

// Closed closes once Close has torn the chain down.
func (c *Chain) Closed() <-chan struct{} { return c.closedCh }

// Close tears the chain down. Idempotent.
func (c *Chain) Close() error {
	c.closeOnce.Do(func() { close(c.closedCh) })
	return nil
}

// Append adds one block, updating the running merkle root as
// blake3(root || block). It fails once the chain is closed.
func (c *Chain) Append(block []byte) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closedCh:
		return 0, ErrClosed
	default:
	}

	cp := append([]byte(nil), block...)
	c.blocks = append(c.blocks, cp)

	h := blake3.New()
	h.Write(c.root[:])
	h.Write(cp)
	copy(c.root[:], h.Sum(nil))

	return uint64(len(c.blocks)), nil
}

// Block returns a copy of the block at index i.
func (c *Chain) Block(i uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= uint64(len(c.blocks)) {
		return nil, false
	}
	return append([]byte(nil), c.blocks[i]...), true
}

// Root returns the current merkle root over every appended block.
func (c *Chain) Root() [32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// Replicate opens this chain's sub-channel on stream and runs a naive,
// bidirectional "send everything I have, then everything new" protocol:
// length-prefixed blocks in both directions, no diffing, no dedup beyond
// index. It returns once both directions have stopped: receiving ends when
// the sub-channel closes, sending ends when ctx is done, the chain closes or
// a write fails.
func (c *Chain) Replicate(ctx context.Context, isInitiator bool, stream chain.PeerStream) error {
	rw, err := stream.Channel(c.DiscoveryKey())
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var wgErr error
	go func() {
		defer close(done)
		wgErr = c.sendLoop(ctx, rw)
	}()

	recvErr := c.recvLoop(ctx, rw)

	<-done
	rw.Close()

	if recvErr != nil && recvErr != io.EOF {
		return recvErr
	}
	if wgErr != nil && wgErr != io.EOF {
		return wgErr
	}
	return nil
}

func (c *Chain) sendLoop(ctx context.Context, w io.Writer) error {
	sent := uint64(0)
	for {
		c.mu.Lock()
		total := uint64(len(c.blocks))
		c.mu.Unlock()

		for sent < total {
			block, ok := c.Block(sent)
			if !ok {
				break
			}
			if err := writeFrame(w, block); err != nil {
				return err
			}
			sent++
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closedCh:
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closedCh:
			return nil
		case <-waitForMore(c, sent):
		}
	}
}

func (c *Chain) recvLoop(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	// The peer sends its blocks in index order from 0, so the idx-th frame
	// is block idx; a block already held locally is skipped.
	for idx := uint64(0); ; idx++ {
		block, err := readFrame(br)
		if err != nil {
			return err
		}
		c.mu.Lock()
		if idx < uint64(len(c.blocks)) {
			c.mu.Unlock()
			continue
		}
		c.blocks = append(c.blocks, block)
		h := blake3.New()
		h.Write(c.root[:])
		h.Write(block)
		copy(c.root[:], h.Sum(nil))
		c.mu.Unlock()
	}
}

// waitForMore returns a channel that fires once the chain has appended past
// index `after`, polling modestly since memchain has no native append
// notification channel of its own.
func waitForMore(c *Chain, after uint64) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		for {
			c.mu.Lock()
			n := uint64(len(c.blocks))
			c.mu.Unlock()
			if n > after {
				return
			}
			select {
			case <-c.closedCh:
				return
			case <-time.After(2 * time.Millisecond):
			}
		}
	}()
	return ch
}

func writeFrame(w io.Writer, block []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(block)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(block)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	block := make([]byte, n)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, err
	}
	return block, nil
}
