package chainstore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nullbyte-labs/chainstore/chain"
)

// replicator is the replication multiplexer: it tracks every active peer
// stream, replicates chains onto them (lazily, once each chain is ready),
// and reacts to remote discovery-key requests by checking disk and, if
// present, injecting that chain too.
type replicator struct {
	eng *engine

	mu      sync.Mutex
	nextID  int
	streams map[int]chain.PeerStream
}

func newReplicator(eng *engine) *replicator {
	return &replicator{
		eng:     eng,
		streams: make(map[int]chain.PeerStream),
	}
}

// replicate adopts the caller-supplied peer stream, replicates the chains
// supplied by the caller as they each become ready, and subscribes to the
// stream's discovery-key requests.
func (r *replicator) replicate(ctx context.Context, isInitiator bool, stream chain.PeerStream, chains []chain.Chain) {
	id := r.register(stream)

	for _, ch := range chains {
		go r.replicateWhenReady(ctx, isInitiator, stream, ch)
	}

	go r.watchDiscovery(ctx, isInitiator, stream)

	go func() {
		<-stream.Done()
		r.unregister(id)
	}()
}

func (r *replicator) replicateWhenReady(ctx context.Context, isInitiator bool, stream chain.PeerStream, ch chain.Chain) {
	select {
	case <-ch.Ready():
	case <-ch.Err():
		return
	case <-ch.Closed():
		return
	}
	if err := ch.Replicate(ctx, isInitiator, stream); err != nil {
		r.eng.log.Error("replicate failed", zap.Error(err))
	}
}

func (r *replicator) watchDiscovery(ctx context.Context, isInitiator bool, stream chain.PeerStream) {
	for {
		select {
		case dk, ok := <-stream.DiscoveryKeys():
			if !ok {
				return
			}
			r.handleDiscoveryKey(ctx, isInitiator, stream, dk)
		case <-stream.Done():
			return
		}
	}
}

func (r *replicator) handleDiscoveryKey(ctx context.Context, isInitiator bool, stream chain.PeerStream, dk []byte) {
	exists, err := r.eng.checkIfExists(dk)
	if err != nil {
		r.eng.log.Error("checkIfExists failed", zap.Error(err))
		_ = stream.Close(dk)
		return
	}
	if !exists {
		_ = stream.Close(dk)
		return
	}

	ch, _, err := r.eng.get(DiscoveryKeyOption(dk))
	if err != nil {
		r.eng.log.Error("get on discovery-key request failed", zap.Error(err))
		_ = stream.Close(dk)
		return
	}
	go r.replicateWhenReady(ctx, isInitiator, stream, ch)
}

// injectNew replicates a newly-instantiated chain onto every currently
// active stream — the fan-out path that keeps locally-initiated and
// peer-initiated chains symmetric.
func (r *replicator) injectNew(ch chain.Chain) {
	for _, stream := range r.snapshot() {
		go r.replicateWhenReady(context.Background(), false, stream, ch)
	}
}

func (r *replicator) register(stream chain.PeerStream) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.streams[id] = stream
	return id
}

func (r *replicator) unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, id)
}

func (r *replicator) snapshot() []chain.PeerStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chain.PeerStream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}

func (r *replicator) destroyAll() {
	r.mu.Lock()
	streams := make([]chain.PeerStream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.streams = make(map[int]chain.PeerStream)
	r.mu.Unlock()

	for _, s := range streams {
		if err := s.Destroy(); err != nil {
			r.eng.log.Error("error destroying peer stream", zap.Error(err))
		}
	}
}
