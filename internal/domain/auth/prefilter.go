package auth

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// Prefilter wraps a KeyStore with a Bloom filter over the active key hashes.
// A hash absent from the filter is definitely not stored, so the lookup is
// rejected without touching the store; present hashes (including the filter's
// false positives) fall through to the real store. New keys minted after the
// filter was built are added via Observe by whoever minted them, or picked up
// on the next Reload.
type Prefilter struct {
	store KeyStore

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

const prefilterFPR = 0.001

var _ KeyStore = (*Prefilter)(nil)

// HashLister enumerates the active key hashes for filter construction.
type HashLister interface {
	ActiveKeyHashes(ctx context.Context) ([]string, error)
}

// NewPrefilter builds the filter from lister and wraps store. capacity is a
// sizing hint; the actual hash count is used when it is larger.
func NewPrefilter(ctx context.Context, store KeyStore, lister HashLister, capacity uint) (*Prefilter, error) {
	p := &Prefilter{store: store}
	if err := p.reload(ctx, lister, capacity); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload rebuilds the filter from the lister. Safe for concurrent use with
// FindByHash.
func (p *Prefilter) Reload(ctx context.Context, lister HashLister, capacity uint) error {
	return p.reload(ctx, lister, capacity)
}

func (p *Prefilter) reload(ctx context.Context, lister HashLister, capacity uint) error {
	hashes, err := lister.ActiveKeyHashes(ctx)
	if err != nil {
		return errors.Wrap(err, "list active key hashes")
	}
	if n := uint(len(hashes)); n > capacity {
		capacity = n
	}
	if capacity == 0 {
		capacity = 1
	}

	f := bloom.NewWithEstimates(capacity, prefilterFPR)
	for _, h := range hashes {
		f.AddString(h)
	}

	p.mu.Lock()
	p.filter = f
	p.mu.Unlock()
	return nil
}

// Observe adds a freshly minted hash so it passes the filter before the next
// Reload.
func (p *Prefilter) Observe(hash string) {
	p.mu.Lock()
	p.filter.AddString(hash)
	p.mu.Unlock()
}

// FindByHash short-circuits definitely-unknown hashes, otherwise delegates.
func (p *Prefilter) FindByHash(ctx context.Context, hash string) (*KeyRecord, error) {
	p.mu.RLock()
	known := p.filter.TestString(hash)
	p.mu.RUnlock()

	if !known {
		return nil, ErrKeyNotFound
	}
	return p.store.FindByHash(ctx, hash)
}
