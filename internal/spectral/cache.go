package spectral

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/precip-bench/internal/domain"
)

// CachedEstimator wraps an Estimator with an in-memory LRU cache so the
// reference spectrum is computed once per run rather than once per metric
// and candidate.
type CachedEstimator struct {
	inner  Estimator
	cache  *spectrumLRU
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEstimator creates a cache decorator around an estimator.
func NewCachedEstimator(inner Estimator, maxEntries int) *CachedEstimator {
	return &CachedEstimator{
		inner: inner,
		cache: newSpectrumLRU(maxEntries),
	}
}

func (c *CachedEstimator) Spectrum(rec domain.ForecastRecord) (Spectrum, error) {
	key := keyOf(rec)
	if s, ok := c.cache.get(key); ok {
		c.hits.Add(1)
		return s, nil
	}
	c.misses.Add(1)
	s, err := c.inner.Spectrum(rec)
	if err != nil {
		return s, err
	}
	c.cache.put(key, s)
	return s, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *CachedEstimator) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// spectrumKey identifies a record's spectrum. Records with equal labels but
// different grids or physical lengths get separate entries.
type spectrumKey struct {
	label            string
	shape            [3]int
	xLength, yLength float64
}

func keyOf(rec domain.ForecastRecord) spectrumKey {
	return spectrumKey{
		label:   rec.Label,
		shape:   rec.Data.Shape(),
		xLength: rec.XLength,
		yLength: rec.YLength,
	}
}

type lruEntry struct {
	key      spectrumKey
	spectrum Spectrum
}

// spectrumLRU keeps at most capacity spectra; the list front is the most
// recently used entry.
type spectrumLRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[spectrumKey]*list.Element
}

func newSpectrumLRU(capacity int) *spectrumLRU {
	return &spectrumLRU{
		capacity: max(capacity, 1),
		order:    list.New(),
		index:    make(map[spectrumKey]*list.Element),
	}
}

func (l *spectrumLRU) get(key spectrumKey) (Spectrum, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.index[key]
	if !ok {
		return Spectrum{}, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruEntry).spectrum, true
}

func (l *spectrumLRU) put(key spectrumKey, s Spectrum) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.index[key]; ok {
		el.Value.(*lruEntry).spectrum = s
		l.order.MoveToFront(el)
		return
	}
	l.index[key] = l.order.PushFront(&lruEntry{key: key, spectrum: s})
	for l.order.Len() > l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.index, oldest.Value.(*lruEntry).key)
	}
}

func (l *spectrumLRU) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
