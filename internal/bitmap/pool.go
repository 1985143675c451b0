package bitmap

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
)

// MaxDimension bounds either side of a buffer.
const MaxDimension = 1 << 15

// ErrInvalidSize is returned when a requested buffer has a non-positive or
// oversized dimension.
var ErrInvalidSize = errors.New("invalid bitmap size")

var logger = logging.For("bitmap")

// Stats is a snapshot of pool counters.
type Stats struct {
	Budget           int64  `json:"budget"`
	IdleBytes        int64  `json:"idleBytes"`
	IdleBuffers      int    `json:"idleBuffers"`
	InUse            int    `json:"inUse"`
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	Evictions        uint64 `json:"evictions"`
	RejectedReleases uint64 `json:"rejectedReleases"`
}

// Pool recycles pixel buffers keyed by (width, height, format). Idle
// buffers are kept in least-recently-released order and evicted once their
// total size exceeds the byte budget. Buffers in use are not counted
// against the budget.
type Pool struct {
	mu        sync.Mutex
	budget    int64
	idleBytes int64
	lru       *list.List // front is most recently released
	idle      map[Key][]*list.Element
	stats     Stats
}

// NewPool creates a pool that holds at most budget bytes of idle buffers.
func NewPool(budget int64) *Pool {
	if budget < 0 {
		budget = 0
	}
	metrics.BitmapPoolBudgetBytes.Set(float64(budget))
	return &Pool{
		budget: budget,
		lru:    list.New(),
		idle:   make(map[Key][]*list.Element),
	}
}

// Budget returns the configured byte budget.
func (p *Pool) Budget() int64 { return p.budget }

// Acquire returns an exclusively owned buffer of the requested size. An idle
// buffer with the same key is reused when available; its contents are
// unspecified. Otherwise a new buffer is allocated.
func (p *Pool) Acquire(width, height int, format Format) (*Buffer, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	key := Key{Width: width, Height: height, Format: format}

	p.mu.Lock()
	if elems := p.idle[key]; len(elems) > 0 {
		elem := elems[len(elems)-1]
		p.idle[key] = elems[:len(elems)-1]
		if len(p.idle[key]) == 0 {
			delete(p.idle, key)
		}
		b := p.lru.Remove(elem).(*Buffer)
		b.elem = nil
		b.state = stateInUse
		p.idleBytes -= b.Size()
		p.stats.Hits++
		p.stats.InUse++
		p.publishLocked()
		p.mu.Unlock()

		metrics.BitmapPoolRequests.WithLabelValues("hit").Inc()
		return b, nil
	}
	p.stats.Misses++
	p.stats.InUse++
	p.mu.Unlock()

	metrics.BitmapPoolRequests.WithLabelValues("miss").Inc()
	return &Buffer{
		key:   key,
		pix:   make([]byte, key.Bytes()),
		pool:  p,
		state: stateInUse,
	}, nil
}

// Release hands a buffer back for reuse. Releasing nil, a buffer from
// another pool, or a buffer that is not currently checked out is refused
// and logged; the pool is left unchanged.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		p.reject("nil buffer")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if b.pool != p {
		p.rejectLocked("buffer " + b.key.String() + " belongs to another pool")
		return
	}
	if b.state != stateInUse {
		p.rejectLocked("buffer " + b.key.String() + " is not checked out")
		return
	}

	p.stats.InUse--

	size := b.Size()
	if size > p.budget {
		b.free()
		p.stats.Evictions++
		metrics.BitmapPoolEvictions.Inc()
		return
	}

	b.state = stateIdle
	b.elem = p.lru.PushFront(b)
	p.idle[b.key] = append(p.idle[b.key], b.elem)
	p.idleBytes += size

	for p.idleBytes > p.budget {
		p.evictOldestLocked()
	}
	p.publishLocked()
}

// Purge drops every idle buffer.
func (p *Pool) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.lru.Len() > 0 {
		p.evictOldestLocked()
	}
	p.publishLocked()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.Budget = p.budget
	s.IdleBytes = p.idleBytes
	s.IdleBuffers = p.lru.Len()
	return s
}

func (p *Pool) evictOldestLocked() {
	elem := p.lru.Back()
	if elem == nil {
		return
	}
	b := p.lru.Remove(elem).(*Buffer)

	elems := p.idle[b.key]
	for i, e := range elems {
		if e == elem {
			elems = append(elems[:i], elems[i+1:]...)
			break
		}
	}
	if len(elems) == 0 {
		delete(p.idle, b.key)
	} else {
		p.idle[b.key] = elems
	}

	p.idleBytes -= b.Size()
	b.free()
	p.stats.Evictions++
	metrics.BitmapPoolEvictions.Inc()
}

func (p *Pool) publishLocked() {
	metrics.BitmapPoolIdleBytes.Set(float64(p.idleBytes))
	metrics.BitmapPoolIdleBuffers.Set(float64(p.lru.Len()))
}

func (p *Pool) reject(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectLocked(reason)
}

func (p *Pool) rejectLocked(reason string) {
	p.stats.RejectedReleases++
	metrics.BitmapPoolRejectedReleases.Inc()
	logger.Warn("Rejected release: %s", reason)
}

// free drops the pixel storage so the garbage collector can reclaim it.
func (b *Buffer) free() {
	b.state = stateFreed
	b.elem = nil
	b.pix = nil
}
