// Package history keeps recently observed base requests so that scans can be
// triggered by request id.
package history

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/google/uuid"
)

// entry is one stored request
type entry struct {
	req       *types.BaseRequest
	size      int64
	expiresAt time.Time
}

// Stats tracks store statistics
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int64 `json:"size"`
	ItemCount int   `json:"item_count"`
}

// Config holds store limits
type Config struct {
	Capacity        int64         // Maximum accounted size in bytes
	TTL             time.Duration // Zero keeps entries until evicted
	CleanupInterval time.Duration
}

// DefaultConfig returns default limits
func DefaultConfig() *Config {
	return &Config{
		Capacity:        64 * 1024 * 1024,
		TTL:             time.Hour,
		CleanupInterval: time.Minute,
	}
}

// Store is an LRU of base requests bounded by size and age
type Store struct {
	capacity    int64
	currentSize int64
	ttl         time.Duration
	items       map[string]*list.Element
	order       *list.List
	stats       Stats
	mu          sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a store and starts its expiry loop. Call Close to stop it.
func New(config *Config) *Store {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Store{
		capacity: config.Capacity,
		ttl:      config.TTL,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		stop:     make(chan struct{}),
	}

	if config.TTL > 0 {
		interval := config.CleanupInterval
		if interval <= 0 {
			interval = time.Minute
		}
		go s.cleanup(interval)
	}
	return s
}

// Put stores req, assigning a new id when it has none, and returns the id.
// Storing an id again replaces the previous request.
func (s *Store) Put(req *types.BaseRequest) string {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	size := sizeOf(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[req.ID]; ok {
		s.removeElement(elem)
	}

	for s.capacity > 0 && s.currentSize+size > s.capacity && s.order.Len() > 0 {
		s.evictOldest()
	}

	e := &entry{req: req, size: size}
	if s.ttl > 0 {
		e.expiresAt = time.Now().Add(s.ttl)
	}
	s.items[req.ID] = s.order.PushFront(e)
	s.currentSize += size
	return req.ID
}

// GetRequest returns the request stored under id.
func (s *Store) GetRequest(_ context.Context, id string) (*types.BaseRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		s.stats.Misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if s.expired(e, time.Now()) {
		s.removeElement(elem)
		s.stats.Misses++
		return nil, false
	}

	s.order.MoveToFront(elem)
	s.stats.Hits++
	return e.req, true
}

// Delete removes the request stored under id
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return false
	}
	s.removeElement(elem)
	return true
}

// Len returns the number of stored requests
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// GetStats returns store statistics
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Size = s.currentSize
	stats.ItemCount = len(s.items)
	return stats
}

// Close stops the expiry loop
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (s *Store) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(s.items, e.req.ID)
	s.order.Remove(elem)
	s.currentSize -= e.size
}

func (s *Store) evictOldest() {
	if elem := s.order.Back(); elem != nil {
		s.removeElement(elem)
		s.stats.Evictions++
	}
}

// cleanup periodically removes expired entries
func (s *Store) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeExpired(time.Now())
		}
	}
}

func (s *Store) removeExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []*list.Element
	for elem := s.order.Back(); elem != nil; elem = elem.Prev() {
		if s.expired(elem.Value.(*entry), now) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		s.removeElement(elem)
	}
}

// sizeOf approximates the memory held by req.
func sizeOf(req *types.BaseRequest) int64 {
	n := len(req.ID) + len(req.Method) + len(req.URL) + len(req.Body) + len(req.ContentType)
	for _, p := range req.Query {
		n += len(p.Name) + len(p.Value) + len(p.Raw)
	}
	for _, h := range req.Headers {
		n += len(h.Name) + len(h.Value)
	}
	return int64(n)
}
