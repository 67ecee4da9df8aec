// Package memory keeps greeting history in process memory. Records are
// lost on restart. A size bound evicts the least recently used record.
package memory

import (
	"cmp"
	"container/list"
	"context"
	"slices"
	"sync"

	"github.com/rhuss/greetings/pkg/api"
	"github.com/rhuss/greetings/pkg/debug"
	"github.com/rhuss/greetings/pkg/storage"
	"github.com/rhuss/greetings/pkg/transport"
)

type entry struct {
	rec    api.GreetingRecord
	tenant string
	elem   *list.Element
}

// Store is a HistoryStore backed by a map and an LRU list. Safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*entry
	recency *list.List // of record IDs, most recently used first
	maxSize int
}

var _ transport.HistoryStore = (*Store)(nil)

// New returns a store holding at most maxSize records. Zero means no
// bound.
func New(maxSize int) *Store {
	return &Store{
		byID:    make(map[string]*entry),
		recency: list.New(),
		maxSize: maxSize,
	}
}

// SaveGreeting stores a copy of rec owned by the tenant on ctx. Saving an
// existing ID returns storage.ErrConflict.
func (s *Store) SaveGreeting(ctx context.Context, rec *api.GreetingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[rec.ID]; ok {
		return storage.ErrConflict
	}
	for s.maxSize > 0 && len(s.byID) >= s.maxSize {
		s.evictLRU()
	}
	s.byID[rec.ID] = &entry{
		rec:    *rec,
		tenant: storage.GetTenant(ctx),
		elem:   s.recency.PushFront(rec.ID),
	}
	return nil
}

// GetGreeting returns a copy of the record and marks it recently used.
func (s *Store) GetGreeting(ctx context.Context, id string) (*api.GreetingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recency.MoveToFront(e.elem)
	rec := e.rec
	return &rec, nil
}

// DeleteGreeting removes the record.
func (s *Store) DeleteGreeting(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.visible(ctx, id)
	if err != nil {
		return err
	}
	s.remove(id, e)
	return nil
}

// ListGreetings pages through the records visible to ctx, ordered by
// creation time with the ID as tie breaker. Listing does not affect
// recency.
func (s *Store) ListGreetings(ctx context.Context, opts transport.ListOptions) (*transport.GreetingList, error) {
	opts = transport.NormalizeListOptions(opts)

	s.mu.Lock()
	recs := make([]*api.GreetingRecord, 0, len(s.byID))
	for _, e := range s.byID {
		if storage.Visible(ctx, e.tenant) {
			rec := e.rec
			recs = append(recs, &rec)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(recs, func(a, b *api.GreetingRecord) int {
		c := cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), cmp.Compare(a.ID, b.ID))
		if opts.Order == "desc" {
			return -c
		}
		return c
	})

	if opts.After != "" {
		i := slices.IndexFunc(recs, func(r *api.GreetingRecord) bool { return r.ID == opts.After })
		if i < 0 {
			// An unknown cursor yields an empty page, not the first one.
			recs = recs[:0]
		} else {
			recs = recs[i+1:]
		}
	}

	page := &transport.GreetingList{Object: "list", Data: recs}
	if len(recs) > opts.Limit {
		page.Data, page.HasMore = recs[:opts.Limit], true
	}
	if n := len(page.Data); n > 0 {
		page.FirstID, page.LastID = page.Data[0].ID, page.Data[n-1].ID
	}
	return page, nil
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len returns the number of records across all tenants.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// visible returns the entry for id if ctx may see it. Caller holds s.mu.
func (s *Store) visible(ctx context.Context, id string) (*entry, error) {
	e, ok := s.byID[id]
	if !ok || !storage.Visible(ctx, e.tenant) {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// evictLRU drops the least recently used record. Caller holds s.mu.
func (s *Store) evictLRU() {
	back := s.recency.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.remove(id, s.byID[id])
	debug.Log("storage", "evicted greeting record", "stream_id", id)
}

func (s *Store) remove(id string, e *entry) {
	s.recency.Remove(e.elem)
	delete(s.byID, id)
}
