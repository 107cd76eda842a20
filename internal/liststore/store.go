// Package liststore holds one searchable, sortable and paginated collection
// bound to a REST resource. Every entity store in the admin client is an
// instance of Store with its own search fields and default sort.
package liststore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/example/ec-admin-sync/internal/formerror"
	"github.com/example/ec-admin-sync/internal/metrics"
	"github.com/example/ec-admin-sync/internal/notification"
	"github.com/example/ec-admin-sync/internal/resource"
)

// DefaultPerPage is the page size when Config.PerPage is not set
const DefaultPerPage = 10

// NoSortField disables sorting when used as the sort field
const NoSortField = "actions"

// Record is anything with an identity key
type Record interface {
	GetID() string
}

// Backend is the resource binding a store reads and writes through.
// *resource.Collection satisfies it.
type Backend[T Record] interface {
	GetAll(ctx context.Context) resource.Result[[]T]
	Create(ctx context.Context, record T) resource.Result[T]
	Update(ctx context.Context, id string, patch any) resource.Result[*T]
	Delete(ctx context.Context, id string) resource.Result[resource.Empty]
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

type Sorting struct {
	Field     string
	Direction Direction
}

type Pagination struct {
	CurrentPage int
	PerPage     int
}

// Config parametrizes a Store for one entity type
type Config[T Record] struct {
	Name         string
	Backend      Backend[T]
	DefaultSort  string
	SearchFields []string // dotted paths, e.g. "product.name"; empty means every top-level field
	PerPage      int
	Locale       language.Tag

	// RefetchAfterRemove re-reads the collection after a delete instead of
	// dropping the record locally.
	RefetchAfterRemove bool

	Logger   *logrus.Entry
	Metrics  *metrics.Collector
	Notifier notification.Notifier
}

type entry[T Record] struct {
	item T
	doc  string // JSON form for path lookups
}

// Store is safe for concurrent use. Derived views are recomputed on read.
type Store[T Record] struct {
	cfg    Config[T]
	log    *logrus.Entry
	errors *formerror.Handler

	mu       sync.RWMutex
	entries  []entry[T]
	search   string
	sorting  Sorting
	page     Pagination
	scope    func(T) bool
	inflight int
	err      error

	// seq numbers every state-changing request; applied is the newest one
	// whose result is reflected in entries.
	seq     uint64
	applied uint64

	obsMu     sync.Mutex
	observers map[int]func()
	nextObs   int
}

// New creates a store. Backend is required.
func New[T Record](cfg Config[T]) *Store[T] {
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.Locale == language.Und {
		cfg.Locale = language.English
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithFields(logrus.Fields{"component": "store", "store": cfg.Name})

	return &Store[T]{
		cfg:       cfg,
		log:       log,
		errors:    formerror.NewHandler(cfg.Notifier, log),
		sorting:   Sorting{Field: cfg.DefaultSort, Direction: Ascending},
		page:      Pagination{CurrentPage: 1, PerPage: cfg.PerPage},
		observers: make(map[int]func()),
	}
}

func (s *Store[T]) Name() string { return s.cfg.Name }

// Fetch replaces the collection with the backend's. A response is dropped
// when a newer request has already been applied.
func (s *Store[T]) Fetch(ctx context.Context) error {
	seq := s.begin()
	defer s.end()

	res := s.cfg.Backend.GetAll(ctx)
	s.cfg.Metrics.StoreFetch(s.cfg.Name, res.Err())
	if err := res.Err(); err != nil {
		s.failFetch(seq, err)
		return err
	}

	entries := buildEntries(res.Value())
	s.mu.Lock()
	if seq <= s.applied {
		s.mu.Unlock()
		s.log.WithField("seq", seq).Debug("dropping stale fetch response")
		return nil
	}
	s.applied = seq
	s.entries = entries
	s.err = nil
	s.mu.Unlock()
	s.errors.Clear()
	s.log.WithField("count", len(entries)).Debug("fetched")
	return nil
}

// Add creates record then re-reads the collection
func (s *Store[T]) Add(ctx context.Context, record T) error {
	defer s.Track()()

	if err := s.cfg.Backend.Create(ctx, record).Err(); err != nil {
		s.fail(err)
		return err
	}
	return s.Fetch(ctx)
}

// Update sends patch for id. The echoed record replaces the local one;
// without an echo the collection is re-read.
func (s *Store[T]) Update(ctx context.Context, id string, patch any) error {
	defer s.Track()()

	res := s.cfg.Backend.Update(ctx, id, patch)
	if err := res.Err(); err != nil {
		s.fail(err)
		return err
	}
	updated := res.Value()
	if updated == nil {
		return s.Fetch(ctx)
	}
	if !s.Replace(id, *updated) {
		return s.Fetch(ctx)
	}
	return nil
}

// Remove deletes id and drops it locally, or re-reads when configured to
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	defer s.Track()()

	if err := s.cfg.Backend.Delete(ctx, id).Err(); err != nil {
		s.fail(err)
		return err
	}
	if s.cfg.RefetchAfterRemove {
		return s.Fetch(ctx)
	}

	s.mu.Lock()
	s.fence()
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if e.item.GetID() != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	s.err = nil
	s.mu.Unlock()
	s.errors.Clear()
	s.notify()
	return nil
}

// Replace swaps the record with key id for rec. It reports false when id is
// not in the collection.
func (s *Store[T]) Replace(id string, rec T) bool {
	e, err := newEntry(rec)
	if err != nil {
		s.log.WithError(err).Warn("cannot index record")
		return false
	}
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.fence()
	s.entries[idx] = e
	s.entries = dedupe(s.entries)
	s.mu.Unlock()
	s.notify()
	return true
}

// Patch applies fn to the record with key id in place
func (s *Store[T]) Patch(id string, fn func(*T)) bool {
	s.mu.RLock()
	idx := s.indexOf(id)
	var rec T
	if idx >= 0 {
		rec = s.entries[idx].item
	}
	s.mu.RUnlock()
	if idx < 0 {
		return false
	}
	fn(&rec)
	return s.Replace(id, rec)
}

// Find returns the record with key id
func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.entries[idx].item, true
	}
	var zero T
	return zero, false
}

// Items returns the raw collection in backend order
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.item
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Loading reports whether any request of this store is unresolved
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Error is the last failure, nil after a later success
func (s *Store[T]) Error() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// FieldErrors is the last failure normalized per field
func (s *Store[T]) FieldErrors() formerror.Map {
	return s.errors.Errors()
}

// SetError records a failure raised outside the backend, e.g. a local check
func (s *Store[T]) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.errors.Clear()
	if err != nil {
		if _, ok := formerror.Normalize(err); ok {
			s.errors.Handle(err)
		} else {
			s.errors.Set(formerror.General, err.Error())
		}
	}
	s.notify()
}

// ClearError forgets the last failure
func (s *Store[T]) ClearError() {
	s.SetError(nil)
}

// begin opens a request: it takes a sequence number and marks the store
// as loading.
func (s *Store[T]) begin() uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.inflight++
	s.mu.Unlock()
	s.notify()
	return seq
}

func (s *Store[T]) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.notify()
}

// fence makes every request issued so far stale. Callers hold mu.
func (s *Store[T]) fence() {
	s.seq++
	s.applied = s.seq
}

// Track marks the store as loading until the returned func is called. Entity
// stores wrap their own backend calls (workflow transitions and the like)
// with it: defer s.Track()().
func (s *Store[T]) Track() (done func()) {
	s.begin()
	return s.end
}

// failFetch records a fetch failure unless a newer result is already applied
func (s *Store[T]) failFetch(seq uint64, err error) {
	s.mu.Lock()
	stale := seq < s.applied
	s.mu.Unlock()
	if stale {
		s.log.WithError(err).WithField("seq", seq).Debug("dropping stale fetch failure")
		return
	}
	s.fail(err)
}

// fail records err as the store error
func (s *Store[T]) fail(err error) {
	s.log.WithError(err).Warn("request failed")
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.errors.Handle(err)
}

// indexOf returns the position of id. Callers hold mu.
func (s *Store[T]) indexOf(id string) int {
	for i, e := range s.entries {
		if e.item.GetID() == id {
			return i
		}
	}
	return -1
}

func newEntry[T Record](rec T) (entry[T], error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return entry[T]{}, err
	}
	return entry[T]{item: rec, doc: string(doc)}, nil
}

func buildEntries[T Record](items []T) []entry[T] {
	out := make([]entry[T], 0, len(items))
	for _, it := range items {
		e, err := newEntry(it)
		if err != nil {
			e = entry[T]{item: it, doc: "{}"}
		}
		out = append(out, e)
	}
	return dedupe(out)
}

// dedupe keeps the first position of each key with the last value seen
func dedupe[T Record](in []entry[T]) []entry[T] {
	pos := make(map[string]int, len(in))
	out := in[:0:0]
	for _, e := range in {
		id := e.item.GetID()
		if i, ok := pos[id]; ok {
			out[i] = e
			continue
		}
		pos[id] = len(out)
		out = append(out, e)
	}
	return out
}
