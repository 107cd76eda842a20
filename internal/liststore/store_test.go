package liststore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-admin-sync/internal/api"
	"github.com/example/ec-admin-sync/internal/resource"
)

type meta struct {
	Label string `json:"label"`
}

type rec struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Meta  meta    `json:"meta"`
}

func (r rec) GetID() string { return r.ID }

// fakeBackend is an in-memory resource that records calls
type fakeBackend struct {
	mu       sync.Mutex
	items    []rec
	err      error
	noEcho   bool
	calls    map[string]int
	nextID   int
	onGetAll func()
}

func newFakeBackend(items ...rec) *fakeBackend {
	return &fakeBackend{items: items, calls: make(map[string]int)}
}

func (b *fakeBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *fakeBackend) GetAll(ctx context.Context) resource.Result[[]rec] {
	b.mu.Lock()
	b.calls["getAll"]++
	hook := b.onGetAll
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return resource.Err[[]rec](err)
	}
	out := append([]rec(nil), b.items...)
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	return resource.Ok(out)
}

func (b *fakeBackend) Create(ctx context.Context, r rec) resource.Result[rec] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["create"]++
	if b.err != nil {
		return resource.Err[rec](b.err)
	}
	b.nextID++
	r.ID = fmt.Sprintf("new-%d", b.nextID)
	b.items = append(b.items, r)
	return resource.Ok(r)
}

func (b *fakeBackend) Update(ctx context.Context, id string, patch any) resource.Result[*rec] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["update"]++
	if b.err != nil {
		return resource.Err[*rec](b.err)
	}
	name, _ := patch.(string)
	for i := range b.items {
		if b.items[i].ID == id {
			b.items[i].Name = name
			if b.noEcho {
				return resource.Ok[*rec](nil)
			}
			out := b.items[i]
			return resource.Ok(&out)
		}
	}
	return resource.Err[*rec](errors.New("not found"))
}

func (b *fakeBackend) Delete(ctx context.Context, id string) resource.Result[resource.Empty] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["delete"]++
	if b.err != nil {
		return resource.Err[resource.Empty](b.err)
	}
	kept := b.items[:0]
	for _, it := range b.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	b.items = kept
	return resource.Ok(resource.Empty{})
}

func (b *fakeBackend) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func newStore(b Backend[rec], mod ...func(*Config[rec])) *Store[rec] {
	cfg := Config[rec]{Name: "test", Backend: b, SearchFields: []string{"name", "meta.label"}}
	for _, m := range mod {
		m(&cfg)
	}
	return New(cfg)
}

func ids(items []rec) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func seeded(n int) []rec {
	out := make([]rec, n)
	for i := range out {
		out[i] = rec{ID: fmt.Sprintf("r%02d", i), Name: fmt.Sprintf("item %02d", i), Price: float64(i)}
	}
	return out
}

func TestFetch_ReplacesItems(t *testing.T) {
	b := newFakeBackend(rec{ID: "1"}, rec{ID: "2"})
	s := newStore(b)

	require.NoError(t, s.Fetch(context.Background()))
	assert.Equal(t, []string{"1", "2"}, ids(s.Items()))

	b.mu.Lock()
	b.items = []rec{{ID: "3"}}
	b.mu.Unlock()
	require.NoError(t, s.Fetch(context.Background()))
	assert.Equal(t, []string{"3"}, ids(s.Items()))
	assert.False(t, s.Loading())
}

func TestFetch_FailureClearsLoadingAndSetsError(t *testing.T) {
	b := newFakeBackend(rec{ID: "1"})
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	boom := &api.TransportError{Method: "GET", Path: "/x", StatusCode: 500, Message: "down"}
	b.fail(boom)
	err := s.Fetch(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Error(), boom)
	assert.False(t, s.Loading())
	assert.Equal(t, []string{"1"}, ids(s.Items()))
	assert.Equal(t, "down", s.FieldErrors()["general"])
}

func TestFetch_LoadingWhileInFlight(t *testing.T) {
	b := newFakeBackend(rec{ID: "1"})
	s := newStore(b)
	var during bool
	b.onGetAll = func() { during = s.Loading() }

	require.NoError(t, s.Fetch(context.Background()))
	assert.True(t, during)
	assert.False(t, s.Loading())
}

func TestFetch_DeduplicatesByKey(t *testing.T) {
	b := newFakeBackend(rec{ID: "1", Name: "old"}, rec{ID: "2"}, rec{ID: "1", Name: "new"})
	s := newStore(b)

	require.NoError(t, s.Fetch(context.Background()))
	require.Equal(t, []string{"1", "2"}, ids(s.Items()))
	assert.Equal(t, "new", s.Items()[0].Name)
}

// gatedBackend holds every GetAll until the test releases it
type gatedBackend struct {
	*fakeBackend
	started chan chan []rec
}

func (g *gatedBackend) GetAll(ctx context.Context) resource.Result[[]rec] {
	ch := make(chan []rec)
	g.started <- ch
	return resource.Ok(<-ch)
}

func TestFetch_StaleResponseIsDropped(t *testing.T) {
	g := &gatedBackend{fakeBackend: newFakeBackend(), started: make(chan chan []rec)}
	s := newStore(g)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = s.Fetch(ctx) }()
	first := <-g.started

	done := make(chan struct{})
	go func() { _ = s.Fetch(ctx); close(done) }()
	second := <-g.started

	second <- []rec{{ID: "fresh"}}
	<-done
	first <- []rec{{ID: "stale"}}
	wg.Wait()

	assert.Equal(t, []string{"fresh"}, ids(s.Items()))
	assert.False(t, s.Loading())
}

func TestAdd_RefetchesOnSuccess(t *testing.T) {
	b := newFakeBackend(rec{ID: "1"})
	s := newStore(b)

	require.NoError(t, s.Add(context.Background(), rec{Name: "x"}))
	assert.Equal(t, 1, b.count("getAll"))
	assert.Equal(t, []string{"1", "new-1"}, ids(s.Items()))
}

func TestAdd_FailureLeavesItems(t *testing.T) {
	b := newFakeBackend(rec{ID: "1"})
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	b.fail(&api.ValidationError{StatusCode: 400, Fields: []api.FieldError{{Field: "name", Message: "required"}}})
	err := s.Add(context.Background(), rec{})

	require.Error(t, err)
	assert.Equal(t, []string{"1"}, ids(s.Items()))
	assert.Equal(t, "required", s.FieldErrors()["name"])
	assert.False(t, s.Loading())
}

// slowCreateBackend holds Create until the test hands it an outcome
type slowCreateBackend struct {
	*fakeBackend
	entered chan struct{}
	outcome chan error
}

func (b *slowCreateBackend) Create(ctx context.Context, r rec) resource.Result[rec] {
	b.entered <- struct{}{}
	if err := <-b.outcome; err != nil {
		return resource.Err[rec](err)
	}
	return b.fakeBackend.Create(ctx, r)
}

func TestAdd_FailureIsRecordedAfterConcurrentFetch(t *testing.T) {
	b := &slowCreateBackend{
		fakeBackend: newFakeBackend(rec{ID: "1"}),
		entered:     make(chan struct{}),
		outcome:     make(chan error),
	}
	s := newStore(b)
	ctx := context.Background()

	addErr := make(chan error, 1)
	go func() { addErr <- s.Add(ctx, rec{Name: "dup"}) }()
	<-b.entered

	// e.g. a real-time refresh landing while the create is in flight
	require.NoError(t, s.Fetch(ctx))
	assert.True(t, s.Loading(), "create still pending")

	b.outcome <- &api.ValidationError{StatusCode: 400, Fields: []api.FieldError{{Field: "name", Message: "taken"}}}
	err := <-addErr

	require.Error(t, err)
	assert.Equal(t, err, s.Error())
	assert.Equal(t, "taken", s.FieldErrors()["name"])
	assert.Equal(t, []string{"1"}, ids(s.Items()))
	assert.False(t, s.Loading())
}

func TestTrack_LoadingUntilDone(t *testing.T) {
	s := newStore(newFakeBackend())
	var seen []bool
	unsubscribe := s.Subscribe(func() { seen = append(seen, s.Loading()) })
	defer unsubscribe()

	done := s.Track()
	assert.True(t, s.Loading())
	done()
	assert.False(t, s.Loading())
	assert.Equal(t, []bool{true, false}, seen)
}

func TestUpdate_ReplacesWithEcho(t *testing.T) {
	b := newFakeBackend(rec{ID: "1", Name: "a"}, rec{ID: "2", Name: "b"})
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	require.NoError(t, s.Update(context.Background(), "2", "renamed"))

	assert.Equal(t, 1, b.count("getAll"))
	got, ok := s.Find("2")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"1", "2"}, ids(s.Items()))
}

func TestUpdate_RefetchesWithoutEcho(t *testing.T) {
	b := newFakeBackend(rec{ID: "1", Name: "a"})
	b.noEcho = true
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	require.NoError(t, s.Update(context.Background(), "1", "renamed"))

	assert.Equal(t, 2, b.count("getAll"))
	got, _ := s.Find("1")
	assert.Equal(t, "renamed", got.Name)
}

func TestUpdate_FailureLeavesItems(t *testing.T) {
	b := newFakeBackend(rec{ID: "1", Name: "a"})
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))
	b.fail(errors.New("boom"))

	require.Error(t, s.Update(context.Background(), "1", "renamed"))
	got, _ := s.Find("1")
	assert.Equal(t, "a", got.Name)
	assert.Error(t, s.Error())
}

func TestRemove_LocalOrRefetch(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		b := newFakeBackend(rec{ID: "1"}, rec{ID: "2"})
		s := newStore(b)
		require.NoError(t, s.Fetch(context.Background()))

		require.NoError(t, s.Remove(context.Background(), "1"))
		assert.Equal(t, []string{"2"}, ids(s.Items()))
		assert.Equal(t, 1, b.count("getAll"))
	})

	t.Run("refetch", func(t *testing.T) {
		b := newFakeBackend(rec{ID: "1"}, rec{ID: "2"})
		s := newStore(b, func(c *Config[rec]) { c.RefetchAfterRemove = true })
		require.NoError(t, s.Fetch(context.Background()))

		require.NoError(t, s.Remove(context.Background(), "1"))
		assert.Equal(t, []string{"2"}, ids(s.Items()))
		assert.Equal(t, 2, b.count("getAll"))
	})

	t.Run("failure", func(t *testing.T) {
		b := newFakeBackend(rec{ID: "1"})
		s := newStore(b)
		require.NoError(t, s.Fetch(context.Background()))
		b.fail(errors.New("boom"))

		require.Error(t, s.Remove(context.Background(), "1"))
		assert.Equal(t, []string{"1"}, ids(s.Items()))
	})
}

func TestPaginationSlicingLaw(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25} {
		for _, per := range []int{1, 3, 10} {
			for page := 1; page <= 5; page++ {
				b := newFakeBackend(seeded(n)...)
				s := newStore(b, func(c *Config[rec]) { c.DefaultSort = "id" })
				require.NoError(t, s.Fetch(context.Background()))
				s.SetPerPage(per)
				s.SetPage(page)

				filtered := s.Filtered()
				start := (page - 1) * per
				want := []rec{}
				if start < len(filtered) {
					want = filtered[start:min(page*per, len(filtered))]
				}
				assert.Equal(t, want, s.Paginated(), "n=%d per=%d page=%d", n, per, page)
			}
		}
	}
}

func TestSetPage_IsPermissive(t *testing.T) {
	b := newFakeBackend(seeded(5)...)
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	for _, page := range []int{0, -3, 99} {
		s.SetPage(page)
		assert.Equal(t, page, s.Pagination().CurrentPage)
		assert.Empty(t, s.Paginated())
	}
}

func TestPageCount(t *testing.T) {
	b := newFakeBackend(seeded(21)...)
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	assert.Equal(t, 3, s.PageCount())
	s.SetPerPage(7)
	assert.Equal(t, 3, s.PageCount())
	s.SetPerPage(0)
	assert.Equal(t, 7, s.Pagination().PerPage)
}

func TestSearchResetLaw(t *testing.T) {
	b := newFakeBackend(seeded(30)...)
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	for _, q := range []string{"", "item", "zzz", "ITEM 1"} {
		s.SetPage(3)
		s.SetSearch(q)
		assert.Equal(t, 1, s.Pagination().CurrentPage, "query %q", q)
	}
}

func TestSearch_CaseInsensitiveAcrossFields(t *testing.T) {
	b := newFakeBackend(
		rec{ID: "1", Name: "Green Apple"},
		rec{ID: "2", Name: "Pear", Meta: meta{Label: "APPLE orchard"}},
		rec{ID: "3", Name: "Plum"},
	)
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	s.SetSearch("apple")
	assert.ElementsMatch(t, []string{"1", "2"}, ids(s.Filtered()))

	s.SetSearch("")
	assert.Len(t, s.Filtered(), 3)
}

func TestSearch_WhitespaceIsAQuery(t *testing.T) {
	b := newFakeBackend(rec{ID: "1", Name: "Green Apple"}, rec{ID: "2", Name: "Pear"})
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	s.SetSearch(" ")
	assert.Equal(t, []string{"1"}, ids(s.Filtered()))
}

func TestSearch_AllFieldsWhenNoneConfigured(t *testing.T) {
	b := newFakeBackend(rec{ID: "abc", Name: "x"}, rec{ID: "def", Name: "y"})
	s := newStore(b, func(c *Config[rec]) { c.SearchFields = nil })
	require.NoError(t, s.Fetch(context.Background()))

	s.SetSearch("DE")
	assert.Equal(t, []string{"def"}, ids(s.Filtered()))
}

func TestSortToggleLaw(t *testing.T) {
	s := newStore(newFakeBackend(), func(c *Config[rec]) { c.DefaultSort = "name" })

	for _, field := range []string{"name", "price", "meta.label"} {
		before := s.Sorting()
		s.SetSorting(field)
		s.SetSorting(field)
		if before.Field == field {
			assert.Equal(t, before, s.Sorting())
		} else {
			assert.Equal(t, Sorting{Field: field, Direction: Descending}, s.Sorting())
		}
	}

	s.SetSorting("name")
	assert.Equal(t, Sorting{Field: "name", Direction: Ascending}, s.Sorting())
}

func TestSort_Kinds(t *testing.T) {
	b := newFakeBackend(
		rec{ID: "1", Name: "banana", Price: 10, Meta: meta{Label: "b"}},
		rec{ID: "2", Name: "Apple", Price: 9, Meta: meta{Label: "c"}},
		rec{ID: "3", Name: "cherry", Price: 100, Meta: meta{Label: "a"}},
	)
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	s.SetSorting("name")
	assert.Equal(t, []string{"2", "1", "3"}, ids(s.Filtered()), "case-insensitive strings")

	s.SetSorting("price")
	assert.Equal(t, []string{"2", "1", "3"}, ids(s.Filtered()), "numeric, not lexical")
	s.SetSorting("price")
	assert.Equal(t, []string{"3", "1", "2"}, ids(s.Filtered()))

	s.SetSorting("meta.label")
	assert.Equal(t, []string{"3", "1", "2"}, ids(s.Filtered()), "dotted path")

	s.SetSorting(NoSortField)
	assert.Equal(t, []string{"1", "2", "3"}, ids(s.Filtered()), "backend order")
}

func TestSort_IsStable(t *testing.T) {
	b := newFakeBackend(
		rec{ID: "1", Price: 5},
		rec{ID: "2", Price: 1},
		rec{ID: "3", Price: 5},
		rec{ID: "4", Price: 1},
	)
	s := newStore(b, func(c *Config[rec]) { c.DefaultSort = "price" })
	require.NoError(t, s.Fetch(context.Background()))

	assert.Equal(t, []string{"2", "4", "1", "3"}, ids(s.Filtered()))
}

func TestSetScope_FiltersBeforeSearch(t *testing.T) {
	b := newFakeBackend(seeded(12)...)
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))
	s.SetPage(2)

	s.SetScope(func(r rec) bool { return r.Price >= 10 })
	assert.Equal(t, 1, s.Pagination().CurrentPage)
	assert.Equal(t, []string{"r10", "r11"}, ids(s.Filtered()))

	s.SetSearch("11")
	assert.Equal(t, []string{"r11"}, ids(s.Filtered()))

	s.SetScope(nil)
	s.SetSearch("")
	assert.Len(t, s.Filtered(), 12)
}

func TestPatch(t *testing.T) {
	b := newFakeBackend(rec{ID: "1", Name: "a"})
	s := newStore(b)
	require.NoError(t, s.Fetch(context.Background()))

	assert.True(t, s.Patch("1", func(r *rec) { r.Name = "patched" }))
	assert.False(t, s.Patch("missing", func(r *rec) {}))

	s.SetSearch("patched")
	assert.Equal(t, []string{"1"}, ids(s.Filtered()))
}

func TestSetError_LocalMessageGoesToGeneral(t *testing.T) {
	s := newStore(newFakeBackend())

	s.SetError(errors.New("not enough stock"))
	assert.Equal(t, "not enough stock", s.FieldErrors()["general"])

	s.ClearError()
	assert.NoError(t, s.Error())
	assert.Equal(t, "", s.FieldErrors()["general"])
}

func TestSubscribe(t *testing.T) {
	s := newStore(newFakeBackend(rec{ID: "1"}))
	var mu sync.Mutex
	calls := 0
	unsubscribe := s.Subscribe(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.SetSearch("x")
	s.SetSorting("name")
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()

	unsubscribe()
	s.SetPage(2)
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}
