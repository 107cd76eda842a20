package liststore

import (
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/collate"
)

// SetSearch filters by a case-insensitive substring and returns to page 1
func (s *Store[T]) SetSearch(query string) {
	s.mu.Lock()
	s.search = query
	s.page.CurrentPage = 1
	s.mu.Unlock()
	s.notify()
}

func (s *Store[T]) Search() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.search
}

// SetSorting flips the direction when field is already the sort field,
// otherwise sorts ascending by field.
func (s *Store[T]) SetSorting(field string) {
	s.mu.Lock()
	if s.sorting.Field == field {
		if s.sorting.Direction == Ascending {
			s.sorting.Direction = Descending
		} else {
			s.sorting.Direction = Ascending
		}
	} else {
		s.sorting = Sorting{Field: field, Direction: Ascending}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store[T]) Sorting() Sorting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorting
}

// SetPage stores page as given. Pages outside the collection yield an
// empty Paginated view.
func (s *Store[T]) SetPage(page int) {
	s.mu.Lock()
	s.page.CurrentPage = page
	s.mu.Unlock()
	s.notify()
}

// SetPerPage changes the page size; n <= 0 is ignored
func (s *Store[T]) SetPerPage(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.page.PerPage = n
	s.mu.Unlock()
	s.notify()
}

func (s *Store[T]) Pagination() Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// SetScope installs a filter applied before the search; nil removes it.
// The page returns to 1.
func (s *Store[T]) SetScope(scope func(T) bool) {
	s.mu.Lock()
	s.scope = scope
	s.page.CurrentPage = 1
	s.mu.Unlock()
	s.notify()
}

// Filtered is the scoped, searched and sorted collection
func (s *Store[T]) Filtered() []T {
	s.mu.RLock()
	entries := make([]entry[T], len(s.entries))
	copy(entries, s.entries)
	search := strings.ToLower(s.search)
	sorting := s.sorting
	scope := s.scope
	s.mu.RUnlock()

	kept := entries[:0]
	for _, e := range entries {
		if scope != nil && !scope(e.item) {
			continue
		}
		if search != "" && !s.matches(e.doc, search) {
			continue
		}
		kept = append(kept, e)
	}

	if sorting.Field != "" && sorting.Field != NoSortField {
		col := collate.New(s.cfg.Locale, collate.IgnoreCase)
		slices.SortStableFunc(kept, func(a, b entry[T]) int {
			c := compareValues(col, gjson.Get(a.doc, sorting.Field), gjson.Get(b.doc, sorting.Field))
			if sorting.Direction == Descending {
				return -c
			}
			return c
		})
	}

	out := make([]T, len(kept))
	for i, e := range kept {
		out[i] = e.item
	}
	return out
}

// Paginated is the current page of Filtered
func (s *Store[T]) Paginated() []T {
	filtered := s.Filtered()
	p := s.Pagination()
	return pageOf(filtered, p.CurrentPage, p.PerPage)
}

// PageCount is the number of pages of Filtered
func (s *Store[T]) PageCount() int {
	n := len(s.Filtered())
	per := s.Pagination().PerPage
	return (n + per - 1) / per
}

func pageOf[T any](items []T, page, perPage int) []T {
	if page < 1 || perPage <= 0 {
		return []T{}
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := min(start+perPage, len(items))
	return items[start:end]
}

func (s *Store[T]) matches(doc, needle string) bool {
	if len(s.cfg.SearchFields) == 0 {
		found := false
		gjson.Parse(doc).ForEach(func(_, v gjson.Result) bool {
			if v.Type != gjson.JSON && strings.Contains(strings.ToLower(v.String()), needle) {
				found = true
				return false
			}
			return true
		})
		return found
	}
	for _, path := range s.cfg.SearchFields {
		v := gjson.Get(doc, path)
		if v.Exists() && strings.Contains(strings.ToLower(v.String()), needle) {
			return true
		}
	}
	return false
}

// compareValues orders missing values first, then numbers numerically,
// timestamps chronologically and everything else by collation.
func compareValues(col *collate.Collator, a, b gjson.Result) int {
	switch {
	case !a.Exists() && !b.Exists():
		return 0
	case !a.Exists():
		return -1
	case !b.Exists():
		return 1
	}

	if a.Type == gjson.Number && b.Type == gjson.Number {
		return cmpFloat(a.Float(), b.Float())
	}
	if isBool(a) && isBool(b) {
		return cmpBool(a.Bool(), b.Bool())
	}
	if a.Type == gjson.String && b.Type == gjson.String {
		ta, errA := time.Parse(time.RFC3339Nano, a.Str)
		tb, errB := time.Parse(time.RFC3339Nano, b.Str)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
	}
	return col.CompareString(a.String(), b.String())
}

func isBool(r gjson.Result) bool {
	return r.Type == gjson.True || r.Type == gjson.False
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
