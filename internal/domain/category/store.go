package category

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/example/ec-admin-sync/internal/liststore"
	"github.com/example/ec-admin-sync/internal/readmodel"
)

const StoreName = "categories"

var (
	ErrInvalidName = errors.New("name is required")
	ErrInvalidSlug = errors.New("invalid slug format")
)

// slugRegex validates slug format (lowercase letters, numbers, hyphens)
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

type Store struct {
	*liststore.Store[readmodel.Category]
}

func NewStore(backend liststore.Backend[readmodel.Category], opts liststore.Options) *Store {
	cfg := liststore.Apply(liststore.Config[readmodel.Category]{
		Name:         StoreName,
		Backend:      backend,
		DefaultSort:  "name",
		SearchFields: []string{"name", "slug", "description"},
	}, opts)
	return &Store{Store: liststore.New(cfg)}
}

// Create fills in a slug derived from the name when none is given
func (s *Store) Create(ctx context.Context, c readmodel.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		s.SetError(ErrInvalidName)
		return ErrInvalidName
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if !slugRegex.MatchString(c.Slug) {
		s.SetError(ErrInvalidSlug)
		return ErrInvalidSlug
	}
	return s.Add(ctx, c)
}

// Active lists the categories shown in product forms
func (s *Store) Active() []readmodel.Category {
	var out []readmodel.Category
	for _, c := range s.Items() {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out
}

// Slugify lowercases name and joins its words with hyphens
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
