package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

type termKind string

const (
	kindCategory termKind = "category"
	kindTag      termKind = "tag"
)

// termSpec is one term to resolve: display name, slug and optional description.
type termSpec struct {
	name        string
	slug        string
	description string
}

// Resolver maps products to blog term ids, creating missing terms. Its
// slug caches live for the process and are safe for concurrent use.
type Resolver struct {
	store   ports.TermStore
	slugger *Slugger
	log     *slog.Logger

	mu         sync.RWMutex
	categories map[string]domain.Term
	tags       map[string]domain.Term
	group      singleflight.Group
}

var _ ports.TermResolver = (*Resolver)(nil)

// NewResolver builds a resolver and warms both caches with a full list fetch.
func NewResolver(ctx context.Context, store ports.TermStore, slugger *Slugger, logger *slog.Logger) (*Resolver, error) {
	if slugger == nil {
		slugger = &Slugger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		store:      store,
		slugger:    slugger,
		log:        logger.With("component", "taxonomy"),
		categories: map[string]domain.Term{},
		tags:       map[string]domain.Term{},
	}

	cats, err := store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm categories: %w", err)
	}
	tags, err := store.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm tags: %w", err)
	}
	for _, c := range cats {
		r.categories[c.Slug] = c
	}
	for _, t := range tags {
		r.tags[t.Slug] = t
	}
	r.log.Debug("term caches warmed", "categories", len(cats), "tags", len(tags))
	return r, nil
}

// TermsFor resolves category ids for p under scheme.
func (r *Resolver) TermsFor(ctx context.Context, p domain.Product, scheme domain.TaxonomyScheme) ([]int, error) {
	specs, err := r.categorySpecs(p, scheme.Normalize())
	if err != nil {
		return nil, err
	}
	return r.resolveAll(ctx, kindCategory, specs)
}

// AutoTags resolves the prefixed attribute tags plus content id and JAN tags.
func (r *Resolver) AutoTags(ctx context.Context, p domain.Product) ([]int, error) {
	var specs []termSpec
	groups := []struct {
		prefix string
		attrs  []domain.Attribute
	}{
		{"actress", p.Actresses},
		{"director", p.Directors},
		{"series", p.Series},
		{"genre", p.Genres},
		{"maker", p.Makers},
		{"label", p.Labels},
	}
	for _, g := range groups {
		for _, a := range g.attrs {
			if a.Name == "" {
				continue
			}
			specs = append(specs, termSpec{
				name: a.Name,
				slug: g.prefix + "-" + r.slugFor(g.prefix, a),
			})
		}
	}
	if p.ContentID != "" {
		specs = append(specs, termSpec{name: p.ContentID, slug: "content-id-" + strings.ToLower(p.ContentID)})
	}
	if p.JANCode != "" {
		specs = append(specs, termSpec{name: p.JANCode, slug: "jancode-" + p.JANCode})
	}
	return r.resolveAll(ctx, kindTag, specs)
}

func (r *Resolver) categorySpecs(p domain.Product, scheme domain.TaxonomyScheme) ([]termSpec, error) {
	attrScheme := func(attrs []domain.Attribute, label string) []termSpec {
		specs := make([]termSpec, 0, len(attrs))
		for _, a := range attrs {
			if a.Name == "" {
				continue
			}
			specs = append(specs, termSpec{
				name:        a.Name,
				slug:        r.slugFor(string(scheme), a),
				description: label + ": " + a.Name,
			})
		}
		return specs
	}

	switch scheme {
	case domain.SchemeJAN:
		if p.JANCode == "" {
			return nil, nil
		}
		return []termSpec{janTerm(p.JANCode)}, nil
	case domain.SchemeActress:
		return attrScheme(p.Actresses, "女優"), nil
	case domain.SchemeDirector:
		return attrScheme(p.Directors, "監督"), nil
	case domain.SchemeSeries:
		return attrScheme(p.Series, "シリーズ"), nil
	case domain.SchemeGenre:
		return attrScheme(p.Genres, "ジャンル"), nil
	case domain.SchemeMaker:
		return attrScheme(p.Makers, "メーカー"), nil
	case domain.SchemeLabel:
		return attrScheme(p.Labels, "レーベル"), nil
	case domain.SchemeCustom:
		return customTerms(p), nil
	case "":
		return nil, nil
	}
	return nil, domain.NewError(domain.KindConfigInvalid, "taxonomy.TermsFor", fmt.Errorf("unknown scheme %q", scheme))
}

func (r *Resolver) slugFor(prefix string, a domain.Attribute) string {
	if a.Ruby != "" {
		if slug := r.slugger.Slugify(a.Ruby); slug != "" {
			return slug
		}
	}
	return r.slugger.SlugOrHash(prefix, a.Name)
}

func janTerm(jan string) termSpec {
	if strings.HasPrefix(jan, "49") || strings.HasPrefix(jan, "45") {
		return termSpec{name: "日本製", slug: "japan-made", description: "JANコード: 国内製品"}
	}
	return termSpec{name: "輸入品", slug: "imported", description: "JANコード: 輸入製品"}
}

func customTerms(p domain.Product) []termSpec {
	var specs []termSpec
	if p.ContentID != "" {
		prefix := strings.ToUpper(p.ContentID[:1])
		specs = append(specs, termSpec{
			name: "品番" + prefix + "系",
			slug: "content-prefix-" + strings.ToLower(prefix),
		})
	}
	if price, err := strconv.Atoi(p.Price); err == nil {
		specs = append(specs, priceBucket(price))
	}
	return specs
}

func priceBucket(price int) termSpec {
	switch {
	case price < 1000:
		return termSpec{name: "1000円未満", slug: "under-1000"}
	case price < 3000:
		return termSpec{name: "1000-3000円", slug: "1000-3000"}
	case price < 5000:
		return termSpec{name: "3000-5000円", slug: "3000-5000"}
	default:
		return termSpec{name: "5000円以上", slug: "over-5000"}
	}
}

// resolveAll keeps input order, drops duplicates and stops on fatal errors.
// Non-fatal failures skip the term.
func (r *Resolver) resolveAll(ctx context.Context, kind termKind, specs []termSpec) ([]int, error) {
	ids := make([]int, 0, len(specs))
	seen := map[int]struct{}{}
	for _, spec := range specs {
		id, err := r.ensure(ctx, kind, spec)
		if err != nil {
			if domain.IsFatal(err) || ctx.Err() != nil {
				return ids, err
			}
			r.log.Warn("term resolution failed", "kind", kind, "slug", spec.slug, "err", err)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Resolver) cached(kind termKind, slug string) (domain.Term, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if kind == kindCategory {
		t, ok := r.categories[slug]
		return t, ok
	}
	t, ok := r.tags[slug]
	return t, ok
}

// remember stores t under every given slug; WordPress may return a slug that
// differs from the requested one.
func (r *Resolver) remember(kind termKind, t domain.Term, slugs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache := r.tags
	if kind == kindCategory {
		cache = r.categories
	}
	for _, slug := range slugs {
		if slug != "" {
			cache[slug] = t
		}
	}
}

// ensure looks in the cache, then GET-by-slug, then creates. Concurrent
// calls for the same slug share one lookup.
func (r *Resolver) ensure(ctx context.Context, kind termKind, spec termSpec) (int, error) {
	if t, ok := r.cached(kind, spec.slug); ok {
		return t.ID, nil
	}

	v, err, _ := r.group.Do(string(kind)+":"+spec.slug, func() (interface{}, error) {
		if t, ok := r.cached(kind, spec.slug); ok {
			return t, nil
		}
		t, err := r.lookup(ctx, kind, spec.slug)
		if err != nil {
			return nil, err
		}
		if t == nil {
			created, err := r.create(ctx, kind, spec)
			if err != nil {
				return nil, err
			}
			t = &created
			r.log.Info("term created", "kind", kind, "name", spec.name, "slug", created.Slug, "id", created.ID)
		}
		r.remember(kind, *t, spec.slug, t.Slug)
		return *t, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(domain.Term).ID, nil
}

func (r *Resolver) lookup(ctx context.Context, kind termKind, slug string) (*domain.Term, error) {
	if kind == kindCategory {
		return r.store.GetCategoryBySlug(ctx, slug)
	}
	return r.store.GetTagBySlug(ctx, slug)
}

func (r *Resolver) create(ctx context.Context, kind termKind, spec termSpec) (domain.Term, error) {
	var (
		t   domain.Term
		err error
	)
	if kind == kindCategory {
		t, err = r.store.CreateCategory(ctx, spec.name, spec.slug, spec.description)
	} else {
		t, err = r.store.CreateTag(ctx, spec.name, spec.slug)
	}
	if err == nil {
		return t, nil
	}

	// A term with the same name but another slug makes WordPress reject the
	// create and name the existing id.
	var exists *domain.TermExistsError
	if errors.As(err, &exists) {
		r.log.Info("term already exists", "kind", kind, "name", spec.name, "slug", spec.slug, "id", exists.TermID)
		return domain.Term{ID: exists.TermID, Name: spec.name, Slug: spec.slug}, nil
	}
	return domain.Term{}, fmt.Errorf("create %s %s: %w", kind, spec.slug, err)
}
