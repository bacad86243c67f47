package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
	"CatalogPoster/internal/render"
)

type fakeCatalog struct {
	mu      sync.Mutex
	items   []domain.Product
	errs    []error
	queries []domain.ItemQuery
	byKey   map[string][]domain.Product
}

func (f *fakeCatalog) ItemList(_ context.Context, q domain.ItemQuery) (domain.ItemPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return domain.ItemPage{}, err
		}
	}
	if f.byKey != nil {
		items := f.byKey[q.Floor+"/"+q.Keyword]
		return domain.ItemPage{TotalCount: len(items), Items: items}, nil
	}
	start := q.Offset - 1
	if start >= len(f.items) {
		return domain.ItemPage{TotalCount: len(f.items)}, nil
	}
	end := start + q.Hits
	if end > len(f.items) {
		end = len(f.items)
	}
	var page []domain.Product
	for _, item := range f.items[start:end] {
		if item.ContentID != "" {
			page = append(page, item)
		}
	}
	return domain.ItemPage{TotalCount: len(f.items), FirstPos: q.Offset, ResultCount: end - start, Items: page}, nil
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeMedia struct {
	urls []string
	body []byte
	err  error
}

func (f *fakeMedia) DownloadMedia(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	if f.body != nil {
		return f.body, nil
	}
	return []byte("jpeg:" + url), nil
}

type fakeBlog struct {
	mu         sync.Mutex
	nextID     int
	posts      map[string]*domain.Post
	creates    []domain.PostInput
	updates    map[int]domain.PostInput
	uploads    []string
	mimes      []string
	featured   map[int]int
	categories map[int][]int
	tags       map[int][]int
	createErr  error
	lookupErr  error
	uploadErr  error
}

func newFakeBlog() *fakeBlog {
	return &fakeBlog{
		nextID:     100,
		posts:      map[string]*domain.Post{},
		updates:    map[int]domain.PostInput{},
		featured:   map[int]int{},
		categories: map[int][]int{},
		tags:       map[int][]int{},
	}
}

var _ ports.Publisher = (*fakeBlog)(nil)

func (f *fakeBlog) seed(post domain.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := post
	f.posts[post.Slug] = &cp
}

func (f *fakeBlog) GetPostBySlug(_ context.Context, slug string) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if p, ok := f.posts[slug]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeBlog) CreatePost(_ context.Context, in domain.PostInput) (domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Post{}, f.createErr
	}
	f.nextID++
	post := domain.Post{ID: f.nextID, Slug: *in.Slug, Title: *in.Title, Status: string(*in.Status)}
	f.posts[post.Slug] = &post
	f.creates = append(f.creates, in)
	return post, nil
}

func (f *fakeBlog) UpdatePost(_ context.Context, id int, in domain.PostInput) (domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = in
	for _, p := range f.posts {
		if p.ID == id {
			if in.Title != nil {
				p.Title = *in.Title
			}
			return *p, nil
		}
	}
	return domain.Post{ID: id}, nil
}

func (f *fakeBlog) ListPosts(_ context.Context, page, perPage int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Post
	for _, p := range f.posts {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * perPage
	if start >= len(all) {
		return nil, nil
	}
	end := min(start+perPage, len(all))
	return all[start:end], nil
}

func (f *fakeBlog) UploadMedia(_ context.Context, filename string, _ []byte, mime string) (domain.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return domain.Media{}, f.uploadErr
	}
	f.uploads = append(f.uploads, filename)
	f.mimes = append(f.mimes, mime)
	return domain.Media{ID: 500 + len(f.uploads)}, nil
}

func (f *fakeBlog) SetFeaturedMedia(_ context.Context, postID, mediaID int) (domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.featured[postID] = mediaID
	return domain.Post{ID: postID, FeaturedMedia: mediaID}, nil
}

func (f *fakeBlog) SetPostCategories(_ context.Context, postID int, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[postID] = ids
	return nil
}

func (f *fakeBlog) SetPostTags(_ context.Context, postID int, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[postID] = ids
	return nil
}

type fakeTerms struct{}

func (fakeTerms) TermsFor(_ context.Context, p domain.Product, scheme domain.TaxonomyScheme) ([]int, error) {
	if scheme == domain.SchemeJAN && p.JANCode == "" {
		return nil, nil
	}
	return []int{11}, nil
}

func (fakeTerms) AutoTags(context.Context, domain.Product) ([]int, error) {
	return []int{21, 22}, nil
}

type fakePages struct {
	html string
	err  error
}

func (f fakePages) Fetch(context.Context, string, domain.EnrichSpec) (string, error) {
	return f.html, f.err
}

type fakeExtractor struct{ description, review string }

func (f fakeExtractor) Extract(string, []string, []string) (string, string) {
	return f.description, f.review
}

type fakeHook struct{}

func (fakeHook) ResolvePlaceholders(_ context.Context, tpl string, p domain.Product) (string, error) {
	if p.ContentID == "broken" {
		return "", errors.New("backend down")
	}
	return strings.ReplaceAll(tpl, "[llm_seo_title]", "SEO "+p.Title), nil
}

type fakeNotifier struct{ digests []string }

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return nil
}

func newRenderer() ports.Renderer { return render.New(nil) }

func newTestPipeline(cat *fakeCatalog, blog *fakeBlog) *Pipeline {
	p := NewPipeline(PipelineDeps{
		Catalog:   cat,
		Media:     &fakeMedia{},
		Blog:      blog,
		Terms:     fakeTerms{},
		Renderers: newRenderer,
	})
	p.newRunID = func() string { return "run-test" }
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func product(cid, title string) domain.Product {
	return domain.Product{
		ContentID:        cid,
		Title:            title,
		URL:              "https://www.example.test/detail/" + cid,
		AffiliateURL:     "https://al.example.test/?lurl=" + cid,
		PackageImageURLs: map[string]string{"large": "http://x/p.jpg"},
		SampleImageURLs:  []string{"http://x/s1.jpg"},
	}
}

func products(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		cid := "abc" + string(rune('a'+i/26)) + string(rune('a'+i%26))
		out[i] = product(cid, "T"+cid)
	}
	return out
}
