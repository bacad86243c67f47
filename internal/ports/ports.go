package ports

import (
	"context"
	"time"

	"CatalogPoster/internal/domain"
)

// CatalogSource pages through the product catalog.
type CatalogSource interface {
	ItemList(ctx context.Context, q domain.ItemQuery) (domain.ItemPage, error)
}

// MediaFetcher downloads image bytes from the media CDN.
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}

// Publisher performs post and media mutations on the blog.
type Publisher interface {
	GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error)
	CreatePost(ctx context.Context, in domain.PostInput) (domain.Post, error)
	UpdatePost(ctx context.Context, id int, in domain.PostInput) (domain.Post, error)
	ListPosts(ctx context.Context, page, perPage int) ([]domain.Post, error)
	UploadMedia(ctx context.Context, filename string, data []byte, mime string) (domain.Media, error)
	SetFeaturedMedia(ctx context.Context, postID, mediaID int) (domain.Post, error)
	SetPostCategories(ctx context.Context, postID int, ids []int) error
	SetPostTags(ctx context.Context, postID int, ids []int) error
}

// TermStore is the taxonomy surface of the blog.
type TermStore interface {
	ListCategories(ctx context.Context) ([]domain.Term, error)
	ListTags(ctx context.Context) ([]domain.Term, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Term, error)
	GetTagBySlug(ctx context.Context, slug string) (*domain.Term, error)
	CreateCategory(ctx context.Context, name, slug, description string) (domain.Term, error)
	CreateTag(ctx context.Context, name, slug string) (domain.Term, error)
}

// TermResolver maps products onto blog term ids.
type TermResolver interface {
	TermsFor(ctx context.Context, p domain.Product, scheme domain.TaxonomyScheme) ([]int, error)
	AutoTags(ctx context.Context, p domain.Product) ([]int, error)
}

// PageFetcher returns the final HTML of a product detail page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, opts domain.EnrichSpec) (string, error)
}

// Extractor pulls enrichment text out of a detail page.
type Extractor interface {
	Extract(html string, descriptionSelectors, reviewSelectors []string) (description, review string)
}

// BodyOptions are per-render inputs for composite placeholders.
type BodyOptions struct {
	AffiliateURL string
	MovieSize    string
	Poster       domain.PosterPolicy
	MaxImages    int
}

// Renderer expands article templates.
type Renderer interface {
	RenderTitle(tpl string, p domain.Product) string
	RenderBody(ctx context.Context, tpl string, p domain.Product, opts BodyOptions) string
}

// PlaceholderHook resolves host-provided placeholders such as [llm_intro].
type PlaceholderHook interface {
	ResolvePlaceholders(ctx context.Context, tpl string, p domain.Product) (string, error)
}

// EventStore persists structured events (logs.db).
type EventStore interface {
	Append(ctx context.Context, ev domain.Event) error
	Query(ctx context.Context, f domain.EventFilter) ([]domain.Event, error)
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// RunMetrics records pipeline outcomes.
type RunMetrics interface {
	ObserveOutcome(job string, outcome domain.Outcome)
	ObserveError(job string, kind domain.ErrorKind)
	ObserveRun(job string, result domain.RunResult)
}
