package domain

import (
	"strconv"
	"strings"
	"time"
)

// PostStatus is the blog publication state of an article.
type PostStatus string

const (
	StatusPublish PostStatus = "publish"
	StatusDraft   PostStatus = "draft"
	StatusPrivate PostStatus = "private"
)

// Valid reports whether the status is accepted by the blog.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusPublish, StatusDraft, StatusPrivate:
		return true
	}
	return false
}

// TaxonomyScheme selects how categories are derived from product attributes.
type TaxonomyScheme string

const (
	SchemeJAN      TaxonomyScheme = "jan"
	SchemeActress  TaxonomyScheme = "actress"
	SchemeDirector TaxonomyScheme = "director"
	SchemeSeries   TaxonomyScheme = "series"
	SchemeGenre    TaxonomyScheme = "genre"
	SchemeMaker    TaxonomyScheme = "maker"
	SchemeLabel    TaxonomyScheme = "label"
	SchemeCustom   TaxonomyScheme = "custom"
)

// Normalize maps legacy short names onto canonical schemes.
func (s TaxonomyScheme) Normalize() TaxonomyScheme {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "act":
		return SchemeActress
	case "seri":
		return SchemeSeries
	default:
		return TaxonomyScheme(strings.ToLower(strings.TrimSpace(string(s))))
	}
}

// FeaturedPolicy is "sample", "package" or a 1-based sample index.
type FeaturedPolicy string

const (
	FeaturedSample  FeaturedPolicy = "sample"
	FeaturedPackage FeaturedPolicy = "package"
)

// Index returns the sample index for numeric policies.
func (f FeaturedPolicy) Index() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// PosterPolicy selects the sample movie poster image.
type PosterPolicy string

const (
	PosterPackage PosterPolicy = "package"
	PosterSample  PosterPolicy = "sample"
	PosterNone    PosterPolicy = "none"
)

// SearchSpec holds the catalog query of a job.
type SearchSpec struct {
	Site      string `json:"site"`
	Service   string `json:"service"`
	Floor     string `json:"floor"`
	Keyword   string `json:"keyword"`
	Sort      string `json:"sort"`
	Article   string `json:"article"`
	ArticleID string `json:"article_id"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	Hits      int    `json:"hits" validate:"min=0"`
}

// RenderSpec holds the article rendering options of a job.
type RenderSpec struct {
	TitleTemplate  string         `json:"title"`
	BodyTemplate   string         `json:"content"`
	Featured       FeaturedPolicy `json:"eyecatch"`
	MovieSize      string         `json:"movie_size"`
	Poster         PosterPolicy   `json:"poster"`
	IncludeReviews bool           `json:"include_reviews"`
	MaxImages      int            `json:"max_images"`
}

// PublishSpec holds the blog-side options of a job.
type PublishSpec struct {
	Status         PostStatus     `json:"status" validate:"omitempty,oneof=publish draft private"`
	Overwrite      bool           `json:"overwrite_existing"`
	TargetNewPosts int            `json:"target_new_posts" validate:"min=0"`
	Taxonomy       TaxonomyScheme `json:"category"`
}

// EnrichSpec controls detail-page scraping. UseBrowser implies Enabled;
// Enabled alone scrapes with a plain HTTP request.
type EnrichSpec struct {
	Enabled              bool     `json:"enabled"`
	UseBrowser           bool     `json:"use_browser"`
	Headless             bool     `json:"headless"`
	ClickSelector        string   `json:"click_selector"`
	PageWaitSeconds      int      `json:"page_wait_sec"`
	DescriptionSelectors []string `json:"description_selectors"`
	ReviewSelectors      []string `json:"review_selectors"`
}

// Active reports whether the detail page should be scraped at all.
func (e EnrichSpec) Active() bool { return e.Enabled || e.UseBrowser }

// PageWait returns the configured wait, defaulting to five seconds.
func (e EnrichSpec) PageWait() time.Duration {
	if e.PageWaitSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(e.PageWaitSeconds) * time.Second
}

// JobSpec is one named posting profile.
type JobSpec struct {
	Name    string      `json:"-"`
	Search  SearchSpec  `json:"search"`
	Render  RenderSpec  `json:"render"`
	Publish PublishSpec `json:"publish"`
	Enrich  EnrichSpec  `json:"enrich"`
}

// Unlimited reports whether the job has no cap on new posts.
func (j JobSpec) Unlimited() bool {
	return j.Publish.TargetNewPosts <= 0
}

// Credentials authenticate against the catalog and the blog.
type Credentials struct {
	CatalogAPIID       string `json:"catalog_api_id" validate:"required"`
	CatalogAffiliateID string `json:"catalog_affiliate_id" validate:"required"`
	BlogBaseURL        string `json:"blog_base_url" validate:"required,url"`
	BlogUser           string `json:"blog_user" validate:"required"`
	BlogAppPassword    string `json:"blog_app_password" validate:"required"`
}

// SchedulePlan maps enabled hours to job slots; all runs fire at Minute.
type SchedulePlan struct {
	Enabled bool        `json:"enabled"`
	Minute  int         `json:"minute" validate:"min=0,max=59"`
	Hours   map[int]int `json:"hours"`
}

// JobFor returns the job slot configured for the given wall-clock time.
func (p SchedulePlan) JobFor(t time.Time) (int, bool) {
	if !p.Enabled || t.Minute() != p.Minute {
		return 0, false
	}
	job, ok := p.Hours[t.Hour()]
	if !ok || job < 1 {
		return 0, false
	}
	return job, true
}
