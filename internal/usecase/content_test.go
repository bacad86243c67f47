package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CatalogPoster/internal/domain"
)

func enrichingPipeline(pages fakePages, ext fakeExtractor) *Pipeline {
	p := newTestPipeline(&fakeCatalog{}, newFakeBlog())
	p.pages = pages
	p.extractor = ext
	return p
}

func TestBuildContentAppendsSanitizedEnrichment(t *testing.T) {
	t.Parallel()

	p := enrichingPipeline(fakePages{html: "<html></html>"}, fakeExtractor{
		description: "<b>説明</b>\nline2<script>alert(1)</script>",
		review:      "良い作品",
	})
	job := testJob(1, false)
	job.Enrich.Enabled = true
	job.Render.IncludeReviews = true

	article, err := p.BuildContent(context.Background(), product("abc001", "T"), job)
	require.NoError(t, err)

	assert.Contains(t, article.Body, "<h3>詳細情報</h3>\n<p>説明<br>\nline2</p>")
	assert.Contains(t, article.Body, "<h3>レビュー・コメント</h3>\n<p>良い作品</p>")
	assert.NotContains(t, article.Body, "<script>")
	assert.NotContains(t, article.Body, "<b>")
}

func TestBuildContentDropsSentinelText(t *testing.T) {
	t.Parallel()

	p := enrichingPipeline(fakePages{html: "<html></html>"}, fakeExtractor{
		description: "要素1取得エラー: timeout",
		review:      "レビューを取得できませんでした",
	})
	job := testJob(1, false)
	job.Enrich.Enabled = true
	job.Render.IncludeReviews = true

	article, err := p.BuildContent(context.Background(), product("abc001", "T"), job)
	require.NoError(t, err)
	assert.NotContains(t, article.Body, "<h3>")
}

func TestBuildContentSkipsReviewsWhenDisabled(t *testing.T) {
	t.Parallel()

	p := enrichingPipeline(fakePages{html: "x"}, fakeExtractor{description: "説明", review: "良い"})
	job := testJob(1, false)
	job.Enrich.Enabled = true

	article, err := p.BuildContent(context.Background(), product("abc001", "T"), job)
	require.NoError(t, err)
	assert.Contains(t, article.Body, "<h3>詳細情報</h3>")
	assert.NotContains(t, article.Body, "レビュー・コメント")
}

func TestBuildContentIgnoresFetchFailure(t *testing.T) {
	t.Parallel()

	p := enrichingPipeline(fakePages{err: errors.New("timeout")}, fakeExtractor{description: "説明"})
	job := testJob(1, false)
	job.Enrich.UseBrowser = true

	article, err := p.BuildContent(context.Background(), product("abc001", "T"), job)
	require.NoError(t, err)
	assert.NotContains(t, article.Body, "<h3>")
	assert.Equal(t, "T", article.Title)
}

func TestBuildContentNoEnrichmentWhenInactive(t *testing.T) {
	t.Parallel()

	p := enrichingPipeline(fakePages{html: "x"}, fakeExtractor{description: "説明"})

	article, err := p.BuildContent(context.Background(), product("abc001", "T"), testJob(1, false))
	require.NoError(t, err)
	assert.NotContains(t, article.Body, "詳細情報</h3>")
}

func TestBuildContentDefaultsAndStatus(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeCatalog{}, newFakeBlog())
	job := testJob(1, false)
	job.Render.TitleTemplate = "  "
	job.Render.BodyTemplate = ""
	job.Publish.Status = "pending"

	article, err := p.BuildContent(context.Background(), product("abc001", "T"), job)
	require.NoError(t, err)
	assert.Equal(t, "T", article.Title)
	assert.Contains(t, article.Body, "Tの詳細情報です。")
	assert.Equal(t, domain.StatusPublish, article.Status)
	assert.Equal(t, "abc001", article.Slug)
	assert.Equal(t, "abc001_sample.jpg", article.FeaturedFilename)
	assert.Equal(t, []byte("jpeg:http://x/s1.jpg"), article.FeaturedMedia)
}

func TestBuildContentRejectsMissingContentID(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeCatalog{}, newFakeBlog())
	_, err := p.BuildContent(context.Background(), product("", "T"), testJob(1, false))
	require.Error(t, err)
	assert.Equal(t, domain.KindProtocol, domain.KindOf(err))
}

func TestBuildContentPlaceholderHook(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeCatalog{}, newFakeBlog())
	p.hook = fakeHook{}
	job := testJob(1, false)
	job.Render.TitleTemplate = "[llm_seo_title]"

	article, err := p.BuildContent(context.Background(), product("abc001", "T"), job)
	require.NoError(t, err)
	assert.Equal(t, "SEO T", article.Title)

	broken, err := p.BuildContent(context.Background(), product("broken", "T"), job)
	require.NoError(t, err)
	assert.Equal(t, "[llm_seo_title]", broken.Title)
}

func TestFeaturedSource(t *testing.T) {
	t.Parallel()

	full := domain.Product{
		ContentID:        "abc001",
		PackageImageURLs: map[string]string{"large": "http://x/pl.jpg"},
		SampleImageURLs:  []string{"http://x/1.jpg", "http://x/2.jpg"},
	}
	noSamples := domain.Product{
		ContentID:        "abc002",
		PackageImageURLs: map[string]string{"large": "http://x/pl.jpg"},
	}

	tests := []struct {
		name     string
		item     domain.Product
		policy   domain.FeaturedPolicy
		url      string
		filename string
	}{
		{"sample", full, domain.FeaturedSample, "http://x/1.jpg", "abc001_sample.jpg"},
		{"package", full, domain.FeaturedPackage, "http://x/pl.jpg", "abc001_package.jpg"},
		{"index", full, "2", "http://x/2.jpg", "abc001_sample2.jpg"},
		{"index out of range", full, "9", "http://x/1.jpg", "abc001_sample9.jpg"},
		{"no samples", noSamples, domain.FeaturedSample, "http://x/pl.jpg", "abc002_package.jpg"},
		{"nothing", domain.Product{ContentID: "abc003"}, domain.FeaturedSample, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, filename := FeaturedSource(tt.item, tt.policy)
			assert.Equal(t, tt.url, url)
			assert.Equal(t, tt.filename, filename)
		})
	}
}

func TestRunTestPreviewsFirstItem(t *testing.T) {
	t.Parallel()

	item := product("abc001", "T")
	item.Comment = "説明文"
	cat := &fakeCatalog{items: []domain.Product{item, product("abc002", "U")}}
	media := &fakeMedia{}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)
	p.media = media

	preview, err := p.RunTest(context.Background(), testJob(1, false))
	require.NoError(t, err)

	assert.True(t, preview.Found)
	assert.Equal(t, 2, preview.TotalCount)
	assert.Equal(t, "abc001", preview.ContentID)
	assert.Equal(t, 3, preview.DescriptionLength)
	assert.Equal(t, "T", preview.Title)
	assert.Contains(t, preview.String(), "--- HTML Preview ---")
	assert.Empty(t, media.urls)
	assert.Empty(t, blog.creates)
	assert.Equal(t, 1, cat.queries[0].Hits)
}

func TestRunTestNoItems(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeCatalog{}, newFakeBlog())
	preview, err := p.RunTest(context.Background(), testJob(1, false))
	require.NoError(t, err)
	assert.False(t, preview.Found)
	assert.Equal(t, "no items found (total 0)", preview.String())
}
