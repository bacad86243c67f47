package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CatalogPoster/internal/domain"
)

func testJob(target int, overwrite bool) domain.JobSpec {
	return domain.JobSpec{
		Name: "job1",
		Search: domain.SearchSpec{
			Site:    "FANZA",
			Service: "digital",
			Floor:   "videoc",
			Hits:    1,
		},
		Render: domain.RenderSpec{
			TitleTemplate: "[title]",
			BodyTemplate:  "[title]の詳細情報です。[user_reviews]",
			Featured:      domain.FeaturedSample,
			MaxImages:     10,
		},
		Publish: domain.PublishSpec{
			Status:         domain.StatusPublish,
			Overwrite:      overwrite,
			TargetNewPosts: target,
		},
	}
}

func TestRunOnceCreatesFreshPost(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: []domain.Product{product("abc001", "T")}}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)

	result, err := p.RunOnce(context.Background(), testJob(1, false))
	require.NoError(t, err)

	require.Equal(t, []int{101}, result.PostIDs)
	assert.Equal(t, 1, result.Created)
	require.Len(t, blog.creates, 1)
	assert.Equal(t, "abc001", *blog.creates[0].Slug)
	assert.Equal(t, "T", *blog.creates[0].Title)
	assert.Equal(t, domain.StatusPublish, *blog.creates[0].Status)
	assert.Equal(t, []string{"abc001_sample.jpg"}, blog.uploads)
	assert.Equal(t, 501, blog.featured[101])
	assert.Equal(t, []int{21, 22}, blog.tags[101])
	assert.Empty(t, blog.categories[101])
	assert.Equal(t, 1, cat.calls())
	assert.Equal(t, "run-test", result.RunID)
}

func TestRunOnceSkipsExistingPost(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: []domain.Product{product("abc001", "T")}}
	blog := newFakeBlog()
	blog.seed(domain.Post{ID: 7, Slug: "abc001"})
	p := newTestPipeline(cat, blog)

	result, err := p.RunOnce(context.Background(), testJob(1, false))
	require.NoError(t, err)

	assert.Empty(t, result.PostIDs)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, blog.creates)
	assert.Empty(t, blog.updates)
	assert.Empty(t, blog.uploads)
}

func TestRunOnceOverwritesExistingPost(t *testing.T) {
	t.Parallel()

	item := product("abc001", "T")
	item.JANCode = "4901234567890"
	cat := &fakeCatalog{items: []domain.Product{item}}
	blog := newFakeBlog()
	blog.seed(domain.Post{ID: 7, Slug: "abc001", Title: "old"})
	p := newTestPipeline(cat, blog)

	job := testJob(1, true)
	job.Publish.Taxonomy = domain.SchemeJAN
	result, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, []int{7}, result.PostIDs)
	assert.Equal(t, 1, result.Updated)
	require.Contains(t, blog.updates, 7)
	upd := blog.updates[7]
	assert.Equal(t, "T", *upd.Title)
	assert.Contains(t, *upd.Content, "Tの詳細情報です。")
	assert.Nil(t, upd.Slug)
	assert.Equal(t, []int{11}, blog.categories[7])
	assert.Equal(t, []int{21, 22}, blog.tags[7])
	assert.Len(t, blog.uploads, 1)
	assert.Empty(t, blog.creates)
}

func TestRunOnceRecoversAfterTransientPage(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		items: []domain.Product{product("abc001", "A"), product("abc002", "B")},
		errs:  []error{domain.NewError(domain.KindTransient, "catalog.ItemList", errors.New("503"))},
	}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)

	result, err := p.RunOnce(context.Background(), testJob(1, false))
	require.NoError(t, err)

	assert.Len(t, result.PostIDs, 1)
	assert.Equal(t, 0, result.Failed)
	assert.Contains(t, result.LastErrors, domain.KindTransient)
	assert.Equal(t, 2, cat.calls())
	assert.Equal(t, 2, cat.queries[1].Offset)
}

func TestRunOnceStopsAtTarget(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: products(50)}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)

	job := testJob(3, false)
	job.Search.Hits = 0
	result, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)

	assert.Len(t, result.PostIDs, 3)
	assert.Len(t, blog.creates, 3)
	assert.Equal(t, 1, cat.calls())
	assert.Equal(t, 100, cat.queries[0].Hits)
}

func TestRunOnceUnlimitedConsumesCatalog(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: products(5)}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)

	job := testJob(0, false)
	job.Search.Hits = 2
	result, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)

	assert.Len(t, result.PostIDs, 5)
	assert.Equal(t, 3, cat.calls())
}

func TestRunOnceOffsetCountsDroppedRecords(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: []domain.Product{
		product("abc001", "A"),
		product("", "no id"),
		product("abc002", "B"),
		product("abc003", "C"),
	}}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)
	job := testJob(0, true)
	job.Search.Hits = 2

	result, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, []int{101, 102, 103}, result.PostIDs)
	assert.Equal(t, 3, result.Created)
	assert.Zero(t, result.Updated)
	require.Equal(t, 2, cat.calls())
	assert.Equal(t, 3, cat.queries[1].Offset)
}

func TestRunOnceEmptyCatalog(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{}
	p := newTestPipeline(cat, newFakeBlog())

	result, err := p.RunOnce(context.Background(), testJob(0, false))
	require.NoError(t, err)
	assert.Empty(t, result.PostIDs)
	assert.Equal(t, 1, cat.calls())
}

func TestRunOnceGivesUpAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	transient := domain.NewError(domain.KindRateLimited, "catalog.ItemList", errors.New("429"))
	cat := &fakeCatalog{
		items: products(20),
		errs:  []error{transient, transient, transient, transient, transient, transient},
	}
	p := newTestPipeline(cat, newFakeBlog())

	result, err := p.RunOnce(context.Background(), testJob(0, false))
	require.NoError(t, err)
	assert.Empty(t, result.PostIDs)
	assert.Equal(t, maxConsecutiveFailures, cat.calls())
}

func TestRunOnceAbortsOnAuthFailure(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		items: products(3),
		errs:  []error{domain.NewError(domain.KindAuth, "catalog.ItemList", errors.New("401"))},
	}
	p := newTestPipeline(cat, newFakeBlog())

	_, err := p.RunOnce(context.Background(), testJob(0, false))
	require.Error(t, err)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Equal(t, 1, cat.calls())
}

func TestRunOnceAbortsWhenBlogRejectsCredentials(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: products(3)}
	blog := newFakeBlog()
	blog.lookupErr = domain.NewError(domain.KindForbidden, "blog.GetPostBySlug", errors.New("403"))
	p := newTestPipeline(cat, blog)

	result, err := p.RunOnce(context.Background(), testJob(0, false))
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	assert.Equal(t, 1, result.Failed)
}

func TestRunOnceAbsorbsItemFailures(t *testing.T) {
	t.Parallel()

	items := products(2)
	items[0].ContentID = ""
	cat := &fakeCatalog{items: items}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)

	job := testJob(0, false)
	job.Search.Hits = 10
	result, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.PostIDs, 1)
	assert.Contains(t, result.LastErrors, domain.KindProtocol)
}

func TestRunOnceMediaFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: []domain.Product{product("abc001", "T")}}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)
	p.media = &fakeMedia{err: domain.NewError(domain.KindMediaUnavailable, "catalog.DownloadMedia", errors.New("404"))}

	result, err := p.RunOnce(context.Background(), testJob(1, false))
	require.NoError(t, err)
	assert.Len(t, result.PostIDs, 1)
	assert.Empty(t, blog.uploads)
	assert.Empty(t, blog.featured)
}

func TestRunOnceUploadsMediaWithSniffedType(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: []domain.Product{product("abc001", "T"), product("abc002", "U")}}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	p.media = &fakeMedia{body: png}

	_, err := p.RunOnce(context.Background(), testJob(1, false))
	require.NoError(t, err)
	assert.Equal(t, []string{"image/png"}, blog.mimes)

	assert.Equal(t, "image/jpeg", mediaType([]byte("not an image")))
	assert.Equal(t, "image/webp", mediaType(append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 8)...)))
}

func TestRunOnceHonoursCancellation(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: products(3)}
	p := newTestPipeline(cat, newFakeBlog())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := p.RunOnce(ctx, testJob(0, false))
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Empty(t, result.PostIDs)
	assert.Equal(t, 0, cat.calls())
}

func TestRunOnceSecondRunCreatesNothing(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: products(4)}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)
	job := testJob(0, false)
	job.Search.Hits = 10

	first, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)
	assert.Len(t, first.PostIDs, 4)

	second, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, second.PostIDs)
	assert.Equal(t, 4, second.Skipped)
	assert.Len(t, blog.creates, 4)
}

func TestRunOnceOverwriteIsIdempotent(t *testing.T) {
	t.Parallel()

	item := product("abc001", "T")
	item.JANCode = "4512345678901"
	cat := &fakeCatalog{items: []domain.Product{item}}
	blog := newFakeBlog()
	blog.seed(domain.Post{ID: 7, Slug: "abc001"})
	p := newTestPipeline(cat, blog)
	job := testJob(0, true)
	job.Publish.Taxonomy = domain.SchemeJAN
	job.Render.BodyTemplate = "[title] [cid]"

	_, err := p.RunOnce(context.Background(), job)
	require.NoError(t, err)
	firstUpdate := blog.updates[7]
	firstCats := blog.categories[7]

	_, err = p.RunOnce(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, *firstUpdate.Title, *blog.updates[7].Title)
	assert.Equal(t, *firstUpdate.Content, *blog.updates[7].Content)
	assert.Equal(t, firstCats, blog.categories[7])
	assert.Empty(t, blog.creates)
}

func TestRunOnceUserReviewsEmptyWithoutAverage(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: []domain.Product{product("abc001", "T")}}
	blog := newFakeBlog()
	p := newTestPipeline(cat, blog)

	_, err := p.RunOnce(context.Background(), testJob(1, false))
	require.NoError(t, err)
	require.Len(t, blog.creates, 1)
	assert.NotContains(t, *blog.creates[0].Content, `<div class="user-reviews">`)
}

func TestRunOnceNotifiesSummary(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: []domain.Product{product("abc001", "T")}}
	p := newTestPipeline(cat, newFakeBlog())
	notifier := &fakeNotifier{}
	p.notifier = notifier

	_, err := p.RunOnce(context.Background(), testJob(1, false))
	require.NoError(t, err)
	require.Len(t, notifier.digests, 1)
	assert.True(t, strings.HasPrefix(notifier.digests[0], "job1: created 1"))
}

func TestRunOnceRequiresClients(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{})
	_, err := p.RunOnce(context.Background(), testJob(1, false))
	require.Error(t, err)
	assert.Equal(t, domain.KindConfigInvalid, domain.KindOf(err))
}

func TestSummaryListsErrorsInOrder(t *testing.T) {
	t.Parallel()

	res := domain.RunResult{JobName: "job2", Created: 1, Failed: 2, Cancelled: true}
	res.RecordError(domain.NewError(domain.KindTransient, "a", errors.New("x")))
	res.RecordError(domain.NewError(domain.KindProtocol, "b", errors.New("y")))

	got := Summary(res)
	assert.True(t, strings.HasPrefix(got, "job2: created 1, updated 0, skipped 0, failed 2 (cancelled)"))
	assert.Less(t, strings.Index(got, "protocol_error"), strings.Index(got, "transient"))
}
