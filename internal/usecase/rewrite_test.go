package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CatalogPoster/internal/domain"
)

func TestExtractProductCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		code string
		ok   bool
	}{
		{"ABC-123", "ABC-123", true},
		{"ssis-001 review", "ssis-001", true},
		{"abc123", "abc123", true},
		{"sample_DVD_12345", "DVD_1234", true},
		{"hello-world", "", false},
		{"x1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			code, ok := ExtractProductCode(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestValidProductCode(t *testing.T) {
	t.Parallel()

	assert.False(t, ValidProductCode("AB1"))
	assert.True(t, ValidProductCode("AB12"))
	assert.True(t, ValidProductCode("ABCD1234"))
	assert.False(t, ValidProductCode("12345"))
	assert.False(t, ValidProductCode("ABCDE"))
	assert.False(t, ValidProductCode("ABCDEFGHIJKLMNOP1"))
}

func reconcileFixture() (*fakeCatalog, *fakeBlog) {
	cat := &fakeCatalog{byKey: map[string][]domain.Product{
		"videoc/abc123":   {product("abc00123", "A")},
		"videoa/SSIS-001": {product("ssis00001", "S")},
	}}
	blog := newFakeBlog()
	blog.seed(domain.Post{ID: 1, Slug: "abc123", Title: "old A"})
	blog.seed(domain.Post{ID: 2, Slug: "hello-world", Title: "no code here"})
	blog.seed(domain.Post{ID: 3, Slug: "post-three", Title: "SSIS-001 review"})
	blog.seed(domain.Post{ID: 4, Slug: "zzz999", Title: "missing"})
	return cat, blog
}

func TestReconcileDryRun(t *testing.T) {
	t.Parallel()

	cat, blog := reconcileFixture()
	p := newTestPipeline(cat, blog)

	report, err := p.Reconcile(context.Background(), testJob(0, true), ReconcileOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Counts[ReconcileMatched])
	assert.Equal(t, 1, report.Counts[ReconcileNoCode])
	assert.Equal(t, 1, report.Counts[ReconcileNotFound])
	assert.Empty(t, blog.updates)

	byID := map[int]ReconcileEntry{}
	for _, e := range report.Entries {
		byID[e.PostID] = e
	}
	assert.Equal(t, "videoc", byID[1].Floor)
	assert.Equal(t, "abc00123", byID[1].ContentID)
	assert.Equal(t, "videoa", byID[3].Floor)
	assert.Equal(t, "SSIS-001", byID[3].Code)
}

func TestReconcileRewritesMatchedPosts(t *testing.T) {
	t.Parallel()

	cat, blog := reconcileFixture()
	p := newTestPipeline(cat, blog)

	report, err := p.Reconcile(context.Background(), testJob(0, true), ReconcileOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Counts[ReconcileRewritten])
	require.Contains(t, blog.updates, 1)
	require.Contains(t, blog.updates, 3)
	assert.Equal(t, "A", *blog.updates[1].Title)
	assert.Nil(t, blog.updates[1].Status)
	assert.Nil(t, blog.updates[1].Slug)
	assert.Equal(t, "S", *blog.updates[3].Title)
	assert.Equal(t, []int{21, 22}, blog.tags[3])
}

func TestReconcilePausesBetweenBatches(t *testing.T) {
	t.Parallel()

	blog := newFakeBlog()
	for i := 1; i <= 25; i++ {
		blog.seed(domain.Post{ID: i, Slug: fmt.Sprintf("post-%d", i), Title: "plain"})
	}
	p := newTestPipeline(&fakeCatalog{byKey: map[string][]domain.Product{}}, blog)
	var pauses []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	report, err := p.Reconcile(context.Background(), testJob(0, true), ReconcileOptions{})
	require.NoError(t, err)
	assert.Len(t, report.Entries, 25)
	assert.Equal(t, []time.Duration{reconcilePause, reconcilePause}, pauses)
}

func TestReconcileLimit(t *testing.T) {
	t.Parallel()

	cat, blog := reconcileFixture()
	p := newTestPipeline(cat, blog)

	report, err := p.Reconcile(context.Background(), testJob(0, true), ReconcileOptions{DryRun: true, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, report.Entries, 2)
}

func TestReconcileAbortsOnAuthFailure(t *testing.T) {
	t.Parallel()

	cat, blog := reconcileFixture()
	cat.errs = []error{domain.NewError(domain.KindAuth, "catalog.ItemList", errors.New("401"))}
	p := newTestPipeline(cat, blog)

	report, err := p.Reconcile(context.Background(), testJob(0, true), ReconcileOptions{})
	require.Error(t, err)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Equal(t, 1, report.Counts[ReconcileFailed])
}

func TestRewritePostKeepsSlugAndStatus(t *testing.T) {
	t.Parallel()

	blog := newFakeBlog()
	blog.seed(domain.Post{ID: 9, Slug: "custom-slug", Status: string(domain.StatusDraft)})
	p := newTestPipeline(&fakeCatalog{}, blog)

	err := p.RewritePost(context.Background(), 9, product("abc001", "T"), testJob(0, true))
	require.NoError(t, err)

	upd := blog.updates[9]
	assert.Equal(t, "T", *upd.Title)
	assert.Nil(t, upd.Slug)
	assert.Nil(t, upd.Status)
	assert.Equal(t, 501, blog.featured[9])
}
