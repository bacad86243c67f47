package render

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

type fixedMovie string

func (f fixedMovie) Resolve(context.Context, string, map[string]string) string { return string(f) }

func sampleProduct() domain.Product {
	avg, count := 3.5, 12
	return domain.Product{
		ContentID:        "abc001",
		Title:            "T",
		URL:              "https://www.dmm.co.jp/abc001/",
		AffiliateURL:     "https://al.dmm.co.jp/?lurl=abc001",
		Service:          "digital",
		Date:             "2024-05-01 10:00:00",
		Volume:           "120",
		Price:            "1980",
		JANCode:          "4901234567890",
		PackageImageURLs: map[string]string{"large": "http://x/p.jpg"},
		SampleImageURLs:  []string{"http://x/s1.jpg", "http://x/s2.jpg", "http://x/s3.jpg"},
		Actresses:        []domain.Attribute{{Name: "Alice"}, {Name: "Beth"}},
		Genres:           []domain.Attribute{{Name: "Drama"}},
		ReviewAverage:    &avg,
		ReviewCount:      &count,
	}
}

func TestScalarReplacementIsExact(t *testing.T) {
	t.Parallel()

	r := New(nil)
	got := r.RenderTitle("[title] / [title] / [title] ([cid]) [actress] [unknown-tag]", sampleProduct())
	assert.Equal(t, "T / T / T (abc001) Alice Beth [unknown-tag]", got)
}

func TestScalarValuesAreNotReexpanded(t *testing.T) {
	t.Parallel()

	p := sampleProduct()
	p.Title = "Has [cid] inside"
	got := New(nil).RenderTitle("[title]", p)
	assert.Equal(t, "Has [cid] inside", got)
}

func TestRandomTokensStablePerInstance(t *testing.T) {
	t.Parallel()

	r := New(nil)
	first := r.RenderTitle("[random1]-[random2]-[random3]", sampleProduct())
	second := r.RenderTitle("[random1]-[random2]-[random3]", sampleProduct())
	assert.Equal(t, first, second)

	parts := strings.Split(first, "-")
	require.Len(t, parts, 3)
	bounds := [][2]int{{1000, 9999}, {10000, 99999}, {100000, 999999}}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, bounds[i][0])
		assert.LessOrEqual(t, n, bounds[i][1])
	}
}

func TestCompositeAnchorsCarryTargetAndRel(t *testing.T) {
	t.Parallel()

	tpl := "[package-image][sample-images][sample-flex][sample-cap][button][aff-button2][api-mark][sample-movie]"
	body := New(fixedMovie("https://cdn/abc001_mhb_w.mp4")).RenderBody(context.Background(), tpl, sampleProduct(), ports.BodyOptions{})

	anchors := regexp.MustCompile(`<a [^>]*>`).FindAllString(body, -1)
	require.NotEmpty(t, anchors)
	for _, a := range anchors {
		assert.Contains(t, a, `target="_blank"`)
		assert.Contains(t, a, `rel="noreferrer noopener"`)
	}
	assert.Contains(t, body, `<video src="https://cdn/abc001_mhb_w.mp4" poster="http://x/p.jpg" controls width="100%"`)
}

func TestUserReviewsEmptyWithoutAverage(t *testing.T) {
	t.Parallel()

	p := sampleProduct()
	p.ReviewAverage = nil
	body := New(nil).RenderBody(context.Background(), "<p>[user_reviews]</p>", p, ports.BodyOptions{})
	assert.Equal(t, "<p></p>", body)
	assert.NotContains(t, body, `<div class="user-reviews">`)
}

func TestUserReviewsWithAverage(t *testing.T) {
	t.Parallel()

	body := New(nil).RenderBody(context.Background(), "[user_reviews]", sampleProduct(), ports.BodyOptions{})
	assert.Equal(t, `<div class="user-reviews"><div class="review-rating">評価: ★★★☆☆ 3.5</div><div class="review-count">レビュー数: 12件</div></div>`, body)
}

func TestCompositeThenScalar(t *testing.T) {
	t.Parallel()

	body := New(nil).RenderBody(context.Background(), "[detail-table]<p>[title] [price]</p>", sampleProduct(), ports.BodyOptions{})
	assert.Contains(t, body, "<tr><th>発売日</th><td>2024-05-01</td></tr>")
	assert.Contains(t, body, "<tr><th>収録</th><td>120分</td></tr>")
	assert.Contains(t, body, "<tr><th>女優</th><td>Alice Beth</td></tr>")
	assert.Contains(t, body, "<tr><th>価格</th><td>￥1980</td></tr>")
	assert.Contains(t, body, "<p>T ￥1980</p>")

	reviewIdx := strings.Index(body, "レビュー")
	priceIdx := strings.Index(body, "価格")
	assert.Less(t, reviewIdx, priceIdx)
}

func TestSampleGridRespectsMaxImagesAndPoster(t *testing.T) {
	t.Parallel()

	r := New(fixedMovie("https://cdn/m.mp4"))
	body := r.RenderBody(context.Background(), "[sample-images]", sampleProduct(), ports.BodyOptions{MaxImages: 2})
	assert.Equal(t, 2, strings.Count(body, "<img "))
	assert.Contains(t, body, `alt="T サンプル画像2"`)

	movie := r.RenderBody(context.Background(), "[sample-movie2]", sampleProduct(), ports.BodyOptions{Poster: domain.PosterNone, MovieSize: "560"})
	assert.NotContains(t, movie, "poster=")
	assert.Contains(t, movie, `width="560"`)
}

func TestVolumeUnits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "200ページ", volumeWithUnit("200", "ebook"))
	assert.Equal(t, "30ページ", volumeWithUnit("30", "doujin"))
	assert.Equal(t, "動画2本", volumeWithUnit("動画2本", "doujin"))
	assert.Equal(t, "01:59:00", volumeWithUnit("01:59:00", "digital"))
	assert.Equal(t, "", volumeWithUnit("", "digital"))
}

func TestStars(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "☆☆☆☆☆", Stars(0.4))
	assert.Equal(t, "★★★★☆", Stars(4.9))
	assert.Equal(t, "★★★★★", Stars(5))
}
