package render

import (
	"context"
	"fmt"
	"html"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

const (
	defaultMaxImages = 10
	apiMarkURL       = "https://www.dmm.co.jp/digital/videoa/-/list/=/article=api/"
	anchorAttrs      = `target="_blank" rel="noreferrer noopener"`
)

var tagPattern = regexp.MustCompile(`\[([A-Za-z0-9_\-]+)\]`)

// MovieSource resolves a playable sample movie URL for a content id.
type MovieSource interface {
	Resolve(ctx context.Context, cid string, movieURLs map[string]string) string
}

// Renderer expands bracket placeholders. Random tokens are drawn once per
// instance, so one instance should serve one run.
type Renderer struct {
	movies MovieSource
	random [3]string
}

var _ ports.Renderer = (*Renderer)(nil)

// New builds a Renderer. movies may be nil, in which case sample movies render empty.
func New(movies MovieSource) *Renderer {
	return &Renderer{
		movies: movies,
		random: [3]string{
			strconv.Itoa(1000 + rand.IntN(9000)),
			strconv.Itoa(10000 + rand.IntN(90000)),
			strconv.Itoa(100000 + rand.IntN(900000)),
		},
	}
}

// RenderTitle runs the scalar pass only.
func (r *Renderer) RenderTitle(tpl string, p domain.Product) string {
	return r.scalarPass(tpl, p, p.AffiliateURL)
}

// RenderBody runs the composite pass, then the scalar pass over the whole document.
func (r *Renderer) RenderBody(ctx context.Context, tpl string, p domain.Product, opts ports.BodyOptions) string {
	if opts.AffiliateURL == "" {
		opts.AffiliateURL = p.AffiliateURL
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = defaultMaxImages
	}

	memo := map[string]string{}
	expanded := tagPattern.ReplaceAllStringFunc(tpl, func(token string) string {
		name := token[1 : len(token)-1]
		if out, ok := memo[name]; ok {
			return out
		}
		out, ok := r.composite(ctx, name, p, opts)
		if !ok {
			return token
		}
		memo[name] = out
		return out
	})
	return r.scalarPass(expanded, p, opts.AffiliateURL)
}

func (r *Renderer) scalarPass(tpl string, p domain.Product, affiliateURL string) string {
	values := r.scalars(p, affiliateURL)
	return tagPattern.ReplaceAllStringFunc(tpl, func(token string) string {
		if v, ok := values[token[1:len(token)-1]]; ok {
			return v
		}
		return token
	})
}

func (r *Renderer) scalars(p domain.Product, affiliateURL string) map[string]string {
	reviewAverage, reviewCount := "", ""
	if p.HasReviews() {
		reviewAverage = formatAverage(*p.ReviewAverage)
	}
	if p.ReviewCount != nil && *p.ReviewCount > 0 {
		reviewCount = strconv.Itoa(*p.ReviewCount)
	}
	manufacture := domain.JoinNames(p.Manufactures)

	return map[string]string{
		"title":          p.Title,
		"cid":            p.ContentID,
		"content-id":     p.ContentID,
		"content_id":     p.ContentID,
		"url":            p.URL,
		"aff-link":       affiliateURL,
		"comment":        p.Comment,
		"user-comment":   p.Comment,
		"date":           shortDate(p.Date),
		"price":          formatPrice(p.Price),
		"volume":         p.Volume,
		"jancode":        p.JANCode,
		"review-average": reviewAverage,
		"review":         reviewAverage,
		"review-count":   reviewCount,
		"actress":        domain.JoinNames(p.Actresses),
		"performer":      domain.JoinNames(p.Performers),
		"maker":          domain.JoinNames(p.Makers),
		"label":          domain.JoinNames(p.Labels),
		"publisher":      manufacture,
		"manufacture":    manufacture,
		"director":       domain.JoinNames(p.Directors),
		"series":         domain.JoinNames(p.Series),
		"author":         domain.JoinNames(p.Authors),
		"genre":          domain.JoinNames(p.Genres),
		"random1":        r.random[0],
		"random2":        r.random[1],
		"random3":        r.random[2],
	}
}

func (r *Renderer) composite(ctx context.Context, name string, p domain.Product, opts ports.BodyOptions) (string, bool) {
	switch name {
	case "package-image", "package":
		return packageImage(p, opts.AffiliateURL), true
	case "sample-images", "sample-photo":
		return sampleGrid(p, opts.MaxImages, gridOptions{links: true, captions: true}), true
	case "sample-cap":
		return sampleGrid(p, opts.MaxImages, gridOptions{links: true, captions: true, figures: true}), true
	case "sample-flex":
		return sampleGrid(p, opts.MaxImages, gridOptions{links: true, captions: true, flex: true}), true
	case "sample-movie", "sample-movie2":
		return r.sampleMovie(ctx, p, opts), true
	case "detail-table", "detail-content-table":
		return detailTable(p), true
	case "detail-list", "detail-content-ul":
		return detailList(p), true
	case "button", "affiliate-button", "aff-button":
		return button(opts.AffiliateURL, "詳細を見る", "#007cba"), true
	case "aff-button2":
		return button(opts.AffiliateURL, "詳細を見る", "#e4007f"), true
	case "api-mark":
		return apiMark("FANZA"), true
	case "user_reviews":
		return userReviews(p), true
	}
	return "", false
}

func packageImage(p domain.Product, affiliateURL string) string {
	src := p.PackageImage()
	if src == "" {
		return ""
	}
	return fmt.Sprintf(`<div class="package-image-container"><a href="%s" %s><img src="%s" alt="%s" class="package-image" style="max-width: 100%%; height: auto;" /></a></div>`,
		attr(affiliateURL), anchorAttrs, attr(src), attr(p.Title))
}

type gridOptions struct {
	links    bool
	captions bool
	figures  bool
	flex     bool
}

func sampleGrid(p domain.Product, max int, o gridOptions) string {
	images := p.SampleImages()
	if len(images) == 0 {
		return ""
	}
	if len(images) > max {
		images = images[:max]
	}

	var b strings.Builder
	if o.flex {
		b.WriteString(`<div class="sample-image-container sample-flex" style="display: flex; flex-wrap: wrap; gap: 4px;">`)
	} else {
		b.WriteString(`<div class="sample-image-container">`)
	}
	for i, src := range images {
		alt := ""
		if o.captions {
			alt = fmt.Sprintf(` alt="%s サンプル画像%d"`, attr(p.Title), i+1)
		}
		img := fmt.Sprintf(`<img src="%s"%s class="sample-image" style="max-width: 100%%; height: auto;" />`, attr(src), alt)
		if o.links {
			img = fmt.Sprintf(`<a href="%s" %s>%s</a>`, attr(src), anchorAttrs, img)
		}
		if o.figures {
			img = fmt.Sprintf(`<figure class="sample-image-figure">%s<figcaption>サンプル画像%d</figcaption></figure>`, img, i+1)
		}
		b.WriteString(img)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func (r *Renderer) sampleMovie(ctx context.Context, p domain.Product, opts ports.BodyOptions) string {
	if r.movies == nil || p.ContentID == "" {
		return ""
	}
	src := r.movies.Resolve(ctx, p.ContentID, p.SampleMovieURLs)
	if src == "" {
		return ""
	}

	poster := ""
	switch opts.Poster {
	case domain.PosterSample:
		if images := p.SampleImages(); len(images) > 0 {
			poster = images[0]
		}
	case domain.PosterNone:
	default:
		poster = p.PackageImage()
	}
	posterAttr := ""
	if poster != "" {
		posterAttr = fmt.Sprintf(` poster="%s"`, attr(poster))
	}

	return fmt.Sprintf(`<!-- wp:html --><p style="text-align:center;"><video src="%s"%s controls width="%s" preload="none" playsinline></video></p><!-- /wp:html -->`,
		attr(src), posterAttr, movieWidth(opts.MovieSize))
}

// movieWidth maps "auto" to 100% and a size like "720" or "720_480" to its width.
func movieWidth(size string) string {
	size = strings.TrimSpace(size)
	if size == "" || size == "auto" {
		return "100%"
	}
	width, _, _ := strings.Cut(size, "_")
	if _, err := strconv.Atoi(width); err != nil {
		return "100%"
	}
	return width
}

type detailRow struct{ label, value string }

func detailRows(p domain.Product) []detailRow {
	var rows []detailRow
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, detailRow{label, value})
		}
	}
	add("レビュー", reviewSummary(p))
	add("発売日", shortDate(p.Date))
	add("収録", volumeWithUnit(p.Volume, p.Service))
	add("シリーズ", domain.JoinNames(p.Series))
	add("作者", domain.JoinNames(p.Authors))
	add("ジャンル", domain.JoinNames(p.Genres))
	add("女優", domain.JoinNames(p.Actresses))
	add("品番", p.ContentID)
	add("JANコード", p.JANCode)
	add("価格", formatPrice(p.Price))
	return rows
}

func detailTable(p domain.Product) string {
	var b strings.Builder
	b.WriteString("<!-- wp:table -->\n<figure class=\"wp-block-table\"><table><tbody>")
	for _, row := range detailRows(p) {
		fmt.Fprintf(&b, "<tr><th>%s</th><td>%s</td></tr>", row.label, html.EscapeString(row.value))
	}
	b.WriteString("</tbody></table></figure>\n<!-- /wp:table -->\n")
	return b.String()
}

func detailList(p domain.Product) string {
	var b strings.Builder
	b.WriteString("<!-- wp:list -->\n<ul>")
	for _, row := range detailRows(p) {
		fmt.Fprintf(&b, "<li>%s : %s</li>", row.label, html.EscapeString(row.value))
	}
	b.WriteString("</ul><!-- /wp:list -->\n")
	return b.String()
}

func button(affiliateURL, text, background string) string {
	if affiliateURL == "" {
		return ""
	}
	return fmt.Sprintf(`<div class="button-container"><a href="%s" %s style="display: inline-block; padding: 10px 20px; background-color: %s; color: #ffffff; text-decoration: none; border-radius: 5px; font-weight: bold;">%s</a></div>`,
		attr(affiliateURL), anchorAttrs, background, text)
}

func apiMark(site string) string {
	return fmt.Sprintf(`<p class="api-mark-container" style="margin: 20px 0; font-size: 12px; color: #666;">このコンテンツは<a href="%s" %s>%s API</a>を使用して自動生成されています。</p>`,
		apiMarkURL, anchorAttrs, site)
}

func userReviews(p domain.Product) string {
	if !p.HasReviews() {
		return ""
	}
	avg := *p.ReviewAverage
	var b strings.Builder
	b.WriteString(`<div class="user-reviews">`)
	fmt.Fprintf(&b, `<div class="review-rating">評価: %s %s</div>`, Stars(avg), formatAverage(avg))
	if p.ReviewCount != nil && *p.ReviewCount > 0 {
		fmt.Fprintf(&b, `<div class="review-count">レビュー数: %d件</div>`, *p.ReviewCount)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func reviewSummary(p domain.Product) string {
	if !p.HasReviews() {
		return ""
	}
	parts := []string{Stars(*p.ReviewAverage) + " " + formatAverage(*p.ReviewAverage)}
	if p.ReviewCount != nil && *p.ReviewCount > 0 {
		parts = append(parts, strconv.Itoa(*p.ReviewCount)+"件")
	}
	return strings.Join(parts, " / ")
}

// Stars renders five glyphs with one ★ per full point.
func Stars(rating float64) string {
	full := int(rating)
	var b strings.Builder
	for i := 0; i < 5; i++ {
		if i < full {
			b.WriteString("★")
		} else {
			b.WriteString("☆")
		}
	}
	return b.String()
}

func formatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPrice(digits string) string {
	if digits == "" {
		return ""
	}
	return "￥" + digits
}

func shortDate(date string) string {
	if len(date) >= 10 {
		return date[:10]
	}
	return date
}

func volumeWithUnit(volume, service string) string {
	if volume == "" {
		return ""
	}
	switch service {
	case "ebook":
		return volume + "ページ"
	case "doujin":
		for _, marker := range []string{"動画", "画像", "+α", "本", "分"} {
			if strings.Contains(volume, marker) {
				return volume
			}
		}
		return volume + "ページ"
	default:
		if strings.Contains(volume, ":") {
			return volume
		}
		return volume + "分"
	}
}

func attr(s string) string {
	return html.EscapeString(s)
}
