package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/logging"
	"CatalogPoster/internal/ports"
)

const (
	defaultTitleTemplate = "[title]"
	defaultBodyTemplate  = "[title]の詳細情報です。"
)

// Scraper error placeholders that must never reach a post.
var enrichmentSentinels = []string{"取得エラー", "取得できませんでした"}

var enrichmentPolicy = bluemonday.StrictPolicy()

// BuildContent renders the article for one product with a fresh renderer.
// Media problems never fail the build; the article simply has no featured
// image.
func (p *Pipeline) BuildContent(ctx context.Context, item domain.Product, job domain.JobSpec) (domain.RenderedArticle, error) {
	if p.renderers == nil {
		return domain.RenderedArticle{}, domain.NewError(domain.KindConfigInvalid, "build content", errors.New("renderer is not configured"))
	}
	return p.buildArticle(ctx, p.events, p.renderers(), item, job, true)
}

func (p *Pipeline) buildArticle(ctx context.Context, ev *logging.EventLogger, r ports.Renderer, item domain.Product, job domain.JobSpec, withMedia bool) (domain.RenderedArticle, error) {
	if item.ContentID == "" {
		return domain.RenderedArticle{}, domain.NewError(domain.KindProtocol, "build content", errors.New("product has no content id"))
	}

	description, review := p.enrich(ctx, ev, item, job.Enrich)

	titleTpl := firstNonEmpty(job.Render.TitleTemplate, defaultTitleTemplate)
	bodyTpl := firstNonEmpty(job.Render.BodyTemplate, defaultBodyTemplate)
	titleTpl = p.resolveHooks(ctx, ev, titleTpl, item)
	bodyTpl = p.resolveHooks(ctx, ev, bodyTpl, item)

	title := r.RenderTitle(titleTpl, item)
	body := r.RenderBody(ctx, bodyTpl, item, ports.BodyOptions{
		AffiliateURL: firstNonEmpty(item.AffiliateURL, item.URL),
		MovieSize:    job.Render.MovieSize,
		Poster:       job.Render.Poster,
		MaxImages:    job.Render.MaxImages,
	})

	if meaningful(description) {
		body += "\n<h3>詳細情報</h3>\n<p>" + textToHTML(description) + "</p>"
	}
	if job.Render.IncludeReviews && meaningful(review) {
		body += "\n<h3>レビュー・コメント</h3>\n<p>" + textToHTML(review) + "</p>"
	}

	status := job.Publish.Status
	if !status.Valid() {
		status = domain.StatusPublish
	}
	article := domain.RenderedArticle{
		Title:  title,
		Body:   body,
		Slug:   item.ContentID,
		Status: status,
	}

	if withMedia {
		article.FeaturedMedia, article.FeaturedFilename = p.featuredMedia(ctx, ev, item, job.Render.Featured)
	}
	return article, nil
}

// enrich scrapes the detail page. Any failure yields empty strings.
func (p *Pipeline) enrich(ctx context.Context, ev *logging.EventLogger, item domain.Product, spec domain.EnrichSpec) (string, string) {
	if !spec.Active() || item.URL == "" || p.pages == nil || p.extractor == nil {
		return "", ""
	}
	html, err := p.pages.Fetch(ctx, item.URL, spec)
	if err != nil {
		ev.Warn(ctx, domain.EventScraping, "detail page unavailable", map[string]any{"content_id": item.ContentID, "error": err.Error()})
		return "", ""
	}
	description, review := p.extractor.Extract(html, spec.DescriptionSelectors, spec.ReviewSelectors)
	ev.Debug(ctx, domain.EventScraping, "detail page extracted", map[string]any{
		"content_id":  item.ContentID,
		"description": len([]rune(description)),
		"review":      len([]rune(review)),
	})
	return description, review
}

func (p *Pipeline) resolveHooks(ctx context.Context, ev *logging.EventLogger, tpl string, item domain.Product) string {
	if p.hook == nil || !strings.Contains(tpl, "[llm_") {
		return tpl
	}
	out, err := p.hook.ResolvePlaceholders(ctx, tpl, item)
	if err != nil {
		ev.Warn(ctx, domain.EventPosting, "placeholder hook failed", map[string]any{"content_id": item.ContentID, "error": err.Error()})
		return tpl
	}
	return out
}

// featuredMedia downloads the cover image chosen by policy.
func (p *Pipeline) featuredMedia(ctx context.Context, ev *logging.EventLogger, item domain.Product, policy domain.FeaturedPolicy) ([]byte, string) {
	if p.media == nil {
		return nil, ""
	}
	url, filename := FeaturedSource(item, policy)
	if url == "" {
		return nil, ""
	}
	data, err := p.media.DownloadMedia(ctx, url)
	if err != nil || len(data) == 0 {
		details := map[string]any{"content_id": item.ContentID, "url": url}
		if err != nil {
			details["error"] = err.Error()
		}
		ev.Warn(ctx, domain.EventPosting, "featured media unavailable", details)
		return nil, ""
	}
	return data, filename
}

// FeaturedSource picks the featured image URL and upload filename for a
// policy: "package", "sample", or a 1-based sample index that falls back to
// the first sample when out of range. A product without samples falls back
// to its package image.
func FeaturedSource(item domain.Product, policy domain.FeaturedPolicy) (string, string) {
	cid := item.ContentID
	samples := item.SampleImages()
	pkg := item.PackageImage()

	if policy == domain.FeaturedPackage && pkg != "" {
		return pkg, cid + "_package.jpg"
	}
	if len(samples) == 0 {
		if pkg == "" {
			return "", ""
		}
		return pkg, cid + "_package.jpg"
	}
	if idx, ok := policy.Index(); ok {
		url := samples[0]
		if idx <= len(samples) {
			url = samples[idx-1]
		}
		return url, fmt.Sprintf("%s_sample%d.jpg", cid, idx)
	}
	return samples[0], cid + "_sample.jpg"
}

func meaningful(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, s := range enrichmentSentinels {
		if strings.Contains(text, s) {
			return false
		}
	}
	return true
}

func textToHTML(text string) string {
	clean := enrichmentPolicy.Sanitize(strings.TrimSpace(text))
	return strings.ReplaceAll(clean, "\n", "<br>\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
