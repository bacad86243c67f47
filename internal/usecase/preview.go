package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CatalogPoster/internal/domain"
)

// Preview is the dry-run report of the first product a job would post.
type Preview struct {
	Found             bool
	TotalCount        int
	ContentID         string
	ProductTitle      string
	URL               string
	PackageImage      string
	DescriptionLength int
	SampleImages      int
	SampleThumbnails  int
	Title             string
	Body              string
}

// RunTest fetches one product for job and renders it without touching the
// blog or downloading media.
func (p *Pipeline) RunTest(ctx context.Context, job domain.JobSpec) (Preview, error) {
	if p.catalog == nil || p.renderers == nil {
		return Preview{}, domain.NewError(domain.KindConfigInvalid, "run test", errors.New("catalog and renderer are required"))
	}
	page, err := p.catalog.ItemList(ctx, domain.QueryFor(job.Search, 1, 1))
	if err != nil {
		return Preview{}, fmt.Errorf("run test: %w", err)
	}
	p.events.Info(ctx, domain.EventScraping, "test search finished", map[string]any{"total": page.TotalCount, "job": job.Name})

	preview := Preview{TotalCount: page.TotalCount}
	if len(page.Items) == 0 {
		p.events.Warn(ctx, domain.EventScraping, "no items found", map[string]any{"job": job.Name})
		return preview, nil
	}

	item := page.Items[0]
	article, err := p.buildArticle(ctx, p.events, p.renderers(), item, job, false)
	if err != nil {
		return preview, fmt.Errorf("run test: %w", err)
	}

	preview.Found = true
	preview.ContentID = item.ContentID
	preview.ProductTitle = item.Title
	preview.URL = item.URL
	preview.PackageImage = item.PackageImage()
	preview.DescriptionLength = len([]rune(item.Comment))
	preview.SampleImages = len(item.SampleImageURLs)
	preview.SampleThumbnails = len(item.SampleImageSmallURLs)
	preview.Title = article.Title
	preview.Body = article.Body
	return preview, nil
}

// String renders the preview as a plain-text report.
func (pv Preview) String() string {
	if !pv.Found {
		return fmt.Sprintf("no items found (total %d)", pv.TotalCount)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", pv.ProductTitle)
	fmt.Fprintf(&b, "Post title: %s\n", pv.Title)
	fmt.Fprintf(&b, "CID: %s\n", pv.ContentID)
	fmt.Fprintf(&b, "URL: %s\n", pv.URL)
	fmt.Fprintf(&b, "Package image: %s\n", pv.PackageImage)
	fmt.Fprintf(&b, "Description length: %d\n", pv.DescriptionLength)
	fmt.Fprintf(&b, "Sample images: %d large, %d small\n", pv.SampleImages, pv.SampleThumbnails)
	fmt.Fprintf(&b, "Total items found: %d\n\n", pv.TotalCount)
	b.WriteString("--- HTML Preview ---\n")
	b.WriteString(pv.Body)
	b.WriteString("\n--- End HTML Preview ---\n")
	return b.String()
}
