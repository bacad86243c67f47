package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"CatalogPoster/internal/domain"
)

const (
	reconcileBatch    = 10
	reconcilePause    = 2 * time.Second
	reconcilePerPage  = 100
	minProductCodeLen = 4
	maxProductCodeLen = 15
)

// DefaultReconcileFloors is the floor fallback order used to find a product code.
var DefaultReconcileFloors = []string{"videoc", "videoa"}

var (
	strictCodePatterns = compileAll(
		`[A-Z]{2,4}-\d{3,4}`,
		`[A-Z]{2,4}\d{3,4}`,
		`[A-Z]{2,4}_\d{3,4}`,
		`[A-Z]{2,4}-\d{2,5}`,
		`[A-Z]{2,5}-\d{2,5}`,
		`[A-Z]{2,5}\d{2,5}`,
	)
	looseCodePatterns = compileAll(
		`[A-Z]{2,6}[-_]?\d{2,6}`,
		`[A-Z]{2,6}\s*\d{2,6}`,
	)
	hasLetter = regexp.MustCompile(`[A-Za-z]`)
	hasDigit  = regexp.MustCompile(`\d`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// ExtractProductCode finds a catalog product code in text, trying strict
// patterns before loose ones.
func ExtractProductCode(text string) (string, bool) {
	for _, set := range [][]*regexp.Regexp{strictCodePatterns, looseCodePatterns} {
		for _, re := range set {
			code := re.FindString(text)
			if code != "" && ValidProductCode(code) {
				return code, true
			}
		}
	}
	return "", false
}

// ValidProductCode reports whether code looks like a product code: 4 to 15
// characters with both letters and digits.
func ValidProductCode(code string) bool {
	n := len(code)
	if n < minProductCodeLen || n > maxProductCodeLen {
		return false
	}
	return hasLetter.MatchString(code) && hasDigit.MatchString(code)
}

// RewritePost re-renders item with job and overwrites the title and content
// of an existing post. Taxonomy is replaced and featured media re-attached on
// a best-effort basis. The slug is left alone.
func (p *Pipeline) RewritePost(ctx context.Context, postID int, item domain.Product, job domain.JobSpec) error {
	if p.blog == nil || p.renderers == nil {
		return domain.NewError(domain.KindConfigInvalid, "rewrite", errors.New("blog and renderer are required"))
	}
	ev := p.events
	article, err := p.buildArticle(ctx, ev, p.renderers(), item, job, true)
	if err != nil {
		return fmt.Errorf("build content %s: %w", item.ContentID, err)
	}
	if _, err := p.blog.UpdatePost(ctx, postID, domain.PostInput{
		Title:   &article.Title,
		Content: &article.Body,
	}); err != nil {
		return fmt.Errorf("update post %d: %w", postID, err)
	}
	if err := p.finishPost(ctx, ev, postID, item, job, article); err != nil {
		return err
	}
	ev.Info(ctx, domain.EventPosting, "post rewritten", map[string]any{"post_id": postID, "content_id": item.ContentID, "job": job.Name})
	return nil
}

// ReconcileOptions tune a reconciliation pass.
type ReconcileOptions struct {
	Floors []string
	DryRun bool
	// Limit caps the number of posts examined; zero means all.
	Limit int
}

// ReconcileStatus is the per-post result of a reconciliation pass.
type ReconcileStatus string

const (
	ReconcileRewritten ReconcileStatus = "rewritten"
	ReconcileMatched   ReconcileStatus = "matched"
	ReconcileNoCode    ReconcileStatus = "no_code"
	ReconcileNotFound  ReconcileStatus = "not_found"
	ReconcileFailed    ReconcileStatus = "failed"
)

// ReconcileEntry describes what happened to one post.
type ReconcileEntry struct {
	PostID    int
	Slug      string
	Code      string
	Floor     string
	ContentID string
	Status    ReconcileStatus
	Err       string
}

// ReconcileReport collects entries of a pass.
type ReconcileReport struct {
	Entries []ReconcileEntry
	Counts  map[ReconcileStatus]int
}

func (r *ReconcileReport) add(e ReconcileEntry) {
	if r.Counts == nil {
		r.Counts = map[ReconcileStatus]int{}
	}
	r.Entries = append(r.Entries, e)
	r.Counts[e.Status]++
}

// Reconcile walks every existing post, extracts a product code from its slug
// (then title), looks the code up across the fallback floors and rewrites the
// post from the first hit. Posts are processed in batches with a pause in
// between. DryRun reports matches without writing.
func (p *Pipeline) Reconcile(ctx context.Context, job domain.JobSpec, opts ReconcileOptions) (ReconcileReport, error) {
	var report ReconcileReport
	if p.catalog == nil || p.blog == nil {
		return report, domain.NewError(domain.KindConfigInvalid, "reconcile", errors.New("catalog and blog clients are required"))
	}
	floors := opts.Floors
	if len(floors) == 0 {
		floors = DefaultReconcileFloors
	}

	posts, err := p.allPosts(ctx, opts.Limit)
	if err != nil {
		return report, err
	}
	p.events.Info(ctx, domain.EventPosting, "reconcile started", map[string]any{"posts": len(posts), "dry_run": opts.DryRun})

	for i, post := range posts {
		if i > 0 && i%reconcileBatch == 0 {
			if err := p.sleep(ctx, reconcilePause); err != nil {
				return report, err
			}
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		entry := ReconcileEntry{PostID: post.ID, Slug: post.Slug}
		code, ok := ExtractProductCode(post.Slug)
		if !ok {
			code, ok = ExtractProductCode(post.Title)
		}
		if !ok {
			entry.Status = ReconcileNoCode
			report.add(entry)
			continue
		}
		entry.Code = code

		item, floor, err := p.findProduct(ctx, job.Search, code, floors)
		if err != nil {
			entry.Status = ReconcileFailed
			entry.Err = err.Error()
			report.add(entry)
			if domain.IsFatal(err) {
				return report, err
			}
			continue
		}
		if item == nil {
			entry.Status = ReconcileNotFound
			report.add(entry)
			continue
		}
		entry.Floor = floor
		entry.ContentID = item.ContentID

		if opts.DryRun {
			entry.Status = ReconcileMatched
			report.add(entry)
			continue
		}
		if err := p.RewritePost(ctx, post.ID, *item, job); err != nil {
			entry.Status = ReconcileFailed
			entry.Err = err.Error()
			report.add(entry)
			p.events.Error(ctx, domain.EventError, "rewrite failed", map[string]any{"post_id": post.ID, "code": code, "error": err.Error()})
			if domain.IsFatal(err) {
				return report, err
			}
			continue
		}
		entry.Status = ReconcileRewritten
		report.add(entry)
	}

	p.events.Info(ctx, domain.EventPosting, "reconcile finished", map[string]any{
		"rewritten": report.Counts[ReconcileRewritten],
		"matched":   report.Counts[ReconcileMatched],
		"not_found": report.Counts[ReconcileNotFound],
		"failed":    report.Counts[ReconcileFailed],
	})
	return report, nil
}

func (p *Pipeline) allPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	var out []domain.Post
	for page := 1; ; page++ {
		posts, err := p.blog.ListPosts(ctx, page, reconcilePerPage)
		if err != nil {
			return nil, fmt.Errorf("list posts page %d: %w", page, err)
		}
		out = append(out, posts...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if len(posts) < reconcilePerPage {
			return out, nil
		}
	}
}

func (p *Pipeline) findProduct(ctx context.Context, base domain.SearchSpec, code string, floors []string) (*domain.Product, string, error) {
	for _, floor := range floors {
		spec := domain.SearchSpec{
			Site:    firstNonEmpty(base.Site, "FANZA"),
			Service: firstNonEmpty(base.Service, "digital"),
			Floor:   floor,
			Keyword: code,
		}
		page, err := p.catalog.ItemList(ctx, domain.QueryFor(spec, 1, 1))
		if err != nil {
			if domain.IsFatal(err) || ctx.Err() != nil {
				return nil, "", err
			}
			p.events.Warn(ctx, domain.EventScraping, "code lookup failed", map[string]any{"code": code, "floor": floor, "error": err.Error()})
			continue
		}
		if len(page.Items) > 0 {
			item := page.Items[0]
			return &item, floor, nil
		}
	}
	return nil, "", nil
}

