package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/logging"
	"CatalogPoster/internal/ports"
)

const (
	pageSize               = 100
	maxConsecutiveFailures = 5
)

// RendererFactory returns a fresh renderer for one run.
type RendererFactory func() ports.Renderer

// PipelineDeps wires all driven adapters into the posting pipeline.
type PipelineDeps struct {
	Catalog   ports.CatalogSource
	Media     ports.MediaFetcher
	Blog      ports.Publisher
	Terms     ports.TermResolver
	Pages     ports.PageFetcher
	Extractor ports.Extractor
	Renderers RendererFactory
	Hook      ports.PlaceholderHook
	Notifier  ports.Notifier
	Metrics   ports.RunMetrics
	Events    *logging.EventLogger
}

// Pipeline turns a job spec into blog post mutations.
type Pipeline struct {
	catalog   ports.CatalogSource
	media     ports.MediaFetcher
	blog      ports.Publisher
	terms     ports.TermResolver
	pages     ports.PageFetcher
	extractor ports.Extractor
	renderers RendererFactory
	hook      ports.PlaceholderHook
	notifier  ports.Notifier
	metrics   ports.RunMetrics
	events    *logging.EventLogger
	now       func() time.Time
	newRunID  func() string
	sleep     func(context.Context, time.Duration) error
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	events := deps.Events
	if events == nil {
		events = logging.NewEventLogger(nil, nil)
	}
	return &Pipeline{
		catalog:   deps.Catalog,
		media:     deps.Media,
		blog:      deps.Blog,
		terms:     deps.Terms,
		pages:     deps.Pages,
		extractor: deps.Extractor,
		renderers: deps.Renderers,
		hook:      deps.Hook,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		events:    events,
		now:       time.Now,
		newRunID:  uuid.NewString,
		sleep:     sleepContext,
	}
}

// RunOnce pages through the catalog and upserts one post per product until
// the job's target is met, the catalog runs dry, or too many pages in a row
// fail. Auth and forbidden errors abort the run; cancellation returns the
// posts mutated so far.
func (p *Pipeline) RunOnce(ctx context.Context, job domain.JobSpec) (domain.RunResult, error) {
	result := domain.RunResult{
		RunID:     p.newRunID(),
		JobName:   job.Name,
		StartedAt: p.now(),
	}
	ev := p.events.WithRun(result.RunID)

	if p.catalog == nil || p.blog == nil || p.renderers == nil {
		return result, domain.NewError(domain.KindConfigInvalid, "pipeline", errors.New("catalog, blog and renderer are required"))
	}

	ev.Info(ctx, domain.EventSystem, "run started", map[string]any{
		"job":    job.Name,
		"floor":  job.Search.Floor,
		"sort":   job.Search.Sort,
		"target": job.Publish.TargetNewPosts,
	})

	renderer := p.renderers()
	hits := pageSize
	if job.Search.Hits > 0 && job.Search.Hits < pageSize {
		hits = job.Search.Hits
	}
	offset := 1
	failures := 0

	runErr := func() error {
		for {
			if !job.Unlimited() && len(result.PostIDs) >= job.Publish.TargetNewPosts {
				return nil
			}
			if failures >= maxConsecutiveFailures {
				ev.Warn(ctx, domain.EventScraping, "too many consecutive failures", map[string]any{"failures": failures})
				return nil
			}
			if ctx.Err() != nil {
				result.Cancelled = true
				return nil
			}

			page, err := p.catalog.ItemList(ctx, domain.QueryFor(job.Search, hits, offset))
			if err != nil {
				if ctx.Err() != nil {
					result.Cancelled = true
					return nil
				}
				p.recordError(ctx, ev, &result, job, "item list failed", err, map[string]any{"offset": offset})
				if domain.IsFatal(err) {
					return err
				}
				failures++
				offset += hits
				continue
			}

			ev.Info(ctx, domain.EventScraping, "page fetched", map[string]any{
				"offset": offset,
				"items":  len(page.Items),
				"total":  page.TotalCount,
			})

			if page.Consumed() == 0 {
				if offset > page.TotalCount {
					return nil
				}
				failures++
				offset += hits
				continue
			}

			for _, item := range page.Items {
				if ctx.Err() != nil {
					result.Cancelled = true
					return nil
				}

				outcome, postID, err := p.processItem(ctx, ev, renderer, item, job)
				result.Record(outcome)
				p.observeOutcome(job, outcome)
				if err != nil {
					p.recordError(ctx, ev, &result, job, "item failed", err, map[string]any{"content_id": item.ContentID})
					if domain.IsFatal(err) {
						return err
					}
				}
				if outcome == domain.OutcomeCreated || outcome == domain.OutcomeUpdated {
					result.PostIDs = append(result.PostIDs, postID)
					failures = 0
					if !job.Unlimited() && len(result.PostIDs) >= job.Publish.TargetNewPosts {
						return nil
					}
				}
			}

			offset += page.Consumed()
			if page.TotalCount > 0 && offset > page.TotalCount {
				return nil
			}
		}
	}()

	result.FinishedAt = p.now()
	if result.Cancelled {
		ev.Warn(ctx, domain.EventSystem, "run cancelled", map[string]any{"posts": len(result.PostIDs)})
	}
	ev.Info(ctx, domain.EventSystem, "run finished", map[string]any{
		"created":  result.Created,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"duration": result.FinishedAt.Sub(result.StartedAt).String(),
	})
	if p.metrics != nil {
		p.metrics.ObserveRun(job.Name, result)
	}
	p.notify(ctx, ev, result)

	if runErr != nil {
		return result, fmt.Errorf("run %s: %w", job.Name, runErr)
	}
	return result, nil
}

// processItem upserts one product keyed by its content id.
func (p *Pipeline) processItem(ctx context.Context, ev *logging.EventLogger, r ports.Renderer, item domain.Product, job domain.JobSpec) (domain.Outcome, int, error) {
	article, err := p.buildArticle(ctx, ev, r, item, job, true)
	if err != nil {
		return domain.OutcomeFailed, 0, fmt.Errorf("build content %s: %w", item.ContentID, err)
	}

	existing, err := p.blog.GetPostBySlug(ctx, article.Slug)
	if err != nil {
		return domain.OutcomeFailed, 0, fmt.Errorf("lookup %s: %w", article.Slug, err)
	}

	if existing != nil {
		if !job.Publish.Overwrite {
			ev.Info(ctx, domain.EventPosting, "existing post skipped", map[string]any{"post_id": existing.ID, "slug": article.Slug})
			return domain.OutcomeSkipped, existing.ID, nil
		}
		if _, err := p.blog.UpdatePost(ctx, existing.ID, domain.PostInput{
			Title:   &article.Title,
			Content: &article.Body,
			Status:  &article.Status,
		}); err != nil {
			return domain.OutcomeFailed, 0, fmt.Errorf("update post %d: %w", existing.ID, err)
		}
		if err := p.finishPost(ctx, ev, existing.ID, item, job, article); err != nil {
			return domain.OutcomeUpdated, existing.ID, err
		}
		ev.Info(ctx, domain.EventPosting, "post updated", map[string]any{"post_id": existing.ID, "slug": article.Slug, "title": article.Title})
		return domain.OutcomeUpdated, existing.ID, nil
	}

	post, err := p.blog.CreatePost(ctx, domain.PostInput{
		Title:   &article.Title,
		Content: &article.Body,
		Status:  &article.Status,
		Slug:    &article.Slug,
	})
	if err != nil {
		return domain.OutcomeFailed, 0, fmt.Errorf("create post %s: %w", article.Slug, err)
	}
	if err := p.finishPost(ctx, ev, post.ID, item, job, article); err != nil {
		return domain.OutcomeCreated, post.ID, err
	}
	ev.Info(ctx, domain.EventPosting, "post created", map[string]any{"post_id": post.ID, "slug": article.Slug, "title": article.Title})
	return domain.OutcomeCreated, post.ID, nil
}

// finishPost assigns taxonomy and featured media. Only fatal errors are
// returned; everything else is logged and the post stands as written.
func (p *Pipeline) finishPost(ctx context.Context, ev *logging.EventLogger, postID int, item domain.Product, job domain.JobSpec, article domain.RenderedArticle) error {
	if err := p.assignTerms(ctx, ev, postID, item, job); err != nil && domain.IsFatal(err) {
		return err
	}
	if err := p.attachMedia(ctx, ev, postID, article); err != nil && domain.IsFatal(err) {
		return err
	}
	return nil
}

// assignTerms replaces the post's categories and tags with the freshly
// resolved sets.
func (p *Pipeline) assignTerms(ctx context.Context, ev *logging.EventLogger, postID int, item domain.Product, job domain.JobSpec) error {
	if p.terms == nil {
		return nil
	}

	if scheme := job.Publish.Taxonomy.Normalize(); scheme != "" {
		ids, err := p.terms.TermsFor(ctx, item, scheme)
		if err != nil {
			ev.Warn(ctx, domain.EventCategory, "category resolution failed", map[string]any{"post_id": postID, "scheme": string(scheme), "error": err.Error()})
			if domain.IsFatal(err) {
				return err
			}
		}
		if len(ids) > 0 {
			if err := p.blog.SetPostCategories(ctx, postID, ids); err != nil {
				ev.Warn(ctx, domain.EventCategory, "category assignment failed", map[string]any{"post_id": postID, "error": err.Error()})
				return err
			}
		}
	}

	tags, err := p.terms.AutoTags(ctx, item)
	if err != nil {
		ev.Warn(ctx, domain.EventCategory, "tag resolution failed", map[string]any{"post_id": postID, "error": err.Error()})
		if domain.IsFatal(err) {
			return err
		}
	}
	if err := p.blog.SetPostTags(ctx, postID, tags); err != nil {
		ev.Warn(ctx, domain.EventCategory, "tag assignment failed", map[string]any{"post_id": postID, "error": err.Error()})
		return err
	}
	return nil
}

func (p *Pipeline) attachMedia(ctx context.Context, ev *logging.EventLogger, postID int, article domain.RenderedArticle) error {
	if !article.HasFeaturedMedia() {
		return nil
	}
	media, err := p.blog.UploadMedia(ctx, article.FeaturedFilename, article.FeaturedMedia, mediaType(article.FeaturedMedia))
	if err != nil {
		ev.Warn(ctx, domain.EventPosting, "media upload failed", map[string]any{"post_id": postID, "filename": article.FeaturedFilename, "error": err.Error()})
		return err
	}
	if _, err := p.blog.SetFeaturedMedia(ctx, postID, media.ID); err != nil {
		ev.Warn(ctx, domain.EventPosting, "featured media not set", map[string]any{"post_id": postID, "media_id": media.ID, "error": err.Error()})
		return err
	}
	ev.Debug(ctx, domain.EventPosting, "featured media set", map[string]any{"post_id": postID, "media_id": media.ID})
	return nil
}

// mediaType sniffs the image format; anything unrecognised is sent as JPEG.
func mediaType(data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

func (p *Pipeline) recordError(ctx context.Context, ev *logging.EventLogger, result *domain.RunResult, job domain.JobSpec, msg string, err error, details map[string]any) {
	result.RecordError(err)
	if p.metrics != nil {
		p.metrics.ObserveError(job.Name, domain.KindOf(err))
	}
	if details == nil {
		details = map[string]any{}
	}
	details["kind"] = string(domain.KindOf(err))
	details["error"] = err.Error()
	ev.Error(ctx, domain.EventError, msg, details)
}

func (p *Pipeline) observeOutcome(job domain.JobSpec, outcome domain.Outcome) {
	if p.metrics != nil {
		p.metrics.ObserveOutcome(job.Name, outcome)
	}
}

func (p *Pipeline) notify(ctx context.Context, ev *logging.EventLogger, result domain.RunResult) {
	if p.notifier == nil || (len(result.PostIDs) == 0 && result.Failed == 0) {
		return
	}
	if err := p.notifier.PublishDigest(context.WithoutCancel(ctx), Summary(result)); err != nil {
		ev.Warn(ctx, domain.EventSystem, "run summary not delivered", map[string]any{"error": err.Error()})
	}
}

// Summary renders a short plain-text report of a run.
func Summary(result domain.RunResult) string {
	msg := fmt.Sprintf("%s: created %d, updated %d, skipped %d, failed %d",
		result.JobName, result.Created, result.Updated, result.Skipped, result.Failed)
	if result.Cancelled {
		msg += " (cancelled)"
	}
	kinds := make([]string, 0, len(result.LastErrors))
	for kind := range result.LastErrors {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		msg += fmt.Sprintf("\n%s: %s", kind, result.LastErrors[domain.ErrorKind(kind)])
	}
	return msg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
