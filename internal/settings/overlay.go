package settings

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"CatalogPoster/internal/domain"
)

// postSlot is one entry of the flat post_settings.json override file.
type postSlot struct {
	Title             *string `json:"title"`
	Content           *string `json:"content"`
	Eyecatch          *string `json:"eyecatch"`
	MovieSize         *string `json:"movie_size"`
	Poster            *string `json:"poster"`
	Category          *string `json:"category"`
	Sort              *string `json:"sort"`
	Article           *string `json:"article"`
	Status            *string `json:"status"`
	Hour              *string `json:"hour"`
	OverwriteExisting *bool   `json:"overwrite_existing"`
	TargetNewPosts    *int    `json:"target_new_posts"`
}

type postSettingsDoc struct {
	PostSettings map[string]postSlot `json:"post_settings"`
}

// applyPostSettings lays the post_settings.json slots over doc. Only keys
// present in the file are changed.
func applyPostSettings(doc *Document, raw []byte) error {
	var file postSettingsDoc
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse post settings: %w", err)
	}
	for key, slot := range file.PostSettings {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 || n > SlotCount {
			continue
		}
		job := doc.Jobs[key]
		setString(&job.Render.TitleTemplate, slot.Title)
		setString(&job.Render.BodyTemplate, slot.Content)
		setString(&job.Render.MovieSize, slot.MovieSize)
		setString(&job.Search.Sort, slot.Sort)
		setString(&job.Search.Article, slot.Article)
		if slot.Eyecatch != nil {
			job.Render.Featured = domain.FeaturedPolicy(*slot.Eyecatch)
		}
		if slot.Poster != nil {
			job.Render.Poster = domain.PosterPolicy(*slot.Poster)
		}
		if slot.Category != nil {
			job.Publish.Taxonomy = domain.TaxonomyScheme(*slot.Category)
		}
		if slot.Status != nil {
			job.Publish.Status = domain.PostStatus(*slot.Status)
		}
		if slot.OverwriteExisting != nil {
			job.Publish.Overwrite = *slot.OverwriteExisting
		}
		if slot.TargetNewPosts != nil {
			job.Publish.TargetNewPosts = *slot.TargetNewPosts
		}
		doc.Jobs[key] = job

		if slot.Hour != nil {
			if hour, ok := parseHour(*slot.Hour); ok {
				for h, j := range doc.Schedule.Hours {
					if j == n {
						delete(doc.Schedule.Hours, h)
					}
				}
				doc.Schedule.Hours[hour] = n
			}
		}
	}
	return nil
}

// parseHour accepts "h09", "09" and "9".
func parseHour(v string) (int, bool) {
	v = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "h")
	h, err := strconv.Atoi(v)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

var credentialEnv = []struct {
	keys []string
	set  func(*domain.Credentials, string)
}{
	{[]string{"CATALOG_API_ID", "DMM_API_ID"}, func(c *domain.Credentials, v string) { c.CatalogAPIID = v }},
	{[]string{"CATALOG_AFFILIATE_ID", "DMM_AFFILIATE_ID"}, func(c *domain.Credentials, v string) { c.CatalogAffiliateID = v }},
	{[]string{"BLOG_BASE_URL", "WORDPRESS_BASE_URL"}, func(c *domain.Credentials, v string) { c.BlogBaseURL = v }},
	{[]string{"BLOG_USER", "WORDPRESS_USERNAME"}, func(c *domain.Credentials, v string) { c.BlogUser = v }},
	{[]string{"BLOG_APP_PASSWORD", "WORDPRESS_APPLICATION_PASSWORD"}, func(c *domain.Credentials, v string) { c.BlogAppPassword = v }},
}

type jobField func(job *domain.JobSpec, v string) error

var jobEnv = map[string]jobField{
	"SITE":               func(j *domain.JobSpec, v string) error { j.Search.Site = v; return nil },
	"SERVICE":            func(j *domain.JobSpec, v string) error { j.Search.Service = v; return nil },
	"FLOOR":              func(j *domain.JobSpec, v string) error { j.Search.Floor = v; return nil },
	"KEYWORD":            func(j *domain.JobSpec, v string) error { j.Search.Keyword = v; return nil },
	"SORT":               func(j *domain.JobSpec, v string) error { j.Search.Sort = v; return nil },
	"ARTICLE":            func(j *domain.JobSpec, v string) error { j.Search.Article = v; return nil },
	"ARTICLE_ID":         func(j *domain.JobSpec, v string) error { j.Search.ArticleID = v; return nil },
	"DATE_FROM":          func(j *domain.JobSpec, v string) error { j.Search.DateFrom = v; return nil },
	"DATE_TO":            func(j *domain.JobSpec, v string) error { j.Search.DateTo = v; return nil },
	"HITS":               intField(func(j *domain.JobSpec, n int) { j.Search.Hits = n }),
	"TITLE":              func(j *domain.JobSpec, v string) error { j.Render.TitleTemplate = v; return nil },
	"CONTENT":            func(j *domain.JobSpec, v string) error { j.Render.BodyTemplate = v; return nil },
	"EYECATCH":           func(j *domain.JobSpec, v string) error { j.Render.Featured = domain.FeaturedPolicy(v); return nil },
	"MOVIE_SIZE":         func(j *domain.JobSpec, v string) error { j.Render.MovieSize = v; return nil },
	"POSTER":             func(j *domain.JobSpec, v string) error { j.Render.Poster = domain.PosterPolicy(v); return nil },
	"MAX_IMAGES":         intField(func(j *domain.JobSpec, n int) { j.Render.MaxImages = n }),
	"INCLUDE_REVIEWS":    boolField(func(j *domain.JobSpec, b bool) { j.Render.IncludeReviews = b }),
	"STATUS":             func(j *domain.JobSpec, v string) error { j.Publish.Status = domain.PostStatus(v); return nil },
	"CATEGORY":           func(j *domain.JobSpec, v string) error { j.Publish.Taxonomy = domain.TaxonomyScheme(v); return nil },
	"OVERWRITE_EXISTING": boolField(func(j *domain.JobSpec, b bool) { j.Publish.Overwrite = b }),
	"TARGET_NEW_POSTS":   intField(func(j *domain.JobSpec, n int) { j.Publish.TargetNewPosts = n }),
	"ENRICH":             boolField(func(j *domain.JobSpec, b bool) { j.Enrich.Enabled = b }),
	"USE_BROWSER":        boolField(func(j *domain.JobSpec, b bool) { j.Enrich.UseBrowser = b }),
	"HEADLESS":           boolField(func(j *domain.JobSpec, b bool) { j.Enrich.Headless = b }),
	"CLICK_SELECTOR":     func(j *domain.JobSpec, v string) error { j.Enrich.ClickSelector = v; return nil },
	"PAGE_WAIT_SEC":      intField(func(j *domain.JobSpec, n int) { j.Enrich.PageWaitSeconds = n }),
}

func intField(set func(*domain.JobSpec, int)) jobField {
	return func(j *domain.JobSpec, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		set(j, n)
		return nil
	}
}

func boolField(set func(*domain.JobSpec, bool)) jobField {
	return func(j *domain.JobSpec, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		set(j, b)
		return nil
	}
}

// applyEnv overrides doc from the environment. Top-level keys use their
// upper-cased names; job fields use JOB_<N>_<FIELD>.
func applyEnv(doc *Document, lookup LookupFunc) error {
	for _, c := range credentialEnv {
		for _, key := range c.keys {
			if v, ok := lookup(key); ok && v != "" {
				c.set(&doc.Credentials, v)
				break
			}
		}
	}

	if v, ok := lookup("ACTIVE_JOB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACTIVE_JOB: %w", err)
		}
		doc.ActiveJob = n
	}
	if v, ok := lookup("SCHEDULE_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCHEDULE_ENABLED: %w", err)
		}
		doc.Schedule.Enabled = b
	}
	if v, ok := lookup("SCHEDULE_MINUTE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCHEDULE_MINUTE: %w", err)
		}
		doc.Schedule.Minute = n
	}

	for slot := 1; slot <= SlotCount; slot++ {
		key := strconv.Itoa(slot)
		job, ok := doc.Jobs[key]
		if !ok {
			continue
		}
		for field, set := range jobEnv {
			name := fmt.Sprintf("JOB_%d_%s", slot, field)
			v, ok := lookup(name)
			if !ok {
				continue
			}
			if err := set(&job, v); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		if v, ok := lookup(fmt.Sprintf("JOB_%d_HOUR", slot)); ok {
			if hour, valid := parseHour(v); valid {
				doc.Schedule.Hours[hour] = slot
			}
		}
		doc.Jobs[key] = job
	}
	return nil
}
