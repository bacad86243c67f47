package settings

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"

	"CatalogPoster/internal/domain"
)

// SlotCount is the number of job slots the document carries.
const SlotCount = 4

var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is the persisted settings file. Values are copied out with Clone
// before a run so that a later save never changes a run in flight.
type Document struct {
	Version     int                       `json:"version"`
	LastUpdated string                    `json:"last_updated"`
	Credentials domain.Credentials        `json:"credentials"`
	ActiveJob   int                       `json:"active_job" validate:"min=1,max=4"`
	Jobs        map[string]domain.JobSpec `json:"jobs" validate:"dive"`
	Schedule    domain.SchedulePlan       `json:"schedule"`
}

// Job returns the job in slot n, named after the slot.
func (d Document) Job(n int) (domain.JobSpec, error) {
	job, ok := d.Jobs[strconv.Itoa(n)]
	if !ok {
		return domain.JobSpec{}, domain.NewError(domain.KindConfigInvalid, "settings.job", fmt.Errorf("job slot %d is not configured", n))
	}
	job.Name = fmt.Sprintf("job%d", n)
	return job, nil
}

// Slots lists configured job slots in ascending order.
func (d Document) Slots() []int {
	out := make([]int, 0, len(d.Jobs))
	for key := range d.Jobs {
		if n, err := strconv.Atoi(key); err == nil {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := d
	out.Jobs = make(map[string]domain.JobSpec, len(d.Jobs))
	for k, job := range d.Jobs {
		job.Enrich.DescriptionSelectors = append([]string(nil), job.Enrich.DescriptionSelectors...)
		job.Enrich.ReviewSelectors = append([]string(nil), job.Enrich.ReviewSelectors...)
		out.Jobs[k] = job
	}
	out.Schedule.Hours = make(map[int]int, len(d.Schedule.Hours))
	for h, j := range d.Schedule.Hours {
		out.Schedule.Hours[h] = j
	}
	return out
}

// Validate checks the whole document including credentials.
func (d Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return domain.NewError(domain.KindConfigInvalid, "settings.validate", err)
	}
	return nil
}

// validateShape checks everything except credentials, which may be supplied
// by the environment at load time.
func (d Document) validateShape() error {
	if err := validate.StructExcept(d, "Credentials"); err != nil {
		return domain.NewError(domain.KindConfigInvalid, "settings.validate", err)
	}
	for hour, job := range d.Schedule.Hours {
		if hour < 0 || hour > 23 {
			return domain.NewError(domain.KindConfigInvalid, "settings.validate", fmt.Errorf("schedule hour %d out of range", hour))
		}
		if _, ok := d.Jobs[strconv.Itoa(job)]; !ok {
			return domain.NewError(domain.KindConfigInvalid, "settings.validate", fmt.Errorf("schedule hour %d points at missing job %d", hour, job))
		}
	}
	return nil
}

type slotDefaults struct {
	title     string
	content   string
	eyecatch  domain.FeaturedPolicy
	movieSize string
	poster    domain.PosterPolicy
	category  domain.TaxonomyScheme
	sort      string
	article   string
	status    domain.PostStatus
	hour      int
	overwrite bool
	target    int
}

var slotTable = [SlotCount]slotDefaults{
	{"[title]", "[title]の詳細情報です。", domain.FeaturedSample, "auto", domain.PosterPackage, domain.SchemeJAN, "rank", "", domain.StatusPublish, 9, false, 10},
	{"[title] - 設定2", "[title]の詳細情報です。設定2", domain.FeaturedPackage, "720", domain.PosterSample, "act", "date", "actress", domain.StatusDraft, 12, true, 20},
	{"[title] - 設定3", "[title]の詳細情報です。設定3", "1", "600", domain.PosterNone, domain.SchemeDirector, "review", "genre", domain.StatusPublish, 18, false, 15},
	{"[title] - 設定4", "[title]の詳細情報です。設定4", "99", "560", domain.PosterPackage, "seri", "price", "series", domain.StatusDraft, 21, true, 25},
}

// Defaults returns the factory document: four job slots and a disabled
// schedule running each slot at its default hour.
func Defaults() Document {
	doc := Document{
		ActiveJob: 1,
		Jobs:      make(map[string]domain.JobSpec, SlotCount),
		Schedule:  domain.SchedulePlan{Hours: make(map[int]int, SlotCount)},
	}
	for i, s := range slotTable {
		slot := i + 1
		doc.Jobs[strconv.Itoa(slot)] = domain.JobSpec{
			Search: domain.SearchSpec{
				Site:    "FANZA",
				Service: "digital",
				Floor:   "videoc",
				Sort:    s.sort,
				Article: s.article,
				Hits:    10,
			},
			Render: domain.RenderSpec{
				TitleTemplate:  s.title,
				BodyTemplate:   s.content,
				Featured:       s.eyecatch,
				MovieSize:      s.movieSize,
				Poster:         s.poster,
				IncludeReviews: true,
				MaxImages:      10,
			},
			Publish: domain.PublishSpec{
				Status:         s.status,
				Overwrite:      s.overwrite,
				TargetNewPosts: s.target,
				Taxonomy:       s.category,
			},
			Enrich: domain.EnrichSpec{
				Headless:        true,
				PageWaitSeconds: 5,
			},
		}
		doc.Schedule.Hours[s.hour] = slot
	}
	return doc
}
