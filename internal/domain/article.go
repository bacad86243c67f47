package domain

import "time"

// RenderedArticle is the blog-ready form of a single product.
type RenderedArticle struct {
	Title            string
	Body             string
	Slug             string
	Status           PostStatus
	FeaturedMedia    []byte
	FeaturedFilename string
	CategoryIDs      []int
	TagIDs           []int
}

// HasFeaturedMedia reports whether media bytes were acquired for the article.
func (a RenderedArticle) HasFeaturedMedia() bool {
	return len(a.FeaturedMedia) > 0 && a.FeaturedFilename != ""
}

// Outcome enumerates per-product pipeline results.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RunResult summarizes one pipeline execution.
type RunResult struct {
	RunID      string
	JobName    string
	PostIDs    []int
	Created    int
	Updated    int
	Skipped    int
	Failed     int
	LastErrors map[ErrorKind]string
	Cancelled  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record bumps the counter matching the outcome.
func (r *RunResult) Record(o Outcome) {
	switch o {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// RecordError keeps the last message observed per error kind.
func (r *RunResult) RecordError(err error) {
	if err == nil {
		return
	}
	if r.LastErrors == nil {
		r.LastErrors = map[ErrorKind]string{}
	}
	r.LastErrors[KindOf(err)] = err.Error()
}
