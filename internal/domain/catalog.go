package domain

// ItemQuery is a single catalog page request.
type ItemQuery struct {
	Site      string
	Service   string
	Floor     string
	Keyword   string
	Sort      string
	GTEDate   string
	LTEDate   string
	Article   string
	ArticleID string
	Hits      int
	Offset    int
}

// QueryFor builds the page query for a job search spec.
func QueryFor(s SearchSpec, hits, offset int) ItemQuery {
	q := ItemQuery{
		Site:      s.Site,
		Service:   s.Service,
		Floor:     s.Floor,
		Keyword:   s.Keyword,
		Sort:      s.Sort,
		Article:   s.Article,
		ArticleID: s.ArticleID,
		Hits:      hits,
		Offset:    offset,
	}
	if s.DateFrom != "" {
		q.GTEDate = s.DateFrom + "T00:00:00"
	}
	if s.DateTo != "" {
		q.LTEDate = s.DateTo + "T23:59:59"
	}
	return q
}

// ItemPage is one page of catalog results.
type ItemPage struct {
	TotalCount  int
	FirstPos    int
	ResultCount int
	Items       []Product
}

// Consumed is how far the page moves the offset, counting records that were
// dropped during normalization.
func (p ItemPage) Consumed() int {
	return max(p.ResultCount, len(p.Items))
}

// Floor is one site/service/floor code triple.
type Floor struct {
	SiteName    string `json:"site_name"`
	SiteCode    string `json:"site_code"`
	ServiceName string `json:"service_name"`
	ServiceCode string `json:"service_code"`
	FloorID     string `json:"floor_id"`
	FloorName   string `json:"floor_name"`
	FloorCode   string `json:"floor_code"`
}

// Post is the subset of a blog post the pipeline reads back.
type Post struct {
	ID            int    `json:"id"`
	Slug          string `json:"slug"`
	Status        string `json:"status"`
	Link          string `json:"link"`
	Title         string `json:"-"`
	FeaturedMedia int    `json:"featured_media"`
	Categories    []int  `json:"categories"`
	Tags          []int  `json:"tags"`
}

// PostInput carries fields for create and partial update.
type PostInput struct {
	Title   *string
	Content *string
	Status  *PostStatus
	Slug    *string
	Excerpt *string
}

// Term is a blog category or tag.
type Term struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Count       int    `json:"count"`
	Parent      int    `json:"parent,omitempty"`
}

// Media is an uploaded attachment.
type Media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}
