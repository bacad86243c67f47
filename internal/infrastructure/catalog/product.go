package catalog

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"CatalogPoster/internal/domain"
)

// rawItem mirrors one element of result.items. Polymorphic fields stay raw
// until normalize resolves them.
type rawItem struct {
	ContentID      string                     `json:"content_id"`
	ProductID      string                     `json:"product_id"`
	Title          string                     `json:"title"`
	URL            string                     `json:"URL"`
	AffiliateURL   string                     `json:"affiliateURL"`
	ServiceCode    string                     `json:"service_code"`
	FloorCode      string                     `json:"floor_code"`
	Comment        string                     `json:"comment"`
	Date           string                     `json:"date"`
	Volume         json.RawMessage            `json:"volume"`
	JANCode        json.RawMessage            `json:"jancode"`
	ImageURL       json.RawMessage            `json:"imageURL"`
	SampleImageURL json.RawMessage            `json:"sampleImageURL"`
	SampleMovieURL json.RawMessage            `json:"sampleMovieURL"`
	Review         json.RawMessage            `json:"review"`
	ReviewAverage  json.RawMessage            `json:"review_average"`
	ReviewCount    json.RawMessage            `json:"review_count"`
	Prices         json.RawMessage            `json:"prices"`
	Price          json.RawMessage            `json:"price"`
	ItemInfo       map[string]json.RawMessage `json:"iteminfo"`

	Actress     json.RawMessage `json:"actress"`
	Performer   json.RawMessage `json:"performer"`
	Director    json.RawMessage `json:"director"`
	Series      json.RawMessage `json:"series"`
	Genre       json.RawMessage `json:"genre"`
	Maker       json.RawMessage `json:"maker"`
	Label       json.RawMessage `json:"label"`
	Author      json.RawMessage `json:"author"`
	Manufacture json.RawMessage `json:"manufacture"`
}

func (r rawItem) normalize() domain.Product {
	p := domain.Product{
		ContentID:        strings.TrimSpace(r.ContentID),
		ProductID:        r.ProductID,
		Title:            r.Title,
		URL:              r.URL,
		AffiliateURL:     r.AffiliateURL,
		Service:          r.ServiceCode,
		Floor:            r.FloorCode,
		Comment:          r.Comment,
		Date:             r.Date,
		Volume:           scalarString(r.Volume),
		JANCode:          scalarString(r.JANCode),
		PackageImageURLs: imageSizes(r.ImageURL),
		SampleMovieURLs:  movieSizes(r.SampleMovieURL),
		Price:            normalizePrice(r.Prices, r.Price),
	}
	p.SampleImageURLs, p.SampleImageSmallURLs = sampleImages(r.SampleImageURL)

	p.Actresses = r.attributes("actress", r.Actress)
	p.Performers = r.attributes("performer", r.Performer)
	p.Directors = r.attributes("director", r.Director)
	p.Series = r.attributes("series", r.Series)
	p.Genres = r.attributes("genre", r.Genre)
	p.Makers = r.attributes("maker", r.Maker)
	p.Labels = r.attributes("label", r.Label)
	p.Authors = r.attributes("author", r.Author)
	p.Manufactures = r.attributes("manufacture", r.Manufacture)

	p.ReviewAverage, p.ReviewCount = reviews(r.Review, r.ReviewAverage, r.ReviewCount)
	return p
}

// attributes prefers iteminfo.<key> and falls back to a top-level list.
func (r rawItem) attributes(key string, top json.RawMessage) []domain.Attribute {
	if raw, ok := r.ItemInfo[key]; ok {
		if attrs := attributeList(raw); len(attrs) > 0 {
			return attrs
		}
	}
	return attributeList(top)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func attributeList(raw json.RawMessage) []domain.Attribute {
	if isNull(raw) {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		list = []json.RawMessage{raw}
	}
	out := make([]domain.Attribute, 0, len(list))
	for _, el := range list {
		var attr struct {
			ID   json.RawMessage `json:"id"`
			Name string          `json:"name"`
			Ruby string          `json:"ruby"`
		}
		if err := json.Unmarshal(el, &attr); err == nil && attr.Name != "" {
			out = append(out, domain.Attribute{ID: scalarString(attr.ID), Name: attr.Name, Ruby: attr.Ruby})
			continue
		}
		if name := scalarString(el); name != "" {
			out = append(out, domain.Attribute{Name: name})
		}
	}
	return out
}

func imageSizes(raw json.RawMessage) map[string]string {
	if isNull(raw) {
		return nil
	}
	var sizes map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sizes); err == nil {
		out := make(map[string]string, len(sizes))
		for k, v := range sizes {
			if u := firstURL(v); u != "" {
				out[k] = u
			}
		}
		return out
	}
	if u := firstURL(raw); u != "" {
		return map[string]string{"large": u}
	}
	return nil
}

// firstURL accepts a string or a list of strings.
func firstURL(raw json.RawMessage) string {
	if s := scalarString(raw); s != "" {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func urlList(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return compact(list)
	}
	var holder struct {
		Image json.RawMessage `json:"image"`
	}
	if err := json.Unmarshal(raw, &holder); err == nil && !isNull(holder.Image) {
		return urlList(holder.Image)
	}
	if s := scalarString(raw); s != "" {
		return compact(strings.Split(s, ","))
	}
	return nil
}

// sampleImages returns (preferred, small). sample_l wins over sample_s; a
// bare string or list becomes the preferred set.
func sampleImages(raw json.RawMessage) ([]string, []string) {
	if isNull(raw) {
		return nil, nil
	}
	var sizes map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sizes); err != nil {
		return urlList(raw), nil
	}
	large := urlList(sizes["sample_l"])
	small := urlList(sizes["sample_s"])
	if len(large) > 0 {
		return large, small
	}
	if len(small) > 0 {
		return small, nil
	}
	if direct := urlList(sizes["image"]); len(direct) > 0 {
		return direct, nil
	}
	keys := make([]string, 0, len(sizes))
	for k := range sizes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, urlList(sizes[k])...)
	}
	return out, nil
}

func movieSizes(raw json.RawMessage) map[string]string {
	if isNull(raw) {
		return nil
	}
	var sizes map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sizes); err == nil {
		out := make(map[string]string, len(sizes))
		for k, v := range sizes {
			var s string
			if json.Unmarshal(v, &s) == nil && strings.HasPrefix(s, "http") {
				out[k] = s
			}
		}
		return out
	}
	if s := scalarString(raw); s != "" {
		return map[string]string{"size_720_480": s}
	}
	return nil
}

func normalizePrice(prices, top json.RawMessage) string {
	var p struct {
		ListPrice json.RawMessage `json:"list_price"`
		Price     json.RawMessage `json:"price"`
	}
	candidates := []string{}
	if !isNull(prices) && json.Unmarshal(prices, &p) == nil {
		candidates = append(candidates, scalarString(p.ListPrice), scalarString(p.Price))
	}
	candidates = append(candidates, scalarString(top))
	for _, c := range candidates {
		if digits := digitsOnly(c); digits != "" {
			return digits
		}
	}
	return ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimPrefix(strings.TrimSpace(s), "~") {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '~' || r == '-' {
			break
		}
	}
	return b.String()
}

func reviews(review, avg, count json.RawMessage) (*float64, *int) {
	var nested struct {
		Count   json.RawMessage `json:"count"`
		Average json.RawMessage `json:"average"`
	}
	if !isNull(review) && json.Unmarshal(review, &nested) == nil {
		if isNull(avg) {
			avg = nested.Average
		}
		if isNull(count) {
			count = nested.Count
		}
	}

	var average *float64
	if f, err := strconv.ParseFloat(scalarString(avg), 64); err == nil && f > 0 {
		average = &f
	}
	var total *int
	if n, err := strconv.Atoi(scalarString(count)); err == nil && n > 0 {
		total = &n
	}
	return average, total
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
