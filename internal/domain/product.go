package domain

import (
	"maps"
	"slices"
	"strings"
)

// Attribute is one named element of a product attribute list (actress, genre, ...).
type Attribute struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Ruby string `json:"ruby,omitempty"`
}

// Product is the canonical, shape-normalized catalog record.
type Product struct {
	ContentID    string
	ProductID    string
	Title        string
	URL          string
	AffiliateURL string
	Service      string
	Floor        string
	Comment      string
	Date         string
	Price        string
	JANCode      string
	Volume       string

	// PackageImageURLs maps size keys (large, list, small) to URLs.
	PackageImageURLs map[string]string
	// SampleImageURLs holds the preferred sample set (large when available).
	SampleImageURLs []string
	// SampleImageSmallURLs holds thumbnails when the catalog provides both sizes.
	SampleImageSmallURLs []string
	// SampleMovieURLs maps size keys (size_720_480, ...) to player URLs.
	SampleMovieURLs map[string]string

	Actresses    []Attribute
	Performers   []Attribute
	Directors    []Attribute
	Series       []Attribute
	Genres       []Attribute
	Makers       []Attribute
	Labels       []Attribute
	Authors      []Attribute
	Manufactures []Attribute

	ReviewAverage *float64
	ReviewCount   *int
}

// PackageImage returns the large package image, or the first non-empty size.
func (p Product) PackageImage() string {
	if u := p.PackageImageURLs["large"]; u != "" {
		return u
	}
	for _, key := range []string{"list", "small"} {
		if u := p.PackageImageURLs[key]; u != "" {
			return u
		}
	}
	for _, key := range slices.Sorted(maps.Keys(p.PackageImageURLs)) {
		if u := p.PackageImageURLs[key]; u != "" {
			return u
		}
	}
	return ""
}

// SampleImages returns the preferred sample image list in catalog order.
func (p Product) SampleImages() []string {
	if len(p.SampleImageURLs) > 0 {
		return p.SampleImageURLs
	}
	return p.SampleImageSmallURLs
}

// HasReviews reports whether a usable review average is present.
func (p Product) HasReviews() bool {
	return p.ReviewAverage != nil && *p.ReviewAverage > 0
}

// JoinNames joins attribute names with single spaces, preserving catalog order.
func JoinNames(attrs []Attribute) string {
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, " ")
}
