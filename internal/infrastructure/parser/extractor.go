package parser

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"CatalogPoster/internal/ports"
)

// Default selector lists for product detail pages.
var (
	DefaultDescriptionSelectors = []string{
		`meta[name=description]`,
		`p.tx-productComment`,
		`p.summary__txt`,
		`p.mg-b20`,
		`p.text-overflow`,
		`div[class*="description"]`,
		`div[class*="detail"]`,
		`div[class*="info"]`,
		`div[class*="content"]`,
	}
	DefaultReviewSelectors = []string{
		`#review`,
		`div[class*="review"]`,
		`div[class*="comment"]`,
		`div[class*="user"]`,
	}
)

const minDescriptionRunes = 50

var (
	scriptKeywords = []string{"product", "description", "comment"}
	jsonFields     = []string{"description", "comment", "summary", "text", "content", "detail", "info"}

	boilerplateFragments = []string{
		"copyright", "©", "terms", "privacy", "cookie",
		"利用規約", "プライバシー", "個人情報",
	}

	// BoilerplateReviews are page texts that never count as a review.
	BoilerplateReviews = []string{
		"最初のレビューを投稿",
		"レビューを書く",
		"レビューを投稿して",
		"10ポイント",
		"レビューはまだありません",
		"レビューがありません",
		"post the first review",
		"write a review",
		"no reviews yet",
	}
)

// Extractor pulls description and review text out of detail pages.
type Extractor struct{}

var _ ports.Extractor = Extractor{}

// NewExtractor returns a stateless extractor.
func NewExtractor() Extractor { return Extractor{} }

// Extract returns (description, review). Unparseable HTML yields empty strings.
func (Extractor) Extract(html string, descriptionSelectors, reviewSelectors []string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	if len(descriptionSelectors) == 0 {
		descriptionSelectors = DefaultDescriptionSelectors
	}
	if len(reviewSelectors) == 0 {
		reviewSelectors = DefaultReviewSelectors
	}
	return extractDescription(doc, descriptionSelectors), extractReview(doc, reviewSelectors)
}

func extractDescription(doc *goquery.Document, selectors []string) string {
	if desc := descriptionFromScripts(doc); desc != "" {
		return desc
	}

	best := ""
	for _, sel := range selectors {
		text := selectorText(doc, sel)
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) >= minDescriptionRunes {
			return text
		}
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(best) {
			best = text
		}
	}

	if longest := longestBlock(doc); utf8.RuneCountInString(longest) > utf8.RuneCountInString(best) {
		return longest
	}
	return best
}

func selectorText(doc *goquery.Document, sel string) string {
	node := doc.Find(sel).First()
	if node.Length() == 0 {
		return ""
	}
	if goquery.NodeName(node) == "meta" {
		content, _ := node.Attr("content")
		return normalizeSpace(content)
	}
	return normalizeSpace(node.Text())
}

func descriptionFromScripts(doc *goquery.Document) string {
	found := ""
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		lower := strings.ToLower(body)
		if !containsAny(lower, scriptKeywords) {
			return true
		}
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return true
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(body[start:end+1]), &payload); err != nil {
			return true
		}
		if text := searchFields(payload); text != "" {
			found = text
			return false
		}
		return true
	})
	return found
}

// searchFields checks the candidate fields at the top level, then one level
// into nested objects in key order.
func searchFields(payload map[string]any) string {
	if text := directField(payload); text != "" {
		return text
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if nested, ok := payload[k].(map[string]any); ok {
			if text := directField(nested); text != "" {
				return text
			}
		}
	}
	return ""
}

func directField(obj map[string]any) string {
	for _, field := range jsonFields {
		if s, ok := obj[field].(string); ok {
			if s = normalizeSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func longestBlock(doc *goquery.Document) string {
	longest := ""
	doc.Find("div, p, span").Each(func(_ int, s *goquery.Selection) {
		text := normalizeSpace(s.Text())
		if text == "" || isBoilerplate(text) {
			return
		}
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(longest) {
			longest = text
		}
	})
	return longest
}

func extractReview(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := normalizeSpace(doc.Find(sel).First().Text())
		if text == "" || IsBoilerplateReview(text) {
			continue
		}
		return text
	}
	return ""
}

// IsBoilerplateReview reports whether text is a known placeholder rather than a review.
func IsBoilerplateReview(text string) bool {
	return containsAny(strings.ToLower(text), BoilerplateReviews)
}

func isBoilerplate(text string) bool {
	return containsAny(strings.ToLower(text), boilerplateFragments)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
