package render

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMovieBaseURL = "https://cc3001.dmm.co.jp/litevideo/freepv"

// MovieSuffixes are probed in this exact order.
var MovieSuffixes = []string{"_mhb_w", "_mhb_s", "_dmb_w", "_dmb_s", "_dm_w", "_dm_s", "_sm_w", "_sm_s"}

var cidInPlayerURL = regexp.MustCompile(`cid=([^/&?]+)`)

// MovieResolver finds a playable sample MP4 by probing the CDN with HEAD.
type MovieResolver struct {
	baseURL string
	client  *http.Client
	cache   *lru.Cache[string, string]
	log     *slog.Logger
}

// NewMovieResolver builds a resolver; cacheSize bounds remembered content ids.
func NewMovieResolver(baseURL string, client *http.Client, cacheSize int, logger *slog.Logger) *MovieResolver {
	if baseURL == "" {
		baseURL = DefaultMovieBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cacheSize <= 0 {
		cacheSize = 512
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, string](cacheSize)
	return &MovieResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cache:   cache,
		log:     logger.With("component", "movie-resolver"),
	}
}

// Candidates lists every URL Resolve may probe, in probe order.
func (m *MovieResolver) Candidates(cid string, movieURLs map[string]string) []string {
	var out []string
	for _, id := range candidateIDs(cid, movieURLs) {
		if len(id) < 3 {
			continue
		}
		base := m.baseURL + "/" + id[:1] + "/" + id[:3] + "/" + id + "/" + id
		for _, suffix := range MovieSuffixes {
			out = append(out, base+suffix+".mp4")
		}
	}
	return out
}

func candidateIDs(cid string, movieURLs map[string]string) []string {
	ids := []string{cid}
	if m := cidInPlayerURL.FindStringSubmatch(movieURLs["size_720_480"]); m != nil && m[1] != cid {
		ids = append(ids, m[1])
	}
	if len(cid) > 3 {
		ids = append(ids, cid[:len(cid)-3])
	}
	return ids
}

// Resolve returns the first candidate answering 200 to HEAD, or "".
func (m *MovieResolver) Resolve(ctx context.Context, cid string, movieURLs map[string]string) string {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return ""
	}
	if cached, ok := m.cache.Get(cid); ok {
		return cached
	}

	found := ""
	for _, candidate := range m.Candidates(cid, movieURLs) {
		if ctx.Err() != nil {
			return ""
		}
		if m.probe(ctx, candidate) {
			found = candidate
			break
		}
	}
	m.cache.Add(cid, found)
	if found == "" {
		m.log.Debug("no sample movie found", "cid", cid)
	}
	return found
}

func (m *MovieResolver) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
