package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"CatalogPoster/internal/domain"
)

const sampleItemList = `{
  "result": {
    "status": 200,
    "result_count": 1,
    "total_count": "42",
    "first_position": 1,
    "items": [{
      "content_id": "abc001",
      "title": "T",
      "URL": "https://www.dmm.co.jp/x/abc001/",
      "affiliateURL": "https://al.dmm.co.jp/?lurl=abc001",
      "service_code": "digital",
      "date": "2024-05-01 10:00:00",
      "volume": "120",
      "imageURL": {"list": "http://x/pt.jpg", "large": "http://x/p.jpg"},
      "sampleImageURL": {"sample_s": {"image": ["http://x/s1s.jpg"]}, "sample_l": {"image": ["http://x/s1.jpg", "http://x/s2.jpg"]}},
      "sampleMovieURL": {"size_720_480": "https://www.dmm.co.jp/litevideo/-/part/=/cid=abc001/size=720_480/", "pc_flag": 1},
      "review": {"count": 3, "average": "4.50"},
      "prices": {"price": "~300", "list_price": "1,980"},
      "iteminfo": {
        "actress": [{"id": 1, "name": "Alice", "ruby": "ありす"}, {"id": 2, "name": "Beth"}],
        "genre": [{"id": 10, "name": "Drama"}],
        "maker": [{"id": 5, "name": "MakerCo"}]
      }
    }]
  }
}`

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:     srv.URL,
		APIID:       "api",
		AffiliateID: "aff-990",
		HTTPClient:  srv.Client(),
		RetryDelay:  time.Millisecond,
	})
}

func TestItemListNormalizesProducts(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ItemList" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleItemList))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	page, err := c.ItemList(context.Background(), domain.QueryFor(domain.SearchSpec{
		Site: "FANZA", Service: "digital", Floor: "videoa", Sort: "rank",
		Article: "actress", DateFrom: "2024-01-01",
	}, 250, 1))
	if err != nil {
		t.Fatalf("ItemList: %v", err)
	}

	if !strings.Contains(gotQuery, "hits=100") {
		t.Fatalf("hits not clamped: %s", gotQuery)
	}
	if strings.Contains(gotQuery, "article=") {
		t.Fatalf("article sent without article_id: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "gte_date=2024-01-01T00%3A00%3A00") {
		t.Fatalf("missing gte_date: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "output=json") || !strings.Contains(gotQuery, "affiliate_id=aff-990") {
		t.Fatalf("missing auth params: %s", gotQuery)
	}

	if page.TotalCount != 42 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	p := page.Items[0]
	if p.PackageImage() != "http://x/p.jpg" {
		t.Fatalf("package image: %s", p.PackageImage())
	}
	if got := p.SampleImages(); len(got) != 2 || got[0] != "http://x/s1.jpg" {
		t.Fatalf("sample images: %v", got)
	}
	if p.Price != "1980" {
		t.Fatalf("price: %s", p.Price)
	}
	if p.ReviewAverage == nil || *p.ReviewAverage != 4.5 || p.ReviewCount == nil || *p.ReviewCount != 3 {
		t.Fatalf("reviews: %v %v", p.ReviewAverage, p.ReviewCount)
	}
	if domain.JoinNames(p.Actresses) != "Alice Beth" || p.Actresses[0].ID != "1" {
		t.Fatalf("actresses: %+v", p.Actresses)
	}
	if _, ok := p.SampleMovieURLs["pc_flag"]; ok {
		t.Fatalf("non-url movie entries must be dropped: %v", p.SampleMovieURLs)
	}
}

func TestItemListCountsDroppedRecords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"status": 200, "total_count": 5, "first_position": 1,
  "items": [{"content_id": "abc001", "title": "A"}, {"title": "no id"}, {"content_id": "abc002", "title": "B"}]}}`))
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv).ItemList(context.Background(), domain.ItemQuery{Hits: 3, Offset: 1})
	if err != nil {
		t.Fatalf("ItemList: %v", err)
	}
	if len(page.Items) != 2 || page.ResultCount != 3 || page.Consumed() != 3 {
		t.Fatalf("unexpected page: items=%d result_count=%d", len(page.Items), page.ResultCount)
	}
}

func TestSampleImageStringShape(t *testing.T) {
	t.Parallel()

	raw := rawItem{
		ContentID:      "abc002",
		SampleImageURL: []byte(`"http://x/only.jpg"`),
		ImageURL:       []byte(`"http://x/pkg.jpg"`),
	}
	p := raw.normalize()
	if got := p.SampleImages(); len(got) != 1 || got[0] != "http://x/only.jpg" {
		t.Fatalf("string sample shape: %v", got)
	}
	if p.PackageImage() != "http://x/pkg.jpg" {
		t.Fatalf("string package shape: %s", p.PackageImage())
	}
	if p.HasReviews() {
		t.Fatalf("no review data must mean no reviews")
	}
}

func TestItemListRetriesTransient(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleItemList))
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv).ItemList(context.Background(), domain.ItemQuery{Hits: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ItemList: %v", err)
	}
	if len(page.Items) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected success on second attempt, calls=%d", calls)
	}
}

func TestItemListRateLimitedExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).ItemList(context.Background(), domain.ItemQuery{})
	if domain.KindOf(err) != domain.KindRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, got)
	}
}

func TestItemListAuthFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).ItemList(context.Background(), domain.ItemQuery{})
	if domain.KindOf(err) != domain.KindAuth || !domain.IsFatal(err) {
		t.Fatalf("expected fatal auth failure, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("auth failure must not be retried")
	}
}

func TestItemListProtocolErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"non-json":   "<html>maintenance</html>",
		"error body": `{"error": {"message": "bad api_id", "code": 400}}`,
		"status":     `{"result": {"status": 400, "message": "BAD REQUEST"}}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).ItemList(context.Background(), domain.ItemQuery{})
			if domain.KindOf(err) != domain.KindProtocol {
				t.Fatalf("expected protocol error, got %v", err)
			}
		})
	}
}

func TestDownloadMediaSendsHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") == "" || !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("JPEGDATA"))
	}))
	defer srv.Close()

	data, err := newTestClient(t, srv).DownloadMedia(context.Background(), srv.URL+"/p.jpg")
	if err != nil {
		t.Fatalf("DownloadMedia: %v", err)
	}
	if string(data) != "JPEGDATA" {
		t.Fatalf("unexpected body %q", data)
	}
}

func TestDownloadMediaUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(t, srv).DownloadMedia(context.Background(), srv.URL+"/missing.jpg")
	if domain.KindOf(err) != domain.KindMediaUnavailable {
		t.Fatalf("expected media unavailable, got %v", err)
	}
}
