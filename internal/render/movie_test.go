package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidatesOrder(t *testing.T) {
	t.Parallel()

	m := NewMovieResolver("https://cdn/litevideo/freepv/", nil, 0, nil)
	got := m.Candidates("abc00123", map[string]string{
		"size_720_480": "https://www.dmm.co.jp/litevideo/-/part/=/affi_id=x/cid=h_abc00123/size=720_480/",
	})

	assert.Len(t, got, 3*len(MovieSuffixes))
	assert.Equal(t, "https://cdn/litevideo/freepv/a/abc/abc00123/abc00123_mhb_w.mp4", got[0])
	assert.Equal(t, "https://cdn/litevideo/freepv/a/abc/abc00123/abc00123_sm_s.mp4", got[7])
	assert.Equal(t, "https://cdn/litevideo/freepv/h/h_a/h_abc00123/h_abc00123_mhb_w.mp4", got[8])
	assert.Equal(t, "https://cdn/litevideo/freepv/a/abc/abc00/abc00_mhb_w.mp4", got[16])
}

func TestResolveFirstOKWinsAndCaches(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var probes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		probes = append(probes, r.URL.Path)
		mu.Unlock()
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/a/abc/abc001/abc001_dmb_w.mp4" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewMovieResolver(srv.URL, srv.Client(), 8, nil)
	got := m.Resolve(context.Background(), "abc001", nil)
	assert.Equal(t, srv.URL+"/a/abc/abc001/abc001_dmb_w.mp4", got)
	assert.Len(t, probes, 3)

	again := m.Resolve(context.Background(), "abc001", nil)
	assert.Equal(t, got, again)
	assert.Len(t, probes, 3)
}

func TestResolveExhaustedIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m := NewMovieResolver(srv.URL, srv.Client(), 8, nil)
	assert.Equal(t, "", m.Resolve(context.Background(), "xyz999", nil))
}
