package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/pagefetch"
)

const (
	defaultReferer   = "https://www.dmm.co.jp"
	ageCheckCookie   = "age_check_done=1"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes     = 8 << 20
)

// Direct loads pages with a plain GET carrying the age-check cookie.
type Direct struct {
	client *http.Client
}

var _ pagefetch.Strategy = (*Direct)(nil)

// NewDirect builds a Direct fetcher with its own cookie jar.
func NewDirect(timeout time.Duration) (*Direct, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Direct{client: &http.Client{Timeout: timeout, Jar: jar}}, nil
}

func (d *Direct) Name() string { return pagefetch.StrategyDirect }

func (d *Direct) Fetch(ctx context.Context, req pagefetch.Request) (string, error) {
	const op = "browser.Direct"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", domain.NewError(domain.KindProtocol, op, err)
	}
	httpReq.Header.Set("Referer", defaultReferer)
	httpReq.Header.Set("Cookie", ageCheckCookie)
	httpReq.Header.Set("User-Agent", defaultUserAgent)
	httpReq.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", domain.NewError(domain.KindTransient, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &domain.Error{Kind: domain.KindForStatus(resp.StatusCode), Op: op, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", domain.NewError(domain.KindTransient, op, err)
	}
	return string(body), nil
}
