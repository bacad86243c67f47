package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

const (
	DefaultBaseURL   = "https://api.dmm.com/affiliate/v3"
	MaxHits          = 100
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	mediaReferer     = "https://www.dmm.co.jp/"
	maxMediaBytes    = 20 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIID          string
	AffiliateID    string
	HTTPClient     *http.Client
	RequestsPerSec float64
	RetryDelay     time.Duration
	MaxAttempts    int
	UserAgent      string
	Logger         *slog.Logger
}

// Client talks to the affiliate catalog API.
type Client struct {
	baseURL     string
	apiID       string
	affiliateID string
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryDelay  time.Duration
	maxAttempts int
	userAgent   string
	log         *slog.Logger
}

var (
	_ ports.CatalogSource = (*Client)(nil)
	_ ports.MediaFetcher  = (*Client)(nil)
)

// NewClient builds a Client with sane defaults for zero options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	limit := rate.Inf
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiID:       opts.APIID,
		affiliateID: opts.AffiliateID,
		httpClient:  opts.HTTPClient,
		limiter:     rate.NewLimiter(limit, 1),
		retryDelay:  opts.RetryDelay,
		maxAttempts: opts.MaxAttempts,
		userAgent:   opts.UserAgent,
		log:         opts.Logger.With("component", "catalog"),
	}
}

type itemListResponse struct {
	Result struct {
		Status      json.RawMessage `json:"status"`
		Message     string          `json:"message"`
		TotalCount  json.RawMessage `json:"total_count"`
		FirstPos    json.RawMessage `json:"first_position"`
		ResultCount json.RawMessage `json:"result_count"`
		Items       []rawItem       `json:"items"`
	} `json:"result"`
}

// ItemList fetches one page of products. Hits above MaxHits are clamped.
func (c *Client) ItemList(ctx context.Context, q domain.ItemQuery) (domain.ItemPage, error) {
	params := c.authParams()
	params.Set("site", q.Site)
	params.Set("service", q.Service)
	params.Set("floor", q.Floor)
	params.Set("keyword", q.Keyword)
	params.Set("sort", q.Sort)
	params.Set("hits", strconv.Itoa(clampHits(q.Hits)))
	offset := q.Offset
	if offset < 1 {
		offset = 1
	}
	params.Set("offset", strconv.Itoa(offset))
	if q.Article != "" && q.ArticleID != "" {
		params.Set("article", q.Article)
		params.Set("article_id", q.ArticleID)
	}
	if q.GTEDate != "" {
		params.Set("gte_date", q.GTEDate)
	}
	if q.LTEDate != "" {
		params.Set("lte_date", q.LTEDate)
	}

	var resp itemListResponse
	if err := c.getJSON(ctx, "ItemList", params, &resp); err != nil {
		return domain.ItemPage{}, err
	}

	page := domain.ItemPage{
		TotalCount:  atoi(scalarString(resp.Result.TotalCount)),
		FirstPos:    atoi(scalarString(resp.Result.FirstPos)),
		ResultCount: atoi(scalarString(resp.Result.ResultCount)),
		Items:       make([]domain.Product, 0, len(resp.Result.Items)),
	}
	for _, raw := range resp.Result.Items {
		p := raw.normalize()
		if p.ContentID == "" {
			c.log.Warn("item without content_id skipped", "title", p.Title)
			continue
		}
		page.Items = append(page.Items, p)
	}
	if page.ResultCount == 0 {
		page.ResultCount = len(resp.Result.Items)
	}
	return page, nil
}

// Actress is one ActressSearch record.
type Actress struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Ruby     string `json:"ruby"`
	ImageURL string `json:"image_url"`
	ListURL  string `json:"list_url"`
}

// ActressSearch looks up a single actress by id.
func (c *Client) ActressSearch(ctx context.Context, actressID string) ([]Actress, error) {
	params := c.authParams()
	params.Set("actress_id", actressID)
	params.Set("hits", "1")
	params.Set("offset", "1")
	params.Set("sort", "id")

	var resp struct {
		Result struct {
			Actress []struct {
				ID       json.RawMessage `json:"id"`
				Name     string          `json:"name"`
				Ruby     string          `json:"ruby"`
				ImageURL json.RawMessage `json:"imageURL"`
				ListURL  json.RawMessage `json:"listURL"`
			} `json:"actress"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, "ActressSearch", params, &resp); err != nil {
		return nil, err
	}
	out := make([]Actress, 0, len(resp.Result.Actress))
	for _, a := range resp.Result.Actress {
		images := imageSizes(a.ImageURL)
		lists := imageSizes(a.ListURL)
		out = append(out, Actress{
			ID:       scalarString(a.ID),
			Name:     a.Name,
			Ruby:     a.Ruby,
			ImageURL: firstNonEmpty(images["large"], images["small"]),
			ListURL:  firstNonEmpty(lists["digital"], lists["monthly"], lists["mono"]),
		})
	}
	return out, nil
}

type floorListResponse struct {
	Result struct {
		Site []struct {
			Name    string `json:"name"`
			Code    string `json:"code"`
			Service []struct {
				Name  string `json:"name"`
				Code  string `json:"code"`
				Floor []struct {
					ID   json.RawMessage `json:"id"`
					Name string          `json:"name"`
					Code string          `json:"code"`
				} `json:"floor"`
			} `json:"service"`
		} `json:"site"`
	} `json:"result"`
}

// FloorList fetches the site/service/floor catalog without caching.
func (c *Client) FloorList(ctx context.Context) ([]domain.Floor, error) {
	var resp floorListResponse
	if err := c.getJSON(ctx, "FloorList", c.authParams(), &resp); err != nil {
		return nil, err
	}
	var floors []domain.Floor
	for _, site := range resp.Result.Site {
		for _, svc := range site.Service {
			for _, f := range svc.Floor {
				floors = append(floors, domain.Floor{
					SiteName:    site.Name,
					SiteCode:    site.Code,
					ServiceName: svc.Name,
					ServiceCode: svc.Code,
					FloorID:     scalarString(f.ID),
					FloorName:   f.Name,
					FloorCode:   f.Code,
				})
			}
		}
	}
	return floors, nil
}

// DownloadMedia streams an image with browser-like headers. Exhausted
// retries surface as KindMediaUnavailable.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	const op = "catalog.DownloadMedia"
	if mediaURL == "" {
		return nil, domain.NewError(domain.KindMediaUnavailable, op, errors.New("empty url"))
	}

	var data []byte
	err := retry(ctx, c.retryDelay, c.maxAttempts, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
		if err != nil {
			return domain.NewError(domain.KindProtocol, op, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Referer", mediaReferer)
		req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.NewError(domain.KindTransient, op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &domain.Error{Kind: domain.KindForStatus(resp.StatusCode), Op: op, Status: resp.StatusCode}
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxMediaBytes)); err != nil {
			return domain.NewError(domain.KindTransient, op, err)
		}
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		c.log.Warn("media download failed", "url", mediaURL, "err", err)
		return nil, domain.NewError(domain.KindMediaUnavailable, op, err)
	}
	return data, nil
}

func (c *Client) authParams() url.Values {
	params := url.Values{}
	params.Set("api_id", c.apiID)
	params.Set("affiliate_id", c.affiliateID)
	params.Set("output", "json")
	return params
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	op := "catalog." + endpoint
	endpointURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	return retry(ctx, c.retryDelay, c.maxAttempts, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
		if err != nil {
			return domain.NewError(domain.KindProtocol, op, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return domain.NewError(domain.KindTransient, op, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return domain.NewError(domain.KindTransient, op, err)
		}

		if resp.StatusCode >= 400 {
			c.log.Debug("catalog request failed", "endpoint", endpoint, "status", resp.StatusCode)
			return &domain.Error{
				Kind:   domain.KindForStatus(resp.StatusCode),
				Op:     op,
				Status: resp.StatusCode,
				Err:    errors.New(snippet(body)),
			}
		}

		if err := checkBodyError(body); err != nil {
			return &domain.Error{Kind: domain.KindProtocol, Op: op, Status: resp.StatusCode, Err: err}
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return domain.NewError(domain.KindProtocol, op, fmt.Errorf("decode: %w", err))
		}
		return nil
	})
}

// checkBodyError rejects non-JSON bodies and bodies reporting an error.
func checkBodyError(body []byte) error {
	var envelope struct {
		Error *struct {
			Message string          `json:"message"`
			Code    json.RawMessage `json:"code"`
		} `json:"error"`
		Result struct {
			Status  json.RawMessage `json:"status"`
			Message string          `json:"message"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("non-json body: %s", snippet(body))
	}
	if envelope.Error != nil {
		return fmt.Errorf("api error %s: %s", scalarString(envelope.Error.Code), envelope.Error.Message)
	}
	if status := atoi(scalarString(envelope.Result.Status)); status >= 400 {
		return fmt.Errorf("api status %d: %s", status, envelope.Result.Message)
	}
	return nil
}

func clampHits(hits int) int {
	if hits <= 0 || hits > MaxHits {
		return MaxHits
	}
	return hits
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
