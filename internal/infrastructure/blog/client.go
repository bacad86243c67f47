package blog

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

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

const (
	apiPrefix   = "/wp-json/wp/v2"
	termPerPage = 100
)

// Client is an authenticated WordPress REST client. It never retries; the
// pipeline decides what to do with each typed failure.
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	log        *slog.Logger
}

var (
	_ ports.Publisher = (*Client)(nil)
	_ ports.TermStore = (*Client)(nil)
)

// NewClient builds a client for baseURL (site root, without /wp-json).
func NewClient(baseURL, user, appPassword string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       user,
		password:   appPassword,
		httpClient: httpClient,
		log:        logger.With("component", "blog"),
	}
}

type rawPost struct {
	ID     int    `json:"id"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
	Link   string `json:"link"`
	Title  struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	FeaturedMedia int   `json:"featured_media"`
	Categories    []int `json:"categories"`
	Tags          []int `json:"tags"`
}

func (r rawPost) toDomain() domain.Post {
	return domain.Post{
		ID:            r.ID,
		Slug:          r.Slug,
		Status:        r.Status,
		Link:          r.Link,
		Title:         r.Title.Rendered,
		FeaturedMedia: r.FeaturedMedia,
		Categories:    r.Categories,
		Tags:          r.Tags,
	}
}

// GetPostBySlug returns the first post with slug, or nil when none exists.
func (c *Client) GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("status", "any")
	q.Set("context", "edit")

	var posts []rawPost
	if _, err := c.do(ctx, "blog.GetPostBySlug", http.MethodGet, "/posts", q, nil, "", &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	p := posts[0].toDomain()
	return &p, nil
}

// CreatePost creates a post; only fields set on in are sent.
func (c *Client) CreatePost(ctx context.Context, in domain.PostInput) (domain.Post, error) {
	var out rawPost
	if _, err := c.do(ctx, "blog.CreatePost", http.MethodPost, "/posts", nil, postPayload(in), "", &out); err != nil {
		return domain.Post{}, err
	}
	return out.toDomain(), nil
}

// UpdatePost changes only the fields set on in.
func (c *Client) UpdatePost(ctx context.Context, id int, in domain.PostInput) (domain.Post, error) {
	var out rawPost
	path := "/posts/" + strconv.Itoa(id)
	if _, err := c.do(ctx, "blog.UpdatePost", http.MethodPut, path, nil, postPayload(in), "", &out); err != nil {
		return domain.Post{}, err
	}
	return out.toDomain(), nil
}

// DeletePost removes a post; force bypasses the trash.
func (c *Client) DeletePost(ctx context.Context, id int, force bool) error {
	q := url.Values{}
	q.Set("force", strconv.FormatBool(force))
	_, err := c.do(ctx, "blog.DeletePost", http.MethodDelete, "/posts/"+strconv.Itoa(id), q, nil, "", nil)
	return err
}

// ListPosts returns one page of posts in any status. search may be empty.
func (c *Client) ListPosts(ctx context.Context, page, perPage int) ([]domain.Post, error) {
	return c.SearchPosts(ctx, page, perPage, "")
}

// SearchPosts is ListPosts with a free-text filter.
func (c *Client) SearchPosts(ctx context.Context, page, perPage int, search string) ([]domain.Post, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 100
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("status", "any")
	q.Set("context", "edit")
	if search != "" {
		q.Set("search", search)
	}

	var raws []rawPost
	if _, err := c.do(ctx, "blog.ListPosts", http.MethodGet, "/posts", q, nil, "", &raws); err != nil {
		// WordPress answers 400 rest_post_invalid_page_number past the last page.
		var de *domain.Error
		if errors.As(err, &de) && de.Status == http.StatusBadRequest && page > 1 {
			return nil, nil
		}
		return nil, err
	}
	posts := make([]domain.Post, 0, len(raws))
	for _, r := range raws {
		posts = append(posts, r.toDomain())
	}
	return posts, nil
}

// UploadMedia posts raw bytes as an attachment named filename.
func (c *Client) UploadMedia(ctx context.Context, filename string, data []byte, mime string) (domain.Media, error) {
	if mime == "" {
		mime = "image/jpeg"
	}
	var out domain.Media
	body := bytes.NewReader(data)
	if _, err := c.do(ctx, "blog.UploadMedia", http.MethodPost, "/media", nil, body, mime, &out, header{
		"Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename),
	}); err != nil {
		return domain.Media{}, err
	}
	return out, nil
}

// SetFeaturedMedia binds mediaID as the post's cover image.
func (c *Client) SetFeaturedMedia(ctx context.Context, postID, mediaID int) (domain.Post, error) {
	var out rawPost
	payload := map[string]int{"featured_media": mediaID}
	if _, err := c.do(ctx, "blog.SetFeaturedMedia", http.MethodPost, "/posts/"+strconv.Itoa(postID), nil, payload, "", &out); err != nil {
		return domain.Post{}, err
	}
	return out.toDomain(), nil
}

// SetPostCategories replaces the post's categories.
func (c *Client) SetPostCategories(ctx context.Context, postID int, ids []int) error {
	return c.setTerms(ctx, "blog.SetPostCategories", postID, "categories", ids)
}

// SetPostTags replaces the post's tags.
func (c *Client) SetPostTags(ctx context.Context, postID int, ids []int) error {
	return c.setTerms(ctx, "blog.SetPostTags", postID, "tags", ids)
}

func (c *Client) setTerms(ctx context.Context, op string, postID int, field string, ids []int) error {
	if ids == nil {
		ids = []int{}
	}
	payload := map[string][]int{field: ids}
	_, err := c.do(ctx, op, http.MethodPost, "/posts/"+strconv.Itoa(postID), nil, payload, "", nil)
	return err
}

// ListCategories fetches every category, following pagination.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Term, error) {
	return c.listTerms(ctx, "blog.ListCategories", "/categories")
}

// ListTags fetches every tag, following pagination.
func (c *Client) ListTags(ctx context.Context) ([]domain.Term, error) {
	return c.listTerms(ctx, "blog.ListTags", "/tags")
}

func (c *Client) listTerms(ctx context.Context, op, path string) ([]domain.Term, error) {
	var all []domain.Term
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(termPerPage))
		q.Set("page", strconv.Itoa(page))
		q.Set("hide_empty", "false")

		var batch []domain.Term
		resp, err := c.do(ctx, op, http.MethodGet, path, q, nil, "", &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		totalPages, _ := strconv.Atoi(resp.Header.Get("X-WP-TotalPages"))
		if len(batch) < termPerPage || page >= totalPages {
			return all, nil
		}
	}
}

// GetCategoryBySlug returns the category with slug, or nil.
func (c *Client) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Term, error) {
	return c.termBySlug(ctx, "blog.GetCategoryBySlug", "/categories", slug)
}

// GetTagBySlug returns the tag with slug, or nil.
func (c *Client) GetTagBySlug(ctx context.Context, slug string) (*domain.Term, error) {
	return c.termBySlug(ctx, "blog.GetTagBySlug", "/tags", slug)
}

func (c *Client) termBySlug(ctx context.Context, op, path, slug string) (*domain.Term, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("hide_empty", "false")
	var terms []domain.Term
	if _, err := c.do(ctx, op, http.MethodGet, path, q, nil, "", &terms); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, nil
	}
	return &terms[0], nil
}

// CreateCategory creates a category; description may be empty.
func (c *Client) CreateCategory(ctx context.Context, name, slug, description string) (domain.Term, error) {
	payload := map[string]string{"name": name, "slug": slug}
	if description != "" {
		payload["description"] = description
	}
	var out domain.Term
	if _, err := c.do(ctx, "blog.CreateCategory", http.MethodPost, "/categories", nil, payload, "", &out); err != nil {
		return domain.Term{}, err
	}
	return out, nil
}

// CreateTag creates a tag.
func (c *Client) CreateTag(ctx context.Context, name, slug string) (domain.Term, error) {
	payload := map[string]string{"name": name, "slug": slug}
	var out domain.Term
	if _, err := c.do(ctx, "blog.CreateTag", http.MethodPost, "/tags", nil, payload, "", &out); err != nil {
		return domain.Term{}, err
	}
	return out, nil
}

func postPayload(in domain.PostInput) map[string]string {
	payload := map[string]string{}
	if in.Title != nil {
		payload["title"] = *in.Title
	}
	if in.Content != nil {
		payload["content"] = *in.Content
	}
	if in.Status != nil {
		payload["status"] = string(*in.Status)
	}
	if in.Slug != nil {
		payload["slug"] = *in.Slug
	}
	if in.Excerpt != nil {
		payload["excerpt"] = *in.Excerpt
	}
	return payload
}

type header struct{ key, value string }

type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TermID json.RawMessage `json:"term_id"`
	} `json:"data"`
}

// cause turns the error body into the wrapped error, surfacing the id of an
// existing term when WordPress reports term_exists.
func (e wpError) cause() error {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Code == "term_exists" {
		if id, err := strconv.Atoi(strings.Trim(string(e.Data.TermID), `"`)); err == nil && id > 0 {
			return &domain.TermExistsError{TermID: id, Message: msg}
		}
	}
	return errors.New(msg)
}

// do sends a request. body is JSON-encoded unless it is an io.Reader, in
// which case contentType is used verbatim.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body any, contentType string, dst any, extra ...header) (*http.Response, error) {
	endpoint := c.baseURL + apiPrefix + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, domain.NewError(domain.KindProtocol, op, err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, domain.NewError(domain.KindProtocol, op, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, h := range extra {
		req.Header.Set(h.key, h.value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewError(domain.KindTransient, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindTransient, op, err)
	}

	if resp.StatusCode >= 400 {
		var wpErr wpError
		_ = json.Unmarshal(raw, &wpErr)
		c.log.Debug("blog request failed", "op", op, "status", resp.StatusCode, "code", wpErr.Code)
		return resp, &domain.Error{
			Kind:   domain.KindForStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Err:    wpErr.cause(),
		}
	}

	if dst != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return resp, domain.NewError(domain.KindProtocol, op, fmt.Errorf("decode: %w", err))
		}
	}
	return resp, nil
}
