// Package client is a typed HTTP client for the knowledge article endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/config"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/knowledgehub/backend/internal/session"
	"go.uber.org/zap"
)

const (
	articlesPath = "/api/v1/knowledge-articles"

	// CallerIDHeader repeats the session's caller id on every authenticated request
	CallerIDHeader = "X-User-ID"

	// Images are inlined as base64, so responses can be large
	maxResponseSize = 64 << 20

	genericFailure = "something went wrong, please try again"
)

// SubmitPayload is the content of a new article
type SubmitPayload struct {
	Title            string
	Description      string
	Cover            models.ImageUpload
	SupportingImages []models.ImageUpload
}

// UpdatePayload is an edit of a pending article. Nil Cover keeps the current one.
type UpdatePayload struct {
	Title            string
	Description      string
	Cover            *models.ImageUpload
	RemoveImageIDs   []int
	SupportingImages []models.ImageUpload
}

// ListQuery narrows a listing. Zero values are not sent.
type ListQuery struct {
	Status  string
	OwnerID int
	Search  string
}

// Client calls the Repository Service on behalf of the session's caller
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Session
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the service at baseURL
func New(baseURL string, sess *session.Session, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    sess,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the environment-backed client configuration
func NewFromConfig(cfg *config.ClientConfig, sess *session.Session, logger *zap.Logger) *Client {
	return New(cfg.BaseURL, sess, logger, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
}

// Submit creates a pending article
func (c *Client) Submit(ctx context.Context, p SubmitPayload) (*models.MutationResponse, error) {
	const op = "client.Submit"
	if err := c.requireSession(op); err != nil {
		return nil, err
	}

	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		if err := writeFields(w, map[string]string{
			"title":       p.Title,
			"description": p.Description,
			"status":      string(models.StatusPending),
		}); err != nil {
			return err
		}
		if err := writeFile(w, "coverImage", p.Cover); err != nil {
			return err
		}
		for _, img := range p.SupportingImages {
			if err := writeFile(w, "supportingImages[]", img); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Transport(op, "failed to prepare upload", err)
	}

	var resp models.MutationResponse
	if err := c.do(ctx, op, http.MethodPost, articlesPath, body, contentType, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns the articles visible to the caller
func (c *Client) List(ctx context.Context, q ListQuery) ([]models.Article, error) {
	const op = "client.List"

	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.OwnerID > 0 {
		values.Set("ownerId", strconv.Itoa(q.OwnerID))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}

	path := articlesPath
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var articles []models.Article
	if err := c.do(ctx, op, http.MethodGet, path, nil, "", &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// ListPublished returns every published article. No session is required.
func (c *Client) ListPublished(ctx context.Context) ([]models.Article, error) {
	return c.List(ctx, ListQuery{Status: string(models.StatusPublished)})
}

// Get returns one article
func (c *Client) Get(ctx context.Context, id int) (*models.Article, error) {
	const op = "client.Get"

	var article models.Article
	if err := c.do(ctx, op, http.MethodGet, articlePath(id), nil, "", &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// Update edits a pending article. removeImageIds is sent only when non-empty.
func (c *Client) Update(ctx context.Context, id int, p UpdatePayload) (*models.MutationResponse, error) {
	const op = "client.Update"
	if err := c.requireSession(op); err != nil {
		return nil, err
	}

	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		fields := map[string]string{
			"title":       p.Title,
			"description": p.Description,
		}
		if len(p.RemoveImageIDs) > 0 {
			ids, err := json.Marshal(p.RemoveImageIDs)
			if err != nil {
				return err
			}
			fields["removeImageIds"] = string(ids)
		}
		if err := writeFields(w, fields); err != nil {
			return err
		}
		if p.Cover != nil {
			if err := writeFile(w, "coverImage", *p.Cover); err != nil {
				return err
			}
		}
		for _, img := range p.SupportingImages {
			if err := writeFile(w, "supportingImages[]", img); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Transport(op, "failed to prepare upload", err)
	}

	var resp models.MutationResponse
	if err := c.do(ctx, op, http.MethodPut, articlePath(id), body, contentType, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Decide publishes or rejects a pending article
func (c *Client) Decide(ctx context.Context, id int, status models.Status) (*models.MutationResponse, error) {
	const op = "client.Decide"
	if err := c.requireSession(op); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(models.DecisionRequest{Status: status})
	if err != nil {
		return nil, apperrors.Transport(op, "failed to prepare request", err)
	}

	var resp models.MutationResponse
	if err := c.do(ctx, op, http.MethodPatch, articlePath(id)+"/status", bytes.NewReader(payload), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) requireSession(op string) error {
	if !c.session.Authenticated() {
		return apperrors.Authentication(op, "please sign in to continue")
	}
	return nil
}

// do sends a request and decodes a 2xx JSON body into out
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Transport(op, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+c.session.Token())
		req.Header.Set(CallerIDHeader, strconv.Itoa(c.session.CallerID()))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.Error(err))
		return apperrors.Transport(op, "unable to reach the server", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return apperrors.Transport(op, "failed to read response", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Debug("request rejected",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return apperrors.FromStatus(op, resp.StatusCode, serverMessage(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Transport(op, "unexpected response from server", err)
	}
	return nil
}

// serverMessage extracts the error text of a failed response
func serverMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return genericFailure
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Message != "" {
		return payload.Message
	}
	return genericFailure
}

func articlePath(id int) string {
	return fmt.Sprintf("%s/%d", articlesPath, id)
}

func encodeMultipart(write func(w *multipart.Writer) error) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if err := write(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func writeFields(w *multipart.Writer, fields map[string]string) error {
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return err
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// writeFile writes an image part carrying its own content type
func writeFile(w *multipart.Writer, field string, img models.ImageUpload) error {
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(img.Filename)))
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(img.Data)
	return err
}
