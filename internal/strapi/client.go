// Package strapi talks to the external content store: natural-key
// lookups, create/update writes and cover uploads, plus the reconciler
// that decides which of those to perform for each screening.
package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/marquee/internal/common"
	"github.com/ternarybob/marquee/internal/interfaces"
)

// APIError carries the store's HTTP failure details
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store API error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Client implements interfaces.ContentStore against a Strapi-style REST
// API. All calls share one rate limiter so a large batch cannot hammer
// the store.
type Client struct {
	baseURL    string
	token      string
	collection string
	contentUID string
	locale     string

	httpClient     *http.Client
	limiter        *rate.Limiter
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	logger         arbor.ILogger
}

// ClientOption configures optional client behaviour
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, used by tests
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a store client from configuration
func NewClient(config common.StrapiConfig, logger arbor.ILogger, opts ...ClientOption) *Client {
	limit := rate.Limit(config.RateLimit)
	if config.RateLimit <= 0 {
		limit = rate.Inf
	}

	c := &Client{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		token:          config.Token,
		collection:     config.Collection,
		contentUID:     config.ContentUID,
		locale:         config.Locale,
		httpClient:     &http.Client{},
		limiter:        rate.NewLimiter(limit, 1),
		requestTimeout: config.RequestTimeoutDuration(),
		uploadTimeout:  config.UploadTimeoutDuration(),
		logger:         logger,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isoInstant renders an instant the way the store indexes dateStart
func isoInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// do performs one rate-limited request and returns the response body.
// Non-2xx statuses come back as *APIError with the store's error
// message when one is present.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, timeout time.Duration) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			Endpoint:   path,
		}
	}

	return respBody, nil
}

// errorMessage pulls the human-readable message out of a Strapi error
// envelope, falling back to the raw body
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Name    string `json:"name"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if runes := []rune(msg); len(runes) > 200 {
		msg = string(runes[:200])
	}
	return msg
}

type listEnvelope struct {
	Data []recordData `json:"data"`
}

type itemEnvelope struct {
	Data recordData `json:"data"`
}

type recordData struct {
	ID         int    `json:"id"`
	DocumentID string `json:"documentId"`
	Slug       string `json:"slug"`
	DateStart  string `json:"dateStart"`
	Place      int    `json:"place"`
}

// FindScreening looks up zero-or-one record by (slug, start, venue).
// All three components filter the query, so a slug collision between
// venues or days never matches the wrong record.
func (c *Client) FindScreening(ctx context.Context, slug string, start time.Time, venueID int) (*interfaces.StoreRecord, error) {
	query := url.Values{}
	query.Set("filters[slug][$eq]", slug)
	query.Set("filters[dateStart][$eq]", isoInstant(start))
	query.Set("filters[place][id][$eq]", strconv.Itoa(venueID))
	query.Set("pagination[pageSize]", "1")
	if c.locale != "" {
		query.Set("locale", c.locale)
	}

	body, err := c.do(ctx, http.MethodGet, "/api/"+c.collection, query, nil, "", c.requestTimeout)
	if err != nil {
		return nil, err
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse lookup response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}

	record := envelope.Data[0]
	found := &interfaces.StoreRecord{
		ID:         record.ID,
		DocumentID: record.DocumentID,
		Slug:       record.Slug,
		VenueID:    venueID,
	}
	if parsed, err := time.Parse(time.RFC3339, record.DateStart); err == nil {
		found.Start = parsed
	}
	return found, nil
}

// CreateScreening creates a record and returns its id. A 400 whose
// message mentions uniqueness maps to ErrUniqueConflict; the record was
// created by an earlier run under the same natural key.
func (c *Client) CreateScreening(ctx context.Context, fields map[string]interface{}) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{"data": fields})
	if err != nil {
		return 0, fmt.Errorf("failed to encode create payload: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/"+c.collection, nil, bytes.NewReader(payload), "application/json", c.requestTimeout)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "unique") {
			return 0, fmt.Errorf("%w: %s", interfaces.ErrUniqueConflict, apiErr.Message)
		}
		return 0, err
	}

	var envelope itemEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("failed to parse create response: %w", err)
	}
	return envelope.Data.ID, nil
}

// UpdateScreening updates a record by id. A 404 maps to
// ErrRecordNotFound; the record was deleted between lookup and write.
func (c *Client) UpdateScreening(ctx context.Context, id int, fields map[string]interface{}) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{"data": fields})
	if err != nil {
		return 0, fmt.Errorf("failed to encode update payload: %w", err)
	}

	query := url.Values{}
	if c.locale != "" {
		query.Set("locale", c.locale)
	}

	path := fmt.Sprintf("/api/%s/%d", c.collection, id)
	body, err := c.do(ctx, http.MethodPut, path, query, bytes.NewReader(payload), "application/json", c.requestTimeout)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("%w: record %d", interfaces.ErrRecordNotFound, id)
		}
		return 0, err
	}

	var envelope itemEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("failed to parse update response: %w", err)
	}
	if envelope.Data.ID == 0 {
		return id, nil
	}
	return envelope.Data.ID, nil
}

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
