package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/guregu/null/v6"
	"github.com/vjranagit/mbseries/pkg/types"
	"golang.org/x/time/rate"
)

// ClientConfig configures the HTTP gateway client.
type ClientConfig struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
	// Backoff is the wait before the first retry; it doubles on each attempt.
	Backoff time.Duration
}

// Client talks JSON to a provider gateway over HTTP.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	limiter    *rate.Limiter
}

// NewClient creates a gateway client.
func NewClient(cfg ClientConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// wireSeries is the gateway's JSON form of a series. Missing values travel
// as null.
type wireSeries struct {
	Name         string       `json:"name"`
	Title        string       `json:"title,omitempty"`
	Frequency    string       `json:"frequency,omitempty"`
	Dates        []types.Date `json:"dates"`
	Values       []null.Float `json:"values"`
	IsError      bool         `json:"is_error,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

func (w *wireSeries) toRaw() *types.RawSeries {
	s := &types.RawSeries{
		Name:         w.Name,
		Title:        w.Title,
		Frequency:    w.Frequency,
		Dates:        w.Dates,
		Values:       make([]float64, len(w.Values)),
		IsError:      w.IsError,
		ErrorMessage: w.ErrorMessage,
	}
	for i, v := range w.Values {
		if v.Valid {
			s.Values[i] = v.Float64
		} else {
			s.Values[i] = math.NaN()
		}
	}
	if !s.IsError {
		if err := s.Validate(); err != nil {
			s.IsError = true
			s.ErrorMessage = err.Error()
		}
	}
	return s
}

func toWire(s *types.RawSeries) *wireSeries {
	w := &wireSeries{
		Name:         s.Name,
		Title:        s.Title,
		Frequency:    s.Frequency,
		Dates:        s.Dates,
		Values:       make([]null.Float, len(s.Values)),
		IsError:      s.IsError,
		ErrorMessage: s.ErrorMessage,
	}
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			w.Values[i] = null.FloatFrom(v)
		}
	}
	return w
}

type seriesResponse struct {
	Series []*wireSeries `json:"series"`
}

// FetchOne implements Provider.FetchOne
func (c *Client) FetchOne(ctx context.Context, id string) (*types.RawSeries, error) {
	out, err := c.FetchMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// FetchMany implements Provider.FetchMany
func (c *Client) FetchMany(ctx context.Context, ids []string) ([]*types.RawSeries, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id)
	}

	var res seriesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/series?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return c.unwrapSeries(ids, res.Series)
}

// FetchUnified implements Provider.FetchUnified
func (c *Client) FetchUnified(ctx context.Context, req *UnifiedRequest) ([]*types.RawSeries, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res seriesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/series/unified", req, &res); err != nil {
		return nil, err
	}
	return c.unwrapSeries(req.IDs, res.Series)
}

func (c *Client) unwrapSeries(ids []string, ws []*wireSeries) ([]*types.RawSeries, error) {
	if len(ws) != len(ids) {
		return nil, fmt.Errorf("gateway returned %d series for %d identifiers", len(ws), len(ids))
	}
	out := make([]*types.RawSeries, len(ws))
	for i, w := range ws {
		if w == nil {
			out[i] = &types.RawSeries{Name: ids[i], IsError: true, ErrorMessage: "missing from gateway response"}
			continue
		}
		out[i] = w.toRaw()
	}
	return out, nil
}

type historyResponse struct {
	HasRevisions bool   `json:"has_revisions"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FetchWithRevisions implements Provider.FetchWithRevisions
func (c *Client) FetchWithRevisions(ctx context.Context, id string) (History, error) {
	var res historyResponse
	if err := c.do(ctx, http.MethodGet, "/v1/series/"+url.PathEscape(id)+"/revisions", nil, &res); err != nil {
		return nil, err
	}
	return &clientHistory{client: c, id: id, res: res}, nil
}

type clientHistory struct {
	client *Client
	id     string
	res    historyResponse
}

func (h *clientHistory) HasRevisions() bool   { return h.res.HasRevisions }
func (h *clientHistory) ErrorMessage() string { return h.res.ErrorMessage }

func (h *clientHistory) Release(ctx context.Context, n int) (*types.RawSeries, error) {
	var w wireSeries
	path := "/v1/series/" + url.PathEscape(h.id) + "/releases/" + strconv.Itoa(n)
	if err := h.client.do(ctx, http.MethodGet, path, nil, &w); err != nil {
		return nil, err
	}
	return w.toRaw(), nil
}

// FetchEntity implements Provider.FetchEntity
func (c *Client) FetchEntity(ctx context.Context, id string) (*types.Entity, error) {
	var e types.Entity
	if err := c.do(ctx, http.MethodGet, "/v1/entities/"+url.PathEscape(id), nil, &e); err != nil {
		return nil, err
	}
	if e.Metadata == nil {
		e.Metadata = types.Metadata{}
	}
	return &e, nil
}

// Search implements Provider.Search
func (c *Client) Search(ctx context.Context, q *SearchQuery) (*types.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}

	var res types.SearchResult
	if err := c.do(ctx, http.MethodPost, "/v1/search", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PresentationText implements Provider.PresentationText
func (c *Client) PresentationText(ctx context.Context, key, value string) (string, error) {
	var res struct {
		Text string `json:"text"`
	}
	path := "/v1/metadata/" + url.PathEscape(key) + "/presentation?value=" + url.QueryEscape(value)
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return "", err
	}
	return res.Text, nil
}

// statusError is a non-200 gateway reply.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// decodeError is a 200 reply whose body is not the expected JSON.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.err)
}

func (e *decodeError) Unwrap() error { return e.err }

// do performs one logical request with rate limiting and retries on
// transport errors, 429 and 5xx.
func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		if i > 0 {
			backoff := c.cfg.Backoff * time.Duration(1<<uint(i-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.attempt(ctx, method, path, payload, target)
		if err == nil {
			return nil
		}

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return err
		}
		var de *decodeError
		if errors.As(err, &de) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &decodeError{err: err}
	}
	return nil
}
