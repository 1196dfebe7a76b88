// Package loki implements label lookups against the Loki HTTP API.
package loki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promconfig "github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
	"golang.org/x/time/rate"
)

const (
	labelsEndpoint      = "/loki/api/v1/labels"
	labelValuesEndpoint = "/loki/api/v1/label/:name/values"

	DefaultTimeout  = 10 * time.Second
	DefaultLookback = time.Hour
)

// Config describes how to reach a Loki (or Loki-compatible gateway) endpoint.
type Config struct {
	URL         string
	OrgID       string // sent as X-Scope-OrgID for multi-tenant installs
	Username    string
	Password    string
	BearerToken string
	Timeout     time.Duration
	// Lookback is the time range searched for labels, ending now.
	Lookback time.Duration
	// QPS limits outgoing requests. Zero means unlimited.
	QPS float64
}

// Client is a label source backed by Loki. It is safe for concurrent use.
type Client struct {
	api      api.Client
	timeout  time.Duration
	lookback time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
}

// APIError is a non-success answer from Loki.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("loki API HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Type)
	}
	return fmt.Sprintf("loki API HTTP %d: %s", e.StatusCode, e.Message)
}

type apiResponse struct {
	Status    string   `json:"status"`
	Data      []string `json:"data"`
	Error     string   `json:"error"`
	ErrorType string   `json:"errorType"`
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("loki URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid loki URL %q: %w", cfg.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid loki URL %q: scheme must be http or https", cfg.URL)
	}

	rt, err := newRoundTripper(cfg)
	if err != nil {
		return nil, err
	}
	c, err := api.NewClient(api.Config{
		Address:      strings.TrimRight(cfg.URL, "/"),
		RoundTripper: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating loki client: %w", err)
	}

	cl := &Client{
		api:      c,
		timeout:  cfg.Timeout,
		lookback: cfg.Lookback,
		now:      time.Now,
	}
	if cl.timeout <= 0 {
		cl.timeout = DefaultTimeout
	}
	if cl.lookback <= 0 {
		cl.lookback = DefaultLookback
	}
	if cfg.QPS > 0 {
		cl.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}
	return cl, nil
}

func newRoundTripper(cfg Config) (http.RoundTripper, error) {
	hc := promconfig.DefaultHTTPClientConfig
	switch {
	case cfg.BearerToken != "" && (cfg.Username != "" || cfg.Password != ""):
		return nil, errors.New("basic auth and bearer token are mutually exclusive")
	case cfg.BearerToken != "":
		hc.Authorization = &promconfig.Authorization{
			Type:        "Bearer",
			Credentials: promconfig.Secret(cfg.BearerToken),
		}
	case cfg.Username != "" || cfg.Password != "":
		hc.BasicAuth = &promconfig.BasicAuth{
			Username: cfg.Username,
			Password: promconfig.Secret(cfg.Password),
		}
	}
	if err := hc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid HTTP client config: %w", err)
	}
	rt, err := promconfig.NewRoundTripperFromConfig(hc, "logql-cli")
	if err != nil {
		return nil, fmt.Errorf("creating HTTP transport: %w", err)
	}
	if cfg.OrgID != "" {
		rt = &tenantRoundTripper{orgID: cfg.OrgID, next: rt}
	}
	return rt, nil
}

type tenantRoundTripper struct {
	orgID string
	next  http.RoundTripper
}

func (t *tenantRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Scope-OrgID", t.orgID)
	return t.next.RoundTrip(req)
}

// Labels returns the label names seen in the lookback window, scoped to
// streams matching query when it is not empty.
func (c *Client) Labels(ctx context.Context, query string) ([]string, error) {
	return c.get(ctx, c.api.URL(labelsEndpoint, nil), query)
}

// LabelValues returns the values of label name, scoped like Labels.
func (c *Client) LabelValues(ctx context.Context, name, query string) ([]string, error) {
	if !model.LegacyValidation.IsValidLabelName(name) {
		return nil, fmt.Errorf("invalid label name %q", name)
	}
	return c.get(ctx, c.api.URL(labelValuesEndpoint, map[string]string{"name": name}), query)
}

func (c *Client) get(ctx context.Context, u *url.URL, query string) ([]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	end := c.now()
	q := u.Query()
	q.Set("start", strconv.FormatInt(end.Add(-c.lookback).UnixNano(), 10))
	q.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	if query != "" {
		q.Set("query", query)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, body, err := c.api.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("loki request %s: %w", u.Path, err)
	}
	return decode(resp.StatusCode, body)
}

func decode(status int, body []byte) ([]string, error) {
	var ar apiResponse
	jsonErr := json.Unmarshal(body, &ar)
	if status/100 != 2 {
		apiErr := &APIError{StatusCode: status, Type: ar.ErrorType, Message: ar.Error}
		if jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("decoding loki response: %w", jsonErr)
	}
	if !strings.EqualFold(ar.Status, "success") {
		return nil, &APIError{StatusCode: status, Type: ar.ErrorType, Message: ar.Error}
	}
	if ar.Data == nil {
		return []string{}, nil
	}
	return ar.Data, nil
}
