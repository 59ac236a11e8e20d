package apisports

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/provider"
)

const ProviderName = "api-sports"

// envelope is the common wrapper of every provider response.
type envelope struct {
	Errors   json.RawMessage `json:"errors"`
	Results  int             `json:"results"`
	Paging   paging          `json:"paging"`
	Response json.RawMessage `json:"response"`
}

type paging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Client implements provider.Gateway against an API-Football compatible API.
type Client struct {
	client   *resty.Client
	limiter  *rate.Limiter
	maxPages int
}

// NewClient creates a provider client from an explicit configuration value.
// Parameters:
//   - cfg: provider settings; copied, never mutated.
//
// Returns:
//   - *Client: initialized client.
func NewClient(cfg config.ProviderConfig) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		header := cfg.AuthHeader
		if header == "" {
			header = "x-apisports-key"
		}
		client.SetHeader(header, cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	return &Client{
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		maxPages: maxPages,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

// EntityTypes lists the entity types with a known endpoint.
func (c *Client) EntityTypes() []domain.EntityType {
	types := make([]domain.EntityType, 0, len(endpoints))
	for _, t := range domain.AllEntityTypes {
		if _, ok := endpoints[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// Fetch walks every page of one entity type and normalizes the rows.
func (c *Client) Fetch(ctx context.Context, entityType domain.EntityType, params provider.Params) ([]domain.ProviderRecord, error) {
	ep, ok := endpoints[entityType]
	if !ok {
		return nil, domain.MarkUnknownEntityType(string(entityType))
	}

	startTime := time.Now()
	var records []domain.ProviderRecord
	page := 1
	for {
		env, err := c.get(ctx, ep.path, params, page)
		if err != nil {
			return nil, err
		}

		rows, err := ep.normalize(env.Response, params)
		if err != nil {
			return nil, domain.MarkProviderRejected(err, "failed to decode %s page %d", entityType, page)
		}
		records = append(records, rows...)

		if env.Paging.Total <= page || page >= c.maxPages {
			break
		}
		page++
	}

	logger.With(logger.Fields{
		logger.FieldEntityType: string(entityType),
		logger.FieldCount:      len(records),
		logger.FieldDurationMs: time.Since(startTime).Milliseconds(),
	}).Debug(ctx, "[Provider] Fetched %s", entityType)

	return records, nil
}

// get performs one rate-limited request and classifies the failure modes.
func (c *Client) get(ctx context.Context, path string, params provider.Params, page int) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.MarkProviderUnavailable(err, "rate limiter wait for %s", path)
	}

	req := c.client.R().SetContext(ctx)
	for k, v := range params {
		req.SetQueryParam(k, v)
	}
	if page > 1 {
		req.SetQueryParam("page", strconv.Itoa(page))
	}

	var env envelope
	resp, err := req.SetResult(&env).Get(path)
	if err != nil {
		return nil, domain.MarkProviderUnavailable(err, "request %s", path)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, domain.MarkProviderAuth(errors.Newf("status %d", status), "request %s", path)
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, domain.MarkProviderUnavailable(errors.Newf("status %d", status), "request %s", path)
	case status != http.StatusOK:
		return nil, domain.MarkProviderRejected(errors.Newf("status %d", status), "request %s", path)
	}

	if err := classifyBodyErrors(env.Errors); err != nil {
		return nil, errors.Wrapf(err, "request %s", path)
	}
	return &env, nil
}

// classifyBodyErrors inspects the "errors" field, which is either an empty array
// or an object keyed by the failing concern.
func classifyBodyErrors(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		// An empty array or an unrecognised shape means no error was reported.
		return nil
	}

	if msg, ok := fields["token"]; ok {
		return domain.MarkProviderAuth(errors.New(msg), "provider rejected token")
	}
	for _, key := range []string{"requests", "rateLimit"} {
		if msg, ok := fields[key]; ok {
			return domain.MarkProviderUnavailable(errors.New(msg), "provider throttled")
		}
	}
	for key, msg := range fields {
		return domain.MarkProviderRejected(errors.New(msg), "provider rejected %s", key)
	}
	return nil
}
