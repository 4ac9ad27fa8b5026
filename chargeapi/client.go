package chargeapi

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

	"github.com/google/uuid"

	"chargecal/internal/timeutil"
)

const DefaultTimeout = 30 * time.Second

// Client is the remote persistence contract of time charges, leaves and holidays.
// Every call is all-or-nothing.
type Client interface {
	ListTimeCharges(ctx context.Context, year int, month time.Month) ([]TimeCharge, error)
	ListLeaves(ctx context.Context, periodStart, periodEnd time.Time, year int) ([]Leave, error)
	ListHolidays(ctx context.Context, periodStart, periodEnd time.Time, year int) (Holidays, error)
	CreateTimeCharge(ctx context.Context, payload Payload) (MutationResult, error)
	UpdateTimeCharge(ctx context.Context, id string, payload Payload) (MutationResult, error)
	DeleteTimeCharge(ctx context.Context, id string) error
	ReopenTimeCharges(ctx context.Context, ids []string) error
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient httpDoer
}

type HTTPClient struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient httpDoer
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func NewClient(cfg ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	parsedBase, err := url.Parse(baseURL)
	if err != nil || parsedBase.Scheme == "" || parsedBase.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	doer := cfg.HTTPClient
	if doer == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		doer = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		httpClient: doer,
	}, nil
}

func (c *HTTPClient) ListTimeCharges(ctx context.Context, year int, month time.Month) ([]TimeCharge, error) {
	query := url.Values{}
	query.Set("year", strconv.Itoa(year))
	query.Set("month", strconv.Itoa(int(month)))

	var out []TimeCharge
	if err := c.doJSON(ctx, http.MethodGet, "/api/time-charges?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListLeaves(ctx context.Context, periodStart, periodEnd time.Time, year int) ([]Leave, error) {
	var out []Leave
	if err := c.doJSON(ctx, http.MethodGet, "/api/leaves?"+rangeQuery(periodStart, periodEnd, year), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListHolidays(ctx context.Context, periodStart, periodEnd time.Time, year int) (Holidays, error) {
	var out Holidays
	if err := c.doJSON(ctx, http.MethodGet, "/api/holidays?"+rangeQuery(periodStart, periodEnd, year), nil, &out); err != nil {
		return Holidays{}, err
	}
	return out, nil
}

func (c *HTTPClient) CreateTimeCharge(ctx context.Context, payload Payload) (MutationResult, error) {
	if err := payload.Validate(); err != nil {
		return MutationResult{}, err
	}
	payload.ID = ""

	var out MutationResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/time-charges", payload, &out); err != nil {
		return MutationResult{}, err
	}
	return out, nil
}

func (c *HTTPClient) UpdateTimeCharge(ctx context.Context, id string, payload Payload) (MutationResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return MutationResult{}, errors.New("time charge id is required for update")
	}
	payload.ID = FlexibleID(id)
	if err := payload.Validate(); err != nil {
		return MutationResult{}, err
	}

	var out MutationResult
	if err := c.doJSON(ctx, http.MethodPut, "/api/time-charges/"+url.PathEscape(id), payload, &out); err != nil {
		return MutationResult{}, err
	}
	if out.ID.IsZero() {
		out.ID = payload.ID
	}
	return out, nil
}

func (c *HTTPClient) DeleteTimeCharge(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("time charge id is required for delete")
	}
	return c.doJSON(ctx, http.MethodDelete, "/api/time-charges/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ReopenTimeCharges(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return errors.New("reopen requires at least one id")
	}
	body := reopenRequest{IDs: make([]FlexibleID, 0, len(ids))}
	for _, id := range ids {
		body.IDs = append(body.IDs, FlexibleID(id))
	}
	return c.doJSON(ctx, http.MethodPost, "/api/time-charges/reopen", body, nil)
}

func rangeQuery(periodStart, periodEnd time.Time, year int) string {
	query := url.Values{}
	query.Set("start", periodStart.Format(timeutil.DateLayout))
	query.Set("end", periodEnd.Format(timeutil.DateLayout))
	query.Set("year", strconv.Itoa(year))
	return query.Encode()
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpointPath string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpointPath, bodyReader)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", method, endpointPath, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, endpointPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     method,
			Path:       endpointPath,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response %s %s: %w", method, endpointPath, err)
	}
	return nil
}
