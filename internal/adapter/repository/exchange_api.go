package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"fx-history-service/internal/domain/model"
	"fx-history-service/pkg/logger"
	"fx-history-service/pkg/retry"
	"fx-history-service/pkg/retry/backoff"
)

var (
	ErrUpstreamUnavailable = errors.New("rate provider unavailable")
	ErrUpstreamResponse    = errors.New("rate provider returned an invalid response")
)

const apiKeyHeader = "apikey"

// ExchangeAPI fetches the latest USD-based snapshot from an HTTP rate
// provider. Transport errors and 5xx responses are retried briefly; callers
// own any longer retry schedule.
type ExchangeAPI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retrier    retry.Retrier
	log        *logger.Logger
}

type latestRatesResponse struct {
	Success   *bool              `json:"success,omitempty"`
	Base      string             `json:"base"`
	Date      string             `json:"date,omitempty"`
	Timestamp int64              `json:"timestamp,omitempty"`
	Rates     map[string]float64 `json:"rates"`
}

func NewExchangeAPI(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *ExchangeAPI {
	return &ExchangeAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retrier: retry.NewRetrier(
			retry.Limit(2),
			retry.RetriableErrors(ErrUpstreamUnavailable),
			retry.BackoffWithJitter(backoff.Exponential(200*time.Millisecond, 2), time.Second, 0.1),
		),
		log: log,
	}
}

func (e *ExchangeAPI) FetchLatest(ctx context.Context) (*model.Snapshot, error) {
	var snapshot *model.Snapshot

	attempts, err := e.retrier.Retry(ctx, func(ctx context.Context) error {
		var err error
		snapshot, err = e.fetchLatest(ctx)
		return err
	})
	if err != nil {
		e.log.Error("Failed to fetch latest rates", "error", err, "attempts", attempts)
		return nil, err
	}

	e.log.Debug("Fetched latest rates", "currencies", len(snapshot.Rates), "attempts", attempts)
	return snapshot, nil
}

func (e *ExchangeAPI) fetchLatest(ctx context.Context) (*model.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/latest?base=%s", e.baseURL, url.QueryEscape(model.USD.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set(apiKeyHeader, e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrUpstreamUnavailable, "failed to send request: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, errors.Wrapf(ErrUpstreamUnavailable, "status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Wrapf(ErrUpstreamResponse, "status %d", resp.StatusCode)
	}

	var body latestRatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrapf(ErrUpstreamResponse, "failed to decode response: %v", err)
	}
	if body.Success != nil && !*body.Success {
		return nil, errors.Wrap(ErrUpstreamResponse, "provider reported failure")
	}
	if len(body.Rates) == 0 {
		return nil, errors.Wrap(ErrUpstreamResponse, "no rates in response")
	}

	return body.toSnapshot(), nil
}

func (r *latestRatesResponse) toSnapshot() *model.Snapshot {
	base := model.NewCurrency(r.Base)
	if base == "" {
		base = model.USD
	}

	rates := make(map[model.Currency]float64, len(r.Rates))
	for code, rate := range r.Rates {
		rates[model.NewCurrency(code)] = rate
	}

	var ts time.Time
	switch {
	case r.Timestamp > 0:
		ts = time.Unix(r.Timestamp, 0).UTC()
	case r.Date != "":
		if d, err := time.Parse(model.DateLayout, r.Date); err == nil {
			ts = d
		}
	}

	return &model.Snapshot{Base: base, Rates: rates, Timestamp: ts}
}
