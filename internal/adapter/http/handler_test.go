package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/metrics"
	"fx-history-service/internal/service"
	"fx-history-service/pkg/logger"
)

type MockHistoricalRateService struct {
	GetHistoricalRatesFunc func(ctx context.Context, pair model.CurrencyPair, frame model.TimeFrame) (model.RateSeries, error)
}

func (m *MockHistoricalRateService) GetHistoricalRates(ctx context.Context, pair model.CurrencyPair, frame model.TimeFrame) (model.RateSeries, error) {
	return m.GetHistoricalRatesFunc(ctx, pair, frame)
}

type MockRateIngestor struct {
	RunFunc func(ctx context.Context) error
}

func (m *MockRateIngestor) Run(ctx context.Context) error {
	return m.RunFunc(ctx)
}

var eurGBP = model.RateSeries{
	{Date: "2024-03-02", ExchangeRate: 0.8667},
	{Date: "2024-03-01", ExchangeRate: 0.8681},
}

func newTestRouter(svc *MockHistoricalRateService, ing *MockRateIngestor) (http.Handler, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	if ing == nil {
		ing = &MockRateIngestor{RunFunc: func(context.Context) error { return nil }}
	}
	router := NewRouter(NewHandler(svc, ing, logger.NewNop()), logger.NewNop(), m, reg)
	return router.SetupRoutes(), m
}

func TestHistoricalRates(t *testing.T) {
	testCases := []struct {
		name           string
		method         string
		target         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedPair   string
		expectedFrame  model.TimeFrame
	}{
		{
			name:           "POST success",
			method:         http.MethodPost,
			target:         "/api/v1/historical",
			body:           `{"currency_pair":"EUR_GBP","time_frame":"1M"}`,
			expectedStatus: http.StatusOK,
			expectedPair:   "EUR_GBP",
			expectedFrame:  "1M",
		},
		{
			name:           "GET success with normalisation",
			method:         http.MethodGet,
			target:         "/api/v1/historical?currency_pair=eur_gbp&time_frame=1m",
			expectedStatus: http.StatusOK,
			expectedPair:   "EUR_GBP",
			expectedFrame:  "1M",
		},
		{
			name:           "POST bad JSON",
			method:         http.MethodPost,
			target:         "/api/v1/historical",
			body:           `{"currency_pair":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing pair",
			method:         http.MethodGet,
			target:         "/api/v1/historical?time_frame=1M",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Malformed pair",
			method:         http.MethodPost,
			target:         "/api/v1/historical",
			body:           `{"currency_pair":"EURGBP","time_frame":"1M"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Service rejects pair",
			method:         http.MethodPost,
			target:         "/api/v1/historical",
			body:           `{"currency_pair":"USD_USD","time_frame":"1M"}`,
			serviceErr:     fmt.Errorf("%w: no history", service.ErrInvalidPair),
			expectedStatus: http.StatusBadRequest,
			expectedPair:   "USD_USD",
			expectedFrame:  "1M",
		},
		{
			name:           "Retrieval failure",
			method:         http.MethodPost,
			target:         "/api/v1/historical",
			body:           `{"currency_pair":"EUR_GBP","time_frame":"1Y"}`,
			serviceErr:     fmt.Errorf("%w: connection refused", service.ErrRetrieval),
			expectedStatus: http.StatusInternalServerError,
			expectedPair:   "EUR_GBP",
			expectedFrame:  "1Y",
		},
		{
			name:           "Wrong method",
			method:         http.MethodDelete,
			target:         "/api/v1/historical",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			svc := &MockHistoricalRateService{
				GetHistoricalRatesFunc: func(_ context.Context, pair model.CurrencyPair, frame model.TimeFrame) (model.RateSeries, error) {
					called = true
					assert.Equal(t, tc.expectedPair, pair.String())
					assert.Equal(t, tc.expectedFrame, frame)
					if tc.serviceErr != nil {
						return nil, tc.serviceErr
					}
					return eurGBP, nil
				},
			}
			handler, _ := newTestRouter(svc, nil)

			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, tc.expectedPair != "", called)

			if tc.expectedStatus == http.StatusOK {
				var resp struct {
					ExchangeRates []struct {
						Date         string  `json:"date"`
						ExchangeRate float64 `json:"exchange_rate"`
						Timestamp    string  `json:"timestamp"`
					} `json:"exchangeRates"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.Len(t, resp.ExchangeRates, 2)
				assert.Equal(t, "2024-03-02", resp.ExchangeRates[0].Date)
				assert.Equal(t, 0.8667, resp.ExchangeRates[0].ExchangeRate)
				assert.Equal(t, "2024-03-02", resp.ExchangeRates[0].Timestamp)
				assert.Equal(t, "2024-03-01", resp.ExchangeRates[1].Timestamp)
			} else if rec.Code != http.StatusMethodNotAllowed {
				var resp Response
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.NotEmpty(t, resp.Error)
				assert.NotContains(t, resp.Error, "connection refused")
			}
		})
	}
}

func TestHistoricalRates_EmptySeries(t *testing.T) {
	svc := &MockHistoricalRateService{
		GetHistoricalRatesFunc: func(context.Context, model.CurrencyPair, model.TimeFrame) (model.RateSeries, error) {
			return nil, nil
		},
	}
	handler, _ := newTestRouter(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/historical?currency_pair=USD_XAU", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exchangeRates":[]}`, rec.Body.String())
}

func TestRefreshRates(t *testing.T) {
	testCases := []struct {
		name           string
		runErr         error
		expectedStatus int
		expectedBody   string
	}{
		{"Success", nil, http.StatusOK, `"Data updated successfully"`},
		{"Retries exhausted", service.ErrIngestionRetryExhausted, http.StatusInternalServerError, `"Max retries reached. Error updating data."`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ing := &MockRateIngestor{RunFunc: func(context.Context) error { return tc.runErr }}
			handler, _ := newTestRouter(&MockHistoricalRateService{}, ing)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rates/refresh", nil))

			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.JSONEq(t, tc.expectedBody, rec.Body.String())
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	router := NewRouter(NewHandler(&MockHistoricalRateService{}, &MockRateIngestor{}, logger.NewNop()), logger.NewNop(), m, reg)

	healthy := true
	router.AddHealthCheck("store", func(*http.Request) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})
	handler := router.SetupRoutes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	healthy = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/health", http.MethodGet, "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/health", http.MethodGet, "5xx")))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
