package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-history-service/internal/domain/model"
	"fx-history-service/pkg/logger"
)

func TestExchangeAPI_FetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","timestamp":1709337600,"rates":{"eur":0.92,"GBP":0.79}}`))
	}))
	defer server.Close()

	api := NewExchangeAPI(server.URL+"/", "secret", time.Second, logger.NewNop())

	snapshot, err := api.FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.USD, snapshot.Base)
	assert.Equal(t, map[model.Currency]float64{"EUR": 0.92, "GBP": 0.79}, snapshot.Rates)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), snapshot.Timestamp)
}

func TestExchangeAPI_DateFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(apiKeyHeader))
		_, _ = w.Write([]byte(`{"base":"USD","date":"2024-03-01","rates":{"EUR":0.92}}`))
	}))
	defer server.Close()

	snapshot, err := NewExchangeAPI(server.URL, "", time.Second, logger.NewNop()).FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", snapshot.Timestamp.Format(model.DateLayout))
}

func TestExchangeAPI_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.92}}`))
	}))
	defer server.Close()

	snapshot, err := NewExchangeAPI(server.URL, "", time.Second, logger.NewNop()).FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, model.USD, snapshot.Base)
}

func TestExchangeAPI_Failures(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		expectedErr   error
		expectedCalls int32
	}{
		{"Persistent 5xx", http.StatusServiceUnavailable, ``, ErrUpstreamUnavailable, 2},
		{"Client error", http.StatusUnauthorized, `{}`, ErrUpstreamResponse, 1},
		{"Bad JSON", http.StatusOK, `{"rates":`, ErrUpstreamResponse, 1},
		{"Reported failure", http.StatusOK, `{"success":false,"rates":{"EUR":1}}`, ErrUpstreamResponse, 1},
		{"Empty rates", http.StatusOK, `{"base":"USD","rates":{}}`, ErrUpstreamResponse, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewExchangeAPI(server.URL, "", time.Second, logger.NewNop()).FetchLatest(context.Background())
			assert.True(t, errors.Is(err, tc.expectedErr), "got %v", err)
			assert.Equal(t, tc.expectedCalls, calls.Load())
		})
	}
}
