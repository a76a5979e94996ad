// Package tests holds the RateStore conformance suite shared by every
// storage backend.
package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
)

func RunTests(t *testing.T, s ports.RateStore, teardown func()) {
	for _, tf := range []func(t *testing.T, s ports.RateStore){
		testQueryDescendingWithLimit,
		testUpsertIsIdempotent,
		testPointRead,
		testUnknownPairIsEmpty,
	} {
		tf(t, s)
		teardown()
	}
}

var (
	usdEUR = model.CurrencyPair{From: "USD", To: "EUR"}
	usdGBP = model.CurrencyPair{From: "USD", To: "GBP"}
)

func testQueryDescendingWithLimit(t *testing.T, s ports.RateStore) {
	ctx := context.Background()

	dates := []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04"}
	for i, d := range dates {
		require.NoError(t, s.PutRates(ctx, d, []model.PairRate{
			{Pair: usdEUR, Rate: 0.90 + float64(i)/100},
			{Pair: usdGBP, Rate: 0.78 + float64(i)/100},
		}))
	}

	series, err := s.QueryRates(ctx, model.RangeQuery{Pair: usdEUR, Limit: 3, Descending: true})
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, "2024-03-04", series[0].Date)
	assert.Equal(t, "2024-03-03", series[1].Date)
	assert.Equal(t, "2024-03-02", series[2].Date)
	assert.InDelta(t, 0.93, series[0].ExchangeRate, 1e-9)

	all, err := s.QueryRates(ctx, model.RangeQuery{Pair: usdGBP, Limit: 100, Descending: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	asc, err := s.QueryRates(ctx, model.RangeQuery{Pair: usdGBP, Limit: 2})
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, "2024-03-01", asc[0].Date)

	_, err = s.QueryRates(ctx, model.RangeQuery{Pair: usdGBP, Limit: 0})
	assert.Error(t, err)
}

func testUpsertIsIdempotent(t *testing.T, s ports.RateStore) {
	ctx := context.Background()

	rates := []model.PairRate{{Pair: usdEUR, Rate: 0.91}}
	require.NoError(t, s.PutRates(ctx, "2024-03-01", rates))
	require.NoError(t, s.PutRates(ctx, "2024-03-01", rates))

	series, err := s.QueryRates(ctx, model.RangeQuery{Pair: usdEUR, Limit: 10, Descending: true})
	require.NoError(t, err)
	require.Len(t, series, 1)

	require.NoError(t, s.PutRates(ctx, "2024-03-01", []model.PairRate{{Pair: usdEUR, Rate: 0.92}}))
	point, err := s.GetRate(ctx, usdEUR, "2024-03-01")
	require.NoError(t, err)
	assert.InDelta(t, 0.92, point.ExchangeRate, 1e-9)

	assert.Error(t, s.PutRates(ctx, "not-a-date", rates))
}

func testPointRead(t *testing.T, s ports.RateStore) {
	ctx := context.Background()

	_, err := s.GetRate(ctx, usdEUR, "2024-03-01")
	assert.ErrorIs(t, err, ports.ErrRateNotFound)

	require.NoError(t, s.PutRates(ctx, "2024-03-01", []model.PairRate{{Pair: usdEUR, Rate: 0.9}}))

	point, err := s.GetRate(ctx, usdEUR, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", point.Date)
	assert.InDelta(t, 0.9, point.ExchangeRate, 1e-9)
}

func testUnknownPairIsEmpty(t *testing.T, s ports.RateStore) {
	series, err := s.QueryRates(context.Background(), model.RangeQuery{
		Pair:       model.CurrencyPair{From: "USD", To: "XAU"},
		Limit:      100,
		Descending: true,
	})
	require.NoError(t, err)
	assert.Empty(t, series)
}
