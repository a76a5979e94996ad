package service

import (
	"context"
	"sync"

	"fx-history-service/internal/domain/model"
)

type MockRateStore struct {
	QueryRatesFunc func(ctx context.Context, q model.RangeQuery) (model.RateSeries, error)
	GetRateFunc    func(ctx context.Context, pair model.CurrencyPair, date string) (*model.RatePoint, error)
	PutRatesFunc   func(ctx context.Context, date string, rates []model.PairRate) error

	mu      sync.Mutex
	queries []model.RangeQuery
}

func (m *MockRateStore) QueryRates(ctx context.Context, q model.RangeQuery) (model.RateSeries, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	return m.QueryRatesFunc(ctx, q)
}

func (m *MockRateStore) GetRate(ctx context.Context, pair model.CurrencyPair, date string) (*model.RatePoint, error) {
	return m.GetRateFunc(ctx, pair, date)
}

func (m *MockRateStore) PutRates(ctx context.Context, date string, rates []model.PairRate) error {
	return m.PutRatesFunc(ctx, date, rates)
}

func (m *MockRateStore) Queries() []model.RangeQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.RangeQuery(nil), m.queries...)
}

// seriesByPair serves fixed series keyed by pair and fails for anything else.
func seriesByPair(data map[string]model.RateSeries) func(context.Context, model.RangeQuery) (model.RateSeries, error) {
	return func(_ context.Context, q model.RangeQuery) (model.RateSeries, error) {
		series, ok := data[q.Pair.String()]
		if !ok {
			return model.RateSeries{}, nil
		}
		if len(series) > q.Limit {
			series = series[:q.Limit]
		}
		return series, nil
	}
}

type MockRateCache struct {
	GetFunc func(ctx context.Context, key string) (model.RateSeries, bool)
	PutFunc func(ctx context.Context, key string, series model.RateSeries)
}

func (m *MockRateCache) Get(ctx context.Context, key string) (model.RateSeries, bool) {
	return m.GetFunc(ctx, key)
}

func (m *MockRateCache) Put(ctx context.Context, key string, series model.RateSeries) {
	m.PutFunc(ctx, key, series)
}

type MockRateProvider struct {
	FetchLatestFunc func(ctx context.Context) (*model.Snapshot, error)
}

func (m *MockRateProvider) FetchLatest(ctx context.Context) (*model.Snapshot, error) {
	return m.FetchLatestFunc(ctx)
}
