package storage

import (
	"context"
	"sort"
	"sync"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
)

// MemoryStore keeps rates in process. Suitable for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	rates map[string]map[string]float64 // pair -> date -> rate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rates: make(map[string]map[string]float64)}
}

func (s *MemoryStore) QueryRates(ctx context.Context, q model.RangeQuery) (model.RateSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := s.rates[q.Pair.String()]
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}

	// ISO dates sort chronologically as strings.
	if q.Descending {
		sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	} else {
		sort.Strings(dates)
	}
	if len(dates) > q.Limit {
		dates = dates[:q.Limit]
	}

	series := make(model.RateSeries, 0, len(dates))
	for _, d := range dates {
		series = append(series, model.RatePoint{Date: d, ExchangeRate: byDate[d]})
	}
	return series, nil
}

func (s *MemoryStore) GetRate(ctx context.Context, pair model.CurrencyPair, date string) (*model.RatePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.rates[pair.String()][date]
	if !ok {
		return nil, ports.ErrRateNotFound
	}
	return &model.RatePoint{Date: date, ExchangeRate: rate}, nil
}

func (s *MemoryStore) PutRates(ctx context.Context, date string, rates []model.PairRate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateDate(date); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rates {
		key := r.Pair.String()
		if _, ok := s.rates[key]; !ok {
			s.rates[key] = make(map[string]float64)
		}
		s.rates[key][date] = r.Rate
	}
	return nil
}
