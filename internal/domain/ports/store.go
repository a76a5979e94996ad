package ports

import (
	"context"
	"errors"

	"fx-history-service/internal/domain/model"
)

var ErrRateNotFound = errors.New("exchange rate not found")

// RateStore is the time-series store of daily rates keyed by currency pair.
type RateStore interface {
	// QueryRates returns up to q.Limit points for q.Pair, most recent first
	// when q.Descending is set. An unknown pair yields an empty series.
	QueryRates(ctx context.Context, q model.RangeQuery) (model.RateSeries, error)

	// GetRate reads a single point. ErrRateNotFound if absent.
	GetRate(ctx context.Context, pair model.CurrencyPair, date string) (*model.RatePoint, error)

	// PutRates upserts the given rates for date. Writing the same rates twice
	// is a no-op.
	PutRates(ctx context.Context, date string, rates []model.PairRate) error
}
