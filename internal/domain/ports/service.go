package ports

import (
	"context"

	"fx-history-service/internal/domain/model"
)

type HistoricalRateService interface {
	GetHistoricalRates(ctx context.Context, pair model.CurrencyPair, frame model.TimeFrame) (model.RateSeries, error)
}

type RateIngestor interface {
	Run(ctx context.Context) error
}
