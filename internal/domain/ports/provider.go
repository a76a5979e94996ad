package ports

import (
	"context"

	"fx-history-service/internal/domain/model"
)

// RateProvider fetches current spot rates from an upstream source.
type RateProvider interface {
	FetchLatest(ctx context.Context) (*model.Snapshot, error)
}
