package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
	"fx-history-service/internal/metrics"
	"fx-history-service/pkg/logger"
)

var (
	ErrInvalidPair = errors.New("invalid currency pair")
	ErrRetrieval   = errors.New("failed to retrieve historical rates")
)

// Computer is the contract the service needs from the triangulation engine.
type Computer interface {
	Compute(ctx context.Context, pair model.CurrencyPair, frame model.TimeFrame) (model.RateSeries, error)
}

// HistoricalRateService serves historical series cache-aside: a fresh cached
// series is returned as is, otherwise the series is computed from the store
// and cached. Failed computations are never cached.
type HistoricalRateService struct {
	cache   ports.RateCache
	engine  Computer
	group   singleflight.Group
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewHistoricalRateService(cache ports.RateCache, engine Computer, log *logger.Logger, m *metrics.Metrics) *HistoricalRateService {
	return &HistoricalRateService{
		cache:   cache,
		engine:  engine,
		log:     log,
		metrics: m,
	}
}

func (s *HistoricalRateService) GetHistoricalRates(ctx context.Context, pair model.CurrencyPair, frame model.TimeFrame) (model.RateSeries, error) {
	s.metrics.HistoricalRequestsTotal.Inc()

	if err := pair.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPair, err)
	}
	if pair.From == model.USD && pair.To == model.USD {
		return nil, fmt.Errorf("%w: %s has no history", ErrInvalidPair, pair)
	}

	frame = model.NewTimeFrame(string(frame))
	key := model.Fingerprint(pair, frame)

	if series, found := s.cache.Get(ctx, key); found {
		s.log.Info("Historical rates found in cache", "key", key)
		return series, nil
	}

	// Concurrent misses on one key share a single computation and cache write.
	// The computation is detached from any one caller, so a caller that goes
	// away only fails itself. Store queries keep their own timeout.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		s.log.Info("Computing historical rates from store", "key", key)

		series, err := s.engine.Compute(flightCtx, pair, frame)
		if err != nil {
			return nil, err
		}

		if len(series) == 0 {
			s.log.Info("No history for pair, not caching", "key", key)
			return series, nil
		}
		s.cache.Put(flightCtx, key, series)
		return series, nil
	})

	select {
	case <-ctx.Done():
		s.log.Warn("Request ended before historical rates were computed", "key", key, "error", ctx.Err())
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.log.Error("Failed to compute historical rates", "error", res.Err, "key", key, "shared", res.Shared)
			return nil, fmt.Errorf("%w: %v", ErrRetrieval, res.Err)
		}
		return res.Val.(model.RateSeries), nil
	}
}
