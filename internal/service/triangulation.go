package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
	"fx-history-service/internal/metrics"
	"fx-history-service/pkg/logger"
)

const (
	queryKindDirect  = "direct"
	queryKindDerived = "derived"
)

// TriangulationEngine answers a pair/frame query from the store. Pairs with a
// USD leg are read directly; any other pair is derived from the two USD legs.
type TriangulationEngine struct {
	store   ports.RateStore
	policy  QueryLimitPolicy
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewTriangulationEngine(store ports.RateStore, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *TriangulationEngine {
	return &TriangulationEngine{
		store:   store,
		timeout: timeout,
		log:     log,
		metrics: m,
	}
}

func (e *TriangulationEngine) Compute(ctx context.Context, pair model.CurrencyPair, frame model.TimeFrame) (model.RateSeries, error) {
	limit := e.policy.LimitFor(frame)

	switch {
	case pair.IsAnchored():
		return e.direct(ctx, pair, limit, queryKindDirect)
	case pair.SameCurrency():
		return e.identity(ctx, pair.From, limit)
	default:
		return e.derived(ctx, pair, limit)
	}
}

func (e *TriangulationEngine) direct(ctx context.Context, pair model.CurrencyPair, limit int, kind string) (model.RateSeries, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	series, err := e.store.QueryRates(ctx, model.RangeQuery{Pair: pair, Limit: limit, Descending: true})
	if err != nil {
		e.metrics.StoreQueriesTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("query %s: %w", pair, err)
	}

	for _, p := range series {
		if err := p.Validate(); err != nil {
			e.metrics.StoreQueriesTotal.WithLabelValues(kind, "invalid").Inc()
			return nil, fmt.Errorf("query %s: %w", pair, err)
		}
	}

	e.metrics.StoreQueriesTotal.WithLabelValues(kind, "ok").Inc()
	return series, nil
}

// derived reads USD->from and USD->to concurrently and divides them date by
// date. Only dates present in both legs are emitted, in the from leg's order.
func (e *TriangulationEngine) derived(ctx context.Context, pair model.CurrencyPair, limit int) (model.RateSeries, error) {
	var usdFrom, usdTo model.RateSeries

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usdFrom, err = e.direct(gctx, model.NewCurrencyPair(model.USD, pair.From), limit, queryKindDerived)
		return err
	})
	g.Go(func() error {
		var err error
		usdTo, err = e.direct(gctx, model.NewCurrencyPair(model.USD, pair.To), limit, queryKindDerived)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	toByDate := make(map[string]float64, len(usdTo))
	for _, p := range usdTo {
		toByDate[p.Date] = p.ExchangeRate
	}

	series := make(model.RateSeries, 0, len(usdFrom))
	for _, p := range usdFrom {
		to, ok := toByDate[p.Date]
		if !ok {
			continue
		}
		series = append(series, model.RatePoint{Date: p.Date, ExchangeRate: to / p.ExchangeRate})
	}

	if len(series) != len(usdFrom) || len(series) != len(usdTo) {
		e.log.Warn("USD legs do not cover the same dates, keeping the overlap",
			"pair", pair.String(),
			"from_points", len(usdFrom),
			"to_points", len(usdTo),
			"joined_points", len(series),
		)
	}

	return series, nil
}

// identity answers X_X with a rate of 1 on every date X has a USD history.
func (e *TriangulationEngine) identity(ctx context.Context, c model.Currency, limit int) (model.RateSeries, error) {
	legs, err := e.direct(ctx, model.NewCurrencyPair(model.USD, c), limit, queryKindDerived)
	if err != nil {
		return nil, err
	}

	series := make(model.RateSeries, len(legs))
	for i, p := range legs {
		series[i] = model.RatePoint{Date: p.Date, ExchangeRate: 1}
	}
	return series, nil
}
