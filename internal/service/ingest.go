package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
	"fx-history-service/internal/metrics"
	"fx-history-service/pkg/logger"
	"fx-history-service/pkg/retry"
	"fx-history-service/pkg/retry/backoff"
	"fx-history-service/pkg/utils"
)

var (
	ErrIngestionRetryExhausted = errors.New("max retries reached, error updating data")
	ErrEmptySnapshot           = errors.New("provider returned no usable rates")
)

const (
	DefaultIngestAttempts = 3
	DefaultIngestDelay    = 5 * time.Second
)

// Ingestor pulls the latest USD snapshot from the provider and writes it to
// the store as both USD_X and X_USD for the snapshot's calendar date.
type Ingestor struct {
	provider    ports.RateProvider
	store       ports.RateStore
	currencies  map[model.Currency]struct{}
	maxAttempts uint
	delay       time.Duration
	log         *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

type IngestorConfig struct {
	MaxAttempts uint
	RetryDelay  time.Duration
	// Currencies restricts what is stored. Empty means everything the
	// provider returns.
	Currencies []string
}

func NewIngestor(provider ports.RateProvider, store ports.RateStore, cfg IngestorConfig, log *logger.Logger, m *metrics.Metrics) *Ingestor {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultIngestAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultIngestDelay
	}

	currencies := make(map[model.Currency]struct{}, len(cfg.Currencies))
	for _, c := range cfg.Currencies {
		if code := model.NewCurrency(c); code.Validate() == nil {
			currencies[code] = struct{}{}
		}
	}

	return &Ingestor{
		provider:    provider,
		store:       store,
		currencies:  currencies,
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.RetryDelay,
		log:         log,
		metrics:     m,
		now:         time.Now,
	}
}

// Run makes up to maxAttempts fetch-and-store attempts with a constant delay
// between them. Every failed attempt is logged.
func (i *Ingestor) Run(ctx context.Context) error {
	attempts, err := retry.Retry(ctx,
		func(ctx context.Context) error {
			return i.ingestOnce(ctx)
		},
		func(_ context.Context, attempt uint, err error) bool {
			i.log.Error("Error updating data", "error", err, "attempt", attempt, "max_attempts", i.maxAttempts)
			return true
		},
		retry.Limit(i.maxAttempts),
		retry.NonRetriableErrors(context.Canceled),
		retry.Backoff(backoff.Constant(i.delay), i.delay),
	)
	if err != nil {
		i.metrics.IngestRunsTotal.WithLabelValues("failed").Inc()
		i.log.Error("Max retries reached. Error updating data.", "error", err, "attempts", attempts)
		return fmt.Errorf("%w: %v", ErrIngestionRetryExhausted, err)
	}

	i.metrics.IngestRunsTotal.WithLabelValues("ok").Inc()
	i.log.Info("Data updated successfully", "attempts", attempts)
	return nil
}

func (i *Ingestor) ingestOnce(ctx context.Context) error {
	snapshot, err := i.provider.FetchLatest(ctx)
	if err != nil {
		return err
	}

	rates := i.pairRates(snapshot)
	if len(rates) == 0 {
		return ErrEmptySnapshot
	}

	ts := snapshot.Timestamp
	if ts.IsZero() {
		ts = i.now()
	}
	date := utils.FormatDate(ts)

	if err := i.store.PutRates(ctx, date, rates); err != nil {
		return err
	}

	i.log.Info("Stored rates", "date", date, "pairs", len(rates))
	return nil
}

func (i *Ingestor) pairRates(snapshot *model.Snapshot) []model.PairRate {
	base := snapshot.Base
	if base == "" {
		base = model.USD
	}
	if base != model.USD {
		i.log.Warn("Ignoring snapshot with non-USD base", "base", base.String())
		return nil
	}

	rates := make([]model.PairRate, 0, 2*len(snapshot.Rates))
	for code, rate := range snapshot.Rates {
		if code == model.USD || code.Validate() != nil {
			continue
		}
		if len(i.currencies) > 0 {
			if _, ok := i.currencies[code]; !ok {
				continue
			}
		}
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
			i.log.Warn("Skipping invalid provider rate", "currency", code.String(), "rate", rate)
			continue
		}

		rates = append(rates,
			model.PairRate{Pair: model.NewCurrencyPair(model.USD, code), Rate: rate},
			model.PairRate{Pair: model.NewCurrencyPair(code, model.USD), Rate: 1 / rate},
		)
	}
	return rates
}
