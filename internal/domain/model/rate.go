package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar-date form used for rate points and store keys.
const DateLayout = "2006-01-02"

// TimeFrame is an opaque window descriptor such as "1M" or "1Y".
type TimeFrame string

func NewTimeFrame(raw string) TimeFrame {
	return TimeFrame(strings.ToUpper(strings.TrimSpace(raw)))
}

func (f TimeFrame) String() string {
	return string(f)
}

// RatePoint is one dated observation of a pair.
type RatePoint struct {
	Date         string  `json:"date"`
	ExchangeRate float64 `json:"exchange_rate"`
}

// Validate rejects points the store should never have produced.
func (p RatePoint) Validate() error {
	if p.Date == "" {
		return fmt.Errorf("rate point has no date")
	}
	if math.IsNaN(p.ExchangeRate) || math.IsInf(p.ExchangeRate, 0) || p.ExchangeRate <= 0 {
		return fmt.Errorf("rate point %s has non-positive rate %v", p.Date, p.ExchangeRate)
	}
	return nil
}

// RateSeries is ordered most recent first.
type RateSeries []RatePoint

// RangeQuery asks the store for up to Limit points of Pair.
type RangeQuery struct {
	Pair       CurrencyPair
	Limit      int
	Descending bool
}

// PairRate is one rate written by ingestion.
type PairRate struct {
	Pair CurrencyPair
	Rate float64
}

// Snapshot is a set of spot rates against Base as returned by the upstream provider.
type Snapshot struct {
	Base      Currency
	Rates     map[Currency]float64
	Timestamp time.Time
}

// CacheItem is a serialized payload plus the moment it was stored.
type CacheItem struct {
	Value    []byte
	StoredAt time.Time
}

// Fingerprint derives the cache key for a request: FROM_TO_FRAME. Currency
// codes are letters only, so the first two separators are always structural.
func Fingerprint(pair CurrencyPair, frame TimeFrame) string {
	return pair.String() + pairSeparator + string(frame)
}
