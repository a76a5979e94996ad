package service

import "fx-history-service/internal/domain/model"

// DefaultLimit is the number of points fetched for an unrecognised time frame.
const DefaultLimit = 100

// frameLimits maps recognised frames to a point count. Nothing is below
// DefaultLimit, so a short frame still returns the default window.
var frameLimits = map[model.TimeFrame]int{
	"1D": DefaultLimit,
	"1W": DefaultLimit,
	"1M": DefaultLimit,
	"3M": DefaultLimit,
	"6M": 183,
	"1Y": 366,
	"2Y": 731,
	"5Y": 1827,
}

// QueryLimitPolicy turns a time frame into the number of points a range
// query may return. It is pure and total.
type QueryLimitPolicy struct{}

func (QueryLimitPolicy) LimitFor(frame model.TimeFrame) int {
	if limit, ok := frameLimits[model.NewTimeFrame(string(frame))]; ok {
		return limit
	}
	return DefaultLimit
}
