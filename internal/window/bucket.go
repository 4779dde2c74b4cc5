package window

import (
	"fmt"
	"strconv"
	"strings"

	"dexanalytics/internal/domain"

	"github.com/shopspring/decimal"
)

// Interval is a fixed bucket length plus the entity kinds keyed by it
type Interval struct {
	Name      string
	Length    int64 // seconds
	PoolKind  domain.Kind
	TokenKind domain.Kind
}

var (
	Day  = Interval{Name: "day", Length: 86400, PoolKind: domain.KindPoolDay, TokenKind: domain.KindTokenDay}
	Hour = Interval{Name: "hour", Length: 3600, PoolKind: domain.KindPoolHour, TokenKind: domain.KindTokenHour}

	// Intervals every pool and token event is rolled into
	Intervals = []Interval{Day, Hour}
)

func ParseInterval(name string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Day.Name:
		return Day, nil
	case Hour.Name:
		return Hour, nil
	default:
		return Interval{}, fmt.Errorf("unknown interval %q", name)
	}
}

// Index = floor(ts / length)
func (i Interval) Index(ts int64) int64 {
	idx := ts / i.Length
	if ts%i.Length != 0 && ts < 0 {
		idx--
	}
	return idx
}

// Start is the first second of the bucket holding ts
func (i Interval) Start(ts int64) int64 {
	return i.Index(ts) * i.Length
}

// BucketID = "<subject>-<bucket index>"
func BucketID(subject string, index int64) string {
	return subject + "-" + strconv.FormatInt(index, 10)
}

// ohlc tracks open/high/low/close in arrival order; open is fixed at creation
type ohlc struct {
	open, high, low, close *decimal.Decimal
}

func seed(o ohlc, price decimal.Decimal) {
	*o.open, *o.high, *o.low, *o.close = price, price, price, price
}

func observe(o ohlc, price decimal.Decimal) {
	if price.GreaterThan(*o.high) {
		*o.high = price
	}
	if price.LessThan(*o.low) {
		*o.low = price
	}
	*o.close = price
}
