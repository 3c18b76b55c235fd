package adapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

var hundred = decimal.NewFromInt(100)

// parseDecimal parses a venue numeric string. Empty strings are zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse number %q: %w", s, err)
	}
	return d, nil
}

// numbers parses several venue strings at once, stopping at the first error.
type numbers struct {
	err error
}

func (n *numbers) float(s string) float64 {
	if n.err != nil {
		return 0
	}
	d, err := parseDecimal(s)
	if err != nil {
		n.err = err
		return 0
	}
	f, _ := d.Float64()
	return f
}

// percent converts a fraction such as "0.0123" to 1.23.
func (n *numbers) percent(s string) float64 {
	if n.err != nil {
		return 0
	}
	d, err := parseDecimal(s)
	if err != nil {
		n.err = err
		return 0
	}
	f, _ := d.Mul(hundred).Float64()
	return f
}

// changePercent is (last-open)/open*100, or zero without an open price.
func changePercent(last, open float64) float64 {
	if open == 0 {
		return 0
	}
	return (last - open) / open * 100
}

func anyNumber(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		d, err := parseDecimal(x)
		if err != nil {
			return 0, err
		}
		f, _ := d.Float64()
		return f, nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	}
	return 0, fmt.Errorf("unexpected number type %T", v)
}

// parseLevels reads [[price, size, ...], ...] where entries are strings or
// numbers. Trailing columns such as order counts are ignored.
func parseLevels(raw [][]any) ([]models.Level, error) {
	levels := make([]models.Level, 0, len(raw))
	for i, row := range raw {
		if len(row) < 2 {
			return nil, shapeErr("level %d has %d columns", i, len(row))
		}
		price, err := anyNumber(row[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		size, err := anyNumber(row[1])
		if err != nil {
			return nil, fmt.Errorf("level %d size: %w", i, err)
		}
		levels = append(levels, models.Level{Price: price, Size: size})
	}
	return levels, nil
}

func millis(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

// millisString parses millisecond timestamps sent as strings.
func millisString(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return millis(ms)
}

// depthLimit picks the smallest allowed limit covering depth.
func depthLimit(depth int, allowed ...int) int {
	for _, a := range allowed {
		if depth <= a {
			return a
		}
	}
	return allowed[len(allowed)-1]
}

func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
