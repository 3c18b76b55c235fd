// Package analytics holds pure functions over normalized multi-venue data.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

// ErrInvalidSize is returned for fill sizes that are not positive finite numbers.
var ErrInvalidSize = errors.New("execution size must be a positive number")

// fillTolerance absorbs float rounding when comparing filled and requested size.
const fillTolerance = 1e-9

// Rating thresholds on slippage percent.
const (
	excellentBelow = 0.1
	goodBelow      = 0.5
	fairBelow      = 1.0
	poorBelow      = 3.0
)

// Rate maps a slippage percentage to a liquidity rating.
func Rate(slippagePercent float64) models.LiquidityRating {
	switch {
	case slippagePercent < excellentBelow:
		return models.RatingExcellent
	case slippagePercent < goodBelow:
		return models.RatingGood
	case slippagePercent < fairBelow:
		return models.RatingFair
	case slippagePercent < poorBelow:
		return models.RatingPoor
	default:
		return models.RatingDangerous
	}
}

// withSize drops levels that hold no quantity. The input is not modified.
func withSize(levels []models.Level) []models.Level {
	out := make([]models.Level, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Size > 0 {
			out = append(out, lvl)
		}
	}
	return out
}

// AnalyzeExecution walks asks for a buy or bids for a sell until size is
// filled. A book that runs out first yields an insufficient liquidity result
// with an infinite TotalCost.
func AnalyzeExecution(book models.OrderBook, size float64, side models.Side) (models.ExecutionAnalysis, error) {
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return models.ExecutionAnalysis{}, ErrInvalidSize
	}

	levels := book.Asks
	if side == models.SideSell {
		levels = book.Bids
	} else {
		side = models.SideBuy
	}
	levels = withSize(levels)

	out := models.ExecutionAnalysis{
		Exchange: book.Exchange,
		Symbol:   book.Symbol,
		Side:     side,
		Size:     size,
	}
	if len(levels) > 0 {
		out.BestPrice = levels[0].Price
	}

	var cost, filled float64
	remaining := size
	for i, lvl := range levels {
		if remaining <= fillTolerance {
			break
		}
		take := math.Min(lvl.Size, remaining)
		cost += take * lvl.Price
		filled += take
		remaining -= take
		out.WorstPrice = lvl.Price
		out.LevelsTouched = i + 1
	}
	out.Filled = filled

	if len(levels) > 0 {
		out.DepthConsumed = float64(out.LevelsTouched) / float64(len(levels)) * 100
	}

	if remaining > fillTolerance*math.Max(1, size) {
		out.TotalCost = math.Inf(1)
		out.Rating = models.RatingDangerous
		out.InsufficientLiquidity = true
		out.Warning = fmt.Sprintf("insufficient liquidity: book holds %g of requested %g", filled, size)
		return out, nil
	}

	best := out.BestPrice
	out.TotalCost = cost
	out.AveragePrice = cost / size
	if side == models.SideBuy {
		out.Slippage = cost - size*best
	} else {
		out.Slippage = size*best - cost
	}
	if best > 0 {
		out.SlippagePercent = math.Abs(out.AveragePrice-best) * 100 / best
		out.PriceImpact = math.Abs(out.WorstPrice-best) * 100 / best
	}
	out.Rating = Rate(out.SlippagePercent)
	if out.Rating == models.RatingDangerous {
		out.Warning = fmt.Sprintf("high slippage: %.2f%% versus best price", out.SlippagePercent)
	}
	return out, nil
}

// RankExecutions orders analyses from cheapest to dearest fill for side and
// assigns dense ranks starting at 1. Insufficient liquidity results share the
// rank after every fillable one. The input slice is not modified.
func RankExecutions(analyses []models.ExecutionAnalysis, side models.Side) []models.ExecutionAnalysis {
	ranked := make([]models.ExecutionAnalysis, len(analyses))
	copy(ranked, analyses)

	better := func(a, b float64) bool {
		if side == models.SideSell {
			return a > b
		}
		return a < b
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.InsufficientLiquidity != b.InsufficientLiquidity {
			return !a.InsufficientLiquidity
		}
		if a.InsufficientLiquidity {
			return false
		}
		return better(a.AveragePrice, b.AveragePrice)
	})

	rank := 0
	for i := range ranked {
		switch {
		case i == 0:
			rank = 1
		case ranked[i].InsufficientLiquidity != ranked[i-1].InsufficientLiquidity:
			rank++
		case !ranked[i].InsufficientLiquidity && ranked[i].AveragePrice != ranked[i-1].AveragePrice:
			rank++
		}
		ranked[i].Rank = rank
	}
	return ranked
}
