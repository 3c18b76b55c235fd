package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy, "":
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

type LiquidityRating string

const (
	RatingExcellent LiquidityRating = "excellent"
	RatingGood      LiquidityRating = "good"
	RatingFair      LiquidityRating = "fair"
	RatingPoor      LiquidityRating = "poor"
	RatingDangerous LiquidityRating = "dangerous"
)

// ExecutionAnalysis is the result of walking one side of a book for a fill
// size. When InsufficientLiquidity is set TotalCost is +Inf.
type ExecutionAnalysis struct {
	Exchange              string          `json:"exchange"`
	Symbol                string          `json:"symbol"`
	Side                  Side            `json:"side"`
	Size                  float64         `json:"size"`
	Filled                float64         `json:"filled"`
	BestPrice             float64         `json:"bestPrice"`
	AveragePrice          float64         `json:"averagePrice"`
	WorstPrice            float64         `json:"worstPrice"`
	TotalCost             float64         `json:"totalCost"`
	Slippage              float64         `json:"slippage"`
	SlippagePercent       float64         `json:"slippagePercent"`
	PriceImpact           float64         `json:"priceImpact"`
	DepthConsumed         float64         `json:"depthConsumed"`
	LevelsTouched         int             `json:"levelsTouched"`
	Rating                LiquidityRating `json:"liquidityRating"`
	Warning               string          `json:"warning,omitempty"`
	InsufficientLiquidity bool            `json:"insufficientLiquidity"`
	Rank                  int             `json:"rank,omitempty"`
}

// MarshalJSON encodes a non-finite TotalCost as null.
func (e ExecutionAnalysis) MarshalJSON() ([]byte, error) {
	type alias ExecutionAnalysis
	out := struct {
		alias
		TotalCost *float64 `json:"totalCost"`
	}{alias: alias(e)}
	if !math.IsInf(e.TotalCost, 0) && !math.IsNaN(e.TotalCost) {
		cost := e.TotalCost
		out.TotalCost = &cost
	}
	return json.Marshal(out)
}

// SpreadAnalysis is the top of book spread of one venue after round trip
// taker fees.
type SpreadAnalysis struct {
	Exchange         string  `json:"exchange"`
	Bid              float64 `json:"bid"`
	Ask              float64 `json:"ask"`
	RawSpreadPercent float64 `json:"rawSpreadPercent"`
	FeePercent       float64 `json:"roundTripFeePercent"`
	NetSpreadPercent float64 `json:"netSpreadPercent"`
	Profitable       bool    `json:"profitable"`
}

// ArbitrageOpportunity pairs the cheapest ask with the richest bid on a
// different venue.
type ArbitrageOpportunity struct {
	BuyExchange   string  `json:"buyExchange"`
	BuyPrice      float64 `json:"buyPrice"`
	SellExchange  string  `json:"sellExchange"`
	SellPrice     float64 `json:"sellPrice"`
	Profit        float64 `json:"profit"`
	ProfitPercent float64 `json:"profitPercent"`
}

type MarketSummary struct {
	AveragePrice       float64 `json:"averagePrice"`
	BestBid            float64 `json:"bestBid"`
	BestBidExchange    string  `json:"bestBidExchange,omitempty"`
	BestAsk            float64 `json:"bestAsk"`
	BestAskExchange    string  `json:"bestAskExchange,omitempty"`
	High24h            float64 `json:"high24h"`
	Low24h             float64 `json:"low24h"`
	PriceSpreadPercent float64 `json:"priceSpreadPercent"`
	TotalVolume        float64 `json:"totalVolume"`
	OnlineSources      int     `json:"onlineSources"`
	TotalSources       int     `json:"totalSources"`
}

type FundingSummary struct {
	AverageRatePercent float64 `json:"averageRatePercent"`
	MinRatePercent     float64 `json:"minRatePercent"`
	MinExchange        string  `json:"minExchange,omitempty"`
	MaxRatePercent     float64 `json:"maxRatePercent"`
	MaxExchange        string  `json:"maxExchange,omitempty"`
	OnlineSources      int     `json:"onlineSources"`
	TotalSources       int     `json:"totalSources"`
}

// Aggregate is the composite answer for one instrument across every source.
// Tickers always has one entry per configured source.
type Aggregate struct {
	RequestID  string                `json:"requestId,omitempty"`
	Instrument string                `json:"instrument"`
	Tickers    []Ticker              `json:"tickers"`
	Arbitrage  *ArbitrageOpportunity `json:"arbitrage"`
	Summary    MarketSummary         `json:"summary"`
	Spreads    []SpreadAnalysis      `json:"spreads"`
	Timestamp  time.Time             `json:"timestamp"`
}

type FundingAggregate struct {
	RequestID  string         `json:"requestId,omitempty"`
	Instrument string         `json:"instrument"`
	Rates      []Funding      `json:"rates"`
	Summary    FundingSummary `json:"summary"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ExecutionComparison ranks the cost of one fill across venues. Sources whose
// book could not be fetched are listed in Failed.
type ExecutionComparison struct {
	RequestID  string              `json:"requestId,omitempty"`
	Instrument string              `json:"instrument"`
	Side       Side                `json:"side"`
	Size       float64             `json:"size"`
	Analyses   []ExecutionAnalysis `json:"analyses"`
	Failed     map[string]string   `json:"failed,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}
