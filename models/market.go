package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DataKind selects which upstream data set a request reads.
type DataKind string

const (
	KindTicker    DataKind = "ticker"
	KindOrderbook DataKind = "orderbook"
	KindFunding   DataKind = "funding"
)

func ParseDataKind(s string) (DataKind, error) {
	switch DataKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindTicker:
		return KindTicker, nil
	case KindOrderbook, "book", "depth":
		return KindOrderbook, nil
	case KindFunding:
		return KindFunding, nil
	}
	return "", fmt.Errorf("unknown data kind %q", s)
}

// Status reports how a source behaved during one aggregation.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Ticker is the venue independent 24h view of one instrument.
type Ticker struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Volume24h float64   `json:"volume24h"`
	Change24h float64   `json:"change24h"`
	High24h   float64   `json:"high24h"`
	Low24h    float64   `json:"low24h"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// Level is one price level of an order book.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook holds bids in descending and asks in ascending price order.
type OrderBook struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
	Timestamp time.Time `json:"timestamp"`
}

// Sort restores the price ordering of both sides.
func (b *OrderBook) Sort() {
	sort.SliceStable(b.Bids, func(i, j int) bool { return b.Bids[i].Price > b.Bids[j].Price })
	sort.SliceStable(b.Asks, func(i, j int) bool { return b.Asks[i].Price < b.Asks[j].Price })
}

// Truncate keeps at most depth levels per side. A non-positive depth keeps all.
func (b *OrderBook) Truncate(depth int) {
	if depth <= 0 {
		return
	}
	if len(b.Bids) > depth {
		b.Bids = b.Bids[:depth]
	}
	if len(b.Asks) > depth {
		b.Asks = b.Asks[:depth]
	}
}

func (b *OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

func (b *OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Funding is a perpetual funding rate expressed in percent per interval.
type Funding struct {
	Exchange        string    `json:"exchange"`
	Symbol          string    `json:"symbol"`
	RatePercent     float64   `json:"ratePercent"`
	NextFundingTime time.Time `json:"nextFundingTime"`
	Timestamp       time.Time `json:"timestamp"`
	Status          Status    `json:"status"`
	Error           string    `json:"error,omitempty"`
}
