package adapter

import (
	"net/url"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

type binanceAdapter struct {
	venue
}

type binanceDepth struct {
	LastUpdateID int64   `json:"lastUpdateId"`
	Bids         [][]any `json:"bids"`
	Asks         [][]any `json:"asks"`
}

func (a *binanceAdapter) Endpoint(kind models.DataKind, inst models.Instrument) (string, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		return a.build(a.baseURL, "/api/v3/ticker/24hr", url.Values{"symbol": {sym}}), nil
	case models.KindOrderbook:
		limit := depthLimit(a.depth, 5, 10, 20, 50, 100, 500, 1000, 5000)
		return a.build(a.baseURL, "/api/v3/depth", url.Values{"symbol": {sym}, "limit": {strconv.Itoa(limit)}}), nil
	case models.KindFunding:
		base, err := a.futures()
		if err != nil {
			return "", err
		}
		return a.build(base, "/fapi/v1/premiumIndex", url.Values{"symbol": {sym}}), nil
	}
	return "", unsupported(a.name, kind)
}

func (a *binanceAdapter) Decode(kind models.DataKind, inst models.Instrument, body []byte) (any, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		var s binance.PriceChangeStats
		if err := decodeJSON(body, &s); err != nil {
			return nil, err
		}
		if s.LastPrice == "" || !a.sameSymbol(s.Symbol, sym) {
			return nil, shapeErr("binance ticker for %q, want %s", s.Symbol, sym)
		}
		var n numbers
		t := &models.Ticker{
			Exchange:  a.name,
			Symbol:    sym,
			Price:     n.float(s.LastPrice),
			Bid:       n.float(s.BidPrice),
			Ask:       n.float(s.AskPrice),
			Volume24h: n.float(s.Volume),
			Change24h: n.float(s.PriceChangePercent),
			High24h:   n.float(s.HighPrice),
			Low24h:    n.float(s.LowPrice),
			Timestamp: millis(s.CloseTime),
			Status:    models.StatusOnline,
		}
		return t, n.err

	case models.KindOrderbook:
		var d binanceDepth
		if err := decodeJSON(body, &d); err != nil {
			return nil, err
		}
		if d.LastUpdateID == 0 {
			return nil, shapeErr("binance depth without lastUpdateId")
		}
		bids, err := parseLevels(d.Bids)
		if err != nil {
			return nil, err
		}
		asks, err := parseLevels(d.Asks)
		if err != nil {
			return nil, err
		}
		return a.finishBook(&models.OrderBook{Symbol: sym, Bids: bids, Asks: asks, Timestamp: millis(0)}), nil

	case models.KindFunding:
		var p futures.PremiumIndex
		if err := decodeJSON(body, &p); err != nil {
			return nil, err
		}
		if p.LastFundingRate == "" || !a.sameSymbol(p.Symbol, sym) {
			return nil, shapeErr("binance premium index for %q, want %s", p.Symbol, sym)
		}
		var n numbers
		f := &models.Funding{
			Exchange:        a.name,
			Symbol:          sym,
			RatePercent:     n.percent(p.LastFundingRate),
			NextFundingTime: millis(p.NextFundingTime),
			Timestamp:       millis(p.Time),
			Status:          models.StatusOnline,
		}
		return f, n.err
	}
	return nil, unsupported(a.name, kind)
}
