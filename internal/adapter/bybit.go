package adapter

import (
	"net/url"
	"strconv"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

type bybitAdapter struct {
	venue
}

// bybitEnvelope wraps every v5 response.
type bybitEnvelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
	Time    int64  `json:"time"`
}

type bybitTicker struct {
	Symbol          string `json:"symbol"`
	LastPrice       string `json:"lastPrice"`
	Bid1Price       string `json:"bid1Price"`
	Ask1Price       string `json:"ask1Price"`
	HighPrice24h    string `json:"highPrice24h"`
	LowPrice24h     string `json:"lowPrice24h"`
	Volume24h       string `json:"volume24h"`
	Price24hPcnt    string `json:"price24hPcnt"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

type bybitTickers struct {
	Category string        `json:"category"`
	List     []bybitTicker `json:"list"`
}

type bybitBook struct {
	Symbol string  `json:"s"`
	Bids   [][]any `json:"b"`
	Asks   [][]any `json:"a"`
	TS     int64   `json:"ts"`
}

func (a *bybitAdapter) Endpoint(kind models.DataKind, inst models.Instrument) (string, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		return a.build(a.baseURL, "/v5/market/tickers", url.Values{"category": {"spot"}, "symbol": {sym}}), nil
	case models.KindOrderbook:
		limit := depthLimit(a.depth, 1, 50, 200)
		return a.build(a.baseURL, "/v5/market/orderbook", url.Values{"category": {"spot"}, "symbol": {sym}, "limit": {strconv.Itoa(limit)}}), nil
	case models.KindFunding:
		return a.build(a.baseURL, "/v5/market/tickers", url.Values{"category": {"linear"}, "symbol": {sym}}), nil
	}
	return "", unsupported(a.name, kind)
}

func (a *bybitAdapter) ticker(body []byte, sym string) (bybitTicker, int64, error) {
	var env bybitEnvelope[bybitTickers]
	if err := decodeJSON(body, &env); err != nil {
		return bybitTicker{}, 0, err
	}
	if env.RetCode != 0 {
		return bybitTicker{}, 0, shapeErr("bybit retCode %d: %s", env.RetCode, env.RetMsg)
	}
	for _, t := range env.Result.List {
		if a.sameSymbol(t.Symbol, sym) {
			return t, env.Time, nil
		}
	}
	return bybitTicker{}, 0, shapeErr("bybit returned no ticker for %s", sym)
}

func (a *bybitAdapter) Decode(kind models.DataKind, inst models.Instrument, body []byte) (any, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		t, ts, err := a.ticker(body, sym)
		if err != nil {
			return nil, err
		}
		var n numbers
		out := &models.Ticker{
			Exchange:  a.name,
			Symbol:    sym,
			Price:     n.float(t.LastPrice),
			Bid:       n.float(t.Bid1Price),
			Ask:       n.float(t.Ask1Price),
			Volume24h: n.float(t.Volume24h),
			Change24h: n.percent(t.Price24hPcnt),
			High24h:   n.float(t.HighPrice24h),
			Low24h:    n.float(t.LowPrice24h),
			Timestamp: millis(ts),
			Status:    models.StatusOnline,
		}
		return out, n.err

	case models.KindOrderbook:
		var env bybitEnvelope[bybitBook]
		if err := decodeJSON(body, &env); err != nil {
			return nil, err
		}
		if env.RetCode != 0 {
			return nil, shapeErr("bybit retCode %d: %s", env.RetCode, env.RetMsg)
		}
		bids, err := parseLevels(env.Result.Bids)
		if err != nil {
			return nil, err
		}
		asks, err := parseLevels(env.Result.Asks)
		if err != nil {
			return nil, err
		}
		return a.finishBook(&models.OrderBook{Symbol: sym, Bids: bids, Asks: asks, Timestamp: millis(env.Result.TS)}), nil

	case models.KindFunding:
		t, ts, err := a.ticker(body, sym)
		if err != nil {
			return nil, err
		}
		if t.FundingRate == "" {
			return nil, shapeErr("bybit ticker for %s has no funding rate", sym)
		}
		var n numbers
		f := &models.Funding{
			Exchange:        a.name,
			Symbol:          sym,
			RatePercent:     n.percent(t.FundingRate),
			NextFundingTime: millisString(t.NextFundingTime),
			Timestamp:       millis(ts),
			Status:          models.StatusOnline,
		}
		return f, n.err
	}
	return nil, unsupported(a.name, kind)
}
