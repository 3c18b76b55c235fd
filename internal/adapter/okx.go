package adapter

import (
	"net/url"
	"strconv"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

type okxAdapter struct {
	venue
}

type okxEnvelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

type okxTicker struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	AskPx   string `json:"askPx"`
	BidPx   string `json:"bidPx"`
	Open24h string `json:"open24h"`
	High24h string `json:"high24h"`
	Low24h  string `json:"low24h"`
	Vol24h  string `json:"vol24h"`
	TS      string `json:"ts"`
}

type okxBook struct {
	Asks [][]any `json:"asks"`
	Bids [][]any `json:"bids"`
	TS   string  `json:"ts"`
}

type okxFunding struct {
	InstID      string `json:"instId"`
	FundingRate string `json:"fundingRate"`
	FundingTime string `json:"fundingTime"`
	TS          string `json:"ts"`
}

func (a *okxAdapter) Endpoint(kind models.DataKind, inst models.Instrument) (string, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		return a.build(a.baseURL, "/api/v5/market/ticker", url.Values{"instId": {sym}}), nil
	case models.KindOrderbook:
		size := a.depth
		if size <= 0 || size > 400 {
			size = 400
		}
		return a.build(a.baseURL, "/api/v5/market/books", url.Values{"instId": {sym}, "sz": {strconv.Itoa(size)}}), nil
	case models.KindFunding:
		return a.build(a.baseURL, "/api/v5/public/funding-rate", url.Values{"instId": {sym}}), nil
	}
	return "", unsupported(a.name, kind)
}

func okxFirst[T any](body []byte) (T, error) {
	var env okxEnvelope[T]
	var zero T
	if err := decodeJSON(body, &env); err != nil {
		return zero, err
	}
	if env.Code != "0" {
		return zero, shapeErr("okx code %s: %s", env.Code, env.Msg)
	}
	if len(env.Data) == 0 {
		return zero, shapeErr("okx returned no data")
	}
	return env.Data[0], nil
}

func (a *okxAdapter) Decode(kind models.DataKind, inst models.Instrument, body []byte) (any, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		t, err := okxFirst[okxTicker](body)
		if err != nil {
			return nil, err
		}
		if !a.sameSymbol(t.InstID, sym) {
			return nil, shapeErr("okx ticker for %q, want %s", t.InstID, sym)
		}
		var n numbers
		last := n.float(t.Last)
		out := &models.Ticker{
			Exchange:  a.name,
			Symbol:    sym,
			Price:     last,
			Bid:       n.float(t.BidPx),
			Ask:       n.float(t.AskPx),
			Volume24h: n.float(t.Vol24h),
			Change24h: changePercent(last, n.float(t.Open24h)),
			High24h:   n.float(t.High24h),
			Low24h:    n.float(t.Low24h),
			Timestamp: millisString(t.TS),
			Status:    models.StatusOnline,
		}
		return out, n.err

	case models.KindOrderbook:
		b, err := okxFirst[okxBook](body)
		if err != nil {
			return nil, err
		}
		bids, err := parseLevels(b.Bids)
		if err != nil {
			return nil, err
		}
		asks, err := parseLevels(b.Asks)
		if err != nil {
			return nil, err
		}
		return a.finishBook(&models.OrderBook{Symbol: sym, Bids: bids, Asks: asks, Timestamp: millisString(b.TS)}), nil

	case models.KindFunding:
		f, err := okxFirst[okxFunding](body)
		if err != nil {
			return nil, err
		}
		if !a.sameSymbol(f.InstID, sym) {
			return nil, shapeErr("okx funding for %q, want %s", f.InstID, sym)
		}
		var n numbers
		out := &models.Funding{
			Exchange:        a.name,
			Symbol:          sym,
			RatePercent:     n.percent(f.FundingRate),
			NextFundingTime: millisString(f.FundingTime),
			Timestamp:       millisString(f.TS),
			Status:          models.StatusOnline,
		}
		return out, n.err
	}
	return nil, unsupported(a.name, kind)
}
