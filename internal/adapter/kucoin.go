package adapter

import (
	"net/url"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

type kucoinAdapter struct {
	venue
}

// kucoinSuccess is the code of a successful KuCoin response.
const kucoinSuccess = "200000"

type kucoinEnvelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type kucoinStats struct {
	Time       int64  `json:"time"`
	Symbol     string `json:"symbol"`
	Buy        string `json:"buy"`
	Sell       string `json:"sell"`
	ChangeRate string `json:"changeRate"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Vol        string `json:"vol"`
	Last       string `json:"last"`
}

type kucoinBook struct {
	Time int64   `json:"time"`
	Bids [][]any `json:"bids"`
	Asks [][]any `json:"asks"`
}

type kucoinFunding struct {
	Symbol      string  `json:"symbol"`
	Granularity int64   `json:"granularity"`
	TimePoint   int64   `json:"timePoint"`
	Value       float64 `json:"value"`
}

func (a *kucoinAdapter) Endpoint(kind models.DataKind, inst models.Instrument) (string, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		return a.build(a.baseURL, "/api/v1/market/stats", url.Values{"symbol": {sym}}), nil
	case models.KindOrderbook:
		path := "/api/v1/market/orderbook/level2_100"
		if a.depth > 0 && a.depth <= 20 {
			path = "/api/v1/market/orderbook/level2_20"
		}
		return a.build(a.baseURL, path, url.Values{"symbol": {sym}}), nil
	case models.KindFunding:
		base, err := a.futures()
		if err != nil {
			return "", err
		}
		return a.build(base, "/api/v1/funding-rate/"+url.PathEscape(sym)+"/current", nil), nil
	}
	return "", unsupported(a.name, kind)
}

func kucoinData[T any](body []byte) (T, error) {
	var env kucoinEnvelope[T]
	if err := decodeJSON(body, &env); err != nil {
		return env.Data, err
	}
	if env.Code != kucoinSuccess {
		return env.Data, shapeErr("kucoin code %s: %s", env.Code, env.Msg)
	}
	return env.Data, nil
}

func (a *kucoinAdapter) Decode(kind models.DataKind, inst models.Instrument, body []byte) (any, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		s, err := kucoinData[kucoinStats](body)
		if err != nil {
			return nil, err
		}
		if s.Last == "" || !a.sameSymbol(s.Symbol, sym) {
			return nil, shapeErr("kucoin stats for %q, want %s", s.Symbol, sym)
		}
		var n numbers
		out := &models.Ticker{
			Exchange:  a.name,
			Symbol:    sym,
			Price:     n.float(s.Last),
			Bid:       n.float(s.Buy),
			Ask:       n.float(s.Sell),
			Volume24h: n.float(s.Vol),
			Change24h: n.percent(s.ChangeRate),
			High24h:   n.float(s.High),
			Low24h:    n.float(s.Low),
			Timestamp: millis(s.Time),
			Status:    models.StatusOnline,
		}
		return out, n.err

	case models.KindOrderbook:
		b, err := kucoinData[kucoinBook](body)
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
		return a.finishBook(&models.OrderBook{Symbol: sym, Bids: bids, Asks: asks, Timestamp: millis(b.Time)}), nil

	case models.KindFunding:
		f, err := kucoinData[*kucoinFunding](body)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, shapeErr("kucoin returned no funding rate for %s", sym)
		}
		return &models.Funding{
			Exchange:        a.name,
			Symbol:          sym,
			RatePercent:     f.Value * 100,
			NextFundingTime: millis(f.TimePoint + f.Granularity),
			Timestamp:       millis(f.TimePoint),
			Status:          models.StatusOnline,
		}, nil
	}
	return nil, unsupported(a.name, kind)
}
