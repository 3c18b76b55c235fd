package adapter

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

type krakenAdapter struct {
	venue
}

// krakenEnvelope keys results by Kraken's own pair name, e.g. XXBTZUSD for
// XBTUSD, so the single entry is read whatever its key.
type krakenEnvelope struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

type krakenTicker struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Last   []string `json:"c"`
	Volume []string `json:"v"`
	Low    []string `json:"l"`
	High   []string `json:"h"`
	Open   string   `json:"o"`
}

type krakenBook struct {
	Asks [][]any `json:"asks"`
	Bids [][]any `json:"bids"`
}

func (a *krakenAdapter) Endpoint(kind models.DataKind, inst models.Instrument) (string, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		return a.build(a.baseURL, "/0/public/Ticker", url.Values{"pair": {sym}}), nil
	case models.KindOrderbook:
		q := url.Values{"pair": {sym}}
		if a.depth > 0 {
			q.Set("count", strconv.Itoa(a.depth))
		}
		return a.build(a.baseURL, "/0/public/Depth", q), nil
	}
	return "", unsupported(a.name, kind)
}

func krakenResult(body []byte, v any) error {
	var env krakenEnvelope
	if err := decodeJSON(body, &env); err != nil {
		return err
	}
	if len(env.Error) > 0 {
		return shapeErr("kraken: %s", strings.Join(env.Error, "; "))
	}
	if len(env.Result) == 0 {
		return shapeErr("kraken returned no result")
	}
	keys := make([]string, 0, len(env.Result))
	for k := range env.Result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return decodeJSON(env.Result[keys[0]], v)
}

// second returns the 24h column of Kraken's [today, last 24h] pairs.
func second(v []string) string {
	if len(v) > 1 {
		return v[1]
	}
	return ""
}

func first(v []string) string {
	if len(v) > 0 {
		return v[0]
	}
	return ""
}

func (a *krakenAdapter) Decode(kind models.DataKind, inst models.Instrument, body []byte) (any, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		var t krakenTicker
		if err := krakenResult(body, &t); err != nil {
			return nil, err
		}
		if first(t.Last) == "" {
			return nil, shapeErr("kraken ticker without last trade")
		}
		var n numbers
		last := n.float(first(t.Last))
		out := &models.Ticker{
			Exchange:  a.name,
			Symbol:    sym,
			Price:     last,
			Bid:       n.float(first(t.Bid)),
			Ask:       n.float(first(t.Ask)),
			Volume24h: n.float(second(t.Volume)),
			Change24h: changePercent(last, n.float(t.Open)),
			High24h:   n.float(second(t.High)),
			Low24h:    n.float(second(t.Low)),
			Timestamp: millis(0),
			Status:    models.StatusOnline,
		}
		return out, n.err

	case models.KindOrderbook:
		var b krakenBook
		if err := krakenResult(body, &b); err != nil {
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
		return a.finishBook(&models.OrderBook{Symbol: sym, Bids: bids, Asks: asks, Timestamp: millis(0)}), nil
	}
	return nil, unsupported(a.name, kind)
}
