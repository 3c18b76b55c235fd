package adapter

import (
	"net/url"
	"time"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

type coinbaseAdapter struct {
	venue
}

type coinbaseTicker struct {
	Ask    string    `json:"ask"`
	Bid    string    `json:"bid"`
	Price  string    `json:"price"`
	Volume string    `json:"volume"`
	Time   time.Time `json:"time"`
}

type coinbaseBook struct {
	Bids     [][]any `json:"bids"`
	Asks     [][]any `json:"asks"`
	Sequence int64   `json:"sequence"`
}

func (a *coinbaseAdapter) Endpoint(kind models.DataKind, inst models.Instrument) (string, error) {
	product := url.PathEscape(a.Symbol(kind, inst))
	switch kind {
	case models.KindTicker:
		return a.build(a.baseURL, "/products/"+product+"/ticker", nil), nil
	case models.KindOrderbook:
		return a.build(a.baseURL, "/products/"+product+"/book", url.Values{"level": {"2"}}), nil
	}
	return "", unsupported(a.name, kind)
}

// Decode handles the Exchange ticker, which carries no 24h range or change.
func (a *coinbaseAdapter) Decode(kind models.DataKind, inst models.Instrument, body []byte) (any, error) {
	sym := a.Symbol(kind, inst)
	switch kind {
	case models.KindTicker:
		var t coinbaseTicker
		if err := decodeJSON(body, &t); err != nil {
			return nil, err
		}
		if t.Price == "" {
			return nil, shapeErr("coinbase ticker without price")
		}
		ts := t.Time.UTC()
		if t.Time.IsZero() {
			ts = time.Now().UTC()
		}
		var n numbers
		out := &models.Ticker{
			Exchange:  a.name,
			Symbol:    sym,
			Price:     n.float(t.Price),
			Bid:       n.float(t.Bid),
			Ask:       n.float(t.Ask),
			Volume24h: n.float(t.Volume),
			Timestamp: ts,
			Status:    models.StatusOnline,
		}
		return out, n.err

	case models.KindOrderbook:
		var b coinbaseBook
		if err := decodeJSON(body, &b); err != nil {
			return nil, err
		}
		if b.Sequence == 0 && len(b.Bids) == 0 && len(b.Asks) == 0 {
			return nil, shapeErr("coinbase book is empty")
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
