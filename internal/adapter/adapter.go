// Package adapter maps one logical instrument onto each venue's REST API and
// normalizes the venue's JSON into the gateway's models.
package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/symbols"
	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

var (
	// ErrUnsupported is returned for data kinds a venue does not offer.
	ErrUnsupported = errors.New("data kind not supported by source")

	ErrUnknownSource = errors.New("unknown source")

	// ErrShape marks a well formed JSON document that does not carry the
	// expected data, e.g. an empty result list or a venue error code.
	ErrShape = errors.New("unexpected response shape")
)

// Adapter is implemented once per venue.
type Adapter interface {
	Name() string
	// Symbol is the venue's name for inst; perpetual contracts are used for
	// funding.
	Symbol(kind models.DataKind, inst models.Instrument) string
	Endpoint(kind models.DataKind, inst models.Instrument) (string, error)
	// Decode returns *models.Ticker, *models.OrderBook or *models.Funding.
	Decode(kind models.DataKind, inst models.Instrument, body []byte) (any, error)
}

type constructor func(venue) Adapter

var constructors = map[string]constructor{
	"binance":  func(v venue) Adapter { return &binanceAdapter{venue: v} },
	"bybit":    func(v venue) Adapter { return &bybitAdapter{venue: v} },
	"okx":      func(v venue) Adapter { return &okxAdapter{venue: v} },
	"kucoin":   func(v venue) Adapter { return &kucoinAdapter{venue: v} },
	"coinbase": func(v venue) Adapter { return &coinbaseAdapter{venue: v} },
	"kraken":   func(v venue) Adapter { return &krakenAdapter{venue: v} },
}

// Names lists every venue with an adapter.
func Names() []string {
	return []string{"binance", "bybit", "coinbase", "kraken", "kucoin", "okx"}
}

// New builds the adapter for name. depth bounds order book levels per side.
func New(name string, src config.SourceConfig, depth int) (Adapter, error) {
	name = strings.ToLower(name)
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return ctor(venue{
		name:       name,
		baseURL:    strings.TrimRight(src.BaseURL, "/"),
		futuresURL: strings.TrimRight(src.FuturesURL, "/"),
		depth:      depth,
	}), nil
}

// FromConfig builds adapters for every enabled source in name order.
func FromConfig(cfg *config.Config) ([]Adapter, error) {
	names := cfg.EnabledSources()
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, err := New(name, cfg.Sources[name], cfg.Aggregator.OrderbookDepth)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// venue carries what every adapter shares.
type venue struct {
	name       string
	baseURL    string
	futuresURL string
	depth      int
}

func (v venue) Name() string {
	return v.name
}

func (v venue) Symbol(kind models.DataKind, inst models.Instrument) string {
	if kind == models.KindFunding {
		return symbols.Perpetual(v.name, inst.Base, inst.Quote)
	}
	return symbols.Spot(v.name, inst.Base, inst.Quote)
}

func (v venue) build(base, path string, query url.Values) string {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (v venue) futures() (string, error) {
	if v.futuresURL == "" {
		return "", fmt.Errorf("%w: %s has no futures endpoint configured", ErrUnsupported, v.name)
	}
	return v.futuresURL, nil
}

// sameSymbol reports whether a symbol echoed by the venue names the requested
// instrument.
func (v venue) sameSymbol(got, want string) bool {
	return symbols.ToCanonical(v.name, got) == symbols.ToCanonical(v.name, want)
}

func (v venue) finishBook(book *models.OrderBook) *models.OrderBook {
	book.Exchange = v.name
	book.Sort()
	book.Truncate(v.depth)
	return book
}

func unsupported(name string, kind models.DataKind) error {
	return fmt.Errorf("%w: %s %s", ErrUnsupported, name, kind)
}

func shapeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}
