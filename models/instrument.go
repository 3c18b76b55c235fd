package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInstrument is returned when an instrument string cannot be split
// into a base and a quote asset.
var ErrInvalidInstrument = errors.New("invalid instrument")

// knownQuotes is checked longest first so USDT wins over USD.
var knownQuotes = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "USD", "EUR", "GBP", "TRY", "BTC", "ETH", "BNB"}

// Instrument is one logical trading pair independent of any venue's naming.
type Instrument struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func (i Instrument) String() string {
	return i.Base + "-" + i.Quote
}

// ParseInstrument accepts BTC-USDT, BTC/USDT, btc_usdt and BTCUSDT.
func ParseInstrument(s string) (Instrument, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return Instrument{}, fmt.Errorf("%w: empty", ErrInvalidInstrument)
	}

	for _, sep := range []string{"-", "/", "_", ":"} {
		if strings.Contains(raw, sep) {
			parts := strings.Split(raw, sep)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return Instrument{}, fmt.Errorf("%w: %q", ErrInvalidInstrument, s)
			}
			return Instrument{Base: parts[0], Quote: parts[1]}, nil
		}
	}

	for _, quote := range knownQuotes {
		if strings.HasSuffix(raw, quote) && len(raw) > len(quote) {
			return Instrument{Base: strings.TrimSuffix(raw, quote), Quote: quote}, nil
		}
	}
	return Instrument{}, fmt.Errorf("%w: unknown quote asset in %q", ErrInvalidInstrument, s)
}
