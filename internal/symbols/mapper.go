package symbols

import "strings"

// ToCanonical converts exchange specific spot or perpetual symbols to the
// canonical Binance spot style: uppercase, no separators, BTC instead of XBT
// and without contract multipliers.
// Supported exchanges: binance, bybit, kucoin, coinbase, kraken, okx.
func ToCanonical(exchange, sym string) string {
	sym = strings.ToUpper(sym)
	switch strings.ToLower(exchange) {
	case "binance":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "1000SHIBUSDT":
			sym = "SHIBUSDT"
		}
	case "bybit":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "SHIB1000USDT":
			sym = "SHIBUSDT"
		}
	case "coinbase":
		sym = strings.ReplaceAll(sym, "-", "")
	case "kraken":
		sym = strings.ReplaceAll(sym, "/", "")
		sym = fromXBT(strings.ReplaceAll(sym, "-", ""))
	case "kucoin":
		sym = NormalizeKucoinSymbol(sym)
	case "okx":
		sym = strings.TrimSuffix(sym, "-SWAP")
		sym = strings.ReplaceAll(sym, "-", "")
	}
	return sym
}

// Spot returns the venue's spot symbol for base/quote.
func Spot(exchange, base, quote string) string {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	switch strings.ToLower(exchange) {
	case "okx", "kucoin", "coinbase":
		return base + "-" + quote
	case "kraken":
		if base == "BTC" {
			base = "XBT"
		}
		return base + quote
	default:
		return base + quote
	}
}

// multiplied lists perpetual contracts quoted per 1000 units.
var multiplied = map[string]map[string]string{
	"binance": {"BONK": "1000BONK", "PEPE": "1000PEPE", "SHIB": "1000SHIB"},
	"bybit":   {"BONK": "1000BONK", "PEPE": "1000PEPE", "SHIB": "SHIB1000"},
}

// Perpetual returns the venue's linear perpetual symbol for base/quote.
func Perpetual(exchange, base, quote string) string {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	exchange = strings.ToLower(exchange)
	if m, ok := multiplied[exchange][base]; ok {
		base = m
	}
	switch exchange {
	case "okx":
		return base + "-" + quote + "-SWAP"
	case "kucoin":
		if base == "BTC" {
			base = "XBT"
		}
		return base + quote + "M"
	default:
		return base + quote
	}
}
