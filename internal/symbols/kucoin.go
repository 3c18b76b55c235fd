package symbols

import "strings"

// kucoinFuturesQuotes are the quote suffixes of KuCoin perpetual contracts,
// e.g. XBTUSDTM.
var kucoinFuturesQuotes = []string{"USDTM", "USDCM", "USDM"}

// NormalizeKucoinSymbol converts KuCoin spot (ETH-USDT) and futures
// (XBTUSDTM) symbols to the canonical format.
func NormalizeKucoinSymbol(sym string) string {
	sym = strings.ReplaceAll(strings.ToUpper(sym), "-", "")
	for _, quote := range kucoinFuturesQuotes {
		if strings.HasSuffix(sym, quote) {
			sym = strings.TrimSuffix(sym, "M")
			break
		}
	}
	return fromXBT(sym)
}

// fromXBT renames the XBT ticker used for bitcoin by KuCoin futures and Kraken.
func fromXBT(sym string) string {
	if strings.HasPrefix(sym, "XBT") {
		return "BTC" + sym[3:]
	}
	return sym
}
