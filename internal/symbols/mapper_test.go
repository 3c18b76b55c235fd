package symbols

import "testing"

func TestToCanonical(t *testing.T) {
	tests := []struct {
		exchange string
		in       string
		want     string
	}{
		{"kucoin", "XBT-USDTM", "BTCUSDT"},
		{"kucoin", "ETH-USDT", "ETHUSDT"},
		{"kucoin", "ATOM-USDT", "ATOMUSDT"},
		{"kucoin", "XBTUSDM", "BTCUSD"},
		{"coinbase", "BTC-USD", "BTCUSD"},
		{"kraken", "XBT/USD", "BTCUSD"},
		{"binance", "ETHUSDT", "ETHUSDT"},
		{"binance", "1000BONKUSDT", "BONKUSDT"},
		{"binance", "1000SHIBUSDT", "SHIBUSDT"},
		{"bybit", "SHIB1000USDT", "SHIBUSDT"},
		{"bybit", "1000PEPEUSDT", "PEPEUSDT"},
		{"okx", "BTC-USDT-SWAP", "BTCUSDT"},
		{"okx", "eth-usdt", "ETHUSDT"},
	}
	for _, tt := range tests {
		if got := ToCanonical(tt.exchange, tt.in); got != tt.want {
			t.Errorf("ToCanonical(%s,%s)=%s want %s", tt.exchange, tt.in, got, tt.want)
		}
	}
}

func TestSpotAndPerpetualRoundTrip(t *testing.T) {
	for _, ex := range []string{"binance", "bybit", "okx", "kucoin", "coinbase", "kraken"} {
		for _, base := range []string{"BTC", "ETH", "PEPE", "SHIB"} {
			want := base + "USDT"
			if got := ToCanonical(ex, Spot(ex, base, "USDT")); got != want {
				t.Errorf("%s spot %s: got %s", ex, base, got)
			}
			if ex == "coinbase" || ex == "kraken" {
				continue
			}
			if got := ToCanonical(ex, Perpetual(ex, base, "USDT")); got != want {
				t.Errorf("%s perpetual %s: got %s", ex, base, got)
			}
		}
	}
}

func TestPerpetualSymbols(t *testing.T) {
	tests := []struct {
		exchange, base, want string
	}{
		{"binance", "BTC", "BTCUSDT"},
		{"binance", "PEPE", "1000PEPEUSDT"},
		{"bybit", "SHIB", "SHIB1000USDT"},
		{"okx", "BTC", "BTC-USDT-SWAP"},
		{"kucoin", "BTC", "XBTUSDTM"},
	}
	for _, tt := range tests {
		if got := Perpetual(tt.exchange, tt.base, "USDT"); got != tt.want {
			t.Errorf("Perpetual(%s,%s)=%s want %s", tt.exchange, tt.base, got, tt.want)
		}
	}
}
