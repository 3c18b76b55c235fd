package rate

import (
	"testing"

	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
)

func TestDetectLimit(t *testing.T) {
	cases := []struct {
		exchange string
		msg      string
		rate     bool
		ban      bool
	}{
		{"binance", "Too many requests", true, false},
		{"okx", "IP has been blocked for 60 seconds", false, true},
		{"kucoin", "429 Too Many Requests", true, false},
		{"bybit", "IP rate limit reached", false, true},
		{"kraken", `{"error":["EAPI:Rate limit exceeded"]}`, true, false},
		{"unknown", "hello world", false, false},
	}
	for _, c := range cases {
		rl, ban := detectLimit(c.exchange, c.msg)
		if rl != c.rate {
			t.Errorf("exchange %s: expected rateLimit %v got %v", c.exchange, c.rate, rl)
		}
		if ban != c.ban {
			t.Errorf("exchange %s: expected ipBan %v got %v", c.exchange, c.ban, ban)
		}
	}
}

func TestReportLimitFromMessageEmitsMetric(t *testing.T) {
	names := make(chan string, 2)
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) {
		names <- m.Name
	})
	t.Cleanup(func() { metrics.UnregisterMetricHandler(id) })

	log := logger.GetLogger()
	if !ReportLimitFromMessage(log, "binance", "BTCUSDT", "ticker", "Way too many requests; IP banned until 1700000000000") {
		t.Fatalf("expected message to match")
	}
	if got := <-names; got != "ip_ban" {
		t.Fatalf("expected ip_ban metric, got %s", got)
	}

	if ReportLimitFromMessage(log, "binance", "BTCUSDT", "ticker", "internal error") {
		t.Fatalf("unexpected match")
	}
	select {
	case got := <-names:
		t.Fatalf("unexpected metric %s", got)
	default:
	}
}
