package rate

import (
	"strings"

	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
)

// ReportRateLimited records an upstream 429 for source and kind.
func ReportRateLimited(log *logger.Log, source, symbol, kind string) {
	fields := limitFields(source, symbol, kind)
	metrics.EmitMetric(log, "fetcher", "rate_limit_exceeded", int64(1), "counter", fields)
	log.WithComponent("fetcher").WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan records an upstream response saying the gateway's address is banned.
func ReportIPBan(log *logger.Log, source, symbol, kind string) {
	fields := limitFields(source, symbol, kind)
	metrics.EmitMetric(log, "fetcher", "ip_ban", int64(1), "counter", fields)
	log.WithComponent("fetcher").WithFields(fields).Error("ip banned")
}

func limitFields(source, symbol, kind string) logger.Fields {
	return logger.Fields{
		"exchange": strings.ToLower(source),
		"symbol":   symbol,
		"type":     strings.ToLower(kind),
	}
}

// detectLimit inspects an upstream error body for rate limit or IP ban wording.
// Each exchange phrases these differently.
func detectLimit(exchange, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(exchange) {
	case "binance":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	case "okx":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "frequency limit")
		ipBan = strings.Contains(lowerMsg, "ip") && (strings.Contains(lowerMsg, "blocked") || strings.Contains(lowerMsg, "ban"))
	case "kucoin":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "limit") && strings.Contains(lowerMsg, "triggered")
	case "bybit":
		ipBan = strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "too many visits"))
	case "kraken":
		rateLimit = strings.Contains(lowerMsg, "eapi:rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "temporary lockout")
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// ReportLimitFromMessage records rate limit or ban metrics when msg matches the
// source's wording. It reports whether anything matched.
func ReportLimitFromMessage(log *logger.Log, source, symbol, kind, msg string) bool {
	rateLimit, ipBan := detectLimit(source, msg)
	if ipBan {
		ReportIPBan(log, source, symbol, kind)
	} else if rateLimit {
		ReportRateLimited(log, source, symbol, kind)
	}
	return rateLimit || ipBan
}
