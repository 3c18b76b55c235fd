// Package aggregator fans one logical query out to every configured source
// and folds the settled results into a composite answer.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/adapter"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/analytics"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/fetcher"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

// ErrAllSourcesFailed is returned when no source produced usable data.
var ErrAllSourcesFailed = errors.New("all sources failed")

var errPayload = errors.New("unexpected payload type")

// errNoPrice marks a ticker that decoded but carries no positive price.
var errNoPrice = fmt.Errorf("%w: source reported no price", adapter.ErrShape)

// Fetcher is the part of *fetcher.Fetcher the aggregator depends on.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (any, error)
}

type Aggregator struct {
	adapters      []adapter.Adapter
	byName        map[string]adapter.Adapter
	fetcher       Fetcher
	fees          config.FeesConfig
	ttl           config.CacheConfig
	sourceTimeout time.Duration
	log           *logger.Log
	now           func() time.Time
}

// New wires the adapters to f. Results are reported in adapter order.
func New(cfg *config.Config, f Fetcher, adapters []adapter.Adapter) *Aggregator {
	byName := make(map[string]adapter.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Aggregator{
		adapters:      adapters,
		byName:        byName,
		fetcher:       f,
		fees:          cfg.Fees,
		ttl:           cfg.Cache,
		sourceTimeout: cfg.Aggregator.SourceTimeout,
		log:           logger.GetLogger(),
		now:           time.Now,
	}
}

// Sources lists the configured source names in result order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.adapters))
	for i, ad := range a.adapters {
		names[i] = ad.Name()
	}
	return names
}

// leg is the settled outcome of one source.
type leg struct {
	source  adapter.Adapter
	symbol  string
	payload any
	err     error
}

func cacheKey(source string, kind models.DataKind, symbol string) string {
	return source + ":" + string(kind) + ":" + symbol
}

func (a *Aggregator) request(ad adapter.Adapter, kind models.DataKind, inst models.Instrument) (fetcher.Request, error) {
	endpoint, err := ad.Endpoint(kind, inst)
	if err != nil {
		return fetcher.Request{}, err
	}
	symbol := ad.Symbol(kind, inst)
	return fetcher.Request{
		URL:       endpoint,
		Source:    ad.Name(),
		Kind:      string(kind),
		Symbol:    symbol,
		CacheKey:  cacheKey(ad.Name(), kind, symbol),
		TTL:       a.ttl.TTLFor(string(kind)),
		Retryable: true,
		Decode: func(body []byte) (any, error) {
			return ad.Decode(kind, inst, body)
		},
	}, nil
}

func (a *Aggregator) fetch(ctx context.Context, ad adapter.Adapter, kind models.DataKind, inst models.Instrument) leg {
	l := leg{source: ad, symbol: ad.Symbol(kind, inst)}
	req, err := a.request(ad, kind, inst)
	if err != nil {
		l.err = err
		return l
	}
	if a.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
	}
	l.payload, l.err = a.fetcher.Fetch(ctx, req)
	return l
}

// fanOut queries every adapter concurrently and returns once all have
// settled. legs[i] belongs to a.adapters[i].
func (a *Aggregator) fanOut(ctx context.Context, kind models.DataKind, inst models.Instrument) []leg {
	legs := make([]leg, len(a.adapters))
	var wg sync.WaitGroup
	for i, ad := range a.adapters {
		wg.Add(1)
		go func(i int, ad adapter.Adapter) {
			defer wg.Done()
			legs[i] = a.fetch(ctx, ad, kind, inst)
		}(i, ad)
	}
	wg.Wait()
	return legs
}

// statusFor folds a source failure into a status: unusable data is an error,
// anything that kept the data from arriving is offline.
func statusFor(err error) models.Status {
	switch {
	case errors.Is(err, fetcher.ErrDecode),
		errors.Is(err, adapter.ErrShape),
		errors.Is(err, adapter.ErrUnsupported),
		errors.Is(err, errPayload):
		return models.StatusError
	}
	return models.StatusOffline
}

func requestID(ctx context.Context) string {
	if id := RequestIDFrom(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

type requestIDKey struct{}

// WithRequestID attaches an id that is echoed in every composite result.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// finish records the aggregation and decides the error returned with the
// result: cancellation first, then total failure.
func (a *Aggregator) finish(ctx context.Context, kind models.DataKind, id string, start time.Time, online int) error {
	elapsed := time.Since(start)
	metrics.ObserveAggregation(string(kind), elapsed, online)

	entry := a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"request_id": id,
		"kind":       kind,
		"online":     online,
		"sources":    len(a.adapters),
	})
	logger.LogDataFlowEntry(entry, "upstream", "aggregate", online, string(kind))

	if err := ctx.Err(); err != nil {
		entry.WithError(err).Warn("aggregation cancelled; returning settled sources")
		return err
	}
	if online == 0 {
		entry.Warn("no source returned data")
		return ErrAllSourcesFailed
	}
	if online < len(a.adapters) {
		entry.Debug("aggregation completed with failed sources")
	}
	return nil
}

// Aggregate reads the ticker of inst from every source. The result always
// carries one ticker per source. It is returned alongside ErrAllSourcesFailed
// or a context error.
func (a *Aggregator) Aggregate(ctx context.Context, inst models.Instrument) (*models.Aggregate, error) {
	start := time.Now()
	id := requestID(ctx)
	legs := a.fanOut(ctx, models.KindTicker, inst)
	now := a.now()

	tickers := make([]models.Ticker, len(legs))
	online := 0
	for i, l := range legs {
		tickers[i] = a.ticker(l, now)
		if tickers[i].Status == models.StatusOnline {
			online++
		}
	}

	spreads := make([]models.SpreadAnalysis, 0, online)
	for _, t := range tickers {
		if t.Status != models.StatusOnline || t.Bid <= 0 || t.Ask <= 0 {
			continue
		}
		s := analytics.TrueSpread(t.Bid, t.Ask, a.fees.For(t.Exchange).Taker)
		s.Exchange = t.Exchange
		spreads = append(spreads, s)
	}

	agg := &models.Aggregate{
		RequestID:  id,
		Instrument: inst.String(),
		Tickers:    tickers,
		Arbitrage:  analytics.FindArbitrage(tickers),
		Summary:    analytics.Summarize(tickers),
		Spreads:    spreads,
		Timestamp:  now,
	}
	return agg, a.finish(ctx, models.KindTicker, id, start, online)
}

func (a *Aggregator) ticker(l leg, now time.Time) models.Ticker {
	failed := models.Ticker{Exchange: l.source.Name(), Symbol: l.symbol, Timestamp: now}
	if l.err != nil {
		failed.Status = statusFor(l.err)
		failed.Error = l.err.Error()
		return failed
	}
	t, ok := l.payload.(*models.Ticker)
	if !ok || t == nil {
		failed.Status = models.StatusError
		failed.Error = errPayload.Error()
		return failed
	}
	out := *t
	out.Exchange = l.source.Name()
	if out.Timestamp.IsZero() {
		out.Timestamp = now
	}
	if out.Price <= 0 {
		failed.Status = statusFor(errNoPrice)
		failed.Error = errNoPrice.Error()
		return failed
	}
	out.Status = models.StatusOnline
	out.Error = ""
	return out
}

// AggregateFunding reads perpetual funding rates. Sources without a
// derivatives market are reported with status error.
func (a *Aggregator) AggregateFunding(ctx context.Context, inst models.Instrument) (*models.FundingAggregate, error) {
	start := time.Now()
	id := requestID(ctx)
	legs := a.fanOut(ctx, models.KindFunding, inst)
	now := a.now()

	rates := make([]models.Funding, len(legs))
	online := 0
	for i, l := range legs {
		rates[i] = a.funding(l, now)
		if rates[i].Status == models.StatusOnline {
			online++
		}
	}

	agg := &models.FundingAggregate{
		RequestID:  id,
		Instrument: inst.String(),
		Rates:      rates,
		Summary:    analytics.SummarizeFunding(rates),
		Timestamp:  now,
	}
	return agg, a.finish(ctx, models.KindFunding, id, start, online)
}

func (a *Aggregator) funding(l leg, now time.Time) models.Funding {
	failed := models.Funding{Exchange: l.source.Name(), Symbol: l.symbol, Timestamp: now}
	if l.err != nil {
		failed.Status = statusFor(l.err)
		failed.Error = l.err.Error()
		return failed
	}
	f, ok := l.payload.(*models.Funding)
	if !ok || f == nil {
		failed.Status = models.StatusError
		failed.Error = errPayload.Error()
		return failed
	}
	out := *f
	out.Exchange = l.source.Name()
	if out.Timestamp.IsZero() {
		out.Timestamp = now
	}
	out.Status = models.StatusOnline
	out.Error = ""
	return out
}

// CompareExecution walks every source's order book for the same fill and
// ranks the results. Sources whose book could not be read are listed in
// Failed with the reason.
func (a *Aggregator) CompareExecution(ctx context.Context, inst models.Instrument, size float64, side models.Side) (*models.ExecutionComparison, error) {
	// Validate before spending upstream quota.
	if _, err := analytics.AnalyzeExecution(models.OrderBook{}, size, side); err != nil {
		return nil, err
	}

	start := time.Now()
	id := requestID(ctx)
	legs := a.fanOut(ctx, models.KindOrderbook, inst)

	analyses := make([]models.ExecutionAnalysis, 0, len(legs))
	failed := make(map[string]string)
	for _, l := range legs {
		name := l.source.Name()
		if l.err != nil {
			failed[name] = l.err.Error()
			continue
		}
		book, ok := l.payload.(*models.OrderBook)
		if !ok || book == nil {
			failed[name] = errPayload.Error()
			continue
		}
		analysis, err := analytics.AnalyzeExecution(*book, size, side)
		if err != nil {
			failed[name] = err.Error()
			continue
		}
		analysis.Exchange = name
		analysis.Symbol = l.symbol
		analyses = append(analyses, analysis)
	}
	if len(failed) == 0 {
		failed = nil
	}

	cmp := &models.ExecutionComparison{
		RequestID:  id,
		Instrument: inst.String(),
		Side:       side,
		Size:       size,
		Analyses:   analytics.RankExecutions(analyses, side),
		Failed:     failed,
		Timestamp:  a.now(),
	}
	return cmp, a.finish(ctx, models.KindOrderbook, id, start, len(analyses))
}

// FetchOne reads a single data kind from one source through the same cache,
// limiter and retry pipeline as the fan-out. The payload is *models.Ticker,
// *models.OrderBook or *models.Funding.
func (a *Aggregator) FetchOne(ctx context.Context, source string, kind models.DataKind, inst models.Instrument) (any, error) {
	ad, ok := a.byName[strings.ToLower(source)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnknownSource, source)
	}
	l := a.fetch(ctx, ad, kind, inst)
	if l.err != nil {
		return nil, l.err
	}
	switch p := l.payload.(type) {
	case *models.Ticker:
		if p.Price <= 0 {
			return nil, fmt.Errorf("%w from %s", errNoPrice, ad.Name())
		}
		out := *p
		out.Exchange = ad.Name()
		out.Status = models.StatusOnline
		return &out, nil
	case *models.OrderBook:
		out := *p
		out.Exchange = ad.Name()
		return &out, nil
	case *models.Funding:
		out := *p
		out.Exchange = ad.Name()
		out.Status = models.StatusOnline
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %T from %s", errPayload, l.payload, ad.Name())
}
