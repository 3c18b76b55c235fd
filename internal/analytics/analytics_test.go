package analytics

import (
	"errors"
	"math"
	"testing"

	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func online(exchange string, bid, ask float64) models.Ticker {
	return models.Ticker{Exchange: exchange, Price: (bid + ask) / 2, Bid: bid, Ask: ask, Status: models.StatusOnline}
}

func TestFindArbitrage(t *testing.T) {
	opp := FindArbitrage([]models.Ticker{online("A", 100, 101), online("B", 103, 104)})
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.BuyExchange != "A" || opp.BuyPrice != 101 || opp.SellExchange != "B" || opp.SellPrice != 103 {
		t.Fatalf("unexpected legs %+v", opp)
	}
	if opp.Profit != 2 || !approx(opp.ProfitPercent, 2.0/101*100) {
		t.Fatalf("unexpected profit %+v", opp)
	}
	if math.Abs(opp.ProfitPercent-1.98) > 0.01 {
		t.Fatalf("profit percent %.4f not about 1.98", opp.ProfitPercent)
	}
}

func TestFindArbitrageNone(t *testing.T) {
	tests := []struct {
		name    string
		tickers []models.Ticker
	}{
		{"single source", []models.Ticker{online("A", 103, 101)}},
		{"same source", []models.Ticker{online("A", 105, 100), online("B", 101, 106)}},
		{"no crossing", []models.Ticker{online("A", 100, 101), online("B", 100.5, 101.5)}},
		{"offline ignored", []models.Ticker{online("A", 100, 101), {Exchange: "B", Bid: 200, Ask: 201, Status: models.StatusOffline}}},
		{"empty", nil},
	}
	for _, tt := range tests {
		if opp := FindArbitrage(tt.tickers); opp != nil {
			t.Errorf("%s: unexpected opportunity %+v", tt.name, opp)
		}
	}
}

func TestAnalyzeExecutionBuyAcrossLevels(t *testing.T) {
	book := models.OrderBook{Exchange: "A", Asks: []models.Level{{Price: 100, Size: 1}, {Price: 101, Size: 2}}}
	a, err := AnalyzeExecution(book, 2, models.SideBuy)
	if err != nil {
		t.Fatalf("AnalyzeExecution: %v", err)
	}
	if a.InsufficientLiquidity {
		t.Fatal("unexpected insufficient liquidity")
	}
	if !approx(a.AveragePrice, 100.5) || !approx(a.TotalCost, 201) {
		t.Fatalf("average %v cost %v", a.AveragePrice, a.TotalCost)
	}
	if !approx(a.PriceImpact, 1) || !approx(a.SlippagePercent, 0.5) || !approx(a.Slippage, 1) {
		t.Fatalf("impact %v slippage %v (%v%%)", a.PriceImpact, a.Slippage, a.SlippagePercent)
	}
	if a.LevelsTouched != 2 || !approx(a.DepthConsumed, 100) {
		t.Fatalf("levels %d depth %v", a.LevelsTouched, a.DepthConsumed)
	}
	if a.Rating != models.RatingFair {
		t.Fatalf("rating %s, want fair", a.Rating)
	}
}

func TestAnalyzeExecutionSell(t *testing.T) {
	book := models.OrderBook{Bids: []models.Level{{Price: 100, Size: 5}, {Price: 99, Size: 5}, {Price: 98, Size: 5}}}
	a, err := AnalyzeExecution(book, 1, models.SideSell)
	if err != nil {
		t.Fatalf("AnalyzeExecution: %v", err)
	}
	if a.AveragePrice != 100 || a.Slippage != 0 || a.Rating != models.RatingExcellent {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if !approx(a.DepthConsumed, 100.0/3) {
		t.Fatalf("depth consumed %v", a.DepthConsumed)
	}
}

func TestAnalyzeExecutionSkipsEmptyLevels(t *testing.T) {
	book := models.OrderBook{Asks: []models.Level{{Price: 99, Size: 0}, {Price: 100, Size: 1}, {Price: 101, Size: 1}}}
	a, err := AnalyzeExecution(book, 1, models.SideBuy)
	if err != nil {
		t.Fatalf("AnalyzeExecution: %v", err)
	}
	if a.BestPrice != 100 || a.AveragePrice != 100 || a.Slippage != 0 || a.SlippagePercent != 0 {
		t.Fatalf("empty level used as reference price: %+v", a)
	}
	if a.LevelsTouched != 1 || !approx(a.DepthConsumed, 50) || a.Rating != models.RatingExcellent {
		t.Fatalf("levels %d depth %v rating %s", a.LevelsTouched, a.DepthConsumed, a.Rating)
	}
	if book.Asks[0].Size != 0 || len(book.Asks) != 3 {
		t.Fatalf("book modified: %+v", book.Asks)
	}
}

func TestAnalyzeExecutionInsufficientLiquidity(t *testing.T) {
	book := models.OrderBook{Asks: []models.Level{{Price: 100, Size: 1}, {Price: 101, Size: 1}}}
	a, err := AnalyzeExecution(book, 5, models.SideBuy)
	if err != nil {
		t.Fatalf("AnalyzeExecution: %v", err)
	}
	if !a.InsufficientLiquidity || !math.IsInf(a.TotalCost, 1) {
		t.Fatalf("expected infinite cost, got %+v", a)
	}
	if a.Rating != models.RatingDangerous || a.Warning == "" {
		t.Fatalf("expected dangerous rating with warning, got %s %q", a.Rating, a.Warning)
	}
	if a.Filled != 2 {
		t.Fatalf("filled %v", a.Filled)
	}
}

func TestAnalyzeExecutionEmptyBook(t *testing.T) {
	a, err := AnalyzeExecution(models.OrderBook{}, 1, models.SideSell)
	if err != nil {
		t.Fatalf("AnalyzeExecution: %v", err)
	}
	if !a.InsufficientLiquidity || a.Rating != models.RatingDangerous {
		t.Fatalf("unexpected %+v", a)
	}
}

func TestAnalyzeExecutionInvalidSize(t *testing.T) {
	book := models.OrderBook{Asks: []models.Level{{Price: 1, Size: 1}}}
	for _, size := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := AnalyzeExecution(book, size, models.SideBuy); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("size %v: err=%v", size, err)
		}
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		in   float64
		want models.LiquidityRating
	}{
		{0, models.RatingExcellent},
		{0.099, models.RatingExcellent},
		{0.1, models.RatingGood},
		{0.5, models.RatingFair},
		{0.99, models.RatingFair},
		{1, models.RatingPoor},
		{2.99, models.RatingPoor},
		{3, models.RatingDangerous},
		{12, models.RatingDangerous},
	}
	for _, tt := range tests {
		if got := Rate(tt.in); got != tt.want {
			t.Errorf("Rate(%v)=%s want %s", tt.in, got, tt.want)
		}
	}
}

func TestAnalyzeExecutionDangerousSlippageWarns(t *testing.T) {
	book := models.OrderBook{Asks: []models.Level{{Price: 100, Size: 1}, {Price: 120, Size: 10}}}
	a, err := AnalyzeExecution(book, 2, models.SideBuy)
	if err != nil {
		t.Fatalf("AnalyzeExecution: %v", err)
	}
	if a.Rating != models.RatingDangerous || a.Warning == "" || a.InsufficientLiquidity {
		t.Fatalf("unexpected %+v", a)
	}
}

func TestTrueSpread(t *testing.T) {
	s := TrueSpread(100, 100.1, 0.0005)
	raw := 0.1 / 100.1 * 100
	if !approx(s.RawSpreadPercent, raw) || !approx(s.FeePercent, 0.1) {
		t.Fatalf("raw %v fee %v", s.RawSpreadPercent, s.FeePercent)
	}
	if !approx(s.NetSpreadPercent, raw-0.1) || s.NetSpreadPercent >= 0 || s.Profitable {
		t.Fatalf("net %v profitable %v", s.NetSpreadPercent, s.Profitable)
	}

	wide := TrueSpread(95, 100, 0.001)
	if !approx(wide.NetSpreadPercent, 4.8) || !wide.Profitable {
		t.Fatalf("wide spread %+v", wide)
	}
}

func TestRankExecutions(t *testing.T) {
	analyses := []models.ExecutionAnalysis{
		{Exchange: "dry", InsufficientLiquidity: true, TotalCost: math.Inf(1)},
		{Exchange: "mid", AveragePrice: 101},
		{Exchange: "cheap", AveragePrice: 100},
		{Exchange: "tie", AveragePrice: 101},
		{Exchange: "dear", AveragePrice: 103},
	}

	buy := RankExecutions(analyses, models.SideBuy)
	wantBuy := []struct {
		exchange string
		rank     int
	}{{"cheap", 1}, {"mid", 2}, {"tie", 2}, {"dear", 3}, {"dry", 4}}
	for i, w := range wantBuy {
		if buy[i].Exchange != w.exchange || buy[i].Rank != w.rank {
			t.Fatalf("buy[%d]=%s rank %d, want %s rank %d", i, buy[i].Exchange, buy[i].Rank, w.exchange, w.rank)
		}
	}

	sell := RankExecutions(analyses, models.SideSell)
	if sell[0].Exchange != "dear" || sell[0].Rank != 1 || sell[len(sell)-1].Exchange != "dry" {
		t.Fatalf("unexpected sell order %v", sell)
	}
	if analyses[0].Rank != 0 {
		t.Fatalf("input was modified")
	}
}

func TestSummarize(t *testing.T) {
	tickers := []models.Ticker{
		{Exchange: "A", Price: 100, Bid: 99, Ask: 101, High24h: 110, Low24h: 90, Volume24h: 10, Status: models.StatusOnline},
		{Exchange: "B", Price: 102, Bid: 101, Ask: 103, High24h: 112, Low24h: 95, Volume24h: 5, Status: models.StatusOnline},
		{Exchange: "C", Status: models.StatusOffline},
	}
	s := Summarize(tickers)
	if s.OnlineSources != 2 || s.TotalSources != 3 {
		t.Fatalf("sources %d/%d", s.OnlineSources, s.TotalSources)
	}
	if s.AveragePrice != 101 || s.TotalVolume != 15 {
		t.Fatalf("average %v volume %v", s.AveragePrice, s.TotalVolume)
	}
	if s.BestBid != 101 || s.BestBidExchange != "B" || s.BestAsk != 101 || s.BestAskExchange != "A" {
		t.Fatalf("best bid/ask %+v", s)
	}
	if s.High24h != 112 || s.Low24h != 90 || !approx(s.PriceSpreadPercent, 2) {
		t.Fatalf("range %+v", s)
	}

	if empty := Summarize([]models.Ticker{{Exchange: "C", Status: models.StatusError}}); empty.AveragePrice != 0 || empty.OnlineSources != 0 {
		t.Fatalf("unexpected summary for offline-only input %+v", empty)
	}
}

func TestSummarizeFunding(t *testing.T) {
	s := SummarizeFunding([]models.Funding{
		{Exchange: "A", RatePercent: 0.01, Status: models.StatusOnline},
		{Exchange: "B", RatePercent: -0.02, Status: models.StatusOnline},
		{Exchange: "C", RatePercent: 0.04, Status: models.StatusOnline},
		{Exchange: "D", Status: models.StatusError},
	})
	if s.OnlineSources != 3 || s.TotalSources != 4 {
		t.Fatalf("sources %+v", s)
	}
	if !approx(s.AverageRatePercent, 0.01) || s.MinExchange != "B" || s.MaxExchange != "C" {
		t.Fatalf("unexpected summary %+v", s)
	}
}
