package analytics

import "github.com/rapfii/NEXUS-Terminal-sub001/models"

// FindArbitrage pairs the highest bid with the lowest positive ask among online
// tickers. It returns nil unless at least two sources are online and the bid
// exceeds the ask on a different venue.
func FindArbitrage(tickers []models.Ticker) *models.ArbitrageOpportunity {
	var (
		online int
		maxBid *models.Ticker
		minAsk *models.Ticker
	)
	for i := range tickers {
		t := &tickers[i]
		if t.Status != models.StatusOnline {
			continue
		}
		online++
		if t.Bid > 0 && (maxBid == nil || t.Bid > maxBid.Bid) {
			maxBid = t
		}
		if t.Ask > 0 && (minAsk == nil || t.Ask < minAsk.Ask) {
			minAsk = t
		}
	}
	if online < 2 || maxBid == nil || minAsk == nil {
		return nil
	}
	if maxBid.Exchange == minAsk.Exchange || maxBid.Bid <= minAsk.Ask {
		return nil
	}

	profit := maxBid.Bid - minAsk.Ask
	return &models.ArbitrageOpportunity{
		BuyExchange:   minAsk.Exchange,
		BuyPrice:      minAsk.Ask,
		SellExchange:  maxBid.Exchange,
		SellPrice:     maxBid.Bid,
		Profit:        profit,
		ProfitPercent: profit / minAsk.Ask * 100,
	}
}

// TrueSpread is the top of book spread in percent of the ask after paying the
// taker fee (a fraction, e.g. 0.001) on both legs.
func TrueSpread(bid, ask, takerFee float64) models.SpreadAnalysis {
	out := models.SpreadAnalysis{
		Bid:        bid,
		Ask:        ask,
		FeePercent: 2 * takerFee * 100,
	}
	if ask <= 0 || bid <= 0 {
		out.NetSpreadPercent = -out.FeePercent
		return out
	}
	out.RawSpreadPercent = (ask - bid) / ask * 100
	out.NetSpreadPercent = out.RawSpreadPercent - out.FeePercent
	out.Profitable = out.NetSpreadPercent > 0
	return out
}

// Summarize aggregates tickers with a positive price. TotalSources counts
// every ticker given.
func Summarize(tickers []models.Ticker) models.MarketSummary {
	s := models.MarketSummary{TotalSources: len(tickers)}

	var sum, minPrice, maxPrice float64
	for _, t := range tickers {
		if t.Status != models.StatusOnline || t.Price <= 0 {
			continue
		}
		s.OnlineSources++
		sum += t.Price
		s.TotalVolume += t.Volume24h

		if s.OnlineSources == 1 || t.Price < minPrice {
			minPrice = t.Price
		}
		if t.Price > maxPrice {
			maxPrice = t.Price
		}
		if t.Bid > s.BestBid {
			s.BestBid = t.Bid
			s.BestBidExchange = t.Exchange
		}
		if t.Ask > 0 && (s.BestAsk == 0 || t.Ask < s.BestAsk) {
			s.BestAsk = t.Ask
			s.BestAskExchange = t.Exchange
		}
		if t.High24h > s.High24h {
			s.High24h = t.High24h
		}
		if t.Low24h > 0 && (s.Low24h == 0 || t.Low24h < s.Low24h) {
			s.Low24h = t.Low24h
		}
	}

	if s.OnlineSources == 0 {
		return s
	}
	s.AveragePrice = sum / float64(s.OnlineSources)
	if minPrice > 0 {
		s.PriceSpreadPercent = (maxPrice - minPrice) / minPrice * 100
	}
	return s
}

// SummarizeFunding aggregates online funding rates.
func SummarizeFunding(rates []models.Funding) models.FundingSummary {
	s := models.FundingSummary{TotalSources: len(rates)}
	var sum float64
	for _, f := range rates {
		if f.Status != models.StatusOnline {
			continue
		}
		s.OnlineSources++
		sum += f.RatePercent
		if s.OnlineSources == 1 || f.RatePercent < s.MinRatePercent {
			s.MinRatePercent = f.RatePercent
			s.MinExchange = f.Exchange
		}
		if s.OnlineSources == 1 || f.RatePercent > s.MaxRatePercent {
			s.MaxRatePercent = f.RatePercent
			s.MaxExchange = f.Exchange
		}
	}
	if s.OnlineSources > 0 {
		s.AverageRatePercent = sum / float64(s.OnlineSources)
	}
	return s
}
