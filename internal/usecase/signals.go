package usecase

import (
	"strings"

	"finrag/internal/domain"
)

// MaxSignalTickers bounds how many tickers are annotated per response.
const MaxSignalTickers = 5

var (
	bullishKeywords = []string{"bullish", "buy", "upside", "growth", "positive"}
	bearishKeywords = []string{"bearish", "sell", "downside", "risk", "negative"}
)

// ExtractSignals annotates generated analysis with a keyword-count
// direction per mentioned ticker. It is a heuristic, not advice: a ticker
// mentioned anywhere in the text gets the direction of whichever keyword
// set has more distinct matches across the whole text, with confidence
// matches/5 capped at 1. Ties yield no signal.
func ExtractSignals(analysis string, tickers []string) []domain.Signal {
	signals := []domain.Signal{}
	if len(tickers) == 0 {
		return signals
	}

	lower := strings.ToLower(analysis)
	bullish := countKeywords(lower, bullishKeywords)
	bearish := countKeywords(lower, bearishKeywords)

	for _, ticker := range tickers[:min(len(tickers), MaxSignalTickers)] {
		if ticker == "" || !strings.Contains(lower, strings.ToLower(ticker)) {
			continue
		}
		switch {
		case bullish > bearish:
			signals = append(signals, domain.Signal{
				Ticker:     ticker,
				Direction:  domain.Bullish,
				Confidence: confidence(bullish),
				Reason:     "Positive indicators detected",
			})
		case bearish > bullish:
			signals = append(signals, domain.Signal{
				Ticker:     ticker,
				Direction:  domain.Bearish,
				Confidence: confidence(bearish),
				Reason:     "Risk factors detected",
			})
		}
	}
	return signals
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func confidence(count int) float64 {
	return min(float64(count)/5, 1.0)
}
