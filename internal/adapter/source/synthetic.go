package source

import (
	"context"
	"fmt"
	"time"

	"finrag/internal/domain"
)

var knownCompanies = map[string]struct{ name, sector, industry string }{
	"AAPL":  {"Apple Inc.", "Technology", "Consumer Electronics"},
	"MSFT":  {"Microsoft Corporation", "Technology", "Software"},
	"GOOGL": {"Alphabet Inc.", "Communication Services", "Internet Content & Information"},
	"AMZN":  {"Amazon.com, Inc.", "Consumer Cyclical", "Internet Retail"},
	"NVDA":  {"NVIDIA Corporation", "Technology", "Semiconductors"},
	"META":  {"Meta Platforms, Inc.", "Communication Services", "Internet Content & Information"},
	"TSLA":  {"Tesla, Inc.", "Consumer Cyclical", "Auto Manufacturers"},
	"JPM":   {"JPMorgan Chase & Co.", "Financial Services", "Banks"},
	"V":     {"Visa Inc.", "Financial Services", "Credit Services"},
	"JNJ":   {"Johnson & Johnson", "Healthcare", "Drug Manufacturers"},
}

// SyntheticSource fabricates plausible records so the pipeline can run
// without network access. Output depends only on the ticker and the clock.
type SyntheticSource struct {
	now func() time.Time
}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{now: time.Now}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) Fetch(ctx context.Context, ticker string) domain.RawEntityRecord {
	company := knownCompanies[ticker]
	if company.name == "" {
		company.name = ticker + " Corporation"
		company.sector = "Technology"
		company.industry = "Software"
	}
	date := s.now().UTC().Format(time.RFC3339)

	docs := []domain.RawDocument{
		{
			Type: domain.DocCompanyOverview,
			Content: fmt.Sprintf("Company: %s (%s)\nSector: %s\nIndustry: %s\n"+
				"Summary: %s is a leading %s company operating in the %s industry. "+
				"It designs, builds and sells products and services to consumers and businesses worldwide.\n"+
				"Key Metrics:\n- Market Cap: $2,500,000,000,000\n- P/E Ratio: 30.50\n- Current Price: $150.00\n"+
				"- Analyst Recommendation: buy",
				company.name, ticker, company.sector, company.industry,
				ticker, company.sector, company.industry),
			Date: date,
		},
		{
			Type: domain.DocFinancialPerformance,
			Content: fmt.Sprintf("Financials for %s:\nRevenue: $100B\nGross Profit: $60B\nOperating Income: $40B\n"+
				"Margins held steady over the trailing twelve months and management reiterated full-year guidance. "+
				"Strong growth expected in 2025 as new products reach customers.", ticker),
			Date: date,
		},
		{
			Type: domain.DocTechnicalAnalysis,
			Content: fmt.Sprintf("Technical Analysis for %s\n- Current Price: $150.00\n- 52-Week High: $180.00\n"+
				"- 52-Week Low: $120.00\n- 50-Day MA: $145.20\n- Beta: 1.20\n"+
				"The stock trades above its fifty day moving average with moderate volume and no major resistance until the yearly high.", ticker),
			Date: date,
		},
		{
			Type: domain.DocTradingSignals,
			Content: fmt.Sprintf("Trading Signals for %s:\n- BULLISH: Strong momentum above the moving average\n"+
				"- BULLISH: Sector growth and analyst upgrades\n- WATCH: Valuation risk with P/E above the sector median\n"+
				"Target price $175.00 implies upside from current levels.", ticker),
			Date: date,
		},
		{
			Type: domain.DocNews,
			Content: fmt.Sprintf("%s announces strong quarterly earnings. Publisher: Finance Daily.\n"+
				"Analysts upgrade %s following new product announcements. Publisher: Tech News.\n"+
				"Investors will watch margins, guidance and capital returns at the next earnings call.", ticker, ticker),
			Date: date,
		},
	}

	return domain.RawEntityRecord{
		Ticker:      ticker,
		CompanyName: company.name,
		Sector:      company.sector,
		Industry:    company.industry,
		MarketCap:   2.5e12,
		PERatio:     30.5,
		Documents:   docs,
	}
}

func (s *SyntheticSource) FetchAll(ctx context.Context, tickers []string) []domain.RawEntityRecord {
	return fetchAll(ctx, s, tickers)
}
