package domain

import (
	"strconv"
	"time"
)

// DocumentType tags a raw document with one of a closed set of kinds.
type DocumentType string

const (
	DocCompanyOverview      DocumentType = "Company Overview"
	DocFinancialPerformance DocumentType = "Financial Performance"
	DocTechnicalAnalysis    DocumentType = "Technical Analysis"
	DocTradingSignals       DocumentType = "Trading Signals"
	DocNews                 DocumentType = "News"
)

// DocumentTypes lists every known document type in display order.
var DocumentTypes = []DocumentType{
	DocCompanyOverview,
	DocFinancialPerformance,
	DocTechnicalAnalysis,
	DocTradingSignals,
	DocNews,
}

// Valid reports whether t belongs to the closed set.
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RawEntityRecord is everything a document source knows about one ticker.
type RawEntityRecord struct {
	Ticker      string        `json:"ticker"`
	CompanyName string        `json:"company_name"`
	Sector      string        `json:"sector,omitempty"`
	Industry    string        `json:"industry,omitempty"`
	MarketCap   float64       `json:"market_cap,omitempty"`
	PERatio     float64       `json:"pe_ratio,omitempty"`
	Documents   []RawDocument `json:"documents"`
}

// RawDocument is a single free-text document attached to an entity.
type RawDocument struct {
	Type    DocumentType `json:"type"`
	Content string       `json:"content"`
	Date    string       `json:"date"`
}

// ChunkMetadata is the entity snapshot copied onto every chunk.
type ChunkMetadata struct {
	Sector    string  `json:"sector"`
	Industry  string  `json:"industry"`
	MarketCap float64 `json:"market_cap"`
	PERatio   float64 `json:"pe_ratio"`
}

// ChunkRecord is one chunk of one document, with provenance.
type ChunkRecord struct {
	Text        string        `json:"text"`
	Ticker      string        `json:"ticker"`
	CompanyName string        `json:"company_name"`
	Type        DocumentType  `json:"type"`
	ChunkID     int           `json:"chunk_id"`
	Date        string        `json:"date"`
	Metadata    ChunkMetadata `json:"metadata"`
}

// Metadata keys stored alongside every indexed document.
const (
	MetaTicker       = "ticker"
	MetaCompanyName  = "company_name"
	MetaDocumentType = "document_type"
	MetaDate         = "date"
	MetaChunkID      = "chunk_id"
	MetaSector       = "sector"
	MetaIndustry     = "industry"
	MetaMarketCap    = "market_cap"
	MetaPERatio      = "pe_ratio"
)

// FlatMetadata renders the chunk's provenance as primitive string values
// so index filters only ever compare strings.
func (c ChunkRecord) FlatMetadata() map[string]string {
	ticker := c.Ticker
	if ticker == "" {
		ticker = "UNKNOWN"
	}
	return map[string]string{
		MetaTicker:       ticker,
		MetaCompanyName:  c.CompanyName,
		MetaDocumentType: string(c.Type),
		MetaDate:         c.Date,
		MetaChunkID:      strconv.Itoa(c.ChunkID),
		MetaSector:       c.Metadata.Sector,
		MetaIndustry:     c.Metadata.Industry,
		MetaMarketCap:    formatNumber(c.Metadata.MarketCap),
		MetaPERatio:      formatNumber(c.Metadata.PERatio),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IndexedDocument is the unit persisted by a vector index.
type IndexedDocument struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"v"`
	Text     string            `json:"t"`
	Metadata map[string]string `json:"m"`
}

// SearchResult is a ranked hit returned by a vector index.
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// AddResult summarises a bulk insert.
type AddResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// IndexStats describes a collection.
type IndexStats struct {
	DocumentCount  int    `json:"document_count"`
	CollectionName string `json:"collection_name"`
	Directory      string `json:"directory,omitempty"`
	Backend        string `json:"backend"`
}

// Source is a search result trimmed for display.
type Source struct {
	Ticker         string  `json:"ticker"`
	Type           string  `json:"type"`
	Date           string  `json:"date"`
	RelevanceScore float64 `json:"relevance_score"`
	Snippet        string  `json:"snippet"`
}

// RetrievalResult is what the orchestrator hands to a text generator.
type RetrievalResult struct {
	Context string         `json:"context"`
	Sources []Source       `json:"sources"`
	Results []SearchResult `json:"results"`
}

// Direction of a heuristic trading signal.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Signal is a keyword-count annotation, not a recommendation.
type Signal struct {
	Ticker     string    `json:"ticker"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
}

// ResponseMetadata accompanies every assistant response.
type ResponseMetadata struct {
	Query              string    `json:"query,omitempty"`
	Mode               string    `json:"mode,omitempty"`
	DocumentsRetrieved int       `json:"documents_retrieved"`
	Timestamp          time.Time `json:"timestamp"`
	Error              string    `json:"error,omitempty"`
}

// Response is the assistant's answer to a question.
type Response struct {
	Analysis string           `json:"analysis"`
	Sources  []Source         `json:"sources"`
	Signals  []Signal         `json:"signals"`
	Metadata ResponseMetadata `json:"metadata"`
}
