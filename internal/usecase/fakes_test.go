package usecase

import (
	"context"
	"errors"

	"finrag/internal/adapter/source"
	"finrag/internal/domain"
)

type fakeGenerator struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	g.lastSystem = systemPrompt
	g.lastUser = userPrompt
	return g.reply, g.err
}

func (g *fakeGenerator) ModelName() string { return "fake" }

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}
func (failingEmbedder) Dimension() int    { return 8 }
func (failingEmbedder) ModelName() string { return "failing" }

type countingEmbedder struct {
	inner interface {
		Embed(ctx context.Context, texts []string) ([][]float32, error)
	}
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, texts)
}
func (c *countingEmbedder) Dimension() int    { return 0 }
func (c *countingEmbedder) ModelName() string { return "counting" }

type staticSource struct {
	records map[string]domain.RawEntityRecord
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) Fetch(ctx context.Context, ticker string) domain.RawEntityRecord {
	if r, ok := s.records[ticker]; ok {
		return r
	}
	return source.NewSyntheticSource().Fetch(ctx, ticker)
}

func (s staticSource) FetchAll(ctx context.Context, tickers []string) []domain.RawEntityRecord {
	out := make([]domain.RawEntityRecord, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, s.Fetch(ctx, t))
	}
	return out
}
