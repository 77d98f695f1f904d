package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/port"
)

//go:embed prompts/*.txt
var promptFiles embed.FS

var prompts = template.Must(template.ParseFS(promptFiles, "prompts/*.txt"))

// Mode selects the system prompt used for analysis.
type Mode string

const (
	ModeComprehensive Mode = "Comprehensive"
	ModeQuickSummary  Mode = "Quick Summary"
	ModeRiskFocused   Mode = "Risk-Focused"
	ModeGrowthFocused Mode = "Growth-Focused"
)

// Modes lists every analysis mode in display order.
var Modes = []Mode{ModeComprehensive, ModeQuickSummary, ModeRiskFocused, ModeGrowthFocused}

var modeTemplates = map[Mode]string{
	ModeComprehensive: "comprehensive.txt",
	ModeQuickSummary:  "quick_summary.txt",
	ModeRiskFocused:   "risk_focused.txt",
	ModeGrowthFocused: "growth_focused.txt",
}

// ParseMode maps a mode name to a Mode. Unknown names fall back to
// ModeComprehensive.
func ParseMode(name string) Mode {
	for _, m := range Modes {
		if strings.EqualFold(name, string(m)) {
			return m
		}
	}
	return ModeComprehensive
}

// SystemPrompt returns the system prompt for mode.
func SystemPrompt(mode Mode) (string, error) {
	name, ok := modeTemplates[mode]
	if !ok {
		name = modeTemplates[ModeComprehensive]
	}
	return render(name, nil)
}

// UserPrompt renders the question and the retrieved context.
func UserPrompt(query, retrieved string) (string, error) {
	return render("user.txt", struct{ Query, Context string }{query, retrieved})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// AskRequest is a question with optional filters.
type AskRequest struct {
	Query    string
	Tickers  []string
	DocTypes []string
	Mode     string
	TopK     int
}

// AssistantUseCase answers questions: retrieve, prompt, generate, annotate.
type AssistantUseCase struct {
	retrieve  *RetrieveUseCase
	generator port.TextGenerator
	now       func() time.Time
}

// NewAssistantUseCase creates a new assistant use case. A nil generator
// makes every Ask return an error response.
func NewAssistantUseCase(retrieve *RetrieveUseCase, generator port.TextGenerator) *AssistantUseCase {
	return &AssistantUseCase{
		retrieve:  retrieve,
		generator: generator,
		now:       time.Now,
	}
}

// Ask never fails: any error is reported inside the returned Response.
func (a *AssistantUseCase) Ask(ctx context.Context, req AskRequest) domain.Response {
	mode := ParseMode(req.Mode)
	meta := domain.ResponseMetadata{
		Query:     req.Query,
		Mode:      string(mode),
		Timestamp: a.now(),
	}

	resp, err := a.ask(ctx, req, mode, meta)
	if err != nil {
		logger.Warn("error in ask: %v", err)
		meta.Error = err.Error()
		return domain.Response{
			Analysis: "Error processing request: " + err.Error(),
			Sources:  []domain.Source{},
			Signals:  []domain.Signal{},
			Metadata: meta,
		}
	}
	return resp
}

func (a *AssistantUseCase) ask(ctx context.Context, req AskRequest, mode Mode, meta domain.ResponseMetadata) (domain.Response, error) {
	if a.generator == nil {
		return domain.Response{}, domain.ErrGeneratorUnavailable
	}

	logger.Section("Retrieve")
	retrieved, err := a.retrieve.Answer(ctx, req.Query, req.Tickers, req.DocTypes, req.TopK)
	if err != nil {
		return domain.Response{}, err
	}

	system, err := SystemPrompt(mode)
	if err != nil {
		return domain.Response{}, err
	}
	user, err := UserPrompt(req.Query, retrieved.Context)
	if err != nil {
		return domain.Response{}, err
	}

	logger.Section("Generate")
	logger.Debug("model %s, mode %s, %d documents", a.generator.ModelName(), mode, len(retrieved.Results))
	analysis, err := a.generator.Generate(ctx, system, user)
	if err != nil {
		return domain.Response{}, err
	}

	meta.DocumentsRetrieved = len(retrieved.Results)
	return domain.Response{
		Analysis: analysis,
		Sources:  retrieved.Sources,
		Signals:  ExtractSignals(analysis, req.Tickers),
		Metadata: meta,
	}, nil
}
