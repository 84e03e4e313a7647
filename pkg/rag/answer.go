package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/logging"
	"github.com/xhad/medilex/pkg/metrics"
)

const (
	ModeExtractive = "extractive"
	ModeLLM        = "llm"
)

const answerSystemPrompt = "You are MediLex, an offline healthcare assistant. Using only the reference passages, " +
	"explain the prescription or symptoms in simple, patient-friendly language. Mention each medicine's purpose " +
	"and how to take it when the passages cover it. Never invent doses. If the passages are not relevant, " +
	"say so and advise seeing a doctor."

// Answer is a grounded reply and the passages behind it.
type Answer struct {
	Text    string
	Sources []string
	Results []models.SearchResult
	// Warning is set when the LLM failed and the extractive answer was used.
	Warning string
}

type AnswererConfig struct {
	Retriever *Retriever
	Generator types.Generator // required in llm mode
	Mode      string          // extractive (default) or llm
	TopK      int
	Logger    *zerolog.Logger
}

// Answerer turns a question into an explanation backed by retrieved passages.
type Answerer struct {
	config AnswererConfig
	logger zerolog.Logger
}

func NewAnswerer(config AnswererConfig) (*Answerer, error) {
	if config.Retriever == nil {
		return nil, fmt.Errorf("answerer needs a retriever")
	}
	switch config.Mode {
	case "":
		config.Mode = ModeExtractive
	case ModeExtractive:
	case ModeLLM:
		if config.Generator == nil {
			return nil, fmt.Errorf("llm mode needs a generator")
		}
	default:
		return nil, fmt.Errorf("unknown answer mode %q", config.Mode)
	}
	return &Answerer{config: config, logger: logging.Or(config.Logger, "answerer")}, nil
}

func (a *Answerer) Mode() string { return a.config.Mode }

func (a *Answerer) Answer(ctx context.Context, question string) (*Answer, error) {
	return a.AnswerTopK(ctx, question, a.config.TopK)
}

// AnswerTopK is Answer with an explicit passage count; topK <= 0 uses the retriever default.
func (a *Answerer) AnswerTopK(ctx context.Context, question string, topK int) (*Answer, error) {
	results, err := a.config.Retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		Text:    FormatAnswer(results),
		Sources: Sources(results),
		Results: results,
	}
	if a.config.Mode != ModeLLM || len(results) == 0 {
		return ans, nil
	}

	start := time.Now()
	text, err := a.config.Generator.Generate(ctx, answerSystemPrompt, groundedPrompt(question, results))
	metrics.ObserveStage(metrics.StageAnswer, start, err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn().Err(err).Msg("LLM answer failed, using extractive answer")
		ans.Warning = fmt.Sprintf("llm answer failed, showing retrieved passages: %v", err)
		return ans, nil
	}

	ans.Text = text
	return ans, nil
}

func groundedPrompt(question string, results []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("Reference passages:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (%s) %s\n\n", i+1, r.Source(), snippet(r.Content))
	}
	b.WriteString(question)
	return b.String()
}
