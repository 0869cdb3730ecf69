// Package agent answers textbook questions with retrieval-augmented
// generation. Context comes from the reader's selected text when present,
// otherwise from passages retrieved from the vector store. A failing
// dependency degrades the answer; it never fails the request.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/tbrag-go/internal/budget"
	"github.com/54b3r/tbrag-go/internal/logging"
	"github.com/54b3r/tbrag-go/internal/rag"
)

// systemPrompt establishes the assistant's persona and grounding rule.
const systemPrompt = "You are an AI assistant for the Physical AI & Humanoid Robotics textbook. " +
	"Answer the user's questions based on the provided context. " +
	"If the answer cannot be found in the context, say so clearly. " +
	"Keep responses concise and relevant to the textbook content."

// urduInstruction is appended to the system prompt for Language "ur".
const urduInstruction = "\n\nRespond in Urdu (اردو), keeping technical terms in English where no common Urdu equivalent exists."

// Retrieval outcomes reported through Config.OnRetrieval.
const (
	OutcomeSelectedText = "selected_text"
	OutcomeHit          = "hit"
	OutcomeEmpty        = "empty"
	OutcomeError        = "error"
	OutcomeUnavailable  = "unavailable"
)

// Generator performs a single completion. *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Config holds the dependencies required to construct a TextbookAgent.
type Config struct {
	// LLM produces the answer text. Required.
	LLM Generator

	// Retriever fetches passages for the query.
	// May be nil if the vector store is not configured.
	Retriever rag.Retriever

	// TopK controls how many passages are retrieved per query.
	// Defaults to rag.DefaultTopK if zero.
	TopK int

	// MaxContextTokens is the estimated token budget for retrieved passages.
	// Defaults to budget.DefaultMaxContextTokens if zero; negative disables trimming.
	MaxContextTokens int

	// OnRetrieval, when set, receives the retrieval outcome of every query.
	OnRetrieval func(outcome string)
}

// QueryContext is a single question and the context the reader supplied.
type QueryContext struct {
	// Query is the reader's question.
	Query string
	// SelectedText, when non-empty, is used as the only context.
	SelectedText string
	// Language is "en" (default) or "ur".
	Language string
	// ContextWindow is optional extra context appended after retrieved passages.
	ContextWindow string
}

// Source identifies a passage that contributed to an answer.
type Source struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Section string  `json:"section,omitempty"`
	Score   float32 `json:"score"`
}

// Answer is the result of a query.
type Answer struct {
	// Text is the model's reply or an apology when generation failed.
	Text string
	// Sources lists the retrieved passages used as context.
	Sources []Source
	// Degraded is true when retrieval or generation failed and the answer
	// was produced without the intended context.
	Degraded bool
}

// TextbookAgent orchestrates retrieval and generation for one query at a time.
// It is safe for concurrent use when its dependencies are.
type TextbookAgent struct {
	llm              Generator
	retriever        rag.Retriever
	topK             int
	maxContextTokens int
	onRetrieval      func(string)
}

// New constructs a TextbookAgent from the provided Config.
func New(cfg *Config) (*TextbookAgent, error) {
	if cfg == nil || cfg.LLM == nil {
		return nil, fmt.Errorf("agent: LLM must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx == 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	observe := cfg.OnRetrieval
	if observe == nil {
		observe = func(string) {}
	}

	return &TextbookAgent{
		llm:              cfg.LLM,
		retriever:        cfg.Retriever,
		topK:             topK,
		maxContextTokens: maxCtx,
		onRetrieval:      observe,
	}, nil
}

// Query returns only the answer text.
func (a *TextbookAgent) Query(ctx context.Context, qc QueryContext) string {
	return a.Answer(ctx, qc).Text
}

// Answer builds the context for qc, asks the model and returns its reply.
// Failures are logged and folded into the returned Answer.
func (a *TextbookAgent) Answer(ctx context.Context, qc QueryContext) Answer {
	log := logging.FromContext(ctx)

	var (
		ans         Answer
		contextText string
		prompt      = qc.Query
	)

	if qc.SelectedText != "" {
		contextText = qc.SelectedText
		prompt = "Based on the selected text, " + qc.Query
		a.onRetrieval(OutcomeSelectedText)
	} else {
		contextText, ans.Sources, ans.Degraded = a.retrieve(ctx, qc.Query)
		if qc.ContextWindow != "" {
			if contextText != "" {
				contextText += "\n\n"
			}
			contextText += qc.ContextWindow
		}
	}

	user := fmt.Sprintf("Context: %s\n\nQuestion: %s", contextText, prompt)
	text, err := a.llm.Generate(ctx, a.systemPrompt(qc), user)
	if err != nil {
		log.Error("agent: generation failed", slog.Any("error", err))
		return Answer{Text: apology(err), Degraded: true}
	}

	ans.Text = text
	return ans
}

// systemPrompt returns the system instruction for qc.
func (a *TextbookAgent) systemPrompt(qc QueryContext) string {
	prompt := systemPrompt
	if qc.SelectedText != "" {
		prompt += "\n\nThe user has selected this specific text to ask about: " + qc.SelectedText
	}
	if strings.EqualFold(qc.Language, "ur") {
		prompt += urduInstruction
	}
	return prompt
}

// retrieve returns the joined passage text for query, the sources it drew
// from, and whether retrieval was degraded.
func (a *TextbookAgent) retrieve(ctx context.Context, query string) (string, []Source, bool) {
	log := logging.FromContext(ctx)

	if a.retriever == nil || !a.retriever.Available() {
		log.Debug("agent: vector store unavailable, answering without context")
		a.onRetrieval(OutcomeUnavailable)
		return "", nil, true
	}

	docs, err := a.retriever.Retrieve(ctx, query, a.topK)
	if err != nil {
		outcome := OutcomeError
		if rag.IsUnavailable(err) {
			outcome = OutcomeUnavailable
		}
		log.Warn("agent: retrieval failed, continuing without context", slog.Any("error", err))
		a.onRetrieval(outcome)
		return "", nil, true
	}

	var (
		passages []string
		used     []rag.Document
	)
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		passages = append(passages, d.Content)
		used = append(used, d)
	}
	if len(passages) == 0 {
		a.onRetrieval(OutcomeEmpty)
		return "", nil, false
	}

	kept := budget.TrimPassages(passages, a.maxContextTokens)
	if dropped := len(passages) - len(kept); dropped > 0 {
		log.Warn("budget: dropped passages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	sources := make([]Source, len(kept))
	for i := range kept {
		d := used[i]
		sources[i] = Source{
			ID:      d.ID,
			Title:   d.Metadata["title"],
			Section: d.Metadata["section"],
			Score:   d.Score,
		}
	}

	a.onRetrieval(OutcomeHit)
	return strings.Join(kept, "\n\n"), sources, false
}

// apology is the in-band answer returned when generation fails.
func apology(err error) string {
	return fmt.Sprintf("I apologize, but I encountered an error processing your request: %v. "+
		"Please check that all required services are properly configured.", err)
}
