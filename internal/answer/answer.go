// Package answer serves the question-answering path: embed the question,
// retrieve the closest chunks, and generate a reply grounded in them.
package answer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/index"
	"github.com/spinwisely/kbase/internal/provider"
	"github.com/spinwisely/kbase/internal/store"
)

// Fallback replies returned instead of an error. The chat surface favors
// conversational continuity over hard failures, so these always ship with
// HTTP 200 and a machine-readable tag.
const (
	FallbackEmbedding = "I'm having trouble processing your question. Please ensure the AI services are configured correctly."
	FallbackNoContext = "I don't have enough information in my knowledge base to answer that question. Please ask about topics covered in the available documents."
	FallbackGenerate  = "I encountered an error generating a response. Please try again."

	TagEmbeddingFailed  = "embedding_failed"
	TagGenerationFailed = "generation_failed"
)

// contextSeparator joins retrieved chunks inside the grounding prompt.
const contextSeparator = "\n\n---\n\n"

const systemPrompt = `You are an expert AI assistant answering questions from an internal knowledge base. Follow these rules:

CONTENT RULES:
- Answer ONLY based on the provided context
- Include specific details, techniques, parameters, and steps from the context
- If the context mentions specific methods, equipment, or processes, explain them
- Be thorough and technical when the context provides technical information
- If the context lacks information to answer fully, say "The available information covers [what you know] but doesn't include [what's missing]"

PRIVACY RULES:
- NEVER mention document names, filenames, or sources
- NEVER say "according to the document" or "the source states"
- Present information naturally as your own knowledge

RESPONSE STYLE:
- Be specific and detailed, not generic
- Use technical terms when appropriate
- Organize information clearly (use lists or steps when helpful)
- Rephrase naturally but preserve important details and specifics`

var (
	questionsAnswered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kbase_questions_total",
		Help: "Questions handled, by outcome (grounded or a fallback tag).",
	}, []string{"outcome"})
)

// Reply is what the chat surface returns for any question.
type Reply struct {
	Text          string `json:"response"`
	Tag           string `json:"error,omitempty"`
	Grounded      bool   `json:"success,omitempty"`
	DocumentsUsed int    `json:"-"`
}

// Answerer runs retrieval-augmented answering over the vector index.
type Answerer struct {
	Provider provider.Provider
	Index    index.Index
	Store    *store.Store
	Cfg      config.RetrievalConfig
	Logger   *log.Logger
}

func New(p provider.Provider, ix index.Index, st *store.Store, cfg config.RetrievalConfig, logger *log.Logger) *Answerer {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ANSWER] ", log.LstdFlags)
	}
	return &Answerer{Provider: p, Index: ix, Store: st, Cfg: cfg, Logger: logger}
}

// Answer resolves one question. It never returns an error: every failure
// downgrades to a canned reply so the conversation keeps flowing. Activity
// recording runs off the request path and cannot delay or fail the answer.
func (a *Answerer) Answer(ctx context.Context, question, userID string) Reply {
	a.recordAsync(store.Activity{
		UserID:   userID,
		Kind:     "chat_question",
		Question: question,
	})

	vector, err := a.Provider.Embed(ctx, question)
	if err != nil {
		a.Logger.Printf("embedding failed: %v", err)
		questionsAnswered.WithLabelValues(TagEmbeddingFailed).Inc()
		return Reply{Text: FallbackEmbedding, Tag: TagEmbeddingFailed}
	}

	matches, err := a.Index.Query(ctx, index.QueryRequest{
		Vector:          vector,
		TopK:            a.Cfg.TopK,
		IncludeMetadata: true,
	})
	if err != nil {
		a.Logger.Printf("index query failed: %v", err)
	}
	contextText := assembleContext(matches)
	if contextText == "" {
		questionsAnswered.WithLabelValues("no_context").Inc()
		return Reply{Text: FallbackNoContext}
	}

	prompt := fmt.Sprintf(`Context information from knowledge base:
%s

User question: %s

Provide a detailed, specific answer based ONLY on the context above. Include concrete details, steps, techniques, or recommendations mentioned in the context.`, contextText, question)

	text, err := a.Provider.Generate(ctx, prompt, provider.GenerateOptions{SystemPrompt: systemPrompt})
	if err != nil {
		a.Logger.Printf("generation failed: %v", err)
		questionsAnswered.WithLabelValues(TagGenerationFailed).Inc()
		return Reply{Text: FallbackGenerate, Tag: TagGenerationFailed}
	}

	a.recordAsync(store.Activity{
		UserID:        userID,
		Kind:          "chat_response",
		Question:      question,
		Response:      text,
		DocumentsUsed: len(matches),
	})
	questionsAnswered.WithLabelValues("grounded").Inc()
	return Reply{Text: text, Grounded: true, DocumentsUsed: len(matches)}
}

// assembleContext joins the non-empty chunk texts in result order, so the
// most similar chunks lead the prompt.
func assembleContext(matches []index.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if text, ok := m.Metadata["text"].(string); ok && len(text) > 0 {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, contextSeparator)
}

func (a *Answerer) recordAsync(activity store.Activity) {
	if a.Store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Store.RecordActivity(ctx, activity); err != nil {
			a.Logger.Printf("warn: record %s activity failed: %v", activity.Kind, err)
		}
	}()
}
