package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// defaultSystemPrompt instructs the model to answer from the retrieved
// document context only, so questions the document cannot answer get an
// explicit "not in the document" style response instead of a hallucination.
const defaultSystemPrompt = "You are a helpful assistant. Answer the question using only the " +
	"provided document context. If the context does not contain the answer, say that the " +
	"document does not cover it."

// Generator produces answers from a question and its retrieved document
// context. It is safe for concurrent use.
type Generator struct {
	// model is the underlying chat model.
	model model.BaseChatModel

	// systemPrompt frames every request.
	systemPrompt string
}

// NewGenerator constructs a Generator. systemPrompt may be empty to use the
// default.
func NewGenerator(m model.BaseChatModel, systemPrompt string) (*Generator, error) {
	if m == nil {
		return nil, fmt.Errorf("answer: model must not be nil")
	}
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Generator{model: m, systemPrompt: systemPrompt}, nil
}

// Answer generates an answer to question using docContext, the space-joined
// text of the retrieved chunks. An empty docContext is passed through as-is;
// the system prompt then steers the model toward "the document does not cover
// this".
func (g *Generator) Answer(ctx context.Context, question, docContext string) (string, error) {
	var user strings.Builder
	user.WriteString("Context:\n")
	user.WriteString(docContext)
	user.WriteString("\n\nQuestion: ")
	user.WriteString(question)

	messages := []*schema.Message{
		schema.SystemMessage(g.systemPrompt),
		schema.UserMessage(user.String()),
	}

	resp, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("answer: generate: %w", err)
	}
	return resp.Content, nil
}
