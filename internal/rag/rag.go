package rag

import (
	"fmt"
	"strings"

	"smartsearch/internal/index"
	"smartsearch/internal/llm"
	"smartsearch/internal/store"
)

// Sentinel is the exact string the model must return when the answer cannot
// be grounded in the supplied context. It is a contract with the model; this
// package never rewrites or post-processes it.
const Sentinel = "DATA_NOT_FOUND"

const systemPrompt = `You are a professional data analyst. You answer questions based strictly on the provided document context.

Instructions:
1. Text & sections: if asked for a summary, conclusion, or a specific section, extract the full text paragraphs.
2. Numbers & data: if asked for specific metrics (e.g. revenue, grades), extract the exact value.
3. Tables: if the answer lies in a table, present it as a clean Markdown table.
4. Formatting: use bullet points for lists. Bold key terms only if necessary for clarity.
5. Honesty: if the information is not in the context, say "DATA_NOT_FOUND". Do not make up answers.`

// Generator produces one chat completion. Implemented by llm.OllamaChat.
type Generator interface {
	Generate(messages []llm.Message) (string, error)
}

// Retrieve embeds the query and returns the k most similar passages from the
// user's index, most similar first. The query must be embedded with the same
// model that built the index; that is a correctness requirement on the
// caller, not a runtime check. k deliberately favors recall — the answer
// prompt does the precision filtering downstream.
func Retrieve(query string, ix *index.UserIndex, emb index.Embedder, k int) ([]store.Passage, error) {
	if ix == nil {
		return nil, index.ErrIndexMissing
	}
	vec, err := emb.EmbedSingle(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := ix.Store.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	passages := make([]store.Passage, len(results))
	for i, r := range results {
		passages[i] = r.Passage
	}
	return passages, nil
}

// BuildMessages constructs the message list for the generator: the grounding
// system prompt, prior conversation turns, and one user message holding the
// concatenated context block and the question.
func BuildMessages(passages []store.Passage, history []llm.Message, question string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})
	msgs = append(msgs, history...)

	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p.Content)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)

	msgs = append(msgs, llm.Message{Role: "user", Content: sb.String()})
	return msgs
}

// Answer issues one generation request over the retrieved passages and
// returns the model's text unmodified. A backend failure propagates as an
// error rather than a blank or fabricated answer.
func Answer(question string, passages []store.Passage, history []llm.Message, gen Generator) (string, error) {
	answer, err := gen.Generate(BuildMessages(passages, history, question))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}
