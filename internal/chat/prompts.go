package chat

import (
	"fmt"
	"strings"

	"github.com/illegalcall/mentora/internal/vector"
)

// contextPrompt wraps retrieved passages and the standalone query into the
// final grounded prompt handed to the model.
func contextPrompt(passages []vector.Passage, query string) string {
	var b strings.Builder
	for _, p := range passages {
		b.WriteString(p.DocumentFile)
		b.WriteString(": ")
		b.WriteString(p.Content)
		b.WriteString("\n")
	}

	return fmt.Sprintf(`Context information is below.
---------------------
%s---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer:`, b.String(), query)
}

// rewritePrompt asks for a context-free rephrasing of a follow-up question.
func rewritePrompt(message string) string {
	return fmt.Sprintf(`Rewrite the following question so it can be understood without reading the conversation above. Keep it short and return only the rewritten question.
Question: %s`, message)
}
