package service

import (
	"fmt"
	"strings"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/knowledge"
)

const historyWindow = 5

const promptHeader = `You are a helpful customer support AI assistant.

Your job is to answer customer questions accurately and professionally.`

const promptInstructions = `Instructions:
- Provide clear, accurate, and helpful responses
- Use information from the knowledge base when relevant
- If you're not certain about an answer, be honest about it
- Keep responses concise but complete
- Be professional and empathetic`

// BuildSystemPrompt assembles the system prompt from retrieved knowledge
// snippets and the tail of the conversation history. Empty retrieval
// produces a prompt without a knowledge section.
func BuildSystemPrompt(results []knowledge.SearchResult, history []*entity.Message) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	if len(results) > 0 {
		b.WriteString("\n\nAvailable Knowledge Base Context:\n")
		for i, r := range results {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "- %s: %s", r.Title, r.Content)
		}
	}

	if len(history) > 0 {
		turns := history
		if len(turns) > historyWindow {
			turns = turns[len(turns)-historyWindow:]
		}
		b.WriteString("\n\nRecent Conversation History:\n")
		for _, msg := range turns {
			fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Body)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(promptInstructions)
	return b.String()
}
