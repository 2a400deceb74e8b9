package ollama

import (
	"fmt"
	"strings"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

func buildTermSelectionPrompt(conversation, domainProfile string, maxMust int) string {
	const maxSnippet = 4000
	snippet := conversation
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return fmt.Sprintf(`You are a search-query vocabulary selector for the %s domain.
Return a strict JSON object with keys:
must (array of at most %d strings), exact (array of quoted-phrase strings),
should (array of strings), maybe (array of strings), negative (array of strings),
domains (array of strings), aliases (array of strings).
No markdown, no extra keys. Keep terms in the language of the conversation.

Conversation:
%s`, domainProfile, maxMust, snippet)
}

func buildRerankPrompt(query string, pool []domain.Evidence) string {
	var passages strings.Builder
	for idx, ev := range pool {
		text := ev.Text
		if len(text) > 500 {
			text = text[:500]
		}
		passages.WriteString(fmt.Sprintf("[%d] title=%s\n%s\n\n", idx, ev.Title, text))
	}

	return fmt.Sprintf(`Score each passage for how well it answers the query.
Return a strict JSON object: {"scores":[{"index":<passage number>,"score":<0..1>}]}.
Include every passage exactly once. No markdown, no extra keys.

Query:
%s

Passages:
%s`, query, passages.String())
}
