// Package prompt assembles the single model input string from system
// instructions, retrieved context and role-tagged conversation turns.
package prompt

import (
	"errors"
	"strings"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

// Role tags delimiting conversation turns inside the assembled prompt. The
// streaming bridge watches for UserTag in generated output to stop the model
// from simulating both speakers, so the tag literals must never survive inside
// message content.
const (
	UserTag      = "<user>"
	AssistantTag = "<assistant>"
)

const DefaultSystemPrompt = `You are a careful medical assistant. Answer using only the provided context. If the context does not contain the answer, say so plainly.`

// BuildChatPrompt renders the full generation input: system instructions, a
// delimited context block, turns sorted by timestamp, and an open assistant
// tag inviting the next turn.
func BuildChatPrompt(messages []domain.Message, contextBlock, systemPrompt string) (string, error) {
	if len(messages) == 0 {
		return "", domain.WrapError(domain.ErrPrompt, "build chat prompt", errors.New("no conversation turns"))
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nContext:\n")
	b.WriteString(sanitize(contextBlock))
	b.WriteString("\n\nConversation:\n")
	writeTurns(&b, domain.SortMessages(messages))
	b.WriteString(AssistantTag)
	b.WriteString(": ")
	return b.String(), nil
}

// BuildNamingPrompt asks for a concise conversation title over the same turn
// sequence. Used only to derive a name, never an answer.
func BuildNamingPrompt(messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", domain.WrapError(domain.ErrPrompt, "build naming prompt", errors.New("no conversation turns"))
	}

	var b strings.Builder
	b.WriteString("Summarize the conversation below as a title of at most 5 words. Return only the title.\n\n")
	writeTurns(&b, domain.SortMessages(messages))
	return b.String(), nil
}

func writeTurns(b *strings.Builder, messages []domain.Message) {
	for _, msg := range messages {
		switch msg.Sender {
		case domain.SenderAssistant:
			b.WriteString(AssistantTag)
		default:
			b.WriteString(UserTag)
		}
		b.WriteString(": ")
		b.WriteString(sanitize(msg.Content))
		b.WriteString("\n")
	}
}

// sanitize strips role-tag literals out of user-supplied content so a crafted
// message cannot impersonate a turn boundary or trip the leak guard.
func sanitize(content string) string {
	content = strings.ReplaceAll(content, UserTag, "")
	content = strings.ReplaceAll(content, AssistantTag, "")
	return strings.TrimSpace(content)
}
