package agent

import (
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/liteclaw/internal/memory"
)

// technicalDirectives is the fixed instruction block appended after the
// identity blob in every system prompt.
const technicalDirectives = `
TECHNICAL DIRECTIVES:
- You are running inside a gateway that relays your replies to chat channels. Keep replies concise and conversational.
- Use tools when a task needs them; do not narrate tool mechanics to the user.
- When a tool fails, read the error before retrying. Never repeat the exact same failing call.
- Long or risky work should be delegated to a sub-agent so the conversation stays responsive.
- Media and files are sent with the dedicated send tools, never inlined as text.`

// buildSystemPrompt assembles the system message from the memory blobs:
// identity, directives, then user/personality/subconscious when present.
func (e *Engine) buildSystemPrompt() string {
	var b strings.Builder

	identity := e.readBlob(memory.KindIdentity)
	if identity == "" {
		identity = "You are " + strings.Trim(e.selfTag, "[]") + ", a personal AI assistant."
	}
	b.WriteString(identity)
	b.WriteString("\n")
	b.WriteString(technicalDirectives)

	if user := e.readBlob(memory.KindUser); user != "" {
		b.WriteString("\n\nWHAT YOU KNOW ABOUT YOUR HUMAN:\n")
		b.WriteString(user)
	}
	if personality := e.readBlob(memory.KindPersonality); personality != "" {
		b.WriteString("\n\nPERSONALITY:\n")
		b.WriteString(personality)
	}
	if sub := e.readBlob(memory.KindSubconscious); sub != "" {
		b.WriteString("\n\nSUBCONSCIOUS NOTES:\n")
		b.WriteString(sub)
	}

	return b.String()
}

func (e *Engine) readBlob(kind memory.Kind) string {
	text, err := e.memory.Read(kind)
	if err != nil {
		slog.Warn("memory read failed", "kind", kind, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}
