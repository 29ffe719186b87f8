package agent

import (
	"log/slog"

	"github.com/nextlevelbuilder/liteclaw/internal/providers"
)

// limitHistoryTurns keeps only the last N user turns (and their
// associated assistant/tool messages) from history. A "turn" = one user
// message plus all subsequent non-user messages until the next user
// message.
func limitHistoryTurns(msgs []providers.Message, limit int) []providers.Message {
	if limit <= 0 || len(msgs) == 0 {
		return msgs
	}

	userCount := 0
	lastUserIndex := len(msgs)

	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			userCount++
			if userCount > limit {
				return msgs[lastUserIndex:]
			}
			lastUserIndex = i
		}
	}

	return msgs
}

// sanitizeHistory repairs tool_call/tool_result pairing in session
// history before it is sent to the provider.
//
// Problems this fixes:
//   - Orphaned tool messages at start of history (after truncation)
//   - tool results without a matching call in the preceding assistant message
//   - assistant tool_calls whose results were discarded (stop_batch, kills)
func sanitizeHistory(msgs []providers.Message) []providers.Message {
	if len(msgs) == 0 {
		return msgs
	}

	start := 0
	for start < len(msgs) && msgs[start].Role == "tool" {
		slog.Warn("dropping orphaned tool message at history start",
			"tool_call_id", msgs[start].ToolCallID)
		start++
	}

	if start >= len(msgs) {
		return nil
	}

	var result []providers.Message
	for i := start; i < len(msgs); i++ {
		msg := msgs[i]

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			expectedIDs := make(map[string]bool, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				expectedIDs[tc.ID] = true
			}

			result = append(result, msg)

			for i+1 < len(msgs) && msgs[i+1].Role == "tool" {
				i++
				toolMsg := msgs[i]
				if expectedIDs[toolMsg.ToolCallID] {
					result = append(result, toolMsg)
					delete(expectedIDs, toolMsg.ToolCallID)
				} else {
					slog.Warn("dropping mismatched tool result",
						"tool_call_id", toolMsg.ToolCallID)
				}
			}

			// Synthesize missing tool results in call order.
			for _, tc := range msg.ToolCalls {
				if !expectedIDs[tc.ID] {
					continue
				}
				slog.Warn("synthesizing missing tool result", "tool_call_id", tc.ID)
				result = append(result, providers.Message{
					Role:       "tool",
					Content:    "[Tool result unavailable — call was skipped]",
					ToolCallID: tc.ID,
					Name:       tc.Name,
				})
			}
		} else if msg.Role == "tool" {
			slog.Warn("dropping orphaned tool message mid-history",
				"tool_call_id", msg.ToolCallID)
		} else {
			result = append(result, msg)
		}
	}

	return result
}
