package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

// CreateSessionTool creates a child session under the current one.
type CreateSessionTool struct {
	history store.HistoryStore
}

func NewCreateSessionTool(history store.HistoryStore) *CreateSessionTool {
	return &CreateSessionTool{history: history}
}

func (t *CreateSessionTool) Name() string { return "create_session" }
func (t *CreateSessionTool) Description() string {
	return "Create a new conversation session as a child of the current one. Returns the new session id."
}

func (t *CreateSessionTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional explicit id for the new session; generated when omitted",
			},
		},
	}
}

func (t *CreateSessionTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id, _ := args["session_id"].(string)
	if id == "" {
		id = "session_" + uuid.NewString()[:8]
	}
	parent := ToolSessionIDFromCtx(ctx)

	if err := t.history.EnsureSession(ctx, id, parent); err != nil {
		return ErrorResult(fmt.Sprintf("create session: %v", err))
	}
	return SilentResult(fmt.Sprintf("Session %s created (parent: %s).", id, parent))
}
