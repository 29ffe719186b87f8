package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/liteclaw/internal/memory"
)

// memoryWriteTool overwrites one memory blob. One instance per kind.
type memoryWriteTool struct {
	store *memory.Store
	kind  memory.Kind
	name  string
	desc  string
}

func (t *memoryWriteTool) Name() string        { return t.name }
func (t *memoryWriteTool) Description() string { return t.desc }

func (t *memoryWriteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The full new content of the file. Replaces everything.",
			},
		},
		"required": []string{"content"},
	}
}

func (t *memoryWriteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content, _ := args["content"].(string)
	if err := t.store.Write(t.kind, content); err != nil {
		return ErrorResult(fmt.Sprintf("write %s: %v", t.kind, err))
	}
	return SilentResult(fmt.Sprintf("%s updated.", t.kind))
}

// NewUpdateSoulTool overwrites what the agent knows about its human.
func NewUpdateSoulTool(store *memory.Store) Tool {
	return &memoryWriteTool{
		store: store,
		kind:  memory.KindUser,
		name:  "update_soul",
		desc:  "Overwrite everything you know about your human. Use append_soul for incremental notes.",
	}
}

// NewUpdatePersonalityTool overwrites the personality blob.
func NewUpdatePersonalityTool(store *memory.Store) Tool {
	return &memoryWriteTool{
		store: store,
		kind:  memory.KindPersonality,
		name:  "update_personality",
		desc:  "Overwrite your personality notes: tone, style, behavioral preferences.",
	}
}

// NewUpdateSubconsciousTool overwrites the subconscious idea list.
func NewUpdateSubconsciousTool(store *memory.Store) Tool {
	return &memoryWriteTool{
		store: store,
		kind:  memory.KindSubconscious,
		name:  "update_subconscious",
		desc:  "Overwrite your subconscious notes: background ideas, experiments, things to try later.",
	}
}

// AppendSoulTool adds a note about the human without rewriting the file.
type AppendSoulTool struct {
	store *memory.Store
}

func NewAppendSoulTool(store *memory.Store) *AppendSoulTool {
	return &AppendSoulTool{store: store}
}

func (t *AppendSoulTool) Name() string { return "append_soul" }
func (t *AppendSoulTool) Description() string {
	return "Append a new fact or note about your human without touching existing notes."
}

func (t *AppendSoulTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The note to append.",
			},
		},
		"required": []string{"content"},
	}
}

func (t *AppendSoulTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content, _ := args["content"].(string)
	if content == "" {
		return ErrorResult("content is required")
	}
	if err := t.store.Append(memory.KindUser, content); err != nil {
		return ErrorResult(fmt.Sprintf("append %s: %v", memory.KindUser, err))
	}
	return SilentResult("Note saved.")
}

// UpdateConsciousTool sets or clears the active focus. The focus
// carries a duration and expires on its own.
type UpdateConsciousTool struct {
	store *memory.Store
}

func NewUpdateConsciousTool(store *memory.Store) *UpdateConsciousTool {
	return &UpdateConsciousTool{store: store}
}

func (t *UpdateConsciousTool) Name() string { return "update_conscious" }
func (t *UpdateConsciousTool) Description() string {
	return "Set your active focus (with a duration in minutes) or clear it when done."
}

func (t *UpdateConsciousTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"description": "\"set\" to start a focus, \"clear\" to drop it",
				"enum":        []string{"set", "clear"},
			},
			"intent": map[string]interface{}{
				"type":        "string",
				"description": "What you are focusing on (required for set)",
			},
			"duration_minutes": map[string]interface{}{
				"type":        "number",
				"description": fmt.Sprintf("How long to hold the focus, max %d minutes", memory.MaxFocusMinutes),
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Why the focus is being cleared (for clear)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *UpdateConsciousTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)
	switch action {
	case "set":
		intent, _ := args["intent"].(string)
		if intent == "" {
			return ErrorResult("intent is required to set a focus")
		}
		mins := 0
		if v, ok := args["duration_minutes"].(float64); ok {
			mins = int(v)
		}
		if err := t.store.SetFocus(intent, mins); err != nil {
			return ErrorResult(fmt.Sprintf("set focus: %v", err))
		}
		return SilentResult("Focus set.")
	case "clear":
		reason, _ := args["reason"].(string)
		if reason == "" {
			reason = "done"
		}
		if err := t.store.ClearFocus(reason); err != nil {
			return ErrorResult(fmt.Sprintf("clear focus: %v", err))
		}
		return SilentResult("Focus cleared.")
	default:
		return ErrorResult(fmt.Sprintf("unknown action %q, use set or clear", action))
	}
}
