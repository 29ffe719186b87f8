package tools

import (
	"context"

	"github.com/nextlevelbuilder/liteclaw/internal/vision"
)

// VisionTaskTool starts, queues or corrects work on the vision worker.
type VisionTaskTool struct {
	worker *vision.Worker
}

func NewVisionTaskTool(w *vision.Worker) *VisionTaskTool {
	return &VisionTaskTool{worker: w}
}

func (t *VisionTaskTool) Name() string { return "vision_task" }
func (t *VisionTaskTool) Description() string {
	return "Give the vision worker a goal to accomplish on the screen (mouse, keyboard, reading the display). Set correction=true to steer a goal that is already running."
}

func (t *VisionTaskTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"goal": map[string]interface{}{
				"type":        "string",
				"description": "What to accomplish on screen, e.g. \"open the browser and check my inbox\"",
			},
			"correction": map[string]interface{}{
				"type":        "boolean",
				"description": "True when this adjusts the currently running goal instead of starting a new one",
			},
		},
		"required": []string{"goal"},
	}
}

func (t *VisionTaskTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	goal, _ := args["goal"].(string)
	if goal == "" {
		return ErrorResult("goal is required")
	}
	correction, _ := args["correction"].(bool)

	reply := t.worker.Submit(ToolSessionIDFromCtx(ctx), ToolPlatformFromCtx(ctx), goal, correction)
	return SilentResult(reply)
}
