package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/liteclaw/internal/subagent"
)

// DelegateTool hands a task to a named sub-agent. Delegation stops the
// remaining tool calls in the batch so the model does not pile work on
// top of the handoff.
type DelegateTool struct {
	supervisor *subagent.Supervisor
}

func NewDelegateTool(s *subagent.Supervisor) *DelegateTool {
	return &DelegateTool{supervisor: s}
}

func (t *DelegateTool) Name() string { return "delegate_task" }
func (t *DelegateTool) Description() string {
	return "Hand a task off to a named background sub-agent. It works independently and reports back when done."
}

func (t *DelegateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"agent_name": map[string]interface{}{
				"type":        "string",
				"description": "Name for the sub-agent, e.g. \"researcher\". Reuse a name to give the same agent more work.",
			},
			"task": map[string]interface{}{
				"type":        "string",
				"description": "Full task description, self-contained",
			},
		},
		"required": []string{"agent_name", "task"},
	}
}

func (t *DelegateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["agent_name"].(string)
	task, _ := args["task"].(string)
	if name == "" || task == "" {
		return ErrorResult("agent_name and task are required")
	}

	msg, err := t.supervisor.Delegate(ToolSessionIDFromCtx(ctx), name, task, ToolPlatformFromCtx(ctx))
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(msg).WithStopBatch()
}

// ListSubAgentsTool reports every sub-agent in the current session.
type ListSubAgentsTool struct {
	supervisor *subagent.Supervisor
}

func NewListSubAgentsTool(s *subagent.Supervisor) *ListSubAgentsTool {
	return &ListSubAgentsTool{supervisor: s}
}

func (t *ListSubAgentsTool) Name() string { return "list_sub_agents" }
func (t *ListSubAgentsTool) Description() string {
	return "List your sub-agents with their status and last result."
}

func (t *ListSubAgentsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ListSubAgentsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	infos := t.supervisor.List(ToolSessionIDFromCtx(ctx))
	if len(infos) == 0 {
		return SilentResult("No sub-agents in this session.")
	}
	var sb strings.Builder
	sb.WriteString("Sub-agents:\n")
	for _, info := range infos {
		fmt.Fprintf(&sb, "- %s (id %s): %s, %d task(s)", info.Name, info.ID, info.Status, info.Tasks)
		if info.LastResult != "" {
			fmt.Fprintf(&sb, " (last: %s)", info.LastResult)
		}
		sb.WriteString("\n")
	}
	return SilentResult(strings.TrimRight(sb.String(), "\n"))
}

// KillSubAgentTool terminates one named sub-agent.
type KillSubAgentTool struct {
	supervisor *subagent.Supervisor
}

func NewKillSubAgentTool(s *subagent.Supervisor) *KillSubAgentTool {
	return &KillSubAgentTool{supervisor: s}
}

func (t *KillSubAgentTool) Name() string { return "kill_sub_agent" }
func (t *KillSubAgentTool) Description() string {
	return "Terminate a named sub-agent. Any in-flight work is discarded."
}

func (t *KillSubAgentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"agent_name": map[string]interface{}{
				"type": "string",
			},
		},
		"required": []string{"agent_name"},
	}
}

func (t *KillSubAgentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["agent_name"].(string)
	if name == "" {
		return ErrorResult("agent_name is required")
	}
	if err := t.supervisor.Kill(ToolSessionIDFromCtx(ctx), name); err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(fmt.Sprintf("Sub-agent %q terminated.", name))
}

// KillAllSubAgentsTool terminates every sub-agent in the session.
type KillAllSubAgentsTool struct {
	supervisor *subagent.Supervisor
}

func NewKillAllSubAgentsTool(s *subagent.Supervisor) *KillAllSubAgentsTool {
	return &KillAllSubAgentsTool{supervisor: s}
}

func (t *KillAllSubAgentsTool) Name() string { return "kill_all_sub_agents" }
func (t *KillAllSubAgentsTool) Description() string {
	return "Terminate every sub-agent in this session."
}

func (t *KillAllSubAgentsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *KillAllSubAgentsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	n := t.supervisor.KillAll(ToolSessionIDFromCtx(ctx))
	return SilentResult(fmt.Sprintf("%d sub-agent(s) terminated.", n))
}

// MessageSubAgentTool queues a message for a sub-agent. Messaging the
// special name "vision" feeds the vision worker instead.
type MessageSubAgentTool struct {
	supervisor *subagent.Supervisor
}

func NewMessageSubAgentTool(s *subagent.Supervisor) *MessageSubAgentTool {
	return &MessageSubAgentTool{supervisor: s}
}

func (t *MessageSubAgentTool) Name() string { return "message_sub_agent" }
func (t *MessageSubAgentTool) Description() string {
	return "Send a message to a named sub-agent. It is delivered with its next task. The name \"vision\" reaches the vision worker."
}

func (t *MessageSubAgentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"agent_name": map[string]interface{}{
				"type": "string",
			},
			"message": map[string]interface{}{
				"type": "string",
			},
		},
		"required": []string{"agent_name", "message"},
	}
}

func (t *MessageSubAgentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["agent_name"].(string)
	message, _ := args["message"].(string)
	if name == "" || message == "" {
		return ErrorResult("agent_name and message are required")
	}

	sender := ToolSenderFromCtx(ctx)
	if sender == "" {
		sender = "main agent"
	}
	reply, err := t.supervisor.Message(ctx, ToolSessionIDFromCtx(ctx), name, sender, message)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(reply)
}
