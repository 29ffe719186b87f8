package tools

import "context"

// Tool execution context keys.
// Per-turn values are injected into context by the engine and read by
// individual tools during Execute(), keeping tool instances free of
// mutable per-call state.

type toolContextKey string

const (
	ctxSessionID toolContextKey = "tool_session_id"
	ctxPlatform  toolContextKey = "tool_platform"
	ctxSender    toolContextKey = "tool_sender"
)

func WithToolSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxSessionID, id)
}

func ToolSessionIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxSessionID).(string)
	return v
}

func WithToolPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, ctxPlatform, platform)
}

func ToolPlatformFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxPlatform).(string)
	return v
}

func WithToolSender(ctx context.Context, sender string) context.Context {
	return context.WithValue(ctx, ctxSender, sender)
}

func ToolSenderFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxSender).(string)
	return v
}
