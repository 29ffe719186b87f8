// Package loops hosts the background reflection daemons. Each daemon
// owns a dedicated session, synthesizes a prompt on its cadence and
// runs it through the conversation engine. Engine errors are logged
// and the daemon sleeps until its next tick; nothing here may crash
// the process.
package loops

import "context"

// Runner runs one engine turn to completion. Implemented by agent.Engine.
type Runner interface {
	RunToCompletion(ctx context.Context, sessionID, platform, message string) (string, error)
}

// BusyChecker gates loops that must not compete with foreground work.
type BusyChecker interface {
	// AnyWorking reports whether any sub-agent is mid-task.
	AnyWorking() bool
}

// VisionBusyChecker reports whether the vision worker holds the screen.
type VisionBusyChecker interface {
	Busy() bool
}
