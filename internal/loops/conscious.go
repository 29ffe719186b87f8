package loops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/memory"
)

const (
	consciousMinInterval = 2 * time.Minute
	consciousMaxInterval = 5 * time.Minute
	consciousStagger     = 30 * time.Second
)

const consciousIdlePrompt = "Conscious cycle, employee mode. You have no active focus. " +
	"Autonomous job search: look at your standing duties, recent conversations and memory, " +
	"pick the single most useful task to start on, set it as your focus with your conscious " +
	"memory tool, and take the first step now."

const consciousFocusPrompt = "Conscious cycle, high precision mode. Your current focus:\n\n%s\n\n" +
	"Take the next immediate step on this focus now. If it is done, clear the focus and say what was accomplished."

// Conscious drives short-horizon focused work. The focus blob expires
// on read, so a stale focus degrades to the idle job-search prompt on
// its own.
type Conscious struct {
	runner Runner
	memory *memory.Store
}

func NewConscious(runner Runner, mem *memory.Store) *Conscious {
	return &Conscious{runner: runner, memory: mem}
}

// Start runs the loop until the context is cancelled. The first tick
// is staggered so startup traffic settles before autonomous work
// begins.
func (c *Conscious) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Conscious) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(consciousStagger):
	}

	for {
		focus, err := c.memory.CurrentFocus()
		if err != nil {
			slog.Warn("conscious focus read failed", "error", err)
		}

		prompt := consciousIdlePrompt
		if focus != nil && !focus.Idle {
			prompt = fmt.Sprintf(consciousFocusPrompt, focus.Body)
		}

		if _, err := c.runner.RunToCompletion(ctx, "loop_conscious", "system", prompt); err != nil {
			slog.Error("conscious run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(randomInterval(consciousMinInterval, consciousMaxInterval)):
		}
	}
}
