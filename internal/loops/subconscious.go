package loops

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/memory"
)

const (
	subconsciousMinInterval = 5 * time.Minute
	subconsciousMaxInterval = 15 * time.Minute
)

const subconsciousSeedPrompt = "Subconscious cycle. Your subconscious notes are empty. " +
	"Propose one small, concrete self-improvement experiment you can run right now " +
	"(a new skill to try, a workflow to streamline, something to learn about your human), " +
	"then execute it immediately. Record what you learned with your subconscious memory tool."

const subconsciousActPrompt = "Subconscious cycle. Here are your current subconscious notes:\n\n%s\n\n" +
	"Pick exactly one idea from them and act on it now. " +
	"Update the notes afterwards: drop what is done, keep what is still worth pursuing."

// Subconscious periodically pulls an idea from the subconscious memory
// blob and acts on it, or bootstraps the blob when it is empty.
type Subconscious struct {
	runner Runner
	memory *memory.Store
}

func NewSubconscious(runner Runner, mem *memory.Store) *Subconscious {
	return &Subconscious{runner: runner, memory: mem}
}

// Start runs the loop until the context is cancelled.
func (s *Subconscious) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Subconscious) run(ctx context.Context) {
	for {
		wait := randomInterval(subconsciousMinInterval, subconsciousMaxInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		notes, err := s.memory.Read(memory.KindSubconscious)
		if err != nil {
			slog.Warn("subconscious read failed", "error", err)
			continue
		}

		prompt := subconsciousSeedPrompt
		if strings.TrimSpace(notes) != "" {
			prompt = fmt.Sprintf(subconsciousActPrompt, notes)
		}

		if _, err := s.runner.RunToCompletion(ctx, "loop_subconscious", "system", prompt); err != nil {
			slog.Error("subconscious run failed", "error", err)
		}
	}
}

func randomInterval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
