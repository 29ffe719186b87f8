package memory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The conscious blob tracks a short-lived active focus. It carries a
// TIMESTAMP/DURATION header; once the duration elapses the focus is
// considered stale and the blob reverts to the idle form.

const (
	focusTimeLayout = "2006-01-02 15:04:05"

	// MaxFocusMinutes caps how long a focus may claim attention,
	// whatever duration the model asked for.
	MaxFocusMinutes = 10
)

// Focus is the parsed state of the conscious blob.
type Focus struct {
	Timestamp time.Time
	Duration  time.Duration
	Body      string // text after the header, includes "ACTIVE FOCUS:" section
	Idle      bool
}

// SetFocus records a new active focus with the given duration in
// minutes, capped at MaxFocusMinutes.
func (s *Store) SetFocus(intent string, durationMin int) error {
	if durationMin <= 0 || durationMin > MaxFocusMinutes {
		durationMin = MaxFocusMinutes
	}
	content := fmt.Sprintf("TIMESTAMP: %s\nDURATION: %d\n\nACTIVE FOCUS:\n%s\n",
		time.Now().Format(focusTimeLayout), durationMin, strings.TrimSpace(intent))
	return s.Write(KindConscious, content)
}

// ClearFocus rewrites the blob to the idle form with a reason.
func (s *Store) ClearFocus(reason string) error {
	return s.Write(KindConscious, idleForm(time.Now(), reason))
}

// CurrentFocus returns the focus state, expiring it on read: a stale
// focus rewrites the blob to the idle form before returning.
func (s *Store) CurrentFocus() (*Focus, error) {
	l := s.lock(KindConscious)
	l.Lock()
	defer l.Unlock()

	content, err := s.readLocked(KindConscious)
	if err != nil {
		return nil, err
	}

	focus := parseFocus(content, time.Now())
	if focus.expired(time.Now()) {
		focus.Idle = true
		if err := s.writeLocked(KindConscious, idleForm(time.Now(), "focus window elapsed")); err != nil {
			return nil, err
		}
	}
	return focus, nil
}

func (f *Focus) expired(now time.Time) bool {
	if f.Idle {
		return false
	}
	return now.After(f.Timestamp.Add(f.Duration))
}

func parseFocus(content string, now time.Time) *Focus {
	focus := &Focus{Timestamp: now, Duration: MaxFocusMinutes * time.Minute}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.Contains(trimmed, "ACTIVE FOCUS:\nIdle.") {
		focus.Idle = true
		focus.Body = trimmed
		return focus
	}

	var bodyLines []string
	for _, line := range strings.Split(trimmed, "\n") {
		switch {
		case strings.HasPrefix(line, "TIMESTAMP: "):
			if ts, err := time.ParseInLocation(focusTimeLayout, strings.TrimPrefix(line, "TIMESTAMP: "), time.Local); err == nil {
				focus.Timestamp = ts
			}
		case strings.HasPrefix(line, "DURATION: "):
			if mins, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "DURATION: "))); err == nil && mins > 0 {
				if mins > MaxFocusMinutes {
					mins = MaxFocusMinutes
				}
				focus.Duration = time.Duration(mins) * time.Minute
			}
		default:
			bodyLines = append(bodyLines, line)
		}
	}
	focus.Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
	return focus
}

func idleForm(now time.Time, reason string) string {
	return fmt.Sprintf("TIMESTAMP: %s\n\nACTIVE FOCUS:\nIdle. Reason: %s\n",
		now.Format(focusTimeLayout), reason)
}
