package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action names the vision model may emit.
const (
	ActClick       = "CLICK"
	ActDoubleClick = "DOUBLE_CLICK"
	ActRightClick  = "RIGHT_CLICK"
	ActType        = "TYPE"
	ActHotkey      = "HOTKEY"
	ActScroll      = "SCROLL"
	ActMoveTo      = "MOVE_TO"
	ActWait        = "WAIT"
	ActAskUser     = "ASK_USER"
	ActFinish      = "FINISH"
)

// Action is one step of a model-produced plan. Box coordinates are
// [ymin, xmin, ymax, xmax] in a 0–1000 normalized space.
type Action struct {
	Action    string    `json:"action"`
	Box       []float64 `json:"box,omitempty"`
	Text      string    `json:"text,omitempty"`
	Keys      []string  `json:"keys,omitempty"`
	Direction string    `json:"direction,omitempty"` // "up" or "down"
	Amount    int       `json:"amount,omitempty"`
	Seconds   float64   `json:"seconds,omitempty"`
	Question  string    `json:"question,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// Center converts the normalized box to pixel coordinates for the
// given screen size.
func (a Action) Center(width, height int) (x, y int, err error) {
	if len(a.Box) != 4 {
		return 0, 0, fmt.Errorf("action %s: box must have 4 values, got %d", a.Action, len(a.Box))
	}
	ymin, xmin, ymax, xmax := a.Box[0], a.Box[1], a.Box[2], a.Box[3]
	x = int((xmin + xmax) / 2 / 1000 * float64(width))
	y = int((ymin + ymax) / 2 / 1000 * float64(height))
	return x, y, nil
}

// parsePlan extracts the JSON action array from a model response,
// tolerating surrounding prose and markdown fences.
func parsePlan(response string) ([]Action, error) {
	text := strings.TrimSpace(response)

	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		text = strings.TrimPrefix(text, "json")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON action array in response")
	}

	var plan []Action
	if err := json.Unmarshal([]byte(text[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("empty plan")
	}
	for i := range plan {
		plan[i].Action = strings.ToUpper(strings.TrimSpace(plan[i].Action))
	}
	return plan, nil
}
