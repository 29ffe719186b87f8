package vision

import (
	"testing"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int // actions parsed
		wantErr bool
	}{
		{
			name: "bare array",
			in:   `[{"action":"CLICK","box":[100,200,120,260]}]`,
			want: 1,
		},
		{
			name: "markdown fence",
			in:   "```json\n[{\"action\":\"TYPE\",\"text\":\"hello\"}]\n```",
			want: 1,
		},
		{
			name: "fence without language tag",
			in:   "```\n[{\"action\":\"WAIT\",\"seconds\":2}]\n```",
			want: 1,
		},
		{
			name: "surrounding prose",
			in:   "Here is my plan:\n[{\"action\":\"FINISH\",\"summary\":\"done\"}]\nLet me know.",
			want: 1,
		},
		{
			name: "multiple actions",
			in:   `[{"action":"CLICK","box":[0,0,10,10]},{"action":"TYPE","text":"x"},{"action":"FINISH"}]`,
			want: 3,
		},
		{
			name:    "no array",
			in:      "I cannot see the screen.",
			wantErr: true,
		},
		{
			name:    "empty array",
			in:      "[]",
			wantErr: true,
		},
		{
			name:    "malformed json",
			in:      `[{"action":"CLICK",`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := parsePlan(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsePlan succeeded with %d actions, want error", len(plan))
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePlan: %v", err)
			}
			if len(plan) != tt.want {
				t.Errorf("got %d actions, want %d", len(plan), tt.want)
			}
		})
	}
}

func TestParsePlan_NormalizesActionNames(t *testing.T) {
	plan, err := parsePlan(`[{"action":" click "},{"action":"Finish"}]`)
	if err != nil {
		t.Fatalf("parsePlan: %v", err)
	}
	if plan[0].Action != ActClick || plan[1].Action != ActFinish {
		t.Errorf("actions = %s, %s", plan[0].Action, plan[1].Action)
	}
}

func TestActionCenter(t *testing.T) {
	tests := []struct {
		name   string
		box    []float64
		w, h   int
		wantX  int
		wantY  int
	}{
		{
			// ymin,xmin,ymax,xmax ordering: y comes first.
			name: "centered box on 1080p",
			box:  []float64{400, 200, 600, 400}, // y 400-600, x 200-400
			w:    1920, h: 1080,
			wantX: 576, // (200+400)/2 / 1000 * 1920
			wantY: 540, // (400+600)/2 / 1000 * 1080
		},
		{
			name: "full screen box",
			box:  []float64{0, 0, 1000, 1000},
			w:    800, h: 600,
			wantX: 400,
			wantY: 300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Action{Action: ActClick, Box: tt.box}
			x, y, err := a.Center(tt.w, tt.h)
			if err != nil {
				t.Fatalf("Center: %v", err)
			}
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("center = (%d,%d), want (%d,%d)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestActionCenter_BadBox(t *testing.T) {
	for _, box := range [][]float64{nil, {1, 2, 3}, {1, 2, 3, 4, 5}} {
		a := Action{Action: ActClick, Box: box}
		if _, _, err := a.Center(100, 100); err == nil {
			t.Errorf("Center with box %v succeeded, want error", box)
		}
	}
}
