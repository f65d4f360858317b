package mapping

import (
	"math"
	"testing"

	"github.com/padlink/padlink/internal/config"
	"github.com/padlink/padlink/internal/envelope"
)

type fakeController struct {
	updates int
	resets  int
	last    State
}

func (c *fakeController) Update(s State) {
	c.updates++
	c.last = s
}

func (c *fakeController) Reset() {
	c.resets++
	c.last = State{}
}

func TestApplyDefaultProfile(t *testing.T) {
	ctrl := &fakeController{}
	m := NewMapper(config.DefaultProfile(), ctrl)

	m.Apply(envelope.InputSnapshot{
		Axes: map[string]float64{
			"left_stick_x":  1,
			"left_stick_y":  0.5,
			"right_stick_y": -1,
			"left_trigger":  2,
			"right_trigger": -1,
		},
		Buttons: map[string]bool{"a": true, "home": true, "unknown": true},
	})

	if ctrl.updates != 1 {
		t.Fatalf("expected 1 update, got %d", ctrl.updates)
	}
	s := ctrl.last
	if s.LeftX != math.MaxInt16 {
		t.Errorf("LeftX = %d", s.LeftX)
	}
	// Default profile inverts Y, cancelling the screen-to-controller flip.
	if s.LeftY != 16383 {
		t.Errorf("LeftY = %d", s.LeftY)
	}
	if s.RightY != -math.MaxInt16 {
		t.Errorf("RightY = %d", s.RightY)
	}
	if s.LeftTrigger != 255 || s.RightTrigger != 0 {
		t.Errorf("triggers = %d,%d", s.LeftTrigger, s.RightTrigger)
	}
	if !s.Buttons[ButtonA] || !s.Buttons[ButtonGuide] {
		t.Errorf("buttons = %v", s.Buttons)
	}
	if len(s.Buttons) != 2 {
		t.Errorf("unknown button should be ignored, got %v", s.Buttons)
	}
}

func TestApplyRemapAndNoInvert(t *testing.T) {
	ctrl := &fakeController{}
	m := NewMapper(config.MappingProfile{
		Name:    "swap",
		Buttons: map[string]string{"a": "B", "b": "A"},
	}, ctrl)

	m.Apply(envelope.InputSnapshot{
		Axes:    map[string]float64{"left_stick_y": 1},
		Buttons: map[string]bool{"a": true, "b": false},
	})
	if !ctrl.last.Buttons[ButtonB] || ctrl.last.Buttons[ButtonA] {
		t.Errorf("remap not applied: %v", ctrl.last.Buttons)
	}
	if ctrl.last.LeftY != -math.MaxInt16 {
		t.Errorf("LeftY = %d, want flipped", ctrl.last.LeftY)
	}
}

func TestApplyKeepsAbsentFieldsAndReset(t *testing.T) {
	ctrl := &fakeController{}
	m := NewMapper(config.DefaultProfile(), ctrl)

	m.Apply(envelope.InputSnapshot{Axes: map[string]float64{"left_stick_x": 1}, Buttons: map[string]bool{"x": true}})
	m.Apply(envelope.InputSnapshot{Axes: map[string]float64{"right_stick_x": 1}})
	if ctrl.last.LeftX != math.MaxInt16 || !ctrl.last.Buttons[ButtonX] {
		t.Errorf("absent fields were cleared: %+v", ctrl.last)
	}

	m.Reset()
	if ctrl.resets != 1 {
		t.Errorf("expected 1 reset, got %d", ctrl.resets)
	}
	if st := m.State(); st.LeftX != 0 || len(st.Buttons) != 0 {
		t.Errorf("state not cleared: %+v", st)
	}
}

func TestParseButton(t *testing.T) {
	for _, name := range []string{"a", "A", "LeftShoulder", "lb", "GUIDE", "dpad_up"} {
		if _, ok := ParseButton(name); !ok {
			t.Errorf("ParseButton(%q) failed", name)
		}
	}
	if _, ok := ParseButton("turbo"); ok {
		t.Error("unexpected button turbo")
	}
}
