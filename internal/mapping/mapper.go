// Package mapping turns decoded input snapshots into virtual controller
// state using a profile's button remap table and axis invert flags.
package mapping

import (
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/config"
	"github.com/padlink/padlink/internal/envelope"
)

// Button is a virtual controller button
type Button string

const (
	ButtonA             Button = "A"
	ButtonB             Button = "B"
	ButtonX             Button = "X"
	ButtonY             Button = "Y"
	ButtonLeftShoulder  Button = "LeftShoulder"
	ButtonRightShoulder Button = "RightShoulder"
	ButtonBack          Button = "Back"
	ButtonStart         Button = "Start"
	ButtonLeftThumb     Button = "LeftThumb"
	ButtonRightThumb    Button = "RightThumb"
	ButtonUp            Button = "Up"
	ButtonDown          Button = "Down"
	ButtonLeft          Button = "Left"
	ButtonRight         Button = "Right"
	ButtonGuide         Button = "Guide"
)

// buttonNames resolves both wire names and controller names, case-insensitively
var buttonNames = map[string]Button{
	"a":             ButtonA,
	"b":             ButtonB,
	"x":             ButtonX,
	"y":             ButtonY,
	"lb":            ButtonLeftShoulder,
	"rb":            ButtonRightShoulder,
	"back":          ButtonBack,
	"start":         ButtonStart,
	"ls":            ButtonLeftThumb,
	"rs":            ButtonRightThumb,
	"dpad_up":       ButtonUp,
	"dpad_down":     ButtonDown,
	"dpad_left":     ButtonLeft,
	"dpad_right":    ButtonRight,
	"home":          ButtonGuide,
	"leftshoulder":  ButtonLeftShoulder,
	"rightshoulder": ButtonRightShoulder,
	"leftthumb":     ButtonLeftThumb,
	"rightthumb":    ButtonRightThumb,
	"up":            ButtonUp,
	"down":          ButtonDown,
	"left":          ButtonLeft,
	"right":         ButtonRight,
	"guide":         ButtonGuide,
}

// ParseButton resolves a button name
func ParseButton(name string) (Button, bool) {
	b, ok := buttonNames[strings.ToLower(name)]
	return b, ok
}

// State is the full virtual controller state
type State struct {
	LeftX, LeftY   int16
	RightX, RightY int16
	LeftTrigger    uint8
	RightTrigger   uint8
	Buttons        map[Button]bool
}

func (s State) clone() State {
	c := s
	c.Buttons = make(map[Button]bool, len(s.Buttons))
	for b, v := range s.Buttons {
		c.Buttons[b] = v
	}
	return c
}

// Controller is the virtual device the mapped state is pushed to
type Controller interface {
	Update(s State)
	Reset()
}

// Mapper applies a profile to snapshots and drives a Controller. Axes and
// buttons absent from a snapshot keep their previous value.
type Mapper struct {
	profile    config.MappingProfile
	controller Controller

	mu    sync.Mutex
	state State
}

// NewMapper creates a mapper for profile
func NewMapper(profile config.MappingProfile, controller Controller) *Mapper {
	return &Mapper{
		profile:    profile,
		controller: controller,
		state:      State{Buttons: make(map[Button]bool)},
	}
}

// Apply maps one snapshot onto the controller
func (m *Mapper) Apply(s envelope.InputSnapshot) {
	m.mu.Lock()
	if v, ok := s.Axes["left_stick_x"]; ok {
		m.state.LeftX = stick(m.axis("left_stick_x", v))
	}
	// Source Y axes grow downward; controller Y axes grow upward.
	if v, ok := s.Axes["left_stick_y"]; ok {
		m.state.LeftY = stick(m.axis("left_stick_y", -v))
	}
	if v, ok := s.Axes["right_stick_x"]; ok {
		m.state.RightX = stick(m.axis("right_stick_x", v))
	}
	if v, ok := s.Axes["right_stick_y"]; ok {
		m.state.RightY = stick(m.axis("right_stick_y", -v))
	}
	if v, ok := s.Axes["left_trigger"]; ok {
		m.state.LeftTrigger = trigger(m.axis("left_trigger", v))
	}
	if v, ok := s.Axes["right_trigger"]; ok {
		m.state.RightTrigger = trigger(m.axis("right_trigger", v))
	}

	for name, pressed := range s.Buttons {
		target := name
		if remapped, ok := m.profile.Buttons[name]; ok {
			target = remapped
		}
		if b, ok := ParseButton(target); ok {
			m.state.Buttons[b] = pressed
		}
	}
	state := m.state.clone()
	m.mu.Unlock()

	m.controller.Update(state)
}

// Reset centers all axes and releases every button
func (m *Mapper) Reset() {
	m.mu.Lock()
	m.state = State{Buttons: make(map[Button]bool)}
	m.mu.Unlock()
	m.controller.Reset()
}

// State returns a copy of the current mapped state
func (m *Mapper) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *Mapper) axis(name string, v float64) float64 {
	if m.profile.AxisInvert[name] {
		return -v
	}
	return v
}

func stick(v float64) int16 {
	return int16(clamp(v, -1, 1) * math.MaxInt16)
}

func trigger(v float64) uint8 {
	return uint8(clamp(v, 0, 1) * math.MaxUint8)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

// LogController is a Controller that only logs state changes. It stands in
// for a platform virtual-gamepad driver.
type LogController struct {
	Log *zap.SugaredLogger
}

// Update logs the new state at debug level
func (c LogController) Update(s State) {
	pressed := make([]string, 0, len(s.Buttons))
	for b, down := range s.Buttons {
		if down {
			pressed = append(pressed, string(b))
		}
	}
	c.Log.Debugw("controller: update",
		"left", [2]int16{s.LeftX, s.LeftY},
		"right", [2]int16{s.RightX, s.RightY},
		"triggers", [2]uint8{s.LeftTrigger, s.RightTrigger},
		"pressed", pressed)
}

// Reset logs the reset
func (c LogController) Reset() {
	c.Log.Infof("controller: reset, all buttons released")
}
