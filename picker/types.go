/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package picker

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxFingers     = 5
	DefaultStabilityDelay = 500 * time.Millisecond
	DefaultCountdownDelay = 3000 * time.Millisecond
)

// Config holds the tunables of a single game.
type Config struct {
	MaxFingers     int
	StabilityDelay time.Duration
	CountdownDelay time.Duration
}

// DefaultConfig returns five fingers, a 500ms stability window and a 3s countdown.
func DefaultConfig() Config {
	return Config{
		MaxFingers:     DefaultMaxFingers,
		StabilityDelay: DefaultStabilityDelay,
		CountdownDelay: DefaultCountdownDelay,
	}
}

// Validate rejects fewer than two fingers and non-positive delays.
func (c Config) Validate() error {
	if c.MaxFingers < 2 {
		return fmt.Errorf("invalid finger limit (must be at least 2): %d", c.MaxFingers)
	}
	if c.StabilityDelay <= 0 {
		return errors.New("stability delay must be positive")
	}
	if c.CountdownDelay <= 0 {
		return errors.New("countdown delay must be positive")
	}
	return nil
}

type Phase int

const (
	Idle Phase = iota
	WaitingStability
	Pulsing
	WinnerSelected
)

var phaseNames = [...]string{
	Idle:             "idle",
	WaitingStability: "waiting_stability",
	Pulsing:          "pulsing",
	WinnerSelected:   "winner_selected",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// TouchKind is the lifecycle stage carried by a batch of contacts.
type TouchKind int

const (
	Down TouchKind = iota
	Move
	Up
	Cancelled
)

var ErrUnknownKind = errors.New("unknown touch kind")

func (k TouchKind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseTouchKind(s string) (TouchKind, error) {
	switch s {
	case "down", "start":
		return Down, nil
	case "move":
		return Move, nil
	case "up", "end":
		return Up, nil
	case "cancelled", "cancel":
		return Cancelled, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Contact is one touch point inside an event batch. ID is assigned by the
// touch source and stays the same from down until up or cancel.
type Contact struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (c Contact) Point() Point {
	return Point{X: c.X, Y: c.Y}
}

// Haptic names a feedback event the host should play.
type Haptic string

const (
	HapticTouchDown  Haptic = "touch_down"
	HapticPulseStart Haptic = "pulse_start"
	HapticWinner     Haptic = "winner"
)

// Visual is how a slot should be drawn.
type Visual string

const (
	VisualHidden     Visual = "hidden"
	VisualActive     Visual = "active"
	VisualPulsing    Visual = "pulsing"
	VisualWinner     Visual = "winner"
	VisualEliminated Visual = "eliminated"
)

// Hooks are the host's side-effect sinks. Either may be nil.
type Hooks struct {
	Haptic func(Haptic)
	Render func(Snapshot)
}
