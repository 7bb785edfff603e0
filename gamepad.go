package armbot

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Axis identifies one joystick input channel and its corresponding joint.
type Axis int

const (
	AxisBase Axis = iota
	AxisShoulder
	AxisElbow
	AxisGripper

	// NumAxes is the number of input channels the gamepad reads.
	NumAxes = 4
)

func (a Axis) String() string {
	switch a {
	case AxisBase:
		return "base_rotator"
	case AxisShoulder:
		return "shoulder"
	case AxisElbow:
		return "elbow"
	case AxisGripper:
		return "gripper"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// JoystickProfile describes the raw samples the joystick sensor produces and
// how wide its dead zone is.
type JoystickProfile struct {
	// SampleMin and SampleMax bound the inclusive interval of raw values
	// the sensor can produce.
	SampleMin uint32 `json:"sample_min"`
	SampleMax uint32 `json:"sample_max"`
	// CenterHalfWidth is the symmetric offset around the calibrated
	// center treated as "no input".
	CenterHalfWidth uint32 `json:"center_half_width"`
	// CalibrateOnStart reads the real resting position of every axis at
	// construction and centers the dead zones there instead of at the
	// midpoint of the sample interval.
	CalibrateOnStart bool `json:"calibrate_on_start"`
}

// DefaultJoystickProfile returns the reference joystick contract.
func DefaultJoystickProfile() JoystickProfile {
	return JoystickProfile{
		SampleMin:        10,
		SampleMax:        2757,
		CenterHalfWidth:  50,
		CalibrateOnStart: true,
	}
}

// Validate ensures the profile describes a usable sensor.
func (p JoystickProfile) Validate() error {
	if p.SampleMin >= p.SampleMax {
		return errors.Errorf("sample interval [%d, %d] is empty", p.SampleMin, p.SampleMax)
	}
	if p.CenterHalfWidth == 0 {
		return errors.New("center half-width must be positive")
	}
	if 2*p.CenterHalfWidth >= p.SampleMax-p.SampleMin {
		return errors.Errorf("center half-width %d leaves no active travel in [%d, %d]",
			p.CenterHalfWidth, p.SampleMin, p.SampleMax)
	}
	return nil
}

// deadZone returns the half-open dead-zone interval centered on center,
// saturating at zero rather than wrapping.
func (p JoystickProfile) deadZone(center uint32) Span {
	var lo uint32
	if center > p.CenterHalfWidth {
		lo = center - p.CenterHalfWidth
	}
	return Span{Min: lo, Max: center + p.CenterHalfWidth}
}

// clamp normalizes a raw sample into the sensor's valid interval.
func (p JoystickProfile) clamp(v uint32) uint32 {
	if v < p.SampleMin {
		return p.SampleMin
	}
	if v > p.SampleMax {
		return p.SampleMax
	}
	return v
}

// RawState holds one normalized reading per axis.
type RawState [NumAxes]uint32

// Zone is the tri-state classification of one axis sample.
type Zone uint8

const (
	ZoneCenter Zone = iota
	ZoneLow
	ZoneHigh
)

func (z Zone) String() string {
	switch z {
	case ZoneCenter:
		return "center"
	case ZoneLow:
		return "low"
	case ZoneHigh:
		return "high"
	default:
		return fmt.Sprintf("zone(%d)", uint8(z))
	}
}

// Position is one axis command: a zone plus, outside the dead zone, a
// magnitude already expressed in the caller's output interval, never in raw
// sensor units. The zero value is Center.
type Position struct {
	Zone      Zone
	Magnitude uint32
}

func (p Position) String() string {
	if p.Zone == ZoneCenter {
		return "center"
	}
	return fmt.Sprintf("%s(%d)", p.Zone, p.Magnitude)
}

// State holds the four axis commands of one control cycle.
type State [NumAxes]Position

// IsCenter reports whether every axis rests in its dead zone.
func (s State) IsCenter() bool {
	for _, p := range s {
		if p.Zone != ZoneCenter {
			return false
		}
	}
	return true
}

// InputReader is the joystick capability the controller consumes; Gamepad is
// the production implementation.
type InputReader interface {
	// ReadRawState returns the normalized raw values of all axes.
	ReadRawState() (RawState, error)

	// ReadState returns the axis commands with magnitudes mapped into the
	// given output interval.
	ReadState(output Span) (State, error)
}

// Gamepad normalizes noisy analog samples, applies per-axis calibrated dead
// zones and produces tri-state directional commands with proportional
// magnitude. It is exclusively owned by its controller; it is not safe for
// concurrent use.
type Gamepad struct {
	profile   JoystickProfile
	inputs    [NumAxes]AnalogReader
	deadZones [NumAxes]Span
	logger    logging.Logger
}

// NewGamepad computes the per-axis dead zones, optionally from one live
// calibration read, and holds them for the gamepad's lifetime. A failed
// calibration read is fatal.
func NewGamepad(profile JoystickProfile, inputs [NumAxes]AnalogReader, logger logging.Logger) (*Gamepad, error) {
	if err := profile.Validate(); err != nil {
		return nil, errors.Wrap(err, "gamepad")
	}
	for ax, in := range inputs {
		if in == nil {
			return nil, errors.Errorf("gamepad: missing analog input for %s axis", Axis(ax))
		}
	}

	g := &Gamepad{
		profile: profile,
		inputs:  inputs,
		logger:  logger,
	}

	defaultZone := profile.deadZone(Span{Min: profile.SampleMin, Max: profile.SampleMax}.Midpoint())
	for ax := range g.deadZones {
		g.deadZones[ax] = defaultZone
	}

	if profile.CalibrateOnStart {
		resting, err := g.ReadRawState()
		if err != nil {
			return nil, errors.Wrap(err, "gamepad: startup calibration read")
		}
		for ax := Axis(0); ax < NumAxes; ax++ {
			g.deadZones[ax] = profile.deadZone(resting[ax])
		}
	}

	for ax := Axis(0); ax < NumAxes; ax++ {
		logger.Infof("%s dead zone=[%d, %d)", ax, g.deadZones[ax].Min, g.deadZones[ax].Max)
	}

	return g, nil
}

// DeadZone returns the calibrated dead-zone interval of one axis.
func (g *Gamepad) DeadZone(ax Axis) Span {
	return g.deadZones[ax]
}

// ReadRawState reads all four analog channels and clamps each sample into
// the sensor's valid interval. Any channel failure aborts the whole read; no
// partial state is returned.
func (g *Gamepad) ReadRawState() (RawState, error) {
	var state RawState
	for ax := Axis(0); ax < NumAxes; ax++ {
		v, err := g.inputs[ax].Read()
		if err != nil {
			return RawState{}, errors.Wrapf(err, "gamepad: read %s axis", ax)
		}
		state[ax] = g.profile.clamp(v)
	}
	g.logger.Debugf("raw state=%v", state)
	return state, nil
}

// ReadState classifies every axis against its dead zone and maps the
// distance from center onto the output interval.
func (g *Gamepad) ReadState(output Span) (State, error) {
	raw, err := g.ReadRawState()
	if err != nil {
		return State{}, err
	}

	var state State
	for ax := Axis(0); ax < NumAxes; ax++ {
		state[ax] = makePosition(raw[ax], g.profile, g.deadZones[ax], output)
	}
	g.logger.Debugf("state=%v", state)
	return state, nil
}

// makePosition classifies one clamped sample. Inverting the low-side mapping
// keeps magnitude growing as the sample moves away from center on either
// side: a sample at SampleMin yields the maximum magnitude, not zero. The
// half-open output Span contributes its largest member, Max-1, as the
// inclusive upper mapping bound.
func makePosition(v uint32, profile JoystickProfile, deadZone, output Span) Position {
	switch {
	case deadZone.Contains(v):
		return Position{}
	case v < deadZone.Min:
		return Position{
			Zone:      ZoneLow,
			Magnitude: MapRange(v, profile.SampleMin, deadZone.Min, output.Min, output.Max-1, true),
		}
	default:
		return Position{
			Zone:      ZoneHigh,
			Magnitude: MapRange(v, deadZone.Max, profile.SampleMax, output.Min, output.Max-1, false),
		}
	}
}
