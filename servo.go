package armbot

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// microsPerSecond converts microsecond pulse widths into the period unit of
// ServoProfile.FrequencyHz. Pulse widths are specified in microseconds
// throughout: an SG90's usable band is 500-2600 us at 50 Hz.
const microsPerSecond = 1_000_000.0

// ServoProfile is the physical contract of one servo model. It is immutable
// after construction.
type ServoProfile struct {
	// MaxAngle is the largest mechanical angle the servo can reach,
	// mostly 180 or 360 degrees.
	MaxAngle float64 `json:"max_angle"`
	// FrequencyHz is the PWM frequency the servo expects, e.g. 50 Hz.
	FrequencyHz uint32 `json:"frequency_hz"`
	// MinPulseUs and MaxPulseUs bound the half-open pulse-width interval
	// [min, max) the servo accepts, in microseconds.
	MinPulseUs uint32 `json:"min_pulse_us"`
	MaxPulseUs uint32 `json:"max_pulse_us"`
	// ResolutionBits is the duty-cycle counter width to configure on
	// actuators with an adjustable resolution.
	ResolutionBits uint32 `json:"resolution_bits"`
	// Step is how many raw duty units one control tick adds or subtracts.
	Step uint32 `json:"step"`
}

// DefaultServoProfile returns the SG90 contract.
func DefaultServoProfile() ServoProfile {
	return ServoProfile{
		MaxAngle:       180.0,
		FrequencyHz:    50,
		MinPulseUs:     500,
		MaxPulseUs:     2600,
		ResolutionBits: 12,
		Step:           5,
	}
}

// Validate ensures the profile describes a usable servo.
func (p ServoProfile) Validate() error {
	if p.FrequencyHz == 0 {
		return errors.New("pwm frequency must be positive")
	}
	if p.MinPulseUs >= p.MaxPulseUs {
		return errors.Errorf("pulse width interval [%d, %d) is empty", p.MinPulseUs, p.MaxPulseUs)
	}
	if p.MaxAngle <= 0 {
		return errors.New("max angle must be positive")
	}
	if p.Step == 0 {
		return errors.New("step increment must be positive")
	}
	return nil
}

// pulseToDuty converts a microsecond pulse width into a raw duty value for an
// actuator with the given counter ceiling.
func (p ServoProfile) pulseToDuty(pulseUs, maxDuty uint32) uint32 {
	return uint32(float64(pulseUs) * float64(p.FrequencyHz) * float64(maxDuty) / microsPerSecond)
}

// dutyToPulseUs is the inverse of pulseToDuty, kept in float for angle
// readback.
func (p ServoProfile) dutyToPulseUs(duty, maxDuty uint32) float64 {
	return float64(duty) * microsPerSecond / float64(p.FrequencyHz) / float64(maxDuty)
}

// dutyBounds derives the half-open duty interval matching the profile's
// pulse-width interval.
func (p ServoProfile) dutyBounds(maxDuty uint32) Span {
	return Span{
		Min: p.pulseToDuty(p.MinPulseUs, maxDuty),
		Max: p.pulseToDuty(p.MaxPulseUs, maxDuty),
	}
}

// Servo is the duty-cycle model of one rotary actuator. It owns the duty
// bounds derived from its profile and performs bounds-checked incremental
// stepping against a DutyActuator capability. A Servo is exclusively owned
// by the controller that drives it; it is not safe for concurrent use.
type Servo struct {
	name    string
	profile ServoProfile
	out     DutyActuator
	maxDuty uint32
	bounds  Span
	// Current direction. True means forward, increasing duty.
	forward bool
	logger  logging.Logger
}

// NewServo derives the duty bounds from the profile and the actuator's
// reported maximum duty, then centers the actuator between them as a safe
// starting position. A failed actuator write here is fatal.
func NewServo(name string, profile ServoProfile, out DutyActuator, logger logging.Logger) (*Servo, error) {
	if err := profile.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s servo", name)
	}

	maxDuty := out.MaxDuty()
	bounds := profile.dutyBounds(maxDuty)
	if bounds.Min >= bounds.Max || bounds.Max > maxDuty {
		return nil, errors.Errorf("%s servo: duty bounds [%d, %d) invalid for max duty %d",
			name, bounds.Min, bounds.Max, maxDuty)
	}

	center := bounds.Midpoint()
	if err := out.SetDuty(center); err != nil {
		return nil, errors.Wrapf(err, "%s servo: set center duty", name)
	}

	logger.Infof("%s servo: center=%d, duty bounds=[%d, %d), max duty=%d",
		name, center, bounds.Min, bounds.Max, maxDuty)

	return &Servo{
		name:    name,
		profile: profile,
		out:     out,
		maxDuty: maxDuty,
		bounds:  bounds,
		forward: true,
		logger:  logger,
	}, nil
}

// Step nudges the servo by delta raw duty units in the current direction.
// It returns false when the candidate duty would leave the servo's bounds:
// the step is skipped and the actuator is left untouched. That is
// end-of-travel, not an error; callers use it to detect the limits.
func (s *Servo) Step(delta uint32) (bool, error) {
	current, err := s.out.Duty()
	if err != nil {
		return false, errors.Wrapf(err, "%s servo: read duty", s.name)
	}

	var candidate uint32
	if s.forward {
		candidate = current + delta
	} else {
		// Saturating subtraction: the candidate clamps at zero before
		// the bounds check, it never wraps.
		if delta > current {
			candidate = 0
		} else {
			candidate = current - delta
		}
	}

	if !s.bounds.Contains(candidate) {
		return false, nil
	}

	if err := s.out.SetDuty(candidate); err != nil {
		return false, errors.Wrapf(err, "%s servo: set duty", s.name)
	}
	if err := s.out.Enable(); err != nil {
		return false, errors.Wrapf(err, "%s servo: enable output", s.name)
	}

	s.logger.Debugf("%s servo: step(%d) to %d", s.name, delta, candidate)
	return true, nil
}

// Forward sets the servo to move toward increasing duty on the next Step.
func (s *Servo) Forward() {
	s.forward = true
}

// Backward sets the servo to move toward decreasing duty on the next Step.
func (s *Servo) Backward() {
	s.forward = false
}

// IsForward reports the current direction.
func (s *Servo) IsForward() bool {
	return s.forward
}

// Angle reads the current duty back from the actuator and converts it to a
// mechanical angle in degrees. Informational only; stepping is gated by the
// duty bounds, never by this.
func (s *Servo) Angle() (float64, error) {
	current, err := s.out.Duty()
	if err != nil {
		return 0, errors.Wrapf(err, "%s servo: read duty", s.name)
	}
	pulseUs := s.profile.dutyToPulseUs(current, s.maxDuty)
	span := float64(s.profile.MaxPulseUs - s.profile.MinPulseUs)
	return (pulseUs - float64(s.profile.MinPulseUs)) / span * s.profile.MaxAngle, nil
}

// Bounds returns the servo's duty interval.
func (s *Servo) Bounds() Span {
	return s.bounds
}

// Name returns the identifying label given at construction.
func (s *Servo) Name() string {
	return s.name
}
