package armbot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// DefaultLoopInterval is the inter-cycle delay of the polling loop.
const DefaultLoopInterval = 10 * time.Millisecond

// JointInvert flips the physical rotational sense of one joint. Which
// direction Low and High commands turn a joint depends on how its servo horn
// is mounted, so the sense is fixed per joint at integration time instead of
// being hard-coded.
type JointInvert struct {
	Shoulder bool `json:"shoulder,omitempty"`
	Elbow    bool `json:"elbow,omitempty"`
	Gripper  bool `json:"gripper,omitempty"`
}

// ArmConfig holds the controller's tuning.
type ArmConfig struct {
	// Desired mechanical angle intervals per joint, in degrees.
	// Informational bounds; stepping is gated by the servo duty bounds.
	ShoulderAngle Span `json:"shoulder_angle"`
	ElbowAngle    Span `json:"elbow_angle"`
	GripperAngle  Span `json:"gripper_angle"`

	// StepSize is the output interval fed to the joystick mapper: Min for
	// the slowest motion, up to (but excluding) Max for the fastest.
	StepSize Span `json:"step_size"`

	// Invert is the per-joint direction-sense calibration table.
	Invert JointInvert `json:"invert"`
}

// DefaultArmConfig returns the reference arm tuning.
func DefaultArmConfig() ArmConfig {
	return ArmConfig{
		ShoulderAngle: Span{Min: 30, Max: 150},
		ElbowAngle:    Span{Min: 30, Max: 150},
		GripperAngle:  Span{Min: 20, Max: 70},
		StepSize:      Span{Min: 1, Max: 10},
	}
}

// Validate ensures the config describes a drivable arm.
func (c ArmConfig) Validate() error {
	if c.StepSize.Min == 0 {
		return errors.New("step size minimum must be positive")
	}
	if c.StepSize.Min >= c.StepSize.Max {
		return errors.Errorf("step size interval [%d, %d) is empty", c.StepSize.Min, c.StepSize.Max)
	}
	for _, span := range []struct {
		name string
		s    Span
	}{
		{"shoulder angle", c.ShoulderAngle},
		{"elbow angle", c.ElbowAngle},
		{"gripper angle", c.GripperAngle},
	} {
		if span.s.Min >= span.s.Max {
			return errors.Errorf("%s interval [%d, %d) is empty", span.name, span.s.Min, span.s.Max)
		}
	}
	return nil
}

// ArmBot orchestrates one control cycle: it reads the joystick mapper's
// aggregated state and translates each non-base axis command into a
// direction change plus a bounded step on the matching servo. The base
// rotator axis is read but not yet wired to an actuator.
type ArmBot struct {
	config   ArmConfig
	input    InputReader
	shoulder *Servo
	elbow    *Servo
	gripper  *Servo
	logger   logging.Logger
}

// NewArmBot wires the controller to its exclusively-owned input and servos.
func NewArmBot(config ArmConfig, input InputReader, shoulder, elbow, gripper *Servo, logger logging.Logger) (*ArmBot, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "arm config")
	}
	if input == nil {
		return nil, errors.New("arm: input reader is required")
	}
	for _, s := range []*Servo{shoulder, elbow, gripper} {
		if s == nil {
			return nil, errors.New("arm: all three joint servos are required")
		}
	}
	return &ArmBot{
		config:   config,
		input:    input,
		shoulder: shoulder,
		elbow:    elbow,
		gripper:  gripper,
		logger:   logger,
	}, nil
}

// DoStep runs one control cycle. An idle cycle, with every axis at rest,
// performs no actuator writes at all.
func (b *ArmBot) DoStep() error {
	state, err := b.input.ReadState(b.config.StepSize)
	if err != nil {
		return err
	}
	if state.IsCenter() {
		return nil
	}

	if err := b.moveJoint(b.shoulder, state[AxisShoulder], b.config.Invert.Shoulder); err != nil {
		return err
	}
	if err := b.moveJoint(b.elbow, state[AxisElbow], b.config.Invert.Elbow); err != nil {
		return err
	}
	if err := b.moveJoint(b.gripper, state[AxisGripper], b.config.Invert.Gripper); err != nil {
		return err
	}

	return nil
}

// moveJoint translates one axis command into a direction change plus a
// bounded step. Low drives the joint backward and High forward unless the
// joint's sense is inverted.
func (b *ArmBot) moveJoint(servo *Servo, cmd Position, invert bool) error {
	switch cmd.Zone {
	case ZoneCenter:
		return nil
	case ZoneLow:
		if invert {
			servo.Forward()
		} else {
			servo.Backward()
		}
	case ZoneHigh:
		if invert {
			servo.Backward()
		} else {
			servo.Forward()
		}
	}

	moved, err := servo.Step(cmd.Magnitude)
	if err != nil {
		return err
	}
	if !moved {
		b.logger.Debugf("%s servo at end of travel", servo.Name())
	}
	return nil
}

// Run polls DoStep until the context is cancelled, waiting interval between
// cycles. A failed cycle is logged and abandoned; the next cycle proceeds
// from whatever state the hardware is already in, so a transient glitch
// never stops the arm for good.
func (b *ArmBot) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultLoopInterval
	}
	for {
		if err := b.DoStep(); err != nil {
			b.logger.Errorf("control cycle failed: %v", err)
		}
		if !utils.SelectContextOrWait(ctx, interval) {
			return ctx.Err()
		}
	}
}
