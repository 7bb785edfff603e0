package armbot

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.viam.com/rdk/logging"
)

// fakeActuator is an in-memory DutyActuator that counts writes and can
// inject failures.
type fakeActuator struct {
	max     uint32
	duty    uint32
	writes  int
	enables int
	setErr  error
	readErr error
}

func (f *fakeActuator) MaxDuty() uint32 { return f.max }

func (f *fakeActuator) SetDuty(duty uint32) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.duty = duty
	f.writes++
	return nil
}

func (f *fakeActuator) Duty() (uint32, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.duty, nil
}

func (f *fakeActuator) Enable() error {
	f.enables++
	return nil
}

func TestNewServoCentersActuator(t *testing.T) {
	logger := logging.NewTestLogger(t)
	out := &fakeActuator{max: 4095}

	servo, err := NewServo("shoulder", DefaultServoProfile(), out, logger)
	assert.NoError(t, err)

	// SG90 at 50 Hz on a 12-bit counter: [102, 532), center 317.
	assert.Equal(t, Span{Min: 102, Max: 532}, servo.Bounds())
	assert.Equal(t, uint32(317), out.duty)
	assert.Equal(t, 1, out.writes)
	assert.True(t, servo.IsForward())
	assert.Equal(t, "shoulder", servo.Name())
}

func TestNewServoRejectsBadProfile(t *testing.T) {
	logger := logging.NewTestLogger(t)

	tests := []struct {
		name   string
		mutate func(*ServoProfile)
	}{
		{"zero frequency", func(p *ServoProfile) { p.FrequencyHz = 0 }},
		{"empty pulse interval", func(p *ServoProfile) { p.MinPulseUs = p.MaxPulseUs }},
		{"zero max angle", func(p *ServoProfile) { p.MaxAngle = 0 }},
		{"zero step", func(p *ServoProfile) { p.Step = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := DefaultServoProfile()
			tt.mutate(&profile)
			_, err := NewServo("elbow", profile, &fakeActuator{max: 4095}, logger)
			assert.Error(t, err)
		})
	}
}

func TestNewServoRejectsBoundsBeyondActuator(t *testing.T) {
	logger := logging.NewTestLogger(t)

	// A one-count actuator cannot represent the SG90 pulse interval.
	_, err := NewServo("gripper", DefaultServoProfile(), &fakeActuator{max: 1}, logger)
	assert.Error(t, err)
}

func TestNewServoPropagatesCenterWriteFailure(t *testing.T) {
	logger := logging.NewTestLogger(t)
	out := &fakeActuator{max: 4095, setErr: errors.New("bus gone")}

	_, err := NewServo("shoulder", DefaultServoProfile(), out, logger)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "shoulder servo")
}

func TestServoStepMovesWithinBounds(t *testing.T) {
	logger := logging.NewTestLogger(t)
	out := &fakeActuator{max: 4095}
	servo, err := NewServo("elbow", DefaultServoProfile(), out, logger)
	assert.NoError(t, err)

	moved, err := servo.Step(5)
	assert.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, uint32(322), out.duty)
	assert.Equal(t, 1, out.enables)

	servo.Backward()
	moved, err = servo.Step(9)
	assert.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, uint32(313), out.duty)
}

func TestServoStepSkipsOutOfBounds(t *testing.T) {
	logger := logging.NewTestLogger(t)
	out := &fakeActuator{max: 4095}
	servo, err := NewServo("shoulder", DefaultServoProfile(), out, logger)
	assert.NoError(t, err)

	// Drive to the last representable duty inside the bounds.
	out.duty = servo.Bounds().Max - 1
	writesBefore := out.writes

	moved, err := servo.Step(10)
	assert.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, servo.Bounds().Max-1, out.duty)
	assert.Equal(t, writesBefore, out.writes)

	// One duty unit short of the bound still moves.
	out.duty = servo.Bounds().Max - 2
	moved, err = servo.Step(1)
	assert.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, servo.Bounds().Max-1, out.duty)
}

func TestServoStepBackwardSaturatesAtZero(t *testing.T) {
	logger := logging.NewTestLogger(t)
	out := &fakeActuator{max: 4095}
	servo, err := NewServo("gripper", DefaultServoProfile(), out, logger)
	assert.NoError(t, err)

	// A step larger than the current duty clamps to zero, which is below
	// the lower bound, so the actuator is left untouched.
	out.duty = servo.Bounds().Min
	servo.Backward()

	moved, err := servo.Step(out.duty + 100)
	assert.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, servo.Bounds().Min, out.duty)
}

func TestServoStepPropagatesActuatorErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	out := &fakeActuator{max: 4095}
	servo, err := NewServo("elbow", DefaultServoProfile(), out, logger)
	assert.NoError(t, err)

	out.readErr = errors.New("conversion timed out")
	_, err = servo.Step(5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "elbow servo")

	out.readErr = nil
	out.setErr = errors.New("nack")
	_, err = servo.Step(5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "set duty")
}

func TestServoAngle(t *testing.T) {
	logger := logging.NewTestLogger(t)
	out := &fakeActuator{max: 4095}
	servo, err := NewServo("shoulder", DefaultServoProfile(), out, logger)
	assert.NoError(t, err)

	// Centered between 500 and 2600 us the SG90 sits near 90 degrees.
	angle, err := servo.Angle()
	assert.NoError(t, err)
	assert.InDelta(t, 90.0, angle, 1.0)

	out.duty = servo.Bounds().Min
	angle, err = servo.Angle()
	assert.NoError(t, err)
	assert.InDelta(t, 0.0, angle, 1.0)
}

func TestServoDirectionToggle(t *testing.T) {
	logger := logging.NewTestLogger(t)
	servo, err := NewServo("elbow", DefaultServoProfile(), &fakeActuator{max: 4095}, logger)
	assert.NoError(t, err)

	assert.True(t, servo.IsForward())
	servo.Backward()
	assert.False(t, servo.IsForward())
	servo.Forward()
	assert.True(t, servo.IsForward())
}
