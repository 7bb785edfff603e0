package armbot

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.viam.com/rdk/logging"
)

// fakeInput is a scripted InputReader.
type fakeInput struct {
	state  State
	err    error
	output Span
}

func (f *fakeInput) ReadRawState() (RawState, error) {
	return RawState{}, f.err
}

func (f *fakeInput) ReadState(output Span) (State, error) {
	f.output = output
	if f.err != nil {
		return State{}, f.err
	}
	return f.state, nil
}

type testArm struct {
	bot      *ArmBot
	input    *fakeInput
	shoulder *fakeActuator
	elbow    *fakeActuator
	gripper  *fakeActuator
}

func newTestArm(t *testing.T, config ArmConfig) *testArm {
	t.Helper()
	logger := logging.NewTestLogger(t)

	arm := &testArm{
		input:    &fakeInput{},
		shoulder: &fakeActuator{max: 4095},
		elbow:    &fakeActuator{max: 4095},
		gripper:  &fakeActuator{max: 4095},
	}

	var servos [3]*Servo
	for i, out := range []*fakeActuator{arm.shoulder, arm.elbow, arm.gripper} {
		s, err := NewServo("joint", DefaultServoProfile(), out, logger)
		if err != nil {
			t.Fatal(err)
		}
		servos[i] = s
	}

	bot, err := NewArmBot(config, arm.input, servos[0], servos[1], servos[2], logger)
	if err != nil {
		t.Fatal(err)
	}
	arm.bot = bot
	return arm
}

func TestNewArmBotValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	servo, err := NewServo("joint", DefaultServoProfile(), &fakeActuator{max: 4095}, logger)
	assert.NoError(t, err)

	t.Run("empty step size interval", func(t *testing.T) {
		config := DefaultArmConfig()
		config.StepSize = Span{Min: 5, Max: 5}
		_, err := NewArmBot(config, &fakeInput{}, servo, servo, servo, logger)
		assert.Error(t, err)
	})

	t.Run("zero step size minimum", func(t *testing.T) {
		config := DefaultArmConfig()
		config.StepSize = Span{Min: 0, Max: 10}
		_, err := NewArmBot(config, &fakeInput{}, servo, servo, servo, logger)
		assert.Error(t, err)
	})

	t.Run("nil input", func(t *testing.T) {
		_, err := NewArmBot(DefaultArmConfig(), nil, servo, servo, servo, logger)
		assert.Error(t, err)
	})

	t.Run("nil servo", func(t *testing.T) {
		_, err := NewArmBot(DefaultArmConfig(), &fakeInput{}, servo, nil, servo, logger)
		assert.Error(t, err)
	})
}

func TestDoStepIdleCycleTouchesNothing(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())
	writesBefore := arm.shoulder.writes + arm.elbow.writes + arm.gripper.writes

	assert.NoError(t, arm.bot.DoStep())

	assert.Equal(t, writesBefore, arm.shoulder.writes+arm.elbow.writes+arm.gripper.writes)
	// The mapper receives the configured step-size interval.
	assert.Equal(t, DefaultArmConfig().StepSize, arm.input.output)
}

func TestDoStepDrivesJoints(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())
	center := arm.shoulder.duty

	arm.input.state[AxisShoulder] = Position{Zone: ZoneHigh, Magnitude: 7}
	arm.input.state[AxisElbow] = Position{Zone: ZoneLow, Magnitude: 3}

	assert.NoError(t, arm.bot.DoStep())

	assert.Equal(t, center+7, arm.shoulder.duty)
	assert.Equal(t, center-3, arm.elbow.duty)
	assert.Equal(t, center, arm.gripper.duty)
}

func TestDoStepBaseAxisIsInert(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())
	writesBefore := arm.shoulder.writes + arm.elbow.writes + arm.gripper.writes

	arm.input.state[AxisBase] = Position{Zone: ZoneHigh, Magnitude: 9}

	assert.NoError(t, arm.bot.DoStep())
	assert.Equal(t, writesBefore, arm.shoulder.writes+arm.elbow.writes+arm.gripper.writes)
}

func TestDoStepInvertedJoint(t *testing.T) {
	config := DefaultArmConfig()
	config.Invert.Elbow = true
	arm := newTestArm(t, config)
	center := arm.elbow.duty

	arm.input.state[AxisElbow] = Position{Zone: ZoneLow, Magnitude: 4}
	assert.NoError(t, arm.bot.DoStep())
	assert.Equal(t, center+4, arm.elbow.duty)

	arm.input.state[AxisElbow] = Position{Zone: ZoneHigh, Magnitude: 4}
	assert.NoError(t, arm.bot.DoStep())
	assert.Equal(t, center, arm.elbow.duty)
}

func TestDoStepEndOfTravelIsNotAnError(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())

	// Park the gripper just inside its upper bound and push further.
	arm.gripper.duty = arm.bot.gripper.Bounds().Max - 1
	arm.input.state[AxisGripper] = Position{Zone: ZoneHigh, Magnitude: 9}

	assert.NoError(t, arm.bot.DoStep())
	assert.Equal(t, arm.bot.gripper.Bounds().Max-1, arm.gripper.duty)
}

func TestDoStepPropagatesInputErrors(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())
	arm.input.err = errors.New("adc gone")

	assert.Error(t, arm.bot.DoStep())
}

func TestDoStepPropagatesServoErrors(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())
	arm.shoulder.setErr = errors.New("nack")
	arm.input.state[AxisShoulder] = Position{Zone: ZoneHigh, Magnitude: 2}

	err := arm.bot.DoStep()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "set duty")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- arm.bot.Run(ctx, time.Millisecond)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRunSurvivesFailingCycles(t *testing.T) {
	arm := newTestArm(t, DefaultArmConfig())
	arm.input.err = errors.New("adc flapping")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Every cycle fails; Run keeps polling until the deadline.
	err := arm.bot.Run(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
