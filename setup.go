package armbot

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"periph.io/x/host/v3"
)

// Rig is the assembled hardware of one arm: the three joint actuators, the
// four joystick inputs, and whatever has to be torn down at shutdown.
type Rig struct {
	Shoulder DutyActuator
	Elbow    DutyActuator
	Gripper  DutyActuator
	Axes     [NumAxes]AnalogReader

	closers []func() error
}

// Close tears the rig down in reverse construction order.
func (r *Rig) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Combine(err, r.closers[i]())
	}
	return err
}

// SetupRig builds the platform adapters selected by the config. Any failure
// here is fatal; a partially built rig is torn down before returning.
func SetupRig(cfg *Config, registry *BusRegistry, logger logging.Logger) (_ *Rig, err error) {
	rig := &Rig{}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, rig.Close())
		}
	}()

	switch cfg.Hardware.Backend {
	case BackendPCA9685:
		err = setupI2CRig(rig, cfg, registry, logger)
	case BackendMaestro:
		err = setupMaestroRig(rig, cfg, logger)
	default:
		err = errors.Errorf("unknown hardware backend %q", cfg.Hardware.Backend)
	}
	if err != nil {
		return nil, err
	}
	return rig, nil
}

func setupI2CRig(rig *Rig, cfg *Config, registry *BusRegistry, logger logging.Logger) error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "init periph host")
	}

	busName := cfg.Hardware.I2CBus

	pwmBus, err := registry.Get(busName)
	if err != nil {
		return err
	}
	rig.closers = append(rig.closers, func() error { return registry.Release(busName) })

	pwm, err := NewPCA9685(pwmBus, cfg.Hardware.PWMAddr, cfg.Servo.FrequencyHz, logger)
	if err != nil {
		return err
	}

	if rig.Shoulder, err = pwm.Channel(cfg.Hardware.ServoChannels.Shoulder); err != nil {
		return err
	}
	if rig.Elbow, err = pwm.Channel(cfg.Hardware.ServoChannels.Elbow); err != nil {
		return err
	}
	if rig.Gripper, err = pwm.Channel(cfg.Hardware.ServoChannels.Gripper); err != nil {
		return err
	}

	adcBus, err := registry.Get(busName)
	if err != nil {
		return err
	}
	rig.closers = append(rig.closers, func() error { return registry.Release(busName) })

	adc, err := NewADS1115(adcBus, cfg.Hardware.ADCAddr, ADS1115FullScale4V096, logger)
	if err != nil {
		return err
	}
	for ax := Axis(0); ax < NumAxes; ax++ {
		if rig.Axes[ax], err = adc.Pin(cfg.Hardware.AxisChannels[ax]); err != nil {
			return err
		}
	}

	return nil
}

func setupMaestroRig(rig *Rig, cfg *Config, logger logging.Logger) error {
	portName := cfg.Hardware.SerialPort
	if portName == "" {
		found, err := FindMaestroPort(logger)
		if err != nil {
			return err
		}
		portName = found
	}

	m, err := NewMaestro(portName, logger)
	if err != nil {
		return err
	}
	rig.closers = append(rig.closers, m.Close)

	freq := cfg.Servo.FrequencyHz
	if rig.Shoulder, err = m.Channel(cfg.Hardware.ServoChannels.Shoulder, freq); err != nil {
		return err
	}
	if rig.Elbow, err = m.Channel(cfg.Hardware.ServoChannels.Elbow, freq); err != nil {
		return err
	}
	if rig.Gripper, err = m.Channel(cfg.Hardware.ServoChannels.Gripper, freq); err != nil {
		return err
	}
	for ax := Axis(0); ax < NumAxes; ax++ {
		if rig.Axes[ax], err = m.AnalogChannel(cfg.Hardware.AxisChannels[ax]); err != nil {
			return err
		}
	}

	return nil
}

// BuildArm assembles the control core on top of an already-built rig.
func BuildArm(cfg *Config, rig *Rig, logger logging.Logger) (*ArmBot, error) {
	shoulder, err := NewServo("shoulder", cfg.Servo, rig.Shoulder, logger)
	if err != nil {
		return nil, err
	}
	elbow, err := NewServo("elbow", cfg.Servo, rig.Elbow, logger)
	if err != nil {
		return nil, err
	}
	gripper, err := NewServo("gripper", cfg.Servo, rig.Gripper, logger)
	if err != nil {
		return nil, err
	}

	gamepad, err := NewGamepad(cfg.Joystick, rig.Axes, logger)
	if err != nil {
		return nil, err
	}

	return NewArmBot(cfg.Arm, gamepad, shoulder, elbow, gripper, logger)
}
