package armbot

// The core never talks to a peripheral directly. It consumes the two
// capability contracts below, and thin per-platform adapters (pca9685.go,
// maestro.go, ads1x15.go) supply the implementations.

// DutyActuator is one PWM output driving a servo. Duty values are raw
// counter units out of the actuator's own maximum; the unit and resolution
// are the adapter's business.
type DutyActuator interface {
	// MaxDuty returns the highest duty value the actuator can represent.
	// It is fixed for the lifetime of the actuator.
	MaxDuty() uint32

	// SetDuty commands the given duty value.
	SetDuty(duty uint32) error

	// Duty reads back the currently commanded duty value.
	Duty() (uint32, error)

	// Enable ensures the output signal is being generated.
	Enable() error
}

// AnalogReader is one analog input channel. Read returns a raw, unscaled
// sample; the joystick mapper does its own clamping and calibration.
type AnalogReader interface {
	Read() (uint32, error)
}
