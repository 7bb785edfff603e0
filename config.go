package armbot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Hardware backends.
const (
	BackendPCA9685 = "pca9685"
	BackendMaestro = "maestro"
)

// Default peripheral addresses and channel assignments.
const (
	DefaultI2CBus  = "1"
	DefaultPWMAddr = 0x40
	DefaultADCAddr = 0x48
)

// JointChannels maps the three articulated joints onto actuator output
// channels.
type JointChannels struct {
	Shoulder int `json:"shoulder"`
	Elbow    int `json:"elbow"`
	Gripper  int `json:"gripper"`
}

// HardwareConfig selects the platform adapter and its wiring.
type HardwareConfig struct {
	// Backend selects the actuator adapter: "pca9685" (I2C PWM chip plus
	// an ADS1115 for the joystick) or "maestro" (serial servo controller
	// whose spare channels read the joystick).
	Backend string `json:"backend,omitempty"`

	// I2C wiring, pca9685 backend.
	I2CBus  string `json:"i2c_bus,omitempty"`
	PWMAddr uint16 `json:"pwm_addr,omitempty"`
	ADCAddr uint16 `json:"adc_addr,omitempty"`

	// SerialPort is the maestro backend's device path. Empty means
	// discover one at startup.
	SerialPort string `json:"serial_port,omitempty"`

	// Output channel per joint and analog channel per axis, in axis
	// order: base rotator, shoulder, elbow, gripper.
	ServoChannels JointChannels `json:"servo_channels"`
	AxisChannels  [NumAxes]int  `json:"axis_channels"`

	// LoopIntervalMs is the delay between control cycles.
	LoopIntervalMs int `json:"loop_interval_ms,omitempty"`
}

// LoopInterval returns the inter-cycle delay as a duration.
func (h HardwareConfig) LoopInterval() time.Duration {
	return time.Duration(h.LoopIntervalMs) * time.Millisecond
}

// Config aggregates the whole application configuration.
type Config struct {
	Servo    ServoProfile    `json:"servo"`
	Joystick JoystickProfile `json:"joystick"`
	Arm      ArmConfig       `json:"arm"`
	Hardware HardwareConfig  `json:"hardware"`
}

// DefaultConfig returns the reference setup: SG90 servos on a PCA9685 at
// 0x40, joystick axes on an ADS1115 at 0x48, both on I2C bus 1.
func DefaultConfig() *Config {
	return &Config{
		Servo:    DefaultServoProfile(),
		Joystick: DefaultJoystickProfile(),
		Arm:      DefaultArmConfig(),
		Hardware: HardwareConfig{
			Backend:        BackendPCA9685,
			I2CBus:         DefaultI2CBus,
			PWMAddr:        DefaultPWMAddr,
			ADCAddr:        DefaultADCAddr,
			ServoChannels:  JointChannels{Shoulder: 0, Elbow: 1, Gripper: 2},
			AxisChannels:   [NumAxes]int{0, 1, 2, 3},
			LoopIntervalMs: 10,
		},
	}
}

// Validate applies defaults and ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if err := c.Servo.Validate(); err != nil {
		return errors.Wrap(err, "servo profile")
	}
	if err := c.Joystick.Validate(); err != nil {
		return errors.Wrap(err, "joystick profile")
	}
	if err := c.Arm.Validate(); err != nil {
		return errors.Wrap(err, "arm config")
	}

	h := &c.Hardware
	if h.Backend == "" {
		h.Backend = BackendPCA9685
	}
	if h.Backend != BackendPCA9685 && h.Backend != BackendMaestro {
		return errors.Errorf("hardware backend must be %q or %q, got %q",
			BackendPCA9685, BackendMaestro, h.Backend)
	}
	if h.I2CBus == "" {
		h.I2CBus = DefaultI2CBus
	}
	if h.PWMAddr == 0 {
		h.PWMAddr = DefaultPWMAddr
	}
	if h.ADCAddr == 0 {
		h.ADCAddr = DefaultADCAddr
	}
	if h.LoopIntervalMs <= 0 {
		h.LoopIntervalMs = 10
	}

	seen := map[int]string{}
	for _, ch := range []struct {
		name string
		n    int
	}{
		{"shoulder", h.ServoChannels.Shoulder},
		{"elbow", h.ServoChannels.Elbow},
		{"gripper", h.ServoChannels.Gripper},
	} {
		if ch.n < 0 {
			return errors.Errorf("%s servo channel must not be negative", ch.name)
		}
		if other, dup := seen[ch.n]; dup {
			return errors.Errorf("%s and %s servos share output channel %d", other, ch.name, ch.n)
		}
		seen[ch.n] = ch.name
	}

	return nil
}

// LoadConfig reads a JSON config file. An empty path or a missing file falls
// back to the defaults; a present but malformed file is an error.
func LoadConfig(path string, logger logging.Logger) (*Config, error) {
	if path == "" {
		logger.Debug("no config file specified, using defaults")
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warnf("config file %s not found, using defaults", path)
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}

	logger.Infof("loaded config from %s", path)
	return cfg, nil
}

// SaveConfig writes the config to a JSON file.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}
