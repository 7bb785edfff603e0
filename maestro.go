package armbot

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.viam.com/rdk/logging"
)

// Pololu Maestro compact protocol commands.
const (
	maestroCmdSetTarget   = 0x84
	maestroCmdGetPosition = 0x90
	maestroCmdGetErrors   = 0xA1

	// Targets travel as two 7-bit payload bytes.
	maestroTargetMax = 0x3FFF

	maestroChannelCount = 24
	maestroReadTimeout  = 100 * time.Millisecond
)

// maestroErrorStrings decodes the controller's error bitmap, lowest bit
// first.
var maestroErrorStrings = []string{
	"serial signal error",
	"serial overrun error",
	"serial buffer full",
	"serial crc error",
	"serial protocol error",
	"serial timeout",
	"script stack error",
	"script call stack error",
	"script program counter error",
}

// Maestro drives a Pololu Maestro servo controller over its USB virtual
// serial port. Output channels are handed out as DutyActuators whose duty
// unit is the device's native quarter-microsecond target; channels jumpered
// as analog inputs are handed out as AnalogReaders.
type Maestro struct {
	port   serial.Port
	path   string
	logger logging.Logger
}

// NewMaestro opens the controller and clears any startup errors.
func NewMaestro(portName string, logger logging.Logger) (*Maestro, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: 9600})
	if err != nil {
		return nil, errors.Wrapf(err, "maestro: open %s", portName)
	}
	if err := port.SetReadTimeout(maestroReadTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "maestro: set read timeout")
	}

	m := &Maestro{port: port, path: portName, logger: logger}

	// Reading the error bitmap doubles as a liveness probe and clears
	// stale error flags from before we attached.
	if err := m.CheckErrors(); err != nil {
		m.logger.Warnf("maestro on %s reported stale errors at startup: %v", portName, err)
	}

	logger.Infof("maestro servo controller on %s", portName)
	return m, nil
}

// Close releases the serial port.
func (m *Maestro) Close() error {
	return m.port.Close()
}

// Channel returns the duty-cycle actuator for one output. The actuator's
// maximum duty is the PWM period expressed in quarter-microseconds, so the
// usual pulse/duty conversion lands directly in the device's target unit.
func (m *Maestro) Channel(n int, freqHz uint32) (DutyActuator, error) {
	if n < 0 || n >= maestroChannelCount {
		return nil, errors.Errorf("maestro: channel %d out of range [0, %d)", n, maestroChannelCount)
	}
	if freqHz == 0 {
		return nil, errors.New("maestro: pwm frequency must be positive")
	}
	return &maestroServo{
		m:       m,
		ch:      byte(n),
		maxDuty: 4 * 1_000_000 / freqHz,
	}, nil
}

// AnalogChannel returns the analog reader for a channel configured as an
// input; the controller reports such channels' positions as raw ADC counts.
func (m *Maestro) AnalogChannel(n int) (AnalogReader, error) {
	if n < 0 || n >= maestroChannelCount {
		return nil, errors.Errorf("maestro: channel %d out of range [0, %d)", n, maestroChannelCount)
	}
	return &maestroInput{m: m, ch: byte(n)}, nil
}

// CheckErrors reads and clears the controller's error bitmap, reporting any
// set bits as one error.
func (m *Maestro) CheckErrors() error {
	resp, err := m.command([]byte{maestroCmdGetErrors}, 2)
	if err != nil {
		return err
	}
	bitmap := uint16(resp[0]) | uint16(resp[1])<<8
	var found []string
	for i, msg := range maestroErrorStrings {
		if bitmap&(1<<i) != 0 {
			found = append(found, msg)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return errors.Errorf("maestro: %s", strings.Join(found, ", "))
}

// command writes one frame and reads back exactly respLen bytes.
func (m *Maestro) command(frame []byte, respLen int) ([]byte, error) {
	if _, err := m.port.Write(frame); err != nil {
		return nil, errors.Wrap(err, "maestro: write command")
	}
	if respLen == 0 {
		return nil, nil
	}

	resp := make([]byte, respLen)
	total := 0
	for total < respLen {
		n, err := m.port.Read(resp[total:])
		if err != nil {
			return nil, errors.Wrap(err, "maestro: read response")
		}
		if n == 0 {
			return nil, errors.Errorf("maestro: response timed out after %d of %d bytes", total, respLen)
		}
		total += n
	}
	return resp, nil
}

// encodeSetTarget packs a target into the compact protocol's 7-bit payload
// bytes.
func encodeSetTarget(ch byte, target uint16) []byte {
	return []byte{maestroCmdSetTarget, ch, byte(target & 0x7F), byte(target >> 7 & 0x7F)}
}

func (m *Maestro) setTarget(ch byte, target uint16) error {
	_, err := m.command(encodeSetTarget(ch, target), 0)
	return err
}

func (m *Maestro) getPosition(ch byte) (uint16, error) {
	resp, err := m.command([]byte{maestroCmdGetPosition, ch}, 2)
	if err != nil {
		return 0, err
	}
	return uint16(resp[0]) | uint16(resp[1])<<8, nil
}

type maestroServo struct {
	m       *Maestro
	ch      byte
	maxDuty uint32
}

func (s *maestroServo) MaxDuty() uint32 {
	return s.maxDuty
}

func (s *maestroServo) SetDuty(duty uint32) error {
	if duty > s.maxDuty {
		return errors.Errorf("maestro: duty %d exceeds max %d", duty, s.maxDuty)
	}
	if duty > maestroTargetMax {
		return errors.Errorf("maestro: duty %d exceeds wire format limit %d", duty, maestroTargetMax)
	}
	return s.m.setTarget(s.ch, uint16(duty))
}

func (s *maestroServo) Duty() (uint32, error) {
	pos, err := s.m.getPosition(s.ch)
	if err != nil {
		return 0, err
	}
	return uint32(pos), nil
}

// Enable is a no-op: the controller drives a channel whenever its target is
// nonzero.
func (s *maestroServo) Enable() error {
	return nil
}

type maestroInput struct {
	m  *Maestro
	ch byte
}

func (in *maestroInput) Read() (uint32, error) {
	pos, err := in.m.getPosition(in.ch)
	if err != nil {
		return 0, err
	}
	return uint32(pos), nil
}
