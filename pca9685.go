package armbot

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"periph.io/x/conn/v3/i2c"
)

// PCA9685 register map and mode bits.
const (
	pcaRegMode1    = 0x00
	pcaRegMode2    = 0x01
	pcaRegLEDBase  = 0x06 // four registers per output: ON low/high, OFF low/high
	pcaRegPreScale = 0xFE

	pcaMode1Sleep   = 0x10
	pcaMode1AutoInc = 0x20
	pcaMode1Restart = 0x80

	pcaChannelCount = 16
	pcaOscHz        = 25_000_000
)

// PCA9685MaxDuty is the chip's fixed 12-bit counter ceiling.
const PCA9685MaxDuty = 4095

// PCA9685 drives the NXP 16-channel I2C PWM controller. Each output channel
// is handed out as its own DutyActuator; all of them share the chip's single
// PWM frequency.
type PCA9685 struct {
	dev    i2c.Dev
	logger logging.Logger
}

// NewPCA9685 wakes the chip and programs its prescaler for the given PWM
// frequency. The prescale register only accepts writes while the oscillator
// sleeps, so the chip is put to sleep, reprogrammed and restarted.
func NewPCA9685(bus i2c.Bus, addr uint16, freqHz uint32, logger logging.Logger) (*PCA9685, error) {
	if freqHz == 0 {
		return nil, errors.New("pca9685: pwm frequency must be positive")
	}
	prescale := math.Round(pcaOscHz/(4096*float64(freqHz))) - 1
	if prescale < 3 || prescale > 255 {
		return nil, errors.Errorf("pca9685: frequency %d Hz outside prescaler range", freqHz)
	}

	p := &PCA9685{
		dev:    i2c.Dev{Bus: bus, Addr: addr},
		logger: logger,
	}

	if err := p.writeReg(pcaRegMode1, pcaMode1Sleep|pcaMode1AutoInc); err != nil {
		return nil, errors.Wrap(err, "pca9685: enter sleep")
	}
	if err := p.writeReg(pcaRegPreScale, byte(prescale)); err != nil {
		return nil, errors.Wrap(err, "pca9685: set prescale")
	}
	if err := p.writeReg(pcaRegMode1, pcaMode1AutoInc); err != nil {
		return nil, errors.Wrap(err, "pca9685: leave sleep")
	}
	// The oscillator needs 500us after leaving sleep before restart.
	time.Sleep(time.Millisecond)
	if err := p.writeReg(pcaRegMode1, pcaMode1AutoInc|pcaMode1Restart); err != nil {
		return nil, errors.Wrap(err, "pca9685: restart")
	}

	logger.Debugf("pca9685 at 0x%02x: prescale=%d for %d Hz", addr, int(prescale), freqHz)
	return p, nil
}

// Channel returns the duty-cycle actuator for one of the 16 outputs.
func (p *PCA9685) Channel(n int) (DutyActuator, error) {
	if n < 0 || n >= pcaChannelCount {
		return nil, errors.Errorf("pca9685: channel %d out of range [0, %d)", n, pcaChannelCount)
	}
	return &pcaChannel{p: p, reg: byte(pcaRegLEDBase + 4*n)}, nil
}

func (p *PCA9685) writeReg(reg, val byte) error {
	return p.dev.Tx([]byte{reg, val}, nil)
}

type pcaChannel struct {
	p   *PCA9685
	reg byte
}

func (c *pcaChannel) MaxDuty() uint32 {
	return PCA9685MaxDuty
}

// SetDuty programs the output to rise at count 0 and fall at the duty count.
func (c *pcaChannel) SetDuty(duty uint32) error {
	if duty > PCA9685MaxDuty {
		return errors.Errorf("pca9685: duty %d exceeds max %d", duty, PCA9685MaxDuty)
	}
	buf := []byte{c.reg, 0x00, 0x00, byte(duty), byte(duty >> 8)}
	if err := c.p.dev.Tx(buf, nil); err != nil {
		return errors.Wrap(err, "pca9685: write duty registers")
	}
	return nil
}

// Duty reads the commanded duty back from the OFF-time registers.
func (c *pcaChannel) Duty() (uint32, error) {
	var buf [2]byte
	if err := c.p.dev.Tx([]byte{c.reg + 2}, buf[:]); err != nil {
		return 0, errors.Wrap(err, "pca9685: read duty registers")
	}
	return (uint32(buf[0]) | uint32(buf[1])<<8) & PCA9685MaxDuty, nil
}

// Enable is a no-op: the chip has no per-channel output gate, outputs run as
// soon as the oscillator does.
func (c *pcaChannel) Enable() error {
	return nil
}
