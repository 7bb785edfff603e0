package armbot

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"periph.io/x/conn/v3/i2c"
)

// ADS1115 register map and config-register fields.
const (
	adsRegConversion = 0x00
	adsRegConfig     = 0x01

	// OS bit: write 1 to start a single-shot conversion, reads back 1
	// once the conversion is done.
	adsConfigOS = 0x8000

	// MUX single-ended AINn vs GND: 0b100..0b111 at bits 14:12.
	adsConfigMuxSingle = 0x4000
	adsConfigMuxShift  = 12

	adsConfigModeSingle = 0x0100
	adsConfigRate128SPS = 0x0080

	adsChannelCount = 4
)

// ADS1115FullScale selects the programmable gain amplifier's full-scale
// input range, the chip's equivalent of an ADC attenuation setting.
type ADS1115FullScale uint16

// PGA settings, bits 11:9 of the config register.
const (
	ADS1115FullScale6V144 ADS1115FullScale = 0x0000 // +-6.144 V
	ADS1115FullScale4V096 ADS1115FullScale = 0x0200 // +-4.096 V
	ADS1115FullScale2V048 ADS1115FullScale = 0x0400 // +-2.048 V
	ADS1115FullScale1V024 ADS1115FullScale = 0x0600 // +-1.024 V
)

// ADS1115 drives the TI 4-channel 16-bit I2C ADC in single-shot mode. Each
// input channel is handed out as its own AnalogReader.
type ADS1115 struct {
	dev       i2c.Dev
	fullScale ADS1115FullScale
	logger    logging.Logger
}

// NewADS1115 probes the converter and fixes its input range. For a 3.3 V
// joystick the 4.096 V full scale is the natural choice.
func NewADS1115(bus i2c.Bus, addr uint16, fullScale ADS1115FullScale, logger logging.Logger) (*ADS1115, error) {
	a := &ADS1115{
		dev:       i2c.Dev{Bus: bus, Addr: addr},
		fullScale: fullScale,
		logger:    logger,
	}
	if _, err := a.readReg(adsRegConfig); err != nil {
		return nil, errors.Wrapf(err, "ads1115 at 0x%02x: probe", addr)
	}
	logger.Debugf("ads1115 at 0x%02x ready", addr)
	return a, nil
}

// Pin returns the analog reader for one of the four single-ended inputs.
func (a *ADS1115) Pin(channel int) (AnalogReader, error) {
	if channel < 0 || channel >= adsChannelCount {
		return nil, errors.Errorf("ads1115: channel %d out of range [0, %d)", channel, adsChannelCount)
	}
	return &adsPin{a: a, mux: adsConfigMuxSingle | uint16(channel)<<adsConfigMuxShift}, nil
}

func (a *ADS1115) writeReg(reg byte, val uint16) error {
	return a.dev.Tx([]byte{reg, byte(val >> 8), byte(val)}, nil)
}

func (a *ADS1115) readReg(reg byte) (uint16, error) {
	var buf [2]byte
	if err := a.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

type adsPin struct {
	a   *ADS1115
	mux uint16
}

// Read starts a single-shot conversion on the pin's channel, waits for it to
// settle and returns the raw count. Negative counts, single-ended noise
// below ground, clamp to zero.
func (p *adsPin) Read() (uint32, error) {
	cfg := uint16(adsConfigOS) | p.mux | uint16(p.a.fullScale) | adsConfigModeSingle | adsConfigRate128SPS
	if err := p.a.writeReg(adsRegConfig, cfg); err != nil {
		return 0, errors.Wrap(err, "ads1115: start conversion")
	}

	// 128 SPS means a conversion takes just under 8ms.
	deadline := time.Now().Add(20 * time.Millisecond)
	for {
		status, err := p.a.readReg(adsRegConfig)
		if err != nil {
			return 0, errors.Wrap(err, "ads1115: poll conversion")
		}
		if status&adsConfigOS != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, errors.New("ads1115: conversion timed out")
		}
		time.Sleep(time.Millisecond)
	}

	raw, err := p.a.readReg(adsRegConversion)
	if err != nil {
		return 0, errors.Wrap(err, "ads1115: read conversion")
	}
	if int16(raw) < 0 {
		return 0, nil
	}
	return uint32(raw), nil
}
