// Package icm20948 drives an ICM-20948 IMU over I2C and exposes it as a
// sensor platform.
package icm20948

import (
	"fmt"
	"math"
	"time"

	"headtrack/internal/i2c"
)

var sleep = time.Sleep

// WHO_AM_I at 0x00 should return 0xEA.
const (
	addrDefault = 0x68
	addrAlt     = 0x69

	regWhoAmI  = 0x00
	whoAmIVal  = 0xEA
	regBankSel = 0x7F

	// Bank 0.
	regIntPinCfg  = 0x0F
	regIntEnable1 = 0x11
	regPwrMgmt1   = 0x06
	bitReset      = 0x80
	clkAuto       = 0x01
	regAccelXoutH = 0x2D // contiguous accel+gyro block

	// INT_PIN_CFG: push-pull, active high, 50us pulse, cleared by any read.
	intPinCfgPulse = 0x10
	bitRawDataRdy  = 0x01

	// Bank 2.
	bank2            = 2
	regGyroSmplrt    = 0x00
	regGyroConfig1   = 0x01
	regAccelSmplrt1  = 0x10
	regAccelSmplrt2  = 0x11
	regAccelConfig   = 0x14
	bitFChoice       = 0x01
	internalRateHz   = 1125
	defaultRateHz    = 50
	degToRad         = math.Pi / 180
	standardGravity  = 9.80665
	fullScaleCounts  = 32768.0
	defaultAccelG    = 4
	defaultGyroDPS   = 250
	maxSampleDivisor = 255
)

var (
	accelRanges = map[int]byte{2: 0, 4: 1, 8: 2, 16: 3}
	gyroRanges  = map[int]byte{250: 0, 500: 1, 1000: 2, 2000: 3}
)

// Options configure full-scale ranges and the output data rate. Zero values
// select 4 g, 250 dps and 50 Hz.
type Options struct {
	AccelRangeG  int
	GyroRangeDPS int
	RateHz       int
	// DataReadyInterrupt drives the INT pin on every new sample.
	DataReadyInterrupt bool
}

// Sample is one accelerometer+gyroscope reading in SI units.
type Sample struct {
	TimestampNs int64
	// Accel in m/s^2.
	Accel [3]float64
	// Gyro in rad/s.
	Gyro [3]float64
}

type Device struct {
	dev regIO
	now func() int64

	curBank byte
	opts    Options
	// scales based on configured full-scale.
	scaleAccel float64
	scaleGyro  float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

// Addresses lists the addresses the chip can strap to.
func Addresses() []uint16 { return []uint16{addrDefault, addrAlt} }

func New(dev *i2c.Dev, opts Options) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	return newWithIO(dev, opts)
}

func newWithIO(dev regIO, opts Options) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	origin := time.Now()
	d := &Device{
		dev:     dev,
		now:     func() int64 { return int64(time.Since(origin)) },
		curBank: 0xFF,
		opts:    opts,
	}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20948: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20948: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (o *Options) normalize() error {
	if o.AccelRangeG == 0 {
		o.AccelRangeG = defaultAccelG
	}
	if o.GyroRangeDPS == 0 {
		o.GyroRangeDPS = defaultGyroDPS
	}
	if o.RateHz == 0 {
		o.RateHz = defaultRateHz
	}
	if _, ok := accelRanges[o.AccelRangeG]; !ok {
		return fmt.Errorf("icm20948: accel range %dg not supported", o.AccelRangeG)
	}
	if _, ok := gyroRanges[o.GyroRangeDPS]; !ok {
		return fmt.Errorf("icm20948: gyro range %ddps not supported", o.GyroRangeDPS)
	}
	if o.RateHz < 0 || o.RateHz > internalRateHz {
		return fmt.Errorf("icm20948: rate %dHz out of range", o.RateHz)
	}
	return nil
}

// sampleDivisor maps a rate to the divider in rate = 1125/(div+1).
func sampleDivisor(rateHz int) byte {
	div := internalRateHz/rateHz - 1
	if div < 0 {
		div = 0
	}
	if div > maxSampleDivisor {
		div = maxSampleDivisor
	}
	return byte(div)
}

func (d *Device) init() error {
	if err := d.setBank(0); err != nil {
		return err
	}
	_ = d.dev.WriteReg(regIntEnable1, 0x00)

	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("icm20948: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)
	// The reset also restores bank 0.
	d.curBank = 0

	// CLKSEL[2:0] 1..5 selects the PLL when available.
	if err := d.dev.WriteReg(regPwrMgmt1, clkAuto); err != nil {
		return fmt.Errorf("icm20948: wake failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if err := d.setBank(bank2); err != nil {
		return err
	}
	div := sampleDivisor(d.opts.RateHz)
	_ = d.dev.WriteReg(regGyroSmplrt, div)
	_ = d.dev.WriteReg(regAccelSmplrt1, 0x00)
	_ = d.dev.WriteReg(regAccelSmplrt2, div)

	if err := d.dev.WriteReg(regGyroConfig1, gyroRanges[d.opts.GyroRangeDPS]<<1|bitFChoice); err != nil {
		return fmt.Errorf("icm20948: gyro config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelConfig, accelRanges[d.opts.AccelRangeG]<<1|bitFChoice); err != nil {
		return fmt.Errorf("icm20948: accel config failed: %w", err)
	}

	if err := d.setBank(0); err != nil {
		return err
	}
	if d.opts.DataReadyInterrupt {
		if err := d.dev.WriteReg(regIntPinCfg, intPinCfgPulse); err != nil {
			return fmt.Errorf("icm20948: int pin config failed: %w", err)
		}
		if err := d.dev.WriteReg(regIntEnable1, bitRawDataRdy); err != nil {
			return fmt.Errorf("icm20948: int enable failed: %w", err)
		}
	}

	d.scaleAccel = float64(d.opts.AccelRangeG) * standardGravity / fullScaleCounts
	d.scaleGyro = float64(d.opts.GyroRangeDPS) * degToRad / fullScaleCounts
	return nil
}

func (d *Device) setBank(bank byte) error {
	if d.curBank == bank {
		return nil
	}
	if err := d.dev.WriteReg(regBankSel, bank<<4); err != nil {
		return fmt.Errorf("icm20948: set bank %d failed: %w", bank, err)
	}
	d.curBank = bank
	return nil
}

func (d *Device) Options() Options {
	return d.opts
}

func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("icm20948: device is nil")
	}
	if err := d.setBank(0); err != nil {
		return Sample{}, err
	}

	var buf [12]byte
	if err := d.dev.ReadReg(regAccelXoutH, buf[:]); err != nil {
		return Sample{}, fmt.Errorf("icm20948: read sensors failed: %w", err)
	}
	ts := d.now()

	var s Sample
	s.TimestampNs = ts
	for i := 0; i < 3; i++ {
		a := int16(buf[2*i])<<8 | int16(buf[2*i+1])
		g := int16(buf[6+2*i])<<8 | int16(buf[6+2*i+1])
		s.Accel[i] = float64(a) * d.scaleAccel
		s.Gyro[i] = float64(g) * d.scaleGyro
	}
	return s, nil
}
