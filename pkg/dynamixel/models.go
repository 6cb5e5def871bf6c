package dynamixel

import (
	"math"
	"strings"
)

// Control table addresses shared by the AX series.
const (
	RegModelNumber         byte = 0x00
	RegFirmwareVersion     byte = 0x02
	RegID                  byte = 0x03
	RegBaudRate            byte = 0x04
	RegReturnDelayTime     byte = 0x05
	RegCwAngleLimit        byte = 0x06
	RegCcwAngleLimit       byte = 0x08
	RegTorqueEnable        byte = 0x18
	RegLED                 byte = 0x19
	RegCwComplianceMargin  byte = 0x1a
	RegCcwComplianceMargin byte = 0x1b
	RegCwComplianceSlope   byte = 0x1c
	RegCcwComplianceSlope  byte = 0x1d
	RegGoalPosition        byte = 0x1e
	RegMovingSpeed         byte = 0x20
	RegTorqueLimit         byte = 0x22
	RegPresentPosition     byte = 0x24
	RegPresentSpeed        byte = 0x26
	RegPresentLoad         byte = 0x28
	RegPresentVoltage      byte = 0x2a
	RegPresentTemperature  byte = 0x2b
	RegMoving              byte = 0x2e
)

// Factory defaults of the AX series.
const (
	DefaultBaudRate         = 1000000
	DefaultComplianceMargin = 1
	// DefaultComplianceSlope is the exponent, the register holds 1<<5.
	DefaultComplianceSlope = 5

	MinBaudRate = 7844
	MaxBaudRate = 1000000

	MinComplianceSlope = 1
	MaxComplianceSlope = 7

	baudRateBase = 2000000
)

// Model describes how values of a device type map to register ticks.
type Model struct {
	Name        string
	ModelNumber uint16

	// VelocityResolution is rpm per tick.
	VelocityResolution float64
	MinVelocity        float64
	MaxVelocity        float64
	// DirectionBit marks clockwise rotation in speed registers.
	DirectionBit uint16
	ValueMask    uint16

	// PositionResolution is degrees per tick.
	PositionResolution float64
	MaxPosition        float64
}

var (
	// AX12A is the Dynamixel AX-12A.
	AX12A = Model{
		Name:               "AX-12A",
		ModelNumber:        12,
		VelocityResolution: 0.111,
		MinVelocity:        -114,
		MaxVelocity:        114,
		DirectionBit:       0x400,
		ValueMask:          0x3ff,
		PositionResolution: 300.0 / 1024,
		MaxPosition:        300,
	}

	// AX18A is the Dynamixel AX-18A.
	AX18A = Model{
		Name:               "AX-18A",
		ModelNumber:        18,
		VelocityResolution: 0.111,
		MinVelocity:        -97,
		MaxVelocity:        97,
		DirectionBit:       0x400,
		ValueMask:          0x3ff,
		PositionResolution: 300.0 / 1024,
		MaxPosition:        300,
	}

	models = map[string]Model{
		"ax12a":  AX12A,
		"ax-12a": AX12A,
		"ax18a":  AX18A,
		"ax-18a": AX18A,
	}
)

// ModelByName finds a model by its case-insensitive short name.
func ModelByName(name string) (Model, bool) {
	m, ok := models[strings.ToLower(name)]
	return m, ok
}

// EncodeVelocity converts rpm into speed register ticks.
// Negative rpm sets the direction bit.
func (m Model) EncodeVelocity(rpm float64) uint16 {
	ticks := m.ticks(math.Abs(rpm), m.VelocityResolution)
	if rpm < 0 {
		ticks |= m.DirectionBit
	}
	return ticks
}

// DecodeVelocity converts speed register ticks into rpm.
func (m Model) DecodeVelocity(raw uint16) float64 {
	rpm := float64(raw&m.ValueMask) * m.VelocityResolution
	if raw&m.DirectionBit != 0 {
		rpm = -rpm
	}
	return rpm
}

// EncodePosition converts degrees into position ticks.
func (m Model) EncodePosition(deg float64) uint16 {
	return m.ticks(deg, m.PositionResolution)
}

// DecodePosition converts position ticks into degrees.
func (m Model) DecodePosition(raw uint16) float64 {
	return float64(raw&m.ValueMask) * m.PositionResolution
}

func (m Model) ticks(v, resolution float64) uint16 {
	t := math.Round(v / resolution)
	if t > float64(m.ValueMask) {
		return m.ValueMask
	}
	return uint16(t)
}

// BaudRateDivisor converts bps into the baud rate register value.
func BaudRateDivisor(bps int) byte {
	return byte(math.Round(float64(baudRateBase)/float64(bps)) - 1)
}

// BaudRateOf converts the baud rate register value into bps.
func BaudRateOf(divisor byte) int {
	return baudRateBase / (int(divisor) + 1)
}
