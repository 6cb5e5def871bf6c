package dynamixel

import (
	"encoding/binary"
)

// Actuator is a single device on a DaisyChain.
// Setters validate arguments before touching the bus.
type Actuator struct {
	ID    byte
	Model Model

	chain *DaisyChain
}

// Actuator IDs. The broadcast ID never replies so it can't identify one.
const (
	MinID byte = 1
	MaxID byte = BroadcastID - 1
)

// CheckID rejects IDs outside [MinID, MaxID].
func CheckID(id byte) error {
	if id < MinID || id > MaxID {
		return &RangeError{Param: "actuator id", Value: id, Min: MinID, Max: MaxID}
	}
	return nil
}

// NewActuator creates an Actuator. An ID rejected by CheckID fails every
// operation without touching the bus.
func NewActuator(chain *DaisyChain, id byte, model Model) *Actuator {
	return &Actuator{ID: id, Model: model, chain: chain}
}

// Chain gets the bus the actuator is attached to.
func (a *Actuator) Chain() *DaisyChain {
	return a.chain
}

// Ping checks the actuator answers.
func (a *Actuator) Ping() error {
	if err := CheckID(a.ID); err != nil {
		return err
	}
	_, err := a.chain.Ping(a.ID)
	return err
}

// SetBaudRate changes the baud rate of the actuator.
// Communication must be reopened at the new rate afterwards.
func (a *Actuator) SetBaudRate(bps int) error {
	if bps < MinBaudRate || bps > MaxBaudRate {
		return &RangeError{Param: "baud rate", Value: bps, Min: MinBaudRate, Max: MaxBaudRate}
	}
	return a.write(RegBaudRate, BaudRateDivisor(bps))
}

// SetGoalVelocity sets the moving speed in rpm. Negative is clockwise.
func (a *Actuator) SetGoalVelocity(rpm float64) error {
	if !(rpm >= a.Model.MinVelocity && rpm <= a.Model.MaxVelocity) {
		return &RangeError{Param: "goal velocity", Value: rpm, Min: a.Model.MinVelocity, Max: a.Model.MaxVelocity}
	}
	return a.write16(RegMovingSpeed, a.Model.EncodeVelocity(rpm))
}

// Velocity reads the present speed in rpm.
func (a *Actuator) Velocity() (float64, error) {
	raw, err := a.read16(RegPresentSpeed)
	if err != nil {
		return 0, err
	}
	return a.Model.DecodeVelocity(raw), nil
}

// SetGoalPosition sets the goal position in degrees.
func (a *Actuator) SetGoalPosition(deg float64) error {
	if !(deg >= 0 && deg <= a.Model.MaxPosition) {
		return &RangeError{Param: "goal position", Value: deg, Min: 0, Max: a.Model.MaxPosition}
	}
	return a.write16(RegGoalPosition, a.Model.EncodePosition(deg))
}

// Position reads the present position in degrees.
func (a *Actuator) Position() (float64, error) {
	raw, err := a.read16(RegPresentPosition)
	if err != nil {
		return 0, err
	}
	return a.Model.DecodePosition(raw), nil
}

// SetTorqueEnable turns the torque output on or off.
func (a *Actuator) SetTorqueEnable(on bool) error {
	var v byte
	if on {
		v = 1
	}
	return a.write(RegTorqueEnable, v)
}

// SetCwComplianceMargin sets the clockwise compliance margin.
func (a *Actuator) SetCwComplianceMargin(margin uint8) error {
	return a.write(RegCwComplianceMargin, margin)
}

// SetCcwComplianceMargin sets the counter-clockwise compliance margin.
func (a *Actuator) SetCcwComplianceMargin(margin uint8) error {
	return a.write(RegCcwComplianceMargin, margin)
}

// SetComplianceMargin sets both margins, clockwise first.
// The first failure is returned and nothing is rolled back.
func (a *Actuator) SetComplianceMargin(margin uint8) error {
	if err := a.SetCwComplianceMargin(margin); err != nil {
		return err
	}
	return a.SetCcwComplianceMargin(margin)
}

// SetCwComplianceSlope sets the clockwise slope to 2^exp, exp in [1, 7].
func (a *Actuator) SetCwComplianceSlope(exp uint8) error {
	return a.setSlope(RegCwComplianceSlope, exp)
}

// SetCcwComplianceSlope sets the counter-clockwise slope to 2^exp, exp in [1, 7].
func (a *Actuator) SetCcwComplianceSlope(exp uint8) error {
	return a.setSlope(RegCcwComplianceSlope, exp)
}

// SetComplianceSlope sets both slopes, clockwise first.
// An invalid exp fails before any write.
func (a *Actuator) SetComplianceSlope(exp uint8) error {
	if err := checkSlope(exp); err != nil {
		return err
	}
	if err := a.SetCwComplianceSlope(exp); err != nil {
		return err
	}
	return a.SetCcwComplianceSlope(exp)
}

func (a *Actuator) setSlope(addr byte, exp uint8) error {
	if err := checkSlope(exp); err != nil {
		return err
	}
	return a.write(addr, byte(1)<<exp)
}

func checkSlope(exp uint8) error {
	if exp < MinComplianceSlope || exp > MaxComplianceSlope {
		return &RangeError{Param: "compliance slope", Value: exp, Min: MinComplianceSlope, Max: MaxComplianceSlope}
	}
	return nil
}

func (a *Actuator) write16(addr byte, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return a.write(addr, b[:]...)
}

func (a *Actuator) write(addr byte, data ...byte) error {
	if err := CheckID(a.ID); err != nil {
		return err
	}
	return a.chain.Write(a.ID, addr, data...)
}

func (a *Actuator) read16(addr byte) (uint16, error) {
	if err := CheckID(a.ID); err != nil {
		return 0, err
	}
	data, err := a.chain.Read(a.ID, addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}
