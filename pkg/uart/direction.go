package uart

import (
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// OutputPin is a digital output. rpio.Pin implements it.
type OutputPin interface {
	High()
	Low()
}

// GPIODirection drives the enable pin of a half-duplex transceiver.
type GPIODirection struct {
	Pin          OutputPin
	TransmitHigh bool
}

// OpenGPIODirection maps the GPIO memory and configures pin as output.
// The line starts in receive.
func OpenGPIODirection(pin int, transmitHigh bool) (*GPIODirection, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	p := rpio.Pin(pin)
	p.Output()
	d := &GPIODirection{Pin: p, TransmitHigh: transmitHigh}
	d.SetReceive()
	return d, nil
}

// SetTransmit implements DirectionLine.
func (d *GPIODirection) SetTransmit() error {
	d.set(d.TransmitHigh)
	return nil
}

// SetReceive implements DirectionLine.
func (d *GPIODirection) SetReceive() error {
	d.set(!d.TransmitHigh)
	return nil
}

// Close releases the GPIO memory.
func (d *GPIODirection) Close() error {
	return rpio.Close()
}

func (d *GPIODirection) set(high bool) {
	if high {
		d.Pin.High()
	} else {
		d.Pin.Low()
	}
}

// RTSSetter controls the RTS line. go.bug.st/serial.Port implements it.
type RTSSetter interface {
	SetRTS(bool) error
}

// RTSDirection uses the RTS line of the serial adapter as direction control.
type RTSDirection struct {
	Port         RTSSetter
	TransmitHigh bool
}

// SetTransmit implements DirectionLine.
func (d *RTSDirection) SetTransmit() error {
	return d.Port.SetRTS(d.TransmitHigh)
}

// SetReceive implements DirectionLine.
func (d *RTSDirection) SetReceive() error {
	return d.Port.SetRTS(!d.TransmitHigh)
}

// AutoDirection is for adapters switching direction in hardware.
type AutoDirection struct{}

// SetTransmit implements DirectionLine.
func (AutoDirection) SetTransmit() error { return nil }

// SetReceive implements DirectionLine.
func (AutoDirection) SetReceive() error { return nil }
