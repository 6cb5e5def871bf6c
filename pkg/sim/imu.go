package sim

import (
	"math"
	"sync"
	"time"

	"github.com/robotalks/robocore/pkg/buffer"
)

// Gravity in m/s^2.
const Gravity = 9.81

// IMU produces a body swaying around the X axis.
type IMU struct {
	// Amplitude of the sway in radians.
	Amplitude float64
	Period    time.Duration
	// Now overrides the clock.
	Now func() time.Time

	once  sync.Once
	start time.Time
}

// ReadIMU implements control.IMUSource.
func (s *IMU) ReadIMU() (buffer.IMUData, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	s.once.Do(func() { s.start = now() })
	period := s.Period
	if period <= 0 {
		period = 2 * time.Second
	}
	w := 2 * math.Pi / period.Seconds()
	t := now().Sub(s.start).Seconds()
	angle := s.Amplitude * math.Sin(w*t)
	rate := s.Amplitude * w * math.Cos(w*t)
	return buffer.IMUData{
		XGyro:  float32(rate),
		YAccel: float32(Gravity * math.Sin(angle)),
		ZAccel: float32(Gravity * math.Cos(angle)),
	}, nil
}
