package control

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robocore/pkg/buffer"
)

// IMUSource is the inertial sensor driver.
type IMUSource interface {
	ReadIMU() (buffer.IMUData, error)
}

// DefaultPollInterval is the sampling period of producers.
const DefaultPollInterval = 10 * time.Millisecond

// MotorPoller samples every actuator and writes the motor buffers.
// Bus I/O completes before a buffer is written, so the bus lock and the
// buffer lock are never held together.
type MotorPoller struct {
	Rig      *Rig
	Interval time.Duration
}

// Name implements framework.Named.
func (p *MotorPoller) Name() string { return "motor-poller" }

// Run implements framework.Runnable.
func (p *MotorPoller) Run(ctx context.Context) error {
	return every(ctx, p.Interval, p.Poll)
}

// Poll samples each actuator once.
func (p *MotorPoller) Poll() {
	for n, a := range p.Rig.Actuators {
		if !p.Rig.Health[n].Online() && !p.Rig.Revive(n) {
			continue
		}
		pos, err := a.Position()
		if err != nil {
			p.Rig.Record(n, err)
			continue
		}
		vel, err := a.Velocity()
		if err != nil {
			p.Rig.Record(n, err)
			continue
		}
		p.Rig.Record(n, nil)
		p.Rig.Buffers.Motor(n).Write(buffer.MotorData{
			ID:       int(a.ID),
			Position: float32(pos),
			Velocity: float32(vel),
		})
	}
}

// IMUSampler reads an IMUSource and writes the IMU buffer.
type IMUSampler struct {
	Source   IMUSource
	Buffer   *buffer.SyncBuffer[buffer.IMUData]
	Interval time.Duration
}

// Name implements framework.Named.
func (s *IMUSampler) Name() string { return "imu-sampler" }

// Run implements framework.Runnable.
func (s *IMUSampler) Run(ctx context.Context) error {
	return every(ctx, s.Interval, s.Sample)
}

// Sample reads the source once.
func (s *IMUSampler) Sample() {
	data, err := s.Source.ReadIMU()
	if err != nil {
		glog.Warningf("imu read failed: %v", err)
		return
	}
	s.Buffer.Write(data)
}

func every(ctx context.Context, interval time.Duration, fn func()) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
