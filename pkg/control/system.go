// Package control wires producers, the buffer group and the control step
// into a framework.Loop.
package control

import (
	"time"

	fx "github.com/robotalks/robocore/pkg/framework"
)

// System bundles the producers and the consumer of a Rig.
type System struct {
	Rig    *Rig
	Motors *MotorPoller
	IMU    *IMUSampler
	Step   *Step
}

// NewSystem creates a System sampling at interval.
func NewSystem(rig *Rig, imu IMUSource, policy Policy, interval time.Duration) *System {
	return &System{
		Rig:    rig,
		Motors: &MotorPoller{Rig: rig, Interval: interval},
		IMU:    &IMUSampler{Source: imu, Buffer: rig.Buffers.IMU, Interval: interval},
		Step:   &Step{Rig: rig, Policy: policy},
	}
}

// AddToLoop implements framework.LoopAdder.
func (s *System) AddToLoop(l *fx.Loop) {
	l.AddRunnable(s.Motors, s.IMU)
	l.Add(s.Step)
}
