package control

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robocore/pkg/buffer"
	"github.com/robotalks/robocore/pkg/dynamixel"
	fx "github.com/robotalks/robocore/pkg/framework"
)

// Frame is a consistent snapshot consumed by one control step.
type Frame struct {
	Iteration uint64
	Time      time.Time
	IMU       buffer.IMUData
	Motors    []buffer.MotorData
	Commands  []Command
	Offline   []int
	Bus       dynamixel.Stats
}

// Command asks the n-th actuator to move at GoalVelocity rpm.
type Command struct {
	Index        int
	GoalVelocity float64
}

// Policy turns a frame into actuator commands.
type Policy interface {
	Compute(*Frame) []Command
}

// PolicyFunc is the func form of Policy.
type PolicyFunc func(*Frame) []Command

// Compute implements Policy.
func (f PolicyFunc) Compute(frame *Frame) []Command {
	return f(frame)
}

// Axis selects a gyro axis.
type Axis int

// Gyro axes.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ProportionalPolicy counters the angular rate on one axis by driving
// every actuator at -Gain times the rate.
type ProportionalPolicy struct {
	Gain float64
	Axis Axis
}

// Compute implements Policy.
func (p *ProportionalPolicy) Compute(frame *Frame) []Command {
	var rate float32
	switch p.Axis {
	case AxisX:
		rate = frame.IMU.XGyro
	case AxisY:
		rate = frame.IMU.YGyro
	case AxisZ:
		rate = frame.IMU.ZGyro
	}
	v := -p.Gain * float64(rate)
	cmds := make([]Command, len(frame.Motors))
	for n := range cmds {
		cmds[n] = Command{Index: n, GoalVelocity: v}
	}
	return cmds
}

// Step is the consumer of the buffer group. It runs only when every
// buffer holds fresh data, and it releases the buffers before issuing
// any bus command.
type Step struct {
	Rig    *Rig
	Policy Policy
	// Retries is the number of extra attempts per command.
	Retries int

	lock   sync.RWMutex
	latest *Frame
}

// Latest gets the most recent frame, nil before the first step.
func (s *Step) Latest() *Frame {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.latest
}

// Control implements framework.Controller.
func (s *Step) Control(ctx fx.ControlContext) error {
	g := s.Rig.Buffers
	if !g.AllDataReady() {
		return nil
	}
	frame := &Frame{
		Iteration: ctx.Iteration(),
		Time:      ctx.Time(),
		IMU:       g.IMU.Read(),
		Motors:    make([]buffer.MotorData, g.NumMotors()),
	}
	for n := range frame.Motors {
		frame.Motors[n] = g.Motor(n).Read()
	}

	var errs fx.AggregatedError
	if s.Policy != nil {
		frame.Commands = s.Policy.Compute(frame)
	}
	for n, cmd := range frame.Commands {
		if cmd.Index < 0 || cmd.Index >= len(s.Rig.Actuators) {
			errs.Add(fmt.Errorf("command %d: no actuator %d", n, cmd.Index))
			continue
		}
		if !s.Rig.Health[cmd.Index].Online() {
			continue
		}
		frame.Commands[n].GoalVelocity = s.clamp(cmd)
		errs.Add(s.issue(frame.Commands[n]))
	}
	frame.Offline = s.Rig.Offline()
	frame.Bus = s.Rig.Chain.Stats()

	s.lock.Lock()
	s.latest = frame
	s.lock.Unlock()
	return errs.Aggregate()
}

// AddToLoop implements framework.LoopAdder.
func (s *Step) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, s)
}

func (s *Step) clamp(cmd Command) float64 {
	m := s.Rig.Actuators[cmd.Index].Model
	v := cmd.GoalVelocity
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(m.MinVelocity, math.Min(m.MaxVelocity, v))
}

func (s *Step) issue(cmd Command) error {
	a := s.Rig.Actuators[cmd.Index]
	var err error
	for attempt := 0; attempt <= s.Retries; attempt++ {
		if err = a.SetGoalVelocity(cmd.GoalVelocity); err == nil {
			break
		}
		if errors.Is(err, dynamixel.ErrOutOfRange) {
			return err
		}
		glog.V(2).Infof("actuator %d attempt %d: %v", a.ID, attempt+1, err)
	}
	s.Rig.Record(cmd.Index, err)
	return err
}
