package control

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robocore/pkg/buffer"
	"github.com/robotalks/robocore/pkg/dynamixel"
	fx "github.com/robotalks/robocore/pkg/framework"
	"github.com/robotalks/robocore/pkg/sim"
)

type fixedIMU struct {
	data buffer.IMUData
	err  error
}

func (s *fixedIMU) ReadIMU() (buffer.IMUData, error) {
	return s.data, s.err
}

type testSystem struct {
	bus     *sim.Bus
	rig     *Rig
	imu     *fixedIMU
	sys     *System
	loop    *fx.Loop
	stepErr error
}

// newTestSystem attaches emulated servos for servoIDs and drives ids.
func newTestSystem(policy Policy, servoIDs []byte, ids ...byte) *testSystem {
	bus := sim.NewBus()
	for _, id := range servoIDs {
		bus.AddServo(id, dynamixel.AX12A)
	}
	rig := NewRig(dynamixel.NewDaisyChain(bus, bus), dynamixel.AX12A, ids, 3)
	imu := &fixedIMU{data: buffer.IMUData{XGyro: 2, ZAccel: sim.Gravity}}
	ts := &testSystem{
		bus:  bus,
		rig:  rig,
		imu:  imu,
		sys:  NewSystem(rig, imu, policy, 0),
		loop: fx.NewLoop(),
	}
	ts.loop.AddController(fx.PrLvControl, fx.ControlFunc(func(ctx fx.ControlContext) error {
		ts.stepErr = ts.sys.Step.Control(ctx)
		return nil
	}))
	return ts
}

func (ts *testSystem) produce() {
	ts.sys.Motors.Poll()
	ts.sys.IMU.Sample()
}

func (ts *testSystem) step() error {
	ts.loop.RunOnce(context.Background())
	return ts.stepErr
}

func TestStepWaitsForAllData(t *testing.T) {
	ids := []byte{1, 2}
	ts := newTestSystem(&ProportionalPolicy{Gain: 1}, ids, ids...)
	require.NoError(t, ts.step())
	require.Nil(t, ts.sys.Step.Latest())

	ts.sys.Motors.Poll()
	require.NoError(t, ts.step())
	require.Nil(t, ts.sys.Step.Latest())

	ts.sys.IMU.Sample()
	require.True(t, ts.rig.Buffers.AllDataReady())
	require.NoError(t, ts.step())
	frame := ts.sys.Step.Latest()
	require.NotNil(t, frame)
	require.False(t, ts.rig.Buffers.AllDataReady(), "step consumes every buffer")

	require.NoError(t, ts.step())
	require.Same(t, frame, ts.sys.Step.Latest(), "no fresh data, no new frame")
}

func TestStepIssuesCommands(t *testing.T) {
	ids := []byte{1, 2}
	ts := newTestSystem(&ProportionalPolicy{Gain: 10, Axis: AxisX}, ids, ids...)
	require.NoError(t, ts.sys.Step.Rig.Actuators[1].SetGoalPosition(90))

	ts.produce()
	require.NoError(t, ts.step())
	frame := ts.sys.Step.Latest()
	require.NotNil(t, frame)
	require.Equal(t, []Command{{Index: 0, GoalVelocity: -20}, {Index: 1, GoalVelocity: -20}}, frame.Commands)
	require.Equal(t, float32(2), frame.IMU.XGyro)
	require.Len(t, frame.Motors, 2)
	require.Equal(t, 2, frame.Motors[1].ID)
	require.InDelta(t, 90, frame.Motors[1].Position, dynamixel.AX12A.PositionResolution)
	require.Empty(t, frame.Offline)

	for _, id := range ids {
		require.Equal(t, dynamixel.AX12A.EncodeVelocity(-20),
			ts.bus.Servo(id).Register16(dynamixel.RegMovingSpeed))
	}
}

func TestStepClampsCommands(t *testing.T) {
	ids := []byte{1}
	ts := newTestSystem(&ProportionalPolicy{Gain: 1000}, ids, ids...)
	ts.produce()
	require.NoError(t, ts.step())
	require.Equal(t, dynamixel.AX12A.MinVelocity, ts.sys.Step.Latest().Commands[0].GoalVelocity)
	require.Equal(t, dynamixel.AX12A.EncodeVelocity(dynamixel.AX12A.MinVelocity),
		ts.bus.Servo(1).Register16(dynamixel.RegMovingSpeed))
}

func TestStepRejectsUnknownActuator(t *testing.T) {
	ids := []byte{1}
	ts := newTestSystem(PolicyFunc(func(*Frame) []Command {
		return []Command{{Index: 3, GoalVelocity: 1}}
	}), ids, ids...)
	ts.produce()
	require.Error(t, ts.step())
}

func TestStepRetries(t *testing.T) {
	ids := []byte{1}
	ts := newTestSystem(&ProportionalPolicy{Gain: 1}, ids, ids...)
	ts.sys.Step.Retries = 1
	ts.produce()
	ts.bus.DropReplies(1)
	require.NoError(t, ts.step())
	require.Zero(t, ts.rig.Health[0].Failures())
	require.Equal(t, uint64(1), ts.rig.Chain.Stats().NoResponse)

	ts.sys.Step.Retries = 0
	ts.produce()
	ts.bus.DropReplies(1)
	err := ts.step()
	require.ErrorIs(t, err, dynamixel.ErrNoResponse)
	require.Equal(t, 1, ts.rig.Health[0].Failures())
}

func TestOfflineAndRevive(t *testing.T) {
	ts := newTestSystem(&ProportionalPolicy{Gain: 1}, []byte{1}, 1, 9)
	for n := 0; n < 3; n++ {
		ts.produce()
		require.NoError(t, ts.step())
	}
	require.Equal(t, []int{1}, ts.rig.Offline())
	require.Nil(t, ts.sys.Step.Latest(), "barrier holds while a motor is silent")

	ts.bus.AddServo(9, dynamixel.AX12A)
	ts.produce()
	require.NoError(t, ts.step())
	require.Empty(t, ts.rig.Offline())
	frame := ts.sys.Step.Latest()
	require.NotNil(t, frame)
	require.Equal(t, 9, frame.Motors[1].ID)
}

func TestIMUSamplerKeepsBufferOnError(t *testing.T) {
	ids := []byte{1}
	ts := newTestSystem(nil, ids, ids...)
	ts.imu.err = errors.New("i2c nack")
	ts.sys.IMU.Sample()
	require.Equal(t, buffer.Empty, ts.rig.Buffers.IMU.NumReads())
}

func TestHealth(t *testing.T) {
	h := &Health{MaxFailures: 2}
	failure := errors.New("x")
	require.False(t, h.Record(failure))
	require.True(t, h.Online())
	require.True(t, h.Record(failure))
	require.False(t, h.Online())
	require.False(t, h.Record(failure), "already offline")
	require.Equal(t, 3, h.Failures())
	require.False(t, h.Record(nil))
	require.True(t, h.Online())
	require.Zero(t, h.Failures())
}
