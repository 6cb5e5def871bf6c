package sim

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robocore/pkg/dynamixel"
)

func newTestChain() (*Bus, *dynamixel.DaisyChain) {
	bus := NewBus()
	bus.AddServo(1, dynamixel.AX12A)
	bus.AddServo(2, dynamixel.AX18A)
	return bus, dynamixel.NewDaisyChain(bus, bus)
}

func TestActuatorOverBus(t *testing.T) {
	bus, chain := newTestChain()
	a := dynamixel.NewActuator(chain, 1, dynamixel.AX12A)

	require.NoError(t, a.Ping())
	require.NoError(t, a.SetGoalVelocity(-57))
	rpm, err := a.Velocity()
	require.NoError(t, err)
	require.InDelta(t, -57, rpm, dynamixel.AX12A.VelocityResolution)

	require.NoError(t, a.SetGoalPosition(150))
	deg, err := a.Position()
	require.NoError(t, err)
	require.InDelta(t, 150, deg, dynamixel.AX12A.PositionResolution)

	require.NoError(t, a.SetComplianceSlope(7))
	require.NoError(t, a.SetComplianceMargin(4))
	s := bus.Servo(1)
	require.Equal(t, byte(128), s.Register(dynamixel.RegCwComplianceSlope))
	require.Equal(t, byte(128), s.Register(dynamixel.RegCcwComplianceSlope))
	require.Equal(t, byte(4), s.Register(dynamixel.RegCwComplianceMargin))
	require.Equal(t, byte(4), s.Register(dynamixel.RegCcwComplianceMargin))

	require.NoError(t, a.SetBaudRate(57600))
	require.Equal(t, byte(34), s.Register(dynamixel.RegBaudRate))
}

func TestMissingDevice(t *testing.T) {
	_, chain := newTestChain()
	err := dynamixel.NewActuator(chain, 9, dynamixel.AX12A).Ping()
	require.ErrorIs(t, err, dynamixel.ErrNoResponse)
}

func TestBroadcast(t *testing.T) {
	bus, chain := newTestChain()
	pkt, err := chain.Transact(dynamixel.BroadcastID, dynamixel.InstWrite,
		dynamixel.WriteParams(dynamixel.RegTorqueEnable, 1), 0)
	require.NoError(t, err)
	require.Nil(t, pkt)
	require.Equal(t, byte(1), bus.Servo(1).Register(dynamixel.RegTorqueEnable))
	require.Equal(t, byte(1), bus.Servo(2).Register(dynamixel.RegTorqueEnable))
}

func TestRegisterBounds(t *testing.T) {
	bus, _ := newTestChain()
	s := bus.Servo(1)
	testCases := []struct {
		addr byte
		reg  byte
		word uint16
	}{
		{addr: dynamixel.RegPresentTemperature, reg: 32, word: 32},
		{addr: controlTableSize - 1, reg: 0, word: 0},
		{addr: controlTableSize, reg: 0, word: 0},
		{addr: 0xff, reg: 0, word: 0},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%#x", tc.addr), func(t *testing.T) {
			require.NotPanics(t, func() {
				require.Equal(t, tc.reg, s.Register(tc.addr))
				require.Equal(t, tc.word, s.Register16(tc.addr))
			})
		})
	}
	s.table[controlTableSize-2] = 0x34
	s.table[controlTableSize-1] = 0x12
	require.Equal(t, uint16(0x1234), s.Register16(controlTableSize-2))
}

func TestFaultInjection(t *testing.T) {
	bus, chain := newTestChain()
	a := dynamixel.NewActuator(chain, 2, dynamixel.AX18A)

	bus.DropReplies(1)
	require.ErrorIs(t, a.Ping(), dynamixel.ErrNoResponse)
	bus.CorruptReplies(1)
	require.ErrorIs(t, a.Ping(), dynamixel.ErrChecksumMismatch)
	require.NoError(t, a.Ping())

	bus.Latency = 5 * time.Millisecond
	chain.Timeout = time.Millisecond
	require.ErrorIs(t, a.Ping(), dynamixel.ErrNoResponse)

	stats := chain.Stats()
	require.Equal(t, uint64(4), stats.Transactions)
	require.Equal(t, uint64(3), stats.Failures())
}

func TestTransmitRequiresDirection(t *testing.T) {
	bus := NewBus()
	require.ErrorIs(t, bus.Transmit([]byte{0xff, 0xff, 0x01, 0x02, 0x01, 0xfb}), ErrDirection)
}

func TestIMU(t *testing.T) {
	now := time.Unix(100, 0)
	imu := &IMU{Amplitude: 0.1, Period: time.Second, Now: func() time.Time { return now }}
	data, err := imu.ReadIMU()
	require.NoError(t, err)
	require.InDelta(t, Gravity, data.ZAccel, 1e-4)
	require.InDelta(t, 0.1*2*3.14159265, data.XGyro, 1e-4)

	now = now.Add(250 * time.Millisecond)
	data, err = imu.ReadIMU()
	require.NoError(t, err)
	require.InDelta(t, 0, data.XGyro, 1e-4)
	require.Greater(t, data.YAccel, float32(0))
}
