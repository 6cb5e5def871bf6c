package env

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robocore/pkg/control"
	"github.com/robotalks/robocore/pkg/dynamixel"
	fx "github.com/robotalks/robocore/pkg/framework"
	"github.com/robotalks/robocore/pkg/telemetry"
	"github.com/robotalks/robocore/pkg/telemetry/stream"
)

func writeConfig(t *testing.T, content string) string {
	fn := filepath.Join(t.TempDir(), "robo.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
	return fn
}

func TestDefaults(t *testing.T) {
	conf := NewConfig()
	require.NotEmpty(t, conf.RobotID)
	require.NoError(t, conf.Validate())
	ids, err := conf.IDs()
	require.NoError(t, err)
	require.Len(t, ids, defaultNumActuators)
	model, err := conf.Model()
	require.NoError(t, err)
	require.Equal(t, dynamixel.AX12A.Name, model.Name)

	conf.Actuators.IDs[0] = 99
	require.Equal(t, 1, Default().Actuators.IDs[0], "NewConfig copies the defaults")
}

func TestLoad(t *testing.T) {
	fn := writeConfig(t, `
robot_id: lab-1
sim: true
serial:
  baud_rate: 57600
  io_mode: async
  direction: rts
  response_timeout: 5ms
actuators:
  model: AX-18A
  ids: [3, 4]
  retries: 2
loop:
  interval: 20ms
  axis: y
telemetry:
  streams: ["udp://127.0.0.1:6340"]
`)
	conf, err := Load(fn)
	require.NoError(t, err)
	require.Equal(t, "lab-1", conf.RobotID)
	require.True(t, conf.Sim)
	require.Equal(t, 57600, conf.Serial.BaudRate)
	require.Equal(t, 5*time.Millisecond, conf.Serial.ResponseTimeout)
	require.Equal(t, Default().Serial.Port, conf.Serial.Port, "unset fields keep defaults")
	require.Equal(t, []int{3, 4}, conf.Actuators.IDs)
	require.Equal(t, 2, conf.Actuators.Retries)
	require.Equal(t, 20*time.Millisecond, conf.Loop.Interval)
	axis, err := conf.Axis()
	require.NoError(t, err)
	require.Equal(t, control.AxisY, axis)
	require.Equal(t, []string{"udp://127.0.0.1:6340"}, conf.Telemetry.Streams)

	_, err = Load(writeConfig(t, "serial: [1"))
	require.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := map[string]func(*Config){
		"no robot id":      func(c *Config) { c.RobotID = "" },
		"no port":          func(c *Config) { c.Serial.Port = "" },
		"baud too low":     func(c *Config) { c.Serial.BaudRate = 7000 },
		"baud too high":    func(c *Config) { c.Serial.BaudRate = 2000000 },
		"io mode":          func(c *Config) { c.Serial.IOMode = "irq" },
		"direction":        func(c *Config) { c.Serial.Direction = "manual" },
		"response timeout": func(c *Config) { c.Serial.ResponseTimeout = 0 },
		"model":            func(c *Config) { c.Actuators.Model = "mx-28" },
		"no actuators":     func(c *Config) { c.Actuators.IDs = nil },
		"broadcast id":     func(c *Config) { c.Actuators.IDs = []int{1, int(dynamixel.BroadcastID)} },
		"duplicated id":    func(c *Config) { c.Actuators.IDs = []int{1, 1} },
		"id 0":             func(c *Config) { c.Actuators.IDs = []int{0, 1} },
		"negative id":      func(c *Config) { c.Actuators.IDs = []int{-1} },
		"axis":             func(c *Config) { c.Loop.Axis = "w" },
		"interval":         func(c *Config) { c.Loop.Interval = 0 },
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			conf := NewConfig()
			mutate(conf)
			require.Error(t, conf.Validate())
		})
	}
}

func TestSimEnvPublishes(t *testing.T) {
	receiver, err := stream.ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	defer receiver.Close()
	addr := receiver.ReadWriter.(net.Conn).LocalAddr().String()

	conf := NewConfig()
	conf.RobotID = "sim-1"
	conf.Sim = true
	conf.Actuators.IDs = []int{1, 2}
	conf.Telemetry.Streams = []string{"udp://" + addr}
	e, err := conf.NewEnv()
	require.NoError(t, err)
	defer e.Close()
	require.NotNil(t, e.Bus)
	require.NotNil(t, e.Publisher)

	loop := fx.NewLoop().Add(e)
	require.Equal(t, conf.Loop.Interval, loop.Interval)
	e.System.Motors.Poll()
	e.System.IMU.Sample()
	loop.RunOnce(context.Background())
	require.NotNil(t, e.System.Step.Latest())

	pkt, err := receiver.ReadPacket()
	require.NoError(t, err)
	s, err := telemetry.DecodeSnapshot(pkt)
	require.NoError(t, err)
	require.Equal(t, "sim-1", s.RobotID)
	require.Len(t, s.Motors, 2)
	require.Equal(t, int32(2), s.Motors[1].ID)
}
