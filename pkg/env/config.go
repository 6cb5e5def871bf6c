// Package env builds a running controller from flags, environment
// variables and an optional YAML file.
package env

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/robocore/pkg/control"
	"github.com/robotalks/robocore/pkg/dynamixel"
	"github.com/robotalks/robocore/pkg/uart"
)

// Config is the complete controller configuration.
type Config struct {
	// RobotID names the robot in telemetry topics.
	RobotID   string          `yaml:"robot_id"`
	Sim       bool            `yaml:"sim"`
	Serial    SerialConfig    `yaml:"serial"`
	Actuators ActuatorConfig  `yaml:"actuators"`
	Loop      LoopConfig      `yaml:"loop"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SerialConfig configures the actuator bus.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	// IOMode is blocking, poll, async, it or dma.
	IOMode string `yaml:"io_mode"`
	// Direction is gpio, rts or auto.
	Direction       string        `yaml:"direction"`
	DirectionPin    int           `yaml:"direction_pin"`
	TransmitHigh    bool          `yaml:"transmit_high"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
}

// ActuatorConfig configures the daisy chain members.
type ActuatorConfig struct {
	Model       string `yaml:"model"`
	IDs         []int  `yaml:"ids"`
	MaxFailures int    `yaml:"max_failures"`
	Retries     int    `yaml:"retries"`
}

// LoopConfig configures the control loop.
type LoopConfig struct {
	Interval     time.Duration `yaml:"interval"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Gain         float64       `yaml:"gain"`
	// Axis is x, y or z.
	Axis string `yaml:"axis"`
}

// TelemetryConfig selects the telemetry sinks. Empty disables a sink.
type TelemetryConfig struct {
	// MQTT is the broker URL, e.g. mqtt://host:1883/robo.
	MQTT string `yaml:"mqtt"`
	// Streams are udp:// or tcp:// destinations.
	Streams []string `yaml:"streams"`
	// Websocket is the listen address of the websocket hub.
	Websocket string `yaml:"websocket"`
}

const defaultNumActuators = 12

var defaultConfig = Config{
	Serial: SerialConfig{
		Port:            "/dev/serial0",
		BaudRate:        dynamixel.DefaultBaudRate,
		IOMode:          uart.Blocking.String(),
		Direction:       "gpio",
		DirectionPin:    18,
		TransmitHigh:    true,
		ResponseTimeout: dynamixel.DefaultResponseTimeout,
	},
	Actuators: ActuatorConfig{
		Model:       dynamixel.AX12A.Name,
		MaxFailures: control.DefaultMaxFailures,
		Retries:     1,
	},
	Loop: LoopConfig{
		Interval:     10 * time.Millisecond,
		PollInterval: control.DefaultPollInterval,
		Gain:         1,
		Axis:         "x",
	},
}

func init() {
	for id := 1; id <= defaultNumActuators; id++ {
		defaultConfig.Actuators.IDs = append(defaultConfig.Actuators.IDs, id)
	}
	defaultConfig.RobotID = MachineID()
	if val := os.Getenv("ROBO_ID"); val != "" {
		defaultConfig.RobotID = val
	}
	if val := os.Getenv("ROBO_SERIAL_PORT"); val != "" {
		defaultConfig.Serial.Port = val
	}
	if val := os.Getenv("ROBO_MQTT_URL"); val != "" {
		defaultConfig.Telemetry.MQTT = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.RobotID, "id", defaultConfig.RobotID, "Robot ID")
	flag.BoolVar(&defaultConfig.Sim, "sim", defaultConfig.Sim, "Use simulated actuators")
	flag.StringVar(&defaultConfig.Serial.Port, "port", defaultConfig.Serial.Port, "Serial port of the actuator bus")
	flag.IntVar(&defaultConfig.Serial.BaudRate, "baud", defaultConfig.Serial.BaudRate, "Baud rate of the actuator bus")
	flag.StringVar(&defaultConfig.Serial.IOMode, "io", defaultConfig.Serial.IOMode, "UART IO mode: blocking, async")
	flag.StringVar(&defaultConfig.Serial.Direction, "dir", defaultConfig.Serial.Direction, "Direction control: gpio, rts, auto")
	flag.IntVar(&defaultConfig.Serial.DirectionPin, "dir-pin", defaultConfig.Serial.DirectionPin, "GPIO pin of direction control")
	flag.StringVar(&defaultConfig.Actuators.Model, "model", defaultConfig.Actuators.Model, "Actuator model")
	flag.StringVar(&defaultConfig.Telemetry.MQTT, "mqtt", defaultConfig.Telemetry.MQTT, "MQTT broker URL")
	flag.StringVar(&defaultConfig.Telemetry.Websocket, "ws", defaultConfig.Telemetry.Websocket, "Websocket telemetry listen address")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Actuators.IDs = append([]int(nil), defaultConfig.Actuators.IDs...)
	return &conf
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf := NewConfig()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return conf, conf.Validate()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RobotID == "" {
		return fmt.Errorf("robot id must be specified")
	}
	if !c.Sim && c.Serial.Port == "" {
		return fmt.Errorf("serial port must be specified")
	}
	if c.Serial.BaudRate < dynamixel.MinBaudRate || c.Serial.BaudRate > dynamixel.MaxBaudRate {
		return fmt.Errorf("baud rate %d not in [%d, %d]",
			c.Serial.BaudRate, dynamixel.MinBaudRate, dynamixel.MaxBaudRate)
	}
	if _, err := uart.ParseIOMode(c.Serial.IOMode); err != nil {
		return err
	}
	switch strings.ToLower(c.Serial.Direction) {
	case "gpio", "rts", "auto":
	default:
		return fmt.Errorf("unknown direction control %q", c.Serial.Direction)
	}
	if c.Serial.ResponseTimeout <= 0 {
		return fmt.Errorf("response timeout must be positive")
	}
	if _, err := c.Model(); err != nil {
		return err
	}
	if _, err := c.IDs(); err != nil {
		return err
	}
	if _, err := c.Axis(); err != nil {
		return err
	}
	if c.Loop.Interval <= 0 {
		return fmt.Errorf("loop interval must be positive")
	}
	return nil
}

// Model looks up the actuator model.
func (c *Config) Model() (dynamixel.Model, error) {
	m, ok := dynamixel.ModelByName(c.Actuators.Model)
	if !ok {
		return m, fmt.Errorf("unknown actuator model %q", c.Actuators.Model)
	}
	return m, nil
}

// IDs converts the actuator IDs, rejecting duplicates and IDs outside
// [dynamixel.MinID, dynamixel.MaxID].
func (c *Config) IDs() ([]byte, error) {
	if len(c.Actuators.IDs) == 0 {
		return nil, fmt.Errorf("at least one actuator is required")
	}
	ids := make([]byte, 0, len(c.Actuators.IDs))
	seen := make(map[int]bool)
	for _, id := range c.Actuators.IDs {
		if id < int(dynamixel.MinID) || id > int(dynamixel.MaxID) {
			return nil, fmt.Errorf("invalid actuator id %d", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicated actuator id %d", id)
		}
		seen[id] = true
		ids = append(ids, byte(id))
	}
	return ids, nil
}

// Axis parses the gyro axis driving the policy.
func (c *Config) Axis() (control.Axis, error) {
	switch strings.ToLower(c.Loop.Axis) {
	case "x", "":
		return control.AxisX, nil
	case "y":
		return control.AxisY, nil
	case "z":
		return control.AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q", c.Loop.Axis)
}
