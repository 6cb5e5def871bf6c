package env

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robocore/pkg/control"
	"github.com/robotalks/robocore/pkg/dynamixel"
	fx "github.com/robotalks/robocore/pkg/framework"
	"github.com/robotalks/robocore/pkg/sim"
	"github.com/robotalks/robocore/pkg/telemetry"
	"github.com/robotalks/robocore/pkg/telemetry/mqtt"
	"github.com/robotalks/robocore/pkg/telemetry/stream"
	"github.com/robotalks/robocore/pkg/telemetry/websocket"
	"github.com/robotalks/robocore/pkg/uart"
)

// ConnectTimeout bounds the initial connection to the MQTT broker.
const ConnectTimeout = 5 * time.Second

// WebsocketPath is where the websocket hub is served.
const WebsocketPath = "/telemetry"

// Env is a controller assembled from a Config.
type Env struct {
	Config *Config
	Chain  *dynamixel.DaisyChain
	// Bus is the emulated bus when Config.Sim is set.
	Bus       *sim.Bus
	System    *control.System
	Publisher *telemetry.Publisher
	Hub       *websocket.Hub

	server  *http.Server
	closers []io.Closer
}

// OpenChain opens the actuator bus. The returned closers release the
// serial port and GPIO.
func (c *Config) OpenChain() (*dynamixel.DaisyChain, *sim.Bus, []io.Closer, error) {
	model, err := c.Model()
	if err != nil {
		return nil, nil, nil, err
	}
	ids, err := c.IDs()
	if err != nil {
		return nil, nil, nil, err
	}
	if c.Sim {
		bus := sim.NewBus()
		for _, id := range ids {
			bus.AddServo(id, model)
		}
		chain := dynamixel.NewDaisyChain(bus, bus)
		chain.Timeout = c.Serial.ResponseTimeout
		return chain, bus, nil, nil
	}

	mode, err := uart.ParseIOMode(c.Serial.IOMode)
	if err != nil {
		return nil, nil, nil, err
	}
	port, err := uart.Open(c.Serial.Port, c.Serial.BaudRate)
	if err != nil {
		return nil, nil, nil, err
	}
	transport, err := uart.New(mode, port)
	if err != nil {
		port.Close()
		return nil, nil, nil, err
	}
	closers := []io.Closer{transport}
	var dir dynamixel.DirectionLine
	switch strings.ToLower(c.Serial.Direction) {
	case "gpio":
		gpio, err := uart.OpenGPIODirection(c.Serial.DirectionPin, c.Serial.TransmitHigh)
		if err != nil {
			transport.Close()
			return nil, nil, nil, err
		}
		dir, closers = gpio, append(closers, gpio)
	case "rts":
		dir = &uart.RTSDirection{Port: port, TransmitHigh: c.Serial.TransmitHigh}
	default:
		dir = uart.AutoDirection{}
	}
	chain := dynamixel.NewDaisyChain(transport, dir)
	chain.Timeout = c.Serial.ResponseTimeout
	glog.Infof("actuator bus %s at %d bps, %s, %s direction",
		c.Serial.Port, c.Serial.BaudRate, mode, c.Serial.Direction)
	return chain, nil, closers, nil
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	chain, bus, closers, err := c.OpenChain()
	if err != nil {
		return nil, err
	}
	e := &Env{Config: c, Chain: chain, Bus: bus, closers: closers}
	model, _ := c.Model()
	ids, _ := c.IDs()
	axis, _ := c.Axis()
	rig := control.NewRig(chain, model, ids, c.Actuators.MaxFailures)
	if !c.Sim {
		glog.Warning("no IMU driver attached, using the simulated IMU")
	}
	imu := &sim.IMU{Amplitude: 0.2, Period: 2 * time.Second}
	e.System = control.NewSystem(rig, imu, &control.ProportionalPolicy{Gain: c.Loop.Gain, Axis: axis}, c.Loop.PollInterval)
	e.System.Step.Retries = c.Actuators.Retries

	sinks, err := e.openSinks()
	if err != nil {
		e.Close()
		return nil, err
	}
	if len(sinks) > 0 {
		e.Publisher = &telemetry.Publisher{RobotID: c.RobotID, Source: e.System.Step, Sinks: sinks}
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

func (e *Env) openSinks() ([]telemetry.Sink, error) {
	conf := &e.Config.Telemetry
	var sinks []telemetry.Sink
	if conf.MQTT != "" {
		q, err := mqtt.NewQueueFromURL(conf.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt %s: %w", conf.MQTT, err)
		}
		if err := q.Connect(ConnectTimeout); err != nil {
			return nil, fmt.Errorf("mqtt connect %s: %w", conf.MQTT, err)
		}
		e.closers = append(e.closers, q)
		sinks = append(sinks, mqtt.NewSink(q, e.Config.RobotID))
	}
	for _, addr := range conf.Streams {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, err
		}
		rw, err := stream.Dial(u.Scheme, u.Host)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", addr, err)
		}
		e.closers = append(e.closers, rw)
		sinks = append(sinks, rw)
	}
	if conf.Websocket != "" {
		e.Hub = websocket.NewHub()
		mux := http.NewServeMux()
		mux.Handle(WebsocketPath, e.Hub.Handler())
		e.server = &http.Server{Addr: conf.Websocket, Handler: mux}
		sinks = append(sinks, e.Hub)
	}
	return sinks, nil
}

// AddToLoop implements framework.LoopAdder.
func (e *Env) AddToLoop(l *fx.Loop) {
	l.Interval = e.Config.Loop.Interval
	l.Add(e.System)
	if e.Publisher != nil {
		l.Add(e.Publisher)
	}
	if e.server != nil {
		l.AddRunnable(fx.NamedRun("websocket", fx.RunFunc(e.serve)))
	}
}

func (e *Env) serve(ctx context.Context) error {
	glog.Infof("websocket telemetry on %s%s", e.server.Addr, WebsocketPath)
	return fx.RunWithContextCancel(ctx, func() { e.server.Close() }, func() error {
		err := e.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
}

// Close releases the bus and telemetry connections.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for n := len(e.closers) - 1; n >= 0; n-- {
		errs.Add(e.closers[n].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}
