// Package telemetry reports control frames to remote observers.
package telemetry

import (
	"github.com/golang/glog"

	"github.com/robotalks/robocore/pkg/control"
	fx "github.com/robotalks/robocore/pkg/framework"
)

// Sink accepts encoded snapshots.
type Sink interface {
	WritePacket([]byte) error
}

// FrameSource provides the latest control frame. control.Step implements it.
type FrameSource interface {
	Latest() *control.Frame
}

// Publisher encodes each new frame once and writes it to every sink.
type Publisher struct {
	RobotID string
	Source  FrameSource
	Sinks   []Sink

	last uint64
}

// Control implements framework.Controller.
func (p *Publisher) Control(ctx fx.ControlContext) error {
	frame := p.Source.Latest()
	if frame == nil || frame.Iteration == p.last {
		return nil
	}
	p.last = frame.Iteration
	payload, err := NewSnapshot(p.RobotID, frame).Encode()
	if err != nil {
		return err
	}
	glog.V(4).Infof("telemetry %d: %d bytes", frame.Iteration, len(payload))
	var errs fx.AggregatedError
	for _, sink := range p.Sinks {
		errs.Add(sink.WritePacket(payload))
	}
	return errs.Aggregate()
}

// AddToLoop implements framework.LoopAdder.
func (p *Publisher) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, p)
}
