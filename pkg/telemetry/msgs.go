package telemetry

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/robocore/pkg/control"
)

// Snapshot is the telemetry record of one control step.
type Snapshot struct {
	RobotID      string          `protobuf:"bytes,1,opt,name=robot_id,json=robotId,proto3" json:"robot_id,omitempty"`
	Iteration    uint64          `protobuf:"varint,2,opt,name=iteration,proto3" json:"iteration,omitempty"`
	TimeUnixNano int64           `protobuf:"varint,3,opt,name=time_unix_nano,json=timeUnixNano,proto3" json:"time_unix_nano,omitempty"`
	IMU          *IMUSample      `protobuf:"bytes,4,opt,name=imu,proto3" json:"imu,omitempty"`
	Motors       []*MotorSample  `protobuf:"bytes,5,rep,name=motors,proto3" json:"motors,omitempty"`
	Commands     []*MotorCommand `protobuf:"bytes,6,rep,name=commands,proto3" json:"commands,omitempty"`
	Offline      []int32         `protobuf:"varint,7,rep,packed,name=offline,proto3" json:"offline,omitempty"`
	Bus          *BusStats       `protobuf:"bytes,8,opt,name=bus,proto3" json:"bus,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Snapshot) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Snapshot) Reset() { *m = Snapshot{} }

// String implements proto.Message.
func (m *Snapshot) String() string { return proto.CompactTextString(m) }

// IMUSample is an inertial sample.
type IMUSample struct {
	XAccel float32 `protobuf:"fixed32,1,opt,name=x_accel,json=xAccel,proto3" json:"x_accel,omitempty"`
	XGyro  float32 `protobuf:"fixed32,2,opt,name=x_gyro,json=xGyro,proto3" json:"x_gyro,omitempty"`
	YAccel float32 `protobuf:"fixed32,3,opt,name=y_accel,json=yAccel,proto3" json:"y_accel,omitempty"`
	YGyro  float32 `protobuf:"fixed32,4,opt,name=y_gyro,json=yGyro,proto3" json:"y_gyro,omitempty"`
	ZAccel float32 `protobuf:"fixed32,5,opt,name=z_accel,json=zAccel,proto3" json:"z_accel,omitempty"`
	ZGyro  float32 `protobuf:"fixed32,6,opt,name=z_gyro,json=zGyro,proto3" json:"z_gyro,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *IMUSample) ProtoMessage() {}

// Reset implements proto.Message.
func (m *IMUSample) Reset() { *m = IMUSample{} }

// String implements proto.Message.
func (m *IMUSample) String() string { return proto.CompactTextString(m) }

// MotorSample is the state of one actuator.
type MotorSample struct {
	ID       int32   `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Position float32 `protobuf:"fixed32,2,opt,name=position,proto3" json:"position,omitempty"`
	Velocity float32 `protobuf:"fixed32,3,opt,name=velocity,proto3" json:"velocity,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *MotorSample) ProtoMessage() {}

// Reset implements proto.Message.
func (m *MotorSample) Reset() { *m = MotorSample{} }

// String implements proto.Message.
func (m *MotorSample) String() string { return proto.CompactTextString(m) }

// MotorCommand is a command issued in the step.
type MotorCommand struct {
	Index        int32   `protobuf:"varint,1,opt,name=index,proto3" json:"index,omitempty"`
	GoalVelocity float64 `protobuf:"fixed64,2,opt,name=goal_velocity,json=goalVelocity,proto3" json:"goal_velocity,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *MotorCommand) ProtoMessage() {}

// Reset implements proto.Message.
func (m *MotorCommand) Reset() { *m = MotorCommand{} }

// String implements proto.Message.
func (m *MotorCommand) String() string { return proto.CompactTextString(m) }

// BusStats are the counters of the actuator chain.
type BusStats struct {
	Transactions    uint64 `protobuf:"varint,1,opt,name=transactions,proto3" json:"transactions,omitempty"`
	Broadcasts      uint64 `protobuf:"varint,2,opt,name=broadcasts,proto3" json:"broadcasts,omitempty"`
	NoResponse      uint64 `protobuf:"varint,3,opt,name=no_response,json=noResponse,proto3" json:"no_response,omitempty"`
	Timeouts        uint64 `protobuf:"varint,4,opt,name=timeouts,proto3" json:"timeouts,omitempty"`
	ChecksumErrors  uint64 `protobuf:"varint,5,opt,name=checksum_errors,json=checksumErrors,proto3" json:"checksum_errors,omitempty"`
	MalformedFrames uint64 `protobuf:"varint,6,opt,name=malformed_frames,json=malformedFrames,proto3" json:"malformed_frames,omitempty"`
	TransmitErrors  uint64 `protobuf:"varint,7,opt,name=transmit_errors,json=transmitErrors,proto3" json:"transmit_errors,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *BusStats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *BusStats) Reset() { *m = BusStats{} }

// String implements proto.Message.
func (m *BusStats) String() string { return proto.CompactTextString(m) }

// NewSnapshot converts a control frame.
func NewSnapshot(robotID string, frame *control.Frame) *Snapshot {
	imu := frame.IMU
	s := &Snapshot{
		RobotID:      robotID,
		Iteration:    frame.Iteration,
		TimeUnixNano: frame.Time.UnixNano(),
		IMU: &IMUSample{
			XAccel: imu.XAccel, XGyro: imu.XGyro,
			YAccel: imu.YAccel, YGyro: imu.YGyro,
			ZAccel: imu.ZAccel, ZGyro: imu.ZGyro,
		},
		Bus: &BusStats{
			Transactions:    frame.Bus.Transactions,
			Broadcasts:      frame.Bus.Broadcasts,
			NoResponse:      frame.Bus.NoResponse,
			Timeouts:        frame.Bus.Timeouts,
			ChecksumErrors:  frame.Bus.ChecksumErrors,
			MalformedFrames: frame.Bus.MalformedFrames,
			TransmitErrors:  frame.Bus.TransmitErrors,
		},
	}
	for _, m := range frame.Motors {
		s.Motors = append(s.Motors, &MotorSample{ID: int32(m.ID), Position: m.Position, Velocity: m.Velocity})
	}
	for _, c := range frame.Commands {
		s.Commands = append(s.Commands, &MotorCommand{Index: int32(c.Index), GoalVelocity: c.GoalVelocity})
	}
	for _, n := range frame.Offline {
		s.Offline = append(s.Offline, int32(n))
	}
	return s
}

// Encode serializes a Snapshot.
func (m *Snapshot) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeSnapshot parses a serialized Snapshot.
func DecodeSnapshot(payload []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := proto.Unmarshal(payload, s); err != nil {
		return nil, err
	}
	return s, nil
}
