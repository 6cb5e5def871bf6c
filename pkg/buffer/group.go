package buffer

import "sync"

// IMUData is one inertial sample.
type IMUData struct {
	XAccel, XGyro float32
	YAccel, YGyro float32
	ZAccel, ZGyro float32
}

// MotorData is one actuator sample.
type MotorData struct {
	ID       int
	Position float32 // degrees
	Velocity float32 // rpm
}

type member interface {
	numReadsLocked() int
	resetLocked()
}

// Group holds the buffers consumed together by the control loop.
// All members share one lock so AllDataReady sees a consistent view.
type Group struct {
	IMU    *SyncBuffer[IMUData]
	Motors []*SyncBuffer[MotorData]

	lock    sync.Locker
	members []member
}

// NewGroup creates a Group with an IMU buffer and numMotors motor buffers.
// A nil lock gives the group its own mutex.
func NewGroup(lock sync.Locker, numMotors int) *Group {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	g := &Group{
		IMU:    New[IMUData](lock),
		Motors: make([]*SyncBuffer[MotorData], numMotors),
		lock:   lock,
	}
	g.members = append(g.members, g.IMU)
	for n := range g.Motors {
		g.Motors[n] = New[MotorData](lock)
		g.members = append(g.members, g.Motors[n])
	}
	return g
}

// NumMotors gets the number of motor buffers.
func (g *Group) NumMotors() int {
	return len(g.Motors)
}

// Motor gets the buffer of the n-th motor.
func (g *Group) Motor(n int) *SyncBuffer[MotorData] {
	return g.Motors[n]
}

// AllDataReady returns true when every member holds a value written
// since its last read.
func (g *Group) AllDataReady() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	for _, m := range g.members {
		if m.numReadsLocked() != 0 {
			return false
		}
	}
	return true
}

// Reset marks every member Empty.
func (g *Group) Reset() {
	g.lock.Lock()
	for _, m := range g.members {
		m.resetLocked()
	}
	g.lock.Unlock()
}
