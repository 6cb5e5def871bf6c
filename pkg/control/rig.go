package control

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/robocore/pkg/buffer"
	"github.com/robotalks/robocore/pkg/dynamixel"
)

// DefaultMaxFailures is the number of consecutive failures taking an
// actuator offline.
const DefaultMaxFailures = 5

// Health tracks consecutive failures of one actuator.
type Health struct {
	MaxFailures int

	lock     sync.Mutex
	failures int
	offline  bool
}

// Record accounts the result of a transaction.
// It returns true when the actuator goes offline with this failure.
func (h *Health) Record(err error) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	if err == nil {
		h.failures, h.offline = 0, false
		return false
	}
	h.failures++
	max := h.MaxFailures
	if max <= 0 {
		max = DefaultMaxFailures
	}
	if !h.offline && h.failures >= max {
		h.offline = true
		return true
	}
	return false
}

// Online returns false once MaxFailures consecutive failures are recorded.
func (h *Health) Online() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return !h.offline
}

// Failures gets the number of consecutive failures.
func (h *Health) Failures() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.failures
}

// Rig is the set of actuators sharing a chain and the buffers they feed.
type Rig struct {
	Chain     *dynamixel.DaisyChain
	Actuators []*dynamixel.Actuator
	Health    []*Health
	Buffers   *buffer.Group
}

// NewRig creates a Rig with one actuator per id.
func NewRig(chain *dynamixel.DaisyChain, model dynamixel.Model, ids []byte, maxFailures int) *Rig {
	r := &Rig{
		Chain:     chain,
		Actuators: make([]*dynamixel.Actuator, len(ids)),
		Health:    make([]*Health, len(ids)),
		Buffers:   buffer.NewGroup(nil, len(ids)),
	}
	for n, id := range ids {
		r.Actuators[n] = dynamixel.NewActuator(chain, id, model)
		r.Health[n] = &Health{MaxFailures: maxFailures}
	}
	return r
}

// Record accounts a transaction result of the n-th actuator.
func (r *Rig) Record(n int, err error) {
	if r.Health[n].Record(err) {
		glog.Errorf("actuator %d offline: %v", r.Actuators[n].ID, err)
	}
}

// Offline lists the indices of offline actuators.
func (r *Rig) Offline() []int {
	var offline []int
	for n, h := range r.Health {
		if !h.Online() {
			offline = append(offline, n)
		}
	}
	return offline
}

// Revive pings an offline actuator and brings it back when it answers.
func (r *Rig) Revive(n int) bool {
	if err := r.Actuators[n].Ping(); err != nil {
		return false
	}
	r.Health[n].Record(nil)
	glog.Infof("actuator %d back online", r.Actuators[n].ID)
	return true
}
