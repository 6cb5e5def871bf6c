package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves an ID identifying the machine, hashed so the raw
// machine ID is not published. The hostname is used when unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("robocore")
	if err == nil {
		return id[:12]
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "robot"
}
