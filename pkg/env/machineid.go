package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

const (
	appID     = "linkping"
	nodeIDLen = 12
)

// MachineID retrieves the ID identifying this machine to linkping. The raw
// machine ID is hashed with the app ID so it isn't exposed in topics.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		if host, e := os.Hostname(); e == nil && host != "" {
			return host
		}
		return appID
	}
	if len(id) > nodeIDLen {
		id = id[:nodeIDLen]
	}
	return id
}
