package collector

import (
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Capabilities records what the host lets us see
type Capabilities struct {
	HasDockerSocket bool
	HasHostPID      bool
}

var (
	caps     Capabilities
	capsOnce sync.Once
)

// DetectCapabilities probes the host once and logs the result
func DetectCapabilities() Capabilities {
	capsOnce.Do(func() {
		caps = Capabilities{
			HasDockerSocket: fileExists("/var/run/docker.sock"),
			HasHostPID:      detectHostPID("/proc/1/cmdline"),
		}

		log.WithFields(log.Fields{
			"docker":   caps.HasDockerSocket,
			"host_pid": caps.HasHostPID,
		}).Info("Detected capabilities")
		if !caps.HasHostPID {
			log.Warn("Running inside a PID namespace, only processes in this container are visible")
		}
	})
	return caps
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// detectHostPID reports whether PID 1 looks like a host init rather than
// this binary running as a container entrypoint.
func detectHostPID(cmdlinePath string) bool {
	data, err := os.ReadFile(cmdlinePath)
	if err != nil {
		return false
	}
	cmdline := strings.ReplaceAll(string(data), "\x00", " ")
	cmdline = strings.TrimSpace(strings.ToLower(cmdline))

	return !strings.Contains(cmdline, "proclens")
}
