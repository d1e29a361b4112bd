package llmdaemon

import (
	"os"
	"path/filepath"
)

func configDir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "policy-hook-runner")
}

// DefaultSocketPath returns the Unix-domain socket path the daemon listens
// on and the client dials.
func DefaultSocketPath() string {
	return filepath.Join(configDir(), "daemon.sock")
}

// DefaultPIDPath returns the file the daemon records its PID in.
func DefaultPIDPath() string {
	return filepath.Join(configDir(), "daemon.pid")
}
