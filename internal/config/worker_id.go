package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// generateWorkerID produces a stable-enough worker identity for the lifetime
// of one process: hostname, pid, and a random suffix so two workers started
// on the same host in the same second never collide.
func generateWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), suffix)
}
