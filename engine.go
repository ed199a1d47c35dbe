// Package engine identifies the intentflow orchestration engine
package engine

const (
	// Name is the service name reported in logs and health responses
	Name = "intentflow"

	// Version is the engine release version
	Version = "0.3.0"
)
