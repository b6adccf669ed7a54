package models

import "time"

// WakeRecord holds the last time a named target was woken. Records live in
// memory only and are overwritten on every successful wake of the same name.
type WakeRecord struct {
	TargetName string
	LastWake   time.Time
}

// ProbeResult holds the outcome of a target liveness probe.
type ProbeResult struct {
	PingOK   bool
	PortOpen bool // only meaningful when the target configures a probe port
	Awake    bool
}
