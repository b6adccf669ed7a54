// Package models contains the data structures used throughout pihub.
package models

import "time"

// Config holds the complete hub configuration.
type Config struct {
	// Targets maps a (lowercased) target name to its wake configuration.
	Targets map[string]Target
}

// Target describes one wakeable machine on the local network.
type Target struct {
	Name string
	MAC  string     // colon or hyphen separated, 6 octets
	Host string     // optional, IP or hostname for liveness probes
	Port int        // optional, TCP port probed in addition to ping
	SSH  *SSHConfig // nil if remote shutdown is not configured
}

// SSHConfig holds remote shutdown configuration for a target.
type SSHConfig struct {
	Host     string
	Port     int
	Username string
	KeyPath  string
	Command  string
}

// ListenerConfig holds the bind addresses of the two HTTP listeners.
type ListenerConfig struct {
	TunnelAddr string // loopback, reached through the identity tunnel
	LANAddr    string // LAN-facing
}

// CECConfig holds settings for the cec-client bridge.
type CECConfig struct {
	Device  string // CEC logical address of the TV, typically "0"
	Timeout time.Duration
}

// WOLConfig holds settings for the magic packet sender.
type WOLConfig struct {
	BroadcastIP string
	Port        int
}
