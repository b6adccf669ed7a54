package models

// PowerState is the TV power state as reported over CEC.
type PowerState string

// Power states. Unknown covers unparseable output and failed queries.
const (
	PowerOn      PowerState = "on"
	PowerStandby PowerState = "standby"
	PowerUnknown PowerState = "unknown"
)

func (p PowerState) String() string {
	return string(p)
}
