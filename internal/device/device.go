// Package device models the simulated workstation: its lifecycle status,
// identity, and telemetry.
package device

import "fmt"

// Status is the lifecycle status of the device.
type Status string

const (
	StatusOffline      Status = "offline"
	StatusBooting      Status = "booting"
	StatusOnline       Status = "online"
	StatusShuttingDown Status = "shutting_down"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOffline, StatusBooting, StatusOnline, StatusShuttingDown:
		return true
	}
	return false
}

// Transitional reports whether s is one of the timed in-between states.
func (s Status) Transitional() bool {
	return s == StatusBooting || s == StatusShuttingDown
}

// Label returns the operator-facing label shown on the panel.
func (s Status) Label() string {
	switch s {
	case StatusOnline:
		return "在线"
	case StatusBooting:
		return "启动中..."
	case StatusShuttingDown:
		return "关机中..."
	default:
		return "离线"
	}
}

const (
	DefaultIPAddress  = "192.168.1.15"
	DefaultMACAddress = "AB:CD:EF:12:34:56"

	LastSeenNever   = "从未"
	LastSeenJustNow = "刚刚"

	// LastSeenLayout is the 24h wall-clock layout used when the device halts.
	LastSeenLayout = "15:04:05"
)

// Telemetry bounds.
const (
	MinCPULoad = 0
	MaxCPULoad = 100

	MinTemp = 20
	MaxTemp = 100

	OnlineMinTemp = 30
	OnlineMaxTemp = 95

	IdleCPULoad = MinCPULoad
	IdleTemp    = MinTemp
)

// State is a point-in-time view of the device. The lifecycle controller owns
// the only mutable copy; everyone else receives values.
type State struct {
	Status     Status `json:"status" msgpack:"status"`
	IPAddress  string `json:"ip_address" msgpack:"ip_address"`
	MACAddress string `json:"mac_address" msgpack:"mac_address"`
	LastSeen   string `json:"last_seen" msgpack:"last_seen"`
	CPULoad    int    `json:"cpu_load" msgpack:"cpu_load"`
	Temp       int    `json:"temp" msgpack:"temp"`
}

// NewState returns an offline, idle device with the given identity.
// Empty values fall back to the defaults.
func NewState(ip, mac string) State {
	if ip == "" {
		ip = DefaultIPAddress
	}
	if mac == "" {
		mac = DefaultMACAddress
	}
	return State{
		Status:     StatusOffline,
		IPAddress:  ip,
		MACAddress: mac,
		LastSeen:   LastSeenNever,
		CPULoad:    IdleCPULoad,
		Temp:       IdleTemp,
	}
}

func (s State) String() string {
	return fmt.Sprintf("%s [%s/%s] cpu=%d%% temp=%dC last_seen=%s",
		s.Status, s.IPAddress, s.MACAddress, s.CPULoad, s.Temp, s.LastSeen)
}
