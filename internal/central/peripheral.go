package central

import "time"

// ConnState is the connection lifecycle state of a tracked peripheral.
type ConnState int

const (
	StateDiscovered ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// String returns the lowercase state name, for logs.
func (s ConnState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Peripheral is one tracked remote device: stable identity plus the
// transient connection bookkeeping around it.
type Peripheral struct {
	// Identifier is the platform-assigned stable handle for the
	// physical device (a CoreBluetooth UUID on macOS, a MAC address on
	// Linux). Immutable once set.
	Identifier string

	// Name is the last advertised name, empty when the advertisement
	// carried none.
	Name string

	// State is the current connection lifecycle state.
	State ConnState

	// LastSeen is the time of the most recent discovery event, zero for
	// peripherals seeded from a persisted snapshot.
	LastSeen time.Time

	// RSSI is the signal strength from the most recent discovery.
	RSSI int16
}

// NewPeripheral returns a freshly discovered peripheral record.
func NewPeripheral(identifier, name string) *Peripheral {
	return &Peripheral{
		Identifier: identifier,
		Name:       name,
		State:      StateDiscovered,
		LastSeen:   nowFunc(),
	}
}
