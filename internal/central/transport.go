// Package central manages a BLE central-role session: scanning for
// peripherals, filtering discoveries against a known-name allow-list,
// and tracking the resulting peripherals in an ordered registry. The
// radio stack itself sits behind the Transport interface; this package
// owns only the session state machine and the bookkeeping around it.
package central

// EventKind discriminates transport event stream entries.
type EventKind int

const (
	// EventDiscovered reports a peripheral seen during a scan. Scans
	// are duplicate-prone: the same identifier may be reported any
	// number of times.
	EventDiscovered EventKind = iota
	// EventStateChanged reports an asynchronous connection state
	// transition (connect confirmation, disconnect, drop).
	EventStateChanged
	// EventError reports a transport-level failure. Identifier may be
	// empty for failures not tied to a single peripheral.
	EventError
)

// Event is one entry in the transport's event stream.
type Event struct {
	Kind       EventKind
	Identifier string
	Name       string    // advertised name, EventDiscovered only; may be empty
	RSSI       int16     // signal strength, EventDiscovered only
	State      ConnState // EventStateChanged only
	Err        error     // EventError only
}

// Transport abstracts the BLE radio stack for the session. All calls
// submit a request and return; completion and any spontaneous activity
// (discoveries, drops) arrive later on the Events channel.
type Transport interface {
	// StartScan begins scanning for peripherals advertising any of the
	// given service UUIDs. An empty slice scans for everything.
	StartScan(serviceUUIDs []string) error
	// StopScan halts an active scan. Events already in flight may still
	// be delivered after it returns.
	StopScan() error
	// Connect requests a connection to the identified peripheral.
	Connect(identifier string) error
	// Disconnect requests teardown of the identified connection.
	Disconnect(identifier string) error
	// Events is the stream of discovery, state-change, and error
	// events. Delivery order for the same identifier matches the order
	// the radio reported them.
	Events() <-chan Event
}
