package central

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// DefaultEventBuffer is the event channel capacity used when the
// caller does not configure one. A radio can burst advertisements far
// faster than an application drains them.
const DefaultEventBuffer = 64

// BluetoothTransport implements Transport over tinygo-org/bluetooth.
// On macOS peripheral identifiers are CoreBluetooth UUID strings; on
// Linux they are MAC addresses. Either way the string from
// ScanResult.Address is the stable identifier the session tracks.
type BluetoothTransport struct {
	adapter *bluetooth.Adapter
	events  chan Event
	log     *slog.Logger

	// mu protects devices and scanning.
	mu       sync.Mutex
	devices  map[string]bluetooth.Device // connected devices by identifier
	scanning bool
	dropped  uint64
}

// NewBluetoothTransport wraps the default system adapter. Enable must
// succeed before the radio accepts commands.
func NewBluetoothTransport(logger *slog.Logger, eventBuffer int) (*BluetoothTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if eventBuffer <= 0 {
		eventBuffer = DefaultEventBuffer
	}
	t := &BluetoothTransport{
		adapter: bluetooth.DefaultAdapter,
		events:  make(chan Event, eventBuffer),
		log:     logger,
		devices: make(map[string]bluetooth.Device),
	}
	if err := t.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("central: enable adapter: %w", err)
	}

	// The adapter-level handler is the only place the stack reports
	// spontaneous disconnects.
	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		id := device.Address.String()
		state := StateConnected
		if !connected {
			state = StateDisconnected
			t.mu.Lock()
			delete(t.devices, id)
			t.mu.Unlock()
		}
		t.push(Event{Kind: EventStateChanged, Identifier: id, State: state})
	})

	return t, nil
}

func (t *BluetoothTransport) Events() <-chan Event {
	return t.events
}

// StartScan begins scanning in a background goroutine; the underlying
// Scan call blocks until StopScan. Results matching any of the service
// UUIDs (or all results, for an empty filter) become discovery events.
func (t *BluetoothTransport) StartScan(serviceUUIDs []string) error {
	uuids := make([]bluetooth.UUID, 0, len(serviceUUIDs))
	for _, s := range serviceUUIDs {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return fmt.Errorf("central: parse service UUID %q: %w", s, err)
		}
		uuids = append(uuids, u)
	}

	t.mu.Lock()
	if t.scanning {
		t.mu.Unlock()
		return nil
	}
	t.scanning = true
	t.mu.Unlock()

	go func() {
		err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if len(uuids) > 0 {
				matched := false
				for _, u := range uuids {
					if result.HasServiceUUID(u) {
						matched = true
						break
					}
				}
				if !matched {
					return
				}
			}
			t.push(Event{
				Kind:       EventDiscovered,
				Identifier: result.Address.String(),
				Name:       result.LocalName(),
				RSSI:       result.RSSI,
			})
		})
		t.mu.Lock()
		t.scanning = false
		t.mu.Unlock()
		if err != nil {
			t.push(Event{Kind: EventError, Err: fmt.Errorf("central: scan: %w", err)})
		}
	}()
	return nil
}

func (t *BluetoothTransport) StopScan() error {
	if err := t.adapter.StopScan(); err != nil {
		return fmt.Errorf("central: stop scan: %w", err)
	}
	return nil
}

// Connect submits a connection attempt in the background. tinygo's
// Connect blocks with its own internal timeout, so the result is
// reported as a state-change or error event rather than a return value.
func (t *BluetoothTransport) Connect(identifier string) error {
	var addr bluetooth.Address
	addr.Set(identifier)

	go func() {
		device, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			t.push(Event{Kind: EventError, Identifier: identifier, Err: fmt.Errorf("central: connect %s: %w", identifier, err)})
			return
		}
		t.mu.Lock()
		t.devices[identifier] = device
		t.mu.Unlock()
		// Some platforms deliver the connect through SetConnectHandler,
		// some only return it here; the session treats a repeated
		// Connected transition as an in-place update, so pushing in
		// both paths is safe.
		t.push(Event{Kind: EventStateChanged, Identifier: identifier, State: StateConnected})
	}()
	return nil
}

func (t *BluetoothTransport) Disconnect(identifier string) error {
	t.mu.Lock()
	device, ok := t.devices[identifier]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("central: disconnect %s: not connected", identifier)
	}
	go func() {
		if err := device.Disconnect(); err != nil {
			t.push(Event{Kind: EventError, Identifier: identifier, Err: fmt.Errorf("central: disconnect %s: %w", identifier, err)})
			return
		}
		// The adapter connect handler reports the resulting
		// Disconnected transition.
	}()
	return nil
}

// push delivers an event without ever blocking the radio callback. A
// full channel drops the event and counts it; discovery streams are
// duplicate-prone, so a dropped advertisement is recoverable.
func (t *BluetoothTransport) push(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.mu.Lock()
		t.dropped++
		n := t.dropped
		t.mu.Unlock()
		t.log.Warn("event buffer full, dropping event", "kind", ev.Kind, "peripheral", ev.Identifier, "dropped_total", n)
	}
}

// Dropped returns the number of events discarded due to a full buffer.
func (t *BluetoothTransport) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Compile-time check that BluetoothTransport implements Transport.
var _ Transport = (*BluetoothTransport)(nil)
