package central

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmoread/blecentral/internal/store"
)

// ScanState is the scan lifecycle state of a session.
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanActive
	ScanStopped
)

// String returns the lowercase state name, for logs.
func (s ScanState) String() string {
	switch s {
	case ScanIdle:
		return "idle"
	case ScanActive:
		return "scanning"
	case ScanStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Observer receives session notifications. Implementations are held
// without ownership: the session runs the same with or without one,
// and a nil observer is legal.
type Observer interface {
	// PeripheralFound is called after each accepted discovery event,
	// once the registry reflects it.
	PeripheralFound(p *Peripheral)
	// PeripheralStateChanged is called when the transport confirms a
	// connection state transition.
	PeripheralStateChanged(p *Peripheral, state ConnState)
	// TransportFailed is called on transport-reported errors. The
	// identifier is empty for failures not tied to one peripheral.
	TransportFailed(identifier string, err error)
}

// FoundHandler is the session's extension point: invoked exactly once
// per accepted discovery event, after the registry has been updated.
// A specialized session hangs auto-connect or similar policy here.
type FoundHandler func(p *Peripheral)

// SessionOptions configures a Session.
type SessionOptions struct {
	// KnownNames is the advertised-name allow-list. Empty accepts all.
	KnownNames []string
	// ServiceUUIDs narrows the transport scan. Empty scans everything.
	ServiceUUIDs []string
	// Observer receives notifications; may be nil.
	Observer Observer
	// OnFound is the discovery hook; may be nil.
	OnFound FoundHandler
	// Store persists peripheral identities; may be nil, in which case
	// PersistPeripherals and LoadPeripherals fail.
	Store store.Store
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Session owns one BLE central-role scanning session: the scan state
// machine, the known-name filter, and the peripheral registry. Events
// from the transport are consumed by a single goroutine in arrival
// order; the public API serializes against it with one mutex, so the
// registry itself needs no locking.
type Session struct {
	id        string
	transport Transport
	filter    *NameFilter
	services  []string
	observer  Observer
	onFound   FoundHandler
	store     store.Store
	log       *slog.Logger

	mu       sync.Mutex
	registry *Registry
	state    ScanState

	startOnce sync.Once
	closeOnce sync.Once
	started   bool
	done      chan struct{}
	loopDone  chan struct{}
}

// NewSession creates a session over the given transport. The known-name
// filter is fixed for the session's lifetime. Call Start to begin
// consuming transport events.
func NewSession(transport Transport, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		transport: transport,
		filter:    NewNameFilter(opts.KnownNames),
		services:  opts.ServiceUUIDs,
		observer:  opts.Observer,
		onFound:   opts.OnFound,
		store:     opts.Store,
		log:       logger.With("session", id),
		registry:  NewRegistry(),
		state:     ScanIdle,
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
}

// ID returns the session's instance id, as used in its log lines.
func (s *Session) ID() string { return s.id }

// Start launches the event loop. Safe to call once; later calls are
// no-ops.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()
		go s.eventLoop()
	})
}

// Close stops the event loop. It does not stop an active scan; call
// StopScan first if the transport should quiesce.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.loopDone
		}
	})
}

// StartScan transitions the session to scanning and issues the
// transport scan-start with the configured service filter. Calling it
// while already scanning is a no-op: the transport is never issued a
// duplicate start. A transport failure leaves the state unchanged.
func (s *Session) StartScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ScanActive {
		return nil
	}
	if err := s.transport.StartScan(s.services); err != nil {
		return fmt.Errorf("central: start scan: %w", err)
	}
	s.state = ScanActive
	s.log.Info("scan started", "services", len(s.services), "filter_open", s.filter.Open())
	return nil
}

// StopScan stops an active scan. Discovery events already in flight may
// still be delivered and applied afterwards; that race is tolerated by
// design. No-op unless scanning.
func (s *Session) StopScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ScanActive {
		return nil
	}
	if err := s.transport.StopScan(); err != nil {
		return fmt.Errorf("central: stop scan: %w", err)
	}
	s.state = ScanStopped
	s.log.Info("scan stopped", "tracked", s.registry.Len())
	return nil
}

// IsScanning reports whether the session is currently scanning.
func (s *Session) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == ScanActive
}

// IsKnownPeripheral reports whether the advertised name passes the
// session's known-name filter.
func (s *Session) IsKnownPeripheral(name string) bool {
	return s.filter.Accepts(name)
}

// Count returns the number of tracked peripherals.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Len()
}

// PeripheralAt returns the tracked peripheral at index i.
func (s *Session) PeripheralAt(i int) (*Peripheral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.At(i)
}

// AddPeripheral inserts a peripheral directly, bypassing the filter.
// Fails with ErrDuplicateIdentifier if the identifier is tracked.
func (s *Session) AddPeripheral(p *Peripheral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Add(p)
}

// RemovePeripheral removes every record with p's identifier.
func (s *Session) RemovePeripheral(p *Peripheral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.RemoveByIdentifier(p.Identifier)
}

// RemovePeripheralAt removes the record at index i.
func (s *Session) RemovePeripheralAt(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.RemoveAt(i)
}

// FindPeripheral returns the tracked peripheral with the given
// identifier, or nil if absent.
func (s *Session) FindPeripheral(identifier string) *Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Find(identifier)
}

// ConnectPeripheral submits a connect request for the peripheral at
// index i. The record moves to StateConnecting immediately; the
// transport's confirmation arrives later as a state-change event. A
// submission failure reverts the record to StateDisconnected.
func (s *Session) ConnectPeripheral(i int) error {
	return s.requestTransition(i, StateConnecting, s.transport.Connect)
}

// DisconnectPeripheral submits a disconnect request for the peripheral
// at index i, mirroring ConnectPeripheral.
func (s *Session) DisconnectPeripheral(i int) error {
	return s.requestTransition(i, StateDisconnecting, s.transport.Disconnect)
}

func (s *Session) requestTransition(i int, optimistic ConnState, call func(string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.registry.At(i)
	if err != nil {
		return err
	}
	prev := p.State
	p.State = optimistic
	if err := call(p.Identifier); err != nil {
		// The request never reached the radio; the optimistic state
		// would otherwise stick forever.
		p.State = StateDisconnected
		s.log.Warn("transport request failed", "peripheral", p.Identifier, "wanted", optimistic.String(), "error", err)
		return fmt.Errorf("central: %s %s: %w", optimistic, p.Identifier, err)
	}
	s.log.Debug("transition requested", "peripheral", p.Identifier, "from", prev.String(), "to", optimistic.String())
	return nil
}

// PersistPeripherals snapshots the identities of all tracked
// peripherals to the configured store. The snapshot is copied under the
// session lock before serialization, so concurrent mutation cannot tear
// it. Registry state is unaffected by a persistence failure.
func (s *Session) PersistPeripherals() error {
	if s.store == nil {
		return fmt.Errorf("central: persist peripherals: no store configured")
	}
	s.mu.Lock()
	records := s.registry.Snapshot()
	identities := make([]store.Identity, len(records))
	for i, p := range records {
		identities[i] = store.Identity{Identifier: p.Identifier, Name: p.Name}
	}
	s.mu.Unlock()

	if err := s.store.Persist(identities); err != nil {
		return fmt.Errorf("central: persist peripherals: %w", err)
	}
	s.log.Info("peripherals persisted", "count", len(identities))
	return nil
}

// LoadPeripherals seeds the registry from the last persisted snapshot.
// Identifiers already tracked are left untouched; new ones enter in
// StateDisconnected, since the snapshot proves identity but not
// presence. Loading a snapshot that was never written is not an error.
func (s *Session) LoadPeripherals() error {
	if s.store == nil {
		return fmt.Errorf("central: load peripherals: no store configured")
	}
	identities, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("central: load peripherals: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for _, id := range identities {
		if s.registry.Find(id.Identifier) != nil {
			continue
		}
		p := &Peripheral{
			Identifier: id.Identifier,
			Name:       id.Name,
			State:      StateDisconnected,
		}
		if err := s.registry.Add(p); err != nil {
			// Unreachable given the Find check, but never drop it
			// silently if the snapshot carried duplicates.
			s.log.Warn("skipping persisted duplicate", "peripheral", id.Identifier)
			continue
		}
		loaded++
	}
	s.log.Info("peripherals loaded", "loaded", loaded, "snapshot", len(identities))
	return nil
}

// eventLoop drains the transport event stream. It is the only
// goroutine that applies transport events, which together with the
// session mutex gives every registry update a single serialized writer.
func (s *Session) eventLoop() {
	defer close(s.loopDone)
	events := s.transport.Events()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				s.log.Info("transport event stream closed")
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev Event) {
	switch ev.Kind {
	case EventDiscovered:
		s.handleDiscovered(ev)
	case EventStateChanged:
		s.handleStateChanged(ev)
	case EventError:
		s.handleTransportError(ev)
	}
}

// handleDiscovered applies one discovery event: filter, upsert, then
// the found hook. Events that slip in after StopScan are applied like
// any other; stopping the scan is advisory for in-flight deliveries.
func (s *Session) handleDiscovered(ev Event) {
	if !s.filter.Accepts(ev.Name) {
		s.log.Debug("discovery rejected by filter", "peripheral", ev.Identifier, "name", ev.Name)
		return
	}

	s.mu.Lock()
	p := s.registry.Find(ev.Identifier)
	if p == nil {
		p = NewPeripheral(ev.Identifier, ev.Name)
		p.RSSI = ev.RSSI
		if err := s.registry.Add(p); err != nil {
			// Cannot happen after a miss on Find; log rather than lose it.
			s.mu.Unlock()
			s.log.Error("discovery insert failed", "peripheral", ev.Identifier, "error", err)
			return
		}
		s.log.Info("peripheral discovered", "peripheral", ev.Identifier, "name", ev.Name, "rssi", ev.RSSI)
	} else {
		// Rediscovery: refresh in place, never duplicate.
		if ev.Name != "" {
			p.Name = ev.Name
		}
		p.LastSeen = nowFunc()
		p.RSSI = ev.RSSI
	}
	s.mu.Unlock()

	// Hook and observer run outside the lock: both may call back into
	// the session (auto-connect does).
	if s.onFound != nil {
		s.onFound(p)
	}
	if s.observer != nil {
		s.observer.PeripheralFound(p)
	}
}

func (s *Session) handleStateChanged(ev Event) {
	s.mu.Lock()
	p := s.registry.Find(ev.Identifier)
	if p == nil {
		s.mu.Unlock()
		s.log.Warn("state change for untracked peripheral", "peripheral", ev.Identifier, "state", ev.State.String())
		return
	}
	p.State = ev.State
	s.mu.Unlock()

	s.log.Info("peripheral state changed", "peripheral", ev.Identifier, "state", ev.State.String())
	if s.observer != nil {
		s.observer.PeripheralStateChanged(p, ev.State)
	}
}

// handleTransportError records a transport failure. The affected
// record, if any, regresses to StateDisconnected; the session itself
// stays usable and a scan can simply be retried.
func (s *Session) handleTransportError(ev Event) {
	if ev.Identifier != "" {
		s.mu.Lock()
		if p := s.registry.Find(ev.Identifier); p != nil {
			p.State = StateDisconnected
		}
		s.mu.Unlock()
	}
	s.log.Warn("transport error", "peripheral", ev.Identifier, "error", ev.Err)
	if s.observer != nil {
		s.observer.TransportFailed(ev.Identifier, ev.Err)
	}
}

// nowFunc is swapped in tests that assert LastSeen updates.
var nowFunc = time.Now
