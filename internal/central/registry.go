package central

import "errors"

// Registry error taxonomy. Callers match with errors.Is.
var (
	// ErrDuplicateIdentifier is returned by Add when the identifier is
	// already tracked. The existing record is left untouched; callers
	// wanting upsert semantics check Find first, as the discovery path
	// does.
	ErrDuplicateIdentifier = errors.New("central: duplicate peripheral identifier")
	// ErrIndexOutOfRange is returned by index-addressed operations when
	// the index is beyond the current registry bounds.
	ErrIndexOutOfRange = errors.New("central: peripheral index out of range")
)

// Registry is an ordered collection of peripherals. Insertion order is
// preserved and indices are dense, so callers may address records by
// position as well as by identifier; removal shifts later indices down.
//
// Registry does no locking of its own. All mutation is expected to
// happen from a single writer; Session serializes its own access with
// one mutex and is the intended owner.
type Registry struct {
	peripherals []*Peripheral
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of tracked peripherals.
func (r *Registry) Len() int {
	return len(r.peripherals)
}

// Add appends p to the registry. It fails with ErrDuplicateIdentifier
// if a record with the same identifier is already present.
func (r *Registry) Add(p *Peripheral) error {
	if r.Find(p.Identifier) != nil {
		return ErrDuplicateIdentifier
	}
	r.peripherals = append(r.peripherals, p)
	return nil
}

// Find returns the record with the given identifier, or nil if absent.
func (r *Registry) Find(identifier string) *Peripheral {
	for _, p := range r.peripherals {
		if p.Identifier == identifier {
			return p
		}
	}
	return nil
}

// At returns the record at index i.
func (r *Registry) At(i int) (*Peripheral, error) {
	if i < 0 || i >= len(r.peripherals) {
		return nil, ErrIndexOutOfRange
	}
	return r.peripherals[i], nil
}

// RemoveAt removes the record at index i, shifting later records down.
func (r *Registry) RemoveAt(i int) error {
	if i < 0 || i >= len(r.peripherals) {
		return ErrIndexOutOfRange
	}
	r.peripherals = append(r.peripherals[:i], r.peripherals[i+1:]...)
	return nil
}

// RemoveByIdentifier removes every record matching the identifier.
// Uniqueness is an Add-enforced invariant, but removal still sweeps the
// whole sequence so a registry that was mutated behind our back heals
// here. No-op when the identifier is absent.
func (r *Registry) RemoveByIdentifier(identifier string) {
	kept := r.peripherals[:0]
	for _, p := range r.peripherals {
		if p.Identifier != identifier {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(r.peripherals); i++ {
		r.peripherals[i] = nil
	}
	r.peripherals = kept
}

// Snapshot returns a copy of the current record pointers in order.
// The slice is the caller's; the records are still live.
func (r *Registry) Snapshot() []*Peripheral {
	out := make([]*Peripheral, len(r.peripherals))
	copy(out, r.peripherals)
	return out
}
