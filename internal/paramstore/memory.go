package paramstore

import (
	"sync"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// Memory is an in-process parameter store. It starts at factory defaults.
//
// Thread Safety: All methods are safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	values   [gear.ParamCount]byte
	defaults [gear.ParamCount]byte
	bank0    []byte
	bank1    []byte
}

// NewMemory creates a store for the device described by id.
//
// Returns:
//   - *Memory: store holding factory defaults and erased OEM data
//   - error: ErrInvalidIdentity if id fails validation
func NewMemory(id Identity) (*Memory, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	m := &Memory{
		defaults: Defaults(id),
		bank0:    newBank0(id),
		bank1:    newBank1(),
	}
	m.values = m.defaults
	return m, nil
}

// Get implements gear.ParameterStore.
func (m *Memory) Get(id gear.ParamID) byte {
	if !id.Valid() {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[id]
}

// Put implements gear.ParameterStore.
func (m *Memory) Put(id gear.ParamID, value byte) {
	if !id.Valid() {
		return
	}
	m.mu.Lock()
	m.values[id] = value
	m.mu.Unlock()
}

// Default implements gear.ParameterStore.
func (m *Memory) Default(id gear.ParamID) byte {
	if !id.Valid() {
		return 0
	}
	return m.defaults[id]
}

// ReadMemory implements gear.ParameterStore.
func (m *Memory) ReadMemory(bank, addr byte) (byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch bank {
	case 0:
		return readBank(m.bank0, 0, addr)
	case 1:
		return readBank(m.bank1, 1, addr)
	default:
		return 0, false
	}
}

// WriteMemory implements gear.ParameterStore. Only bank 1 is writable.
func (m *Memory) WriteMemory(bank, addr, value byte) bool {
	if bank != 1 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !bank1Writable(m.bank1, addr) {
		return false
	}
	m.bank1[addr] = value
	return true
}

// ResetMemory implements gear.ParameterStore.
func (m *Memory) ResetMemory(bank byte) {
	m.resetMemory(bank)
}

// resetMemory reports whether the bank content changed.
func (m *Memory) resetMemory(bank byte) bool {
	if bank != 1 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return resetBank1(m.bank1)
}

// Values returns a copy of all current parameter values.
func (m *Memory) Values() [gear.ParamCount]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values
}

// Bank returns a copy of a memory bank, or nil if it is not implemented.
func (m *Memory) Bank(number byte) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch number {
	case 0:
		return append([]byte(nil), m.bank0...)
	case 1:
		return append([]byte(nil), m.bank1...)
	default:
		return nil
	}
}

// restore replaces values and writable banks with persisted content.
func (m *Memory) restore(values map[gear.ParamID]byte, bank1 []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range values {
		if id.Valid() {
			m.values[id] = v
		}
	}
	if len(bank1) == len(m.bank1) {
		// The size byte at location 0 is not persisted state.
		copy(m.bank1[1:], bank1[1:])
	}
}
