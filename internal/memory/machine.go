package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNoActiveMachine = errors.New("memory: no active machine")
	ErrUnmapped        = errors.New("memory: address not mapped")
	ErrReadOnly        = errors.New("memory: region is read-only")
	ErrInvalidWidth    = errors.New("memory: invalid access width")
	ErrOverlap         = errors.New("memory: region overlaps existing mapping")
	ErrInvalidRegion   = errors.New("memory: invalid region")
)

// Region describes one mapped range of the emulated address space.
type Region struct {
	Name     string `json:"name"`
	Base     uint32 `json:"base"`
	Size     uint32 `json:"size"`
	ReadOnly bool   `json:"read_only"`
}

func (r Region) end() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

func (r Region) contains(address uint32, n int) bool {
	a := uint64(address)
	return a >= uint64(r.Base) && a+uint64(n) <= r.end()
}

func (r Region) overlaps(o Region) bool {
	return uint64(r.Base) < o.end() && uint64(o.Base) < r.end()
}

type mapping struct {
	Region
	data []byte
}

// Machine is a guest address space that can be loaded and unloaded.
// Reads and writes fail with ErrNoActiveMachine while it is unloaded.
type Machine struct {
	mu      sync.RWMutex
	order   binary.ByteOrder
	regions []*mapping
	active  bool
}

// NewMachine returns an unloaded machine storing values in order. A nil
// order selects little-endian.
func NewMachine(order binary.ByteOrder) *Machine {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Machine{order: order}
}

// Map adds a zero-filled region.
func (m *Machine) Map(r Region) error {
	if r.Size == 0 {
		return fmt.Errorf("%w: %q has zero size", ErrInvalidRegion, r.Name)
	}
	if r.end() > 1<<32 {
		return fmt.Errorf("%w: %q exceeds 32-bit address space", ErrInvalidRegion, r.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mm := range m.regions {
		if mm.overlaps(r) {
			return fmt.Errorf("%w: %q and %q", ErrOverlap, r.Name, mm.Name)
		}
	}
	m.regions = append(m.regions, &mapping{Region: r, data: make([]byte, r.Size)})
	sort.Slice(m.regions, func(i, j int) bool {
		return m.regions[i].Base < m.regions[j].Base
	})
	return nil
}

// Regions lists mapped regions ordered by base address.
func (m *Machine) Regions() []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Region, 0, len(m.regions))
	for _, mm := range m.regions {
		out = append(out, mm.Region)
	}
	return out
}

// Load marks the machine active. Memory contents survive Unload/Load.
func (m *Machine) Load() {
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
}

func (m *Machine) Unload() {
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
}

func (m *Machine) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// ByteOrderName reports the guest byte order for status views.
func (m *Machine) ByteOrderName() string {
	return strings.TrimSuffix(strings.ToLower(m.order.String()), "endian") + "-endian"
}

// Read loads a width-byte value at address in guest byte order.
func (m *Machine) Read(width int, address uint32) (uint64, error) {
	if !validWidth(width) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.slice(address, width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(m.order.Uint16(b)), nil
	case 4:
		return uint64(m.order.Uint32(b)), nil
	default:
		return m.order.Uint64(b), nil
	}
}

// Write stores the low width bytes of value at address in guest byte order.
func (m *Machine) Write(width int, address uint32, value uint64) error {
	if !validWidth(width) {
		return fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, err := m.find(address, width)
	if err != nil {
		return err
	}
	if mm.ReadOnly {
		return fmt.Errorf("%w: %q at %#08x", ErrReadOnly, mm.Name, address)
	}
	b := mm.data[address-mm.Base:]
	switch width {
	case 1:
		b[0] = byte(value)
	case 2:
		m.order.PutUint16(b, uint16(value))
	case 4:
		m.order.PutUint32(b, uint32(value))
	default:
		m.order.PutUint64(b, value)
	}
	return nil
}

// Snapshot copies n raw bytes starting at address.
func (m *Machine) Snapshot(address uint32, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidWidth, n)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.slice(address, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// LoadImage copies raw bytes into mapped memory, ignoring read-only
// protection so ROM regions can be seeded.
func (m *Machine) LoadImage(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mm := range m.regions {
		if mm.contains(address, len(data)) {
			copy(mm.data[address-mm.Base:], data)
			return nil
		}
	}
	return fmt.Errorf("%w: %#08x+%d", ErrUnmapped, address, len(data))
}

func (m *Machine) slice(address uint32, n int) ([]byte, error) {
	mm, err := m.find(address, n)
	if err != nil {
		return nil, err
	}
	off := address - mm.Base
	return mm.data[off : off+uint32(n)], nil
}

func (m *Machine) find(address uint32, n int) (*mapping, error) {
	if !m.active {
		return nil, ErrNoActiveMachine
	}
	for _, mm := range m.regions {
		if mm.contains(address, n) {
			return mm, nil
		}
	}
	return nil, fmt.Errorf("%w: %#08x+%d", ErrUnmapped, address, n)
}

func validWidth(width int) bool {
	switch width {
	case 1, 2, 4, 8:
		return true
	}
	return false
}
