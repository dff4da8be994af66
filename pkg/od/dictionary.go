package od

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Dictionary errors. Each maps onto one SDO abort code.
var (
	ErrObjectNotFound   = errors.New("object does not exist")
	ErrSubIndexNotFound = errors.New("sub-index does not exist")
	ErrWriteOnly        = errors.New("attempt to read a write-only object")
	ErrReadOnly         = errors.New("attempt to write a read-only object")
	ErrDataTooShort     = errors.New("data length too low")
	ErrDataTooLong      = errors.New("data length too high")
	ErrValueTooLow      = errors.New("value range exceeded (min)")
	ErrValueTooHigh     = errors.New("value range exceeded (max)")
	ErrDuplicateObject  = errors.New("object already registered")
)

// Dictionary is a set of objects keyed by index.
type Dictionary struct {
	mu      sync.RWMutex
	name    string
	entries map[Index]*Entry
}

// NewDictionary creates an empty dictionary.
func NewDictionary(name string) *Dictionary {
	return &Dictionary{
		name:    name,
		entries: make(map[Index]*Entry),
	}
}

// Name returns the dictionary name.
func (d *Dictionary) Name() string {
	return d.name
}

// Add registers an object.
func (d *Dictionary) Add(e *Entry) error {
	if err := e.validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entries[e.Index]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, e.Index)
	}
	d.entries[e.Index] = e
	return nil
}

// Lookup returns the object at index.
func (d *Dictionary) Lookup(index Index) (*Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[index]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, index)
	}
	return e, nil
}

// LookupName returns the object with the given name.
func (d *Dictionary) LookupName(name string) (*Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrObjectNotFound, name)
}

// Resolve returns the object and sub-entry for addr.
func (d *Dictionary) Resolve(addr Address) (*Entry, *SubEntry, error) {
	e, err := d.Lookup(addr.Index)
	if err != nil {
		return nil, nil, err
	}
	s, ok := e.Sub(addr.Sub)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSubIndexNotFound, addr)
	}
	return e, s, nil
}

// ValidateRead checks that addr exists and is readable.
func (d *Dictionary) ValidateRead(addr Address) (*SubEntry, error) {
	_, s, err := d.Resolve(addr)
	if err != nil {
		return nil, err
	}
	if !s.Access.CanRead() {
		return nil, fmt.Errorf("%w: %s", ErrWriteOnly, addr)
	}
	return s, nil
}

// ValidateWrite checks that addr exists, is writable, and that data
// matches the layout and range of the value.
func (d *Dictionary) ValidateWrite(addr Address, data []byte) (*SubEntry, error) {
	_, s, err := d.Resolve(addr)
	if err != nil {
		return nil, err
	}
	if !s.Access.CanWrite() {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, addr)
	}
	if err := s.CheckWrite(data); err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}
	return s, nil
}

// Entries returns all objects sorted by index.
func (d *Dictionary) Entries() []*Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Addresses returns every readable address, in index then sub-index order.
func (d *Dictionary) Addresses() []Address {
	var out []Address
	for _, e := range d.Entries() {
		for _, s := range e.Subs {
			if !s.Access.CanRead() {
				continue
			}
			for sub := int(s.Sub); sub <= int(s.Last()); sub++ {
				out = append(out, Address{Index: e.Index, Sub: SubIndex(sub)})
			}
		}
	}
	return out
}

// Len returns the number of objects.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
