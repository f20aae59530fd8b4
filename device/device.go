// Package device provides the storage and network devices of the simco
// system. Devices do not own memory: each reserves ranges from an MMU
// through the Allocator interface, holding at most one reservation at a time.
package device

import (
	"log"
)

// Allocator is the MMU surface used by devices.
type Allocator interface {
	// Allocate reserves size contiguous bytes.
	Allocate(size int) (start int, err error)
	// Deallocate releases a range previously returned by Allocate.
	Deallocate(start, size int) error
	// Write copies data into an allocated range.
	Write(start int, data []byte) error
	// Read copies an allocated range into data.
	Read(start int, data []byte) error
}

// State is the reservation state of a device.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_EMPTY  = State(0) // empty
	STATE_LOADED = State(1) // loaded
)

// Reservation is the single outstanding MMU range held by a device.
// It only changes state through load and unload.
type Reservation struct {
	State State
	Name  string // Name of what is loaded.
	Start int
	Size  int
}

// Loaded returns true if a reservation is held.
func (rsv *Reservation) Loaded() bool {
	return rsv.State == STATE_LOADED
}

// load reserves size bytes from alloc under name.
func (rsv *Reservation) load(alloc Allocator, name string, size int, verbose bool) (err error) {
	if rsv.State == STATE_LOADED {
		err = ErrLoaded
		return
	}

	start, err := alloc.Allocate(size)
	if err != nil {
		return
	}

	*rsv = Reservation{
		State: STATE_LOADED,
		Name:  name,
		Start: start,
		Size:  size,
	}

	if verbose {
		log.Printf("device: load %v at 0x%x+%d", name, start, size)
	}

	return
}

// unload releases the exact range reserved by load.
func (rsv *Reservation) unload(alloc Allocator, verbose bool) (err error) {
	if rsv.State == STATE_EMPTY {
		err = ErrEmpty
		return
	}

	err = alloc.Deallocate(rsv.Start, rsv.Size)
	if err != nil {
		return
	}

	if verbose {
		log.Printf("device: unload %v from 0x%x+%d", rsv.Name, rsv.Start, rsv.Size)
	}

	*rsv = Reservation{}

	return
}
