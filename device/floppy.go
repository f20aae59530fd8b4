package device

import (
	"errors"
	"io"
)

// Floppy holds a single file in memory at a time.
type Floppy struct {
	Verbose bool
	Mmu     Allocator
	Reservation
}

// NewFloppy creates an empty floppy drive reserving from mmu.
func NewFloppy(mmu Allocator) *Floppy {
	return &Floppy{Mmu: mmu}
}

// Load reserves size bytes for the named file.
func (fd *Floppy) Load(name string, size int) (start int, err error) {
	err = fd.Reservation.load(fd.Mmu, name, size, fd.Verbose)
	if err != nil {
		err = &ErrDevice{Device: "floppy", Err: err}
		return
	}

	start = fd.Start
	return
}

// LoadImage reads a whole file image, reserves space for it, and copies
// it into memory.
func (fd *Floppy) LoadImage(name string, image io.Reader) (start int, err error) {
	data, err := io.ReadAll(image)
	if err != nil {
		err = &ErrDevice{Device: "floppy", Err: err}
		return
	}

	start, err = fd.Load(name, len(data))
	if err != nil {
		return
	}

	err = fd.Mmu.Write(start, data)
	if err != nil {
		// Leave the drive empty rather than holding a partial image.
		err = errors.Join(err, fd.Reservation.unload(fd.Mmu, fd.Verbose))
		err = &ErrDevice{Device: "floppy", Err: err}
		return
	}

	return
}

// Unload releases the file's memory.
func (fd *Floppy) Unload() (err error) {
	err = fd.Reservation.unload(fd.Mmu, fd.Verbose)
	if err != nil {
		err = &ErrDevice{Device: "floppy", Err: err}
	}
	return
}
