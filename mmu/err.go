package mmu

import (
	"errors"

	"github.com/ezrec/simco/translate"
)

var f = translate.From

var (
	ErrOutOfMemory      = errors.New(f("out of memory"))
	ErrAllocationFailed = errors.New(f("no contiguous free range"))
	ErrDoubleFree       = errors.New(f("double free or invalid range"))
	ErrOutOfBounds      = errors.New(f("out of bounds"))
	ErrUnallocated      = errors.New(f("address not allocated"))
)

// ErrRange annotates an MMU error with the range that was requested.
type ErrRange struct {
	Start int
	Size  int
	Err   error
}

func (err *ErrRange) Error() string {
	return f("range 0x%x+%d %v", err.Start, err.Size, err.Err)
}

func (err *ErrRange) Unwrap() error {
	return err.Err
}
