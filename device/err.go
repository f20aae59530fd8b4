package device

import (
	"errors"

	"github.com/ezrec/simco/translate"
)

var f = translate.From

var (
	// Reservation errors
	ErrLoaded = errors.New(f("device already loaded"))
	ErrEmpty  = errors.New(f("device not loaded"))

	// Device errors
	ErrPartition    = errors.New(f("partition unknown"))
	ErrNotConnected = errors.New(f("destination not connected"))
)

// ErrDevice annotates an error with the device it came from.
type ErrDevice struct {
	Device string
	Err    error
}

func (err *ErrDevice) Error() string {
	return f("%v: %v", err.Device, err.Err)
}

func (err *ErrDevice) Unwrap() error {
	return err.Err
}
