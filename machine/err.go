package machine

import (
	"errors"

	"github.com/ezrec/simco/translate"
)

var f = translate.From

var (
	ErrTickLimit       = errors.New(f("tick limit exceeded"))
	ErrTooManyPrograms = errors.New(f("too many programs for available cores"))
	ErrNoProgram       = errors.New(f("no program loaded"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pc     int
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo > 0 {
		return f("line %d (pc 0x%x) %v", err.LineNo, err.Pc, err.Err)
	}
	return f("pc 0x%x %v", err.Pc, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrCore indicates which core of a multi-core run failed.
type ErrCore struct {
	Core int
	Err  error
}

func (err *ErrCore) Error() string {
	return f("core %d: %v", err.Core, err.Err)
}

func (err *ErrCore) Unwrap() error {
	return err.Err
}
