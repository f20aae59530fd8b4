// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package machine

import (
	"context"
	"log"

	"github.com/ezrec/simco/cpu"
)

// Core runs a program out of a CPU's instruction memory.
//
// The CPU has no program counter of its own; the core owns it. Jump
// targets are relative to Start, the address the program was loaded at.
type Core struct {
	Verbose  bool
	Cpu      *cpu.Cpu
	Program  *cpu.Program // Listing of the loaded program, if any.
	Pc       int          // Address of the next instruction.
	Start    int          // Load address of the program.
	End      int          // One past the last program word.
	MaxTicks int          // Instructions allowed per run, 0 for no limit.
	Ticks    int          // Instructions executed since Restart.
}

// NewCore creates a core around an existing CPU, sharing its verbosity.
func NewCore(cp *cpu.Cpu) *Core {
	return &Core{
		Verbose: cp.Verbose,
		Cpu:     cp,
		End:     len(cp.Memory),
	}
}

// SetVerbose sets the verbosity of the core and its CPU.
func (core *Core) SetVerbose(verbose bool) {
	core.Verbose = verbose
	core.Cpu.Verbose = verbose
}

// Restart sets the program counter back to the load address.
func (core *Core) Restart() {
	core.Pc = core.Start
	core.Ticks = 0
}

// LineNo returns the source line of the instruction at the program counter.
func (core *Core) LineNo() int {
	if core.Program == nil {
		return 0
	}

	dbg := core.Program.Debug(core.Pc - core.Start)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick executes the instruction at the program counter.
// done is set when the program counter reaches a halt word, or runs off
// the end of the program.
func (core *Core) Tick() (done bool, err error) {
	pc := core.Pc
	lineno := core.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	if core.Pc >= core.End || core.Pc >= len(core.Cpu.Memory) {
		done = true
		return
	}

	code, err := core.Cpu.Fetch(core.Pc)
	if err != nil {
		return
	}

	if code == cpu.CODE_HALT {
		done = true
		return
	}

	if core.MaxTicks > 0 && core.Ticks >= core.MaxTicks {
		err = ErrTickLimit
		return
	}

	target, jump, err := core.Cpu.Execute(code)
	if err != nil {
		return
	}

	core.Ticks++

	if jump {
		core.Pc = core.Start + target
		if core.Verbose {
			log.Printf("core: jump 0x%x => 0x%x", pc, core.Pc)
		}
	} else {
		core.Pc++
	}

	return
}

// Run ticks the core until done, an error occurs, or ctx is cancelled.
func (core *Core) Run(ctx context.Context) (err error) {
	for {
		err = ctx.Err()
		if err != nil {
			return
		}

		var done bool
		done, err = core.Tick()
		if err != nil || done {
			return
		}
	}
}
