// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package machine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/simco/config"
	"github.com/ezrec/simco/cpu"
	"github.com/ezrec/simco/device"
	"github.com/ezrec/simco/gpu"
	"github.com/ezrec/simco/internal"
	"github.com/ezrec/simco/mmu"
)

const (
	SCRATCH_ADDR = 0  // MMU and instruction address used by Exec.
	WORD_BITS    = 32 // Bits shown per register by DrawRegisters.
)

var _machine_defines = map[string]string{
	"SCRATCH_ADDR": fmt.Sprintf("%d", SCRATCH_ADDR),
}

// Machine is a single core computer: CPU, MMU, frame buffer and devices.
type Machine struct {
	Verbose bool

	Cpu       *cpu.Cpu
	Mmu       *mmu.Mmu
	Gpu       *gpu.Gpu
	Floppy    *device.Floppy
	HardDrive *device.HardDrive
	Network   *device.Network

	Core *Core
}

// NewMachine creates a machine shaped by cfg.
// The scratch word used by Exec is reserved in the MMU, so no program is
// ever loaded over it.
func NewMachine(cfg config.Config) (mach *Machine, err error) {
	err = cfg.Validate()
	if err != nil {
		return
	}

	mem := mmu.NewMmu(cfg.Mmu.Size)
	cp := cpu.NewCpu(cfg.Cpu.Memory)

	mach = &Machine{
		Verbose:   cfg.Verbose,
		Cpu:       cp,
		Mmu:       mem,
		Gpu:       gpu.NewGpu(cfg.Gpu.Width, cfg.Gpu.Height),
		Floppy:    device.NewFloppy(mem),
		HardDrive: device.NewHardDrive(mem),
		Network:   device.NewNetwork("net0", mem),
		Core:      NewCore(cp),
	}
	mach.Core.MaxTicks = cfg.Cpu.MaxTicks
	mach.SetVerbose(cfg.Verbose)

	// A fresh MMU always places the first reservation at SCRATCH_ADDR.
	_, err = mem.Allocate(1)
	if err != nil {
		mach = nil
		return
	}

	return
}

// SetVerbose sets the verbosity of the machine and all its parts.
func (mach *Machine) SetVerbose(verbose bool) {
	mach.Verbose = verbose
	mach.Core.SetVerbose(verbose)
	mach.Mmu.Verbose = verbose
	mach.Floppy.Verbose = verbose
	mach.HardDrive.Verbose = verbose
	mach.Network.Verbose = verbose
}

// Defines returns an iterator over all of the defines.
func (mach *Machine) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_machine_defines),
		mach.Cpu.Defines(),
		mach.Mmu.Defines(),
	)
}

// Assembler returns an assembler with the machine defines predefined.
func (mach *Machine) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{Verbose: mach.Verbose}
	for key, value := range mach.Defines() {
		asm.Predefine(key, value)
	}

	return
}

// Exec runs a single instruction word through the scratch address.
func (mach *Machine) Exec(word cpu.Code) (target int, jump bool, err error) {
	return mach.Cpu.Run(word)
}

// LoadProgram reserves space for prog through the floppy drive, copies
// it into instruction memory, and applies its register presets.
func (mach *Machine) LoadProgram(prog *cpu.Program) (err error) {
	words := prog.Binary()

	start, err := mach.Floppy.Load("program", len(words))
	if err != nil {
		return
	}

	err = mach.Cpu.Load(start, words)
	if err != nil {
		err = errors.Join(err, mach.Floppy.Unload())
		return
	}

	prog.Apply(mach.Cpu)

	core := mach.Core
	core.Program = prog
	core.Start = start
	core.End = start + len(words)
	core.Restart()

	if mach.Verbose {
		log.Printf("machine: program loaded at 0x%x+%d", start, len(words))
	}

	return
}

// UnloadProgram clears the program from instruction memory and releases
// its reservation.
func (mach *Machine) UnloadProgram() (err error) {
	core := mach.Core
	if core.Program == nil {
		err = ErrNoProgram
		return
	}

	err = mach.Floppy.Unload()
	if err != nil {
		return
	}

	clear(mach.Cpu.Memory[core.Start:core.End])

	core.Program = nil
	core.Start = 0
	core.End = 0
	core.Pc = 0

	return
}

// Boot assembles the source held in a hard drive partition and loads it
// as the current program.
func (mach *Machine) Boot(partition string) (err error) {
	start, err := mach.HardDrive.Load(partition)
	if err != nil {
		return
	}

	source := make([]byte, mach.HardDrive.Size)
	err = mach.Mmu.Read(start, source)

	// The partition must be released before the program is loaded.
	unload_err := mach.HardDrive.Unload()
	if err != nil {
		return
	}
	if unload_err != nil {
		err = unload_err
		return
	}

	prog, err := mach.Assembler().Parse(bytes.NewReader(source))
	if err != nil {
		return
	}

	err = mach.LoadProgram(prog)
	return
}

// Tick performs a single tick of the current program.
func (mach *Machine) Tick() (done bool, err error) {
	if mach.Core.Program == nil {
		err = ErrNoProgram
		return
	}

	return mach.Core.Tick()
}

// Run the current program until it halts, fails, or ctx is cancelled.
func (mach *Machine) Run(ctx context.Context) (err error) {
	if mach.Core.Program == nil {
		err = ErrNoProgram
		return
	}

	return mach.Core.Run(ctx)
}

// DrawRegisters renders the register file on the frame buffer: one row
// per register, most significant bit on the left.
func (mach *Machine) DrawRegisters(set, unset gpu.Color) {
	for reg, value := range mach.Cpu.Register {
		for bit := range WORD_BITS {
			color := unset
			if (uint32(value)>>(WORD_BITS-1-bit))&1 != 0 {
				color = set
			}
			mach.Gpu.DrawPixel(bit, reg, color)
		}
	}
}

// Close releases the program, if any.
func (mach *Machine) Close() (err error) {
	if mach.Core.Program != nil {
		err = mach.UnloadProgram()
	}

	return
}
