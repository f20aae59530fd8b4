// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package machine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/ezrec/simco/config"
	"github.com/ezrec/simco/cpu"
	"github.com/ezrec/simco/device"
	"github.com/ezrec/simco/mmu"
)

// Mimd is a multi-core processor: each core has its own CPU, and every
// program is reserved from one shared MMU.
type Mimd struct {
	Verbose bool
	Mmu     *mmu.Mmu
	Cores   []*Core

	drives []*device.Floppy
}

// NewMimd creates a multi-core processor shaped by cfg, sharing mem.
func NewMimd(cfg config.Config, mem *mmu.Mmu) (mimd *Mimd, err error) {
	err = cfg.Validate()
	if err != nil {
		return
	}

	mimd = &Mimd{
		Verbose: cfg.Verbose,
		Mmu:     mem,
	}

	for range cfg.Cpu.Cores {
		core := NewCore(cpu.NewCpu(cfg.Cpu.Memory))
		core.SetVerbose(cfg.Verbose)
		core.MaxTicks = cfg.Cpu.MaxTicks
		mimd.Cores = append(mimd.Cores, core)

		drive := device.NewFloppy(mem)
		drive.Verbose = cfg.Verbose
		mimd.drives = append(mimd.drives, drive)
	}

	return
}

// LoadPrograms loads one program per core, in order. Each program is
// reserved from the shared MMU, so no two programs overlap. On failure,
// every program already loaded is released.
func (mimd *Mimd) LoadPrograms(progs []*cpu.Program) (err error) {
	if len(progs) > len(mimd.Cores) {
		err = ErrTooManyPrograms
		return
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, mimd.UnloadPrograms())
		}
	}()

	for n, prog := range progs {
		core := mimd.Cores[n]
		drive := mimd.drives[n]
		words := prog.Binary()

		var start int
		start, err = drive.Load(fmt.Sprintf("core%d", n), len(words))
		if err != nil {
			err = &ErrCore{Core: n, Err: err}
			return
		}

		err = core.Cpu.Load(start, words)
		if err != nil {
			err = &ErrCore{Core: n, Err: errors.Join(err, drive.Unload())}
			return
		}

		prog.Apply(core.Cpu)

		core.Program = prog
		core.Start = start
		core.End = start + len(words)
		core.Restart()

		if mimd.Verbose {
			log.Printf("mimd: core %d program at 0x%x+%d", n, start, len(words))
		}
	}

	return
}

// UnloadPrograms releases every loaded program.
func (mimd *Mimd) UnloadPrograms() (err error) {
	for n, core := range mimd.Cores {
		drive := mimd.drives[n]
		if !drive.Loaded() {
			continue
		}

		clear(core.Cpu.Memory[core.Start:core.End])
		core.Program = nil

		err = errors.Join(err, drive.Unload())
	}

	return
}

// Run every loaded core concurrently until all halt. The first error
// cancels the remaining cores.
func (mimd *Mimd) Run(ctx context.Context) (err error) {
	group, ctx := errgroup.WithContext(ctx)

	for n, core := range mimd.Cores {
		if core.Program == nil {
			continue
		}

		group.Go(func() (err error) {
			err = core.Run(ctx)
			if err != nil {
				err = &ErrCore{Core: n, Err: err}
			}
			return
		})
	}

	err = group.Wait()
	return
}
