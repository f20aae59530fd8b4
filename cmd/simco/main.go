// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bradleyjkemp/memviz"

	"github.com/ezrec/simco/config"
	"github.com/ezrec/simco/cpu"
	"github.com/ezrec/simco/device"
	"github.com/ezrec/simco/gpu"
	"github.com/ezrec/simco/internal/statsview"
	"github.com/ezrec/simco/machine"
	"github.com/ezrec/simco/mmu"
)

func main() {
	var config_file string
	var verbose bool
	var display bool
	var dump string
	var stats string
	var hd string
	var boot string
	var install string
	var cores int

	flag.StringVar(&config_file, "config", "", ".toml machine configuration")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.BoolVar(&display, "display", false, "Draw the registers on the frame buffer after the run")
	flag.StringVar(&dump, "memviz", "", "Write a graphviz dump of the machine after the run")
	flag.StringVar(&stats, "statsview", "", "Serve runtime statistics on this address")
	flag.StringVar(&hd, "hd", "", "Directory of hard drive partitions")
	flag.StringVar(&boot, "boot", "", "Partition to boot from")
	flag.StringVar(&install, "install", "", "Assembly file to install as a partition")
	flag.IntVar(&cores, "cores", 0, "Override the configured core count")

	flag.Parse()

	cfg := config.Default()
	if len(config_file) != 0 {
		var err error
		cfg, err = config.Load(config_file)
		if err != nil {
			log.Fatalf("%v: %v", config_file, err)
		}
	}
	if verbose {
		cfg.Verbose = true
	}
	if cores > 0 {
		cfg.Cpu.Cores = cores
	}

	if len(stats) != 0 {
		statsview.Launch(os.Stderr, stats)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	mach, err := machine.NewMachine(cfg)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}
	defer mach.Close()

	if len(hd) != 0 {
		err = mach.HardDrive.Unmarshal(os.DirFS(hd))
		if err != nil {
			log.Fatalf("%v: %v", hd, err)
		}
	}

	if len(install) != 0 {
		if len(hd) == 0 {
			log.Fatalf("%v: -install requires -hd", os.Args[0])
		}
		doInstall(mach, install, hd)
	}

	var programs []*cpu.Program
	for _, path := range flag.Args() {
		programs = append(programs, doAssemble(mach, path))
	}

	switch {
	case len(boot) != 0:
		if len(programs) != 0 {
			log.Fatalf("%v: -boot does not take program files", os.Args[0])
		}
		err = mach.Boot(boot)
		if err != nil {
			log.Fatalf("%v: %v", boot, err)
		}
		doRun(ctx, mach, display, dump)
	case len(programs) == 1:
		err = mach.LoadProgram(programs[0])
		if err != nil {
			log.Fatalf("%v: %v", flag.Arg(0), err)
		}
		doRun(ctx, mach, display, dump)
	case len(programs) > 1:
		doRunMimd(ctx, cfg, programs, dump)
	}
}

// doAssemble assembles a source file with the machine defines.
func doAssemble(mach *machine.Machine, path string) (prog *cpu.Program) {
	inf, err := os.Open(path)
	if err != nil {
		log.Fatalf("%v: %v", path, err)
	}
	defer inf.Close()

	prog, err = mach.Assembler().Parse(inf)
	if err != nil {
		log.Fatalf("%v: %v", path, err)
	}

	return
}

// doInstall checks that a source file assembles, then saves it as a
// partition.
func doInstall(mach *machine.Machine, path string, hd string) {
	doAssemble(mach, path)

	source, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("%v: %v", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mach.HardDrive.Partitions[name] = source

	err = mach.HardDrive.Marshal(device.DirFS(hd))
	if err != nil {
		log.Fatalf("%v: %v", hd, err)
	}

	if mach.Verbose {
		log.Printf("%v: installed %v", hd, name)
	}
}

func doRun(ctx context.Context, mach *machine.Machine, display bool, dump string) {
	err := mach.Run(ctx)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	fmt.Print(mach.Cpu.String())

	if display {
		mach.DrawRegisters(gpu.GREEN, gpu.BLACK)
		err = mach.Gpu.Display(os.Stdout)
		if err != nil {
			log.Fatalf("%v: %v", os.Args[0], err)
		}
	}

	doDump(dump, mach)
}

func doRunMimd(ctx context.Context, cfg config.Config, programs []*cpu.Program, dump string) {
	mimd, err := machine.NewMimd(cfg, mmu.NewMmu(cfg.Mmu.Size))
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	err = mimd.LoadPrograms(programs)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}
	defer mimd.UnloadPrograms()

	err = mimd.Run(ctx)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	for n, core := range mimd.Cores[:len(programs)] {
		fmt.Printf("core %d: %v\n", n, flag.Arg(n))
		fmt.Print(core.Cpu.String())
	}

	doDump(dump, mimd)
}

// doDump writes a graphviz description of v to path.
func doDump(path string, v any) {
	if len(path) == 0 {
		return
	}

	ouf, err := os.Create(path)
	if err != nil {
		log.Fatalf("%v: %v", path, err)
	}
	defer ouf.Close()

	memviz.Map(ouf, v)
}
