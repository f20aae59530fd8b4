// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package config describes the shape of a simco machine, as read from a
// TOML file.
//
//	verbose = false
//
//	[cpu]
//	memory = 256      # instruction memory, in words
//	cores = 1         # cores for multi-program runs
//	max_ticks = 65536 # per core instruction limit, 0 for none
//
//	[mmu]
//	size = 1024
//
//	[gpu]
//	width = 32
//	height = 16
package config

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ezrec/simco/cpu"
	"github.com/ezrec/simco/gpu"
	"github.com/ezrec/simco/mmu"
	"github.com/ezrec/simco/translate"
)

var f = translate.From

var (
	ErrConfig = errors.New(f("invalid configuration"))
)

// ErrField reports an invalid configuration field.
type ErrField struct {
	Field string
	Value any
}

func (err *ErrField) Error() string {
	return f("%v = %v is not valid", err.Field, err.Value)
}

func (err *ErrField) Is(target error) bool {
	return target == ErrConfig
}

const (
	DEFAULT_MAX_TICKS = 1 << 16
)

type Cpu struct {
	Memory   int `toml:"memory"`
	Cores    int `toml:"cores"`
	MaxTicks int `toml:"max_ticks"`
}

type Mmu struct {
	Size int `toml:"size"`
}

type Gpu struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Config is the machine configuration.
type Config struct {
	Verbose bool `toml:"verbose"`
	Cpu     Cpu  `toml:"cpu"`
	Mmu     Mmu  `toml:"mmu"`
	Gpu     Gpu  `toml:"gpu"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Cpu: Cpu{
			Memory:   cpu.CPU_DEFAULT_MEMORY,
			Cores:    1,
			MaxTicks: DEFAULT_MAX_TICKS,
		},
		Mmu: Mmu{
			Size: mmu.MMU_DEFAULT_SIZE,
		},
		Gpu: Gpu{
			Width:  gpu.GPU_DEFAULT_WIDTH,
			Height: gpu.GPU_DEFAULT_HEIGHT,
		},
	}
}

// Decode reads a TOML configuration over the defaults. Unknown keys are
// rejected.
func Decode(input io.Reader) (cfg Config, err error) {
	cfg = Default()

	md, err := toml.NewDecoder(input).Decode(&cfg)
	if err != nil {
		return
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for n, key := range undecoded {
			keys[n] = key.String()
		}
		err = &ErrField{Field: strings.Join(keys, ","), Value: "unknown key"}
		return
	}

	err = cfg.Validate()
	return
}

// Load reads a TOML configuration file over the defaults.
func Load(path string) (cfg Config, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return Decode(inf)
}

// Validate checks the configuration for impossible values.
func (cfg *Config) Validate() (err error) {
	checks := []struct {
		field string
		value int
		ok    bool
	}{
		{"cpu.memory", cfg.Cpu.Memory, cfg.Cpu.Memory >= 1 && cfg.Cpu.Memory <= 1<<16},
		{"cpu.cores", cfg.Cpu.Cores, cfg.Cpu.Cores >= 1},
		{"cpu.max_ticks", cfg.Cpu.MaxTicks, cfg.Cpu.MaxTicks >= 0},
		{"mmu.size", cfg.Mmu.Size, cfg.Mmu.Size >= 1},
		{"gpu.width", cfg.Gpu.Width, cfg.Gpu.Width >= 0},
		{"gpu.height", cfg.Gpu.Height, cfg.Gpu.Height >= 0},
	}

	for _, check := range checks {
		if !check.ok {
			err = &ErrField{Field: check.field, Value: check.value}
			return
		}
	}

	return
}

// Encode writes the configuration as TOML.
func (cfg *Config) Encode(out io.Writer) error {
	return toml.NewEncoder(out).Encode(cfg)
}
