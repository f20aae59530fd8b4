package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"
)

const (
	REGISTER_COUNT     = 16  // General purpose registers.
	CPU_DEFAULT_MEMORY = 256 // Default instruction memory, in words.
)

var _cpu_defines = map[string]string{
	"REGISTER_COUNT": fmt.Sprintf("%d", REGISTER_COUNT),
	"OP_ADD":         fmt.Sprintf("0x%x", int(OP_ADD)),
	"OP_SUB":         fmt.Sprintf("0x%x", int(OP_SUB)),
	"OP_AND":         fmt.Sprintf("0x%x", int(OP_AND)),
	"OP_OR":          fmt.Sprintf("0x%x", int(OP_OR)),
	"OP_XOR":         fmt.Sprintf("0x%x", int(OP_XOR)),
	"OP_JMP":         fmt.Sprintf("0x%x", int(OP_JMP)),
	"OP_JZ":          fmt.Sprintf("0x%x", int(OP_JZ)),
}

// Cpu is the simulation context for the processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Register [REGISTER_COUNT]int32 // Register bank.
	Memory   []Code                // Instruction memory.

	Ticks int // Executed instruction counter.
}

// NewCpu creates a new CPU with size words of instruction memory.
// The memory always holds at least one word, used by Run.
func NewCpu(size int) (cpu *Cpu) {
	if size < 1 {
		size = 1
	}

	cpu = &Cpu{
		Memory: make([]Code, size),
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	defines := maps.Clone(_cpu_defines)
	defines["CPU_MEMORY"] = fmt.Sprintf("%d", len(cpu.Memory))
	return maps.All(defines)
}

// Reset the CPU state.
// - Clears the registers and instruction memory.
// - Zeros statistics counters.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	clear(cpu.Memory)
	cpu.Ticks = 0
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	for n, val := range cpu.Register {
		reg := CodeReg(n).String()
		text += fmt.Sprintf("% 5s: %04X_%04X (%d)\n", reg, uint32(val)>>16, uint32(val)&0xffff, val)
	}
	text += fmt.Sprintf("% 5s: %d\n", "ticks", cpu.Ticks)

	return
}

// Load copies words into instruction memory starting at start.
func (cpu *Cpu) Load(start int, words []Code) (err error) {
	if start < 0 || start > len(cpu.Memory) || len(words) > len(cpu.Memory)-start {
		err = &ErrMemory{Addr: start, Size: len(words)}
		return
	}

	copy(cpu.Memory[start:], words)

	if cpu.Verbose {
		log.Printf("cpu: load 0x%x+%d", start, len(words))
	}

	return
}

// Fetch returns the instruction word at addr.
func (cpu *Cpu) Fetch(addr int) (code Code, err error) {
	if addr < 0 || addr >= len(cpu.Memory) {
		err = &ErrMemory{Addr: addr, Size: 1}
		return
	}

	code = cpu.Memory[addr]
	return
}

// Run executes a single instruction word: the word is stored at address 0,
// fetched back, decoded and executed.
func (cpu *Cpu) Run(word Code) (target int, jump bool, err error) {
	if len(cpu.Memory) == 0 {
		err = &ErrMemory{Addr: 0, Size: 1}
		return
	}

	cpu.Memory[0] = word

	code, err := cpu.Fetch(0)
	if err != nil {
		return
	}

	return cpu.Execute(code)
}

// Execute executes a single decoded instruction.
//
// Jumps do not move anything inside the CPU: the target is returned, and
// jump is set only when the jump is taken.
func (cpu *Cpu) Execute(code Code) (target int, jump bool, err error) {
	if cpu.Verbose {
		log.Printf("cpu: %04x: %v", uint16(code), code)
	}

	op, a, b, dest := code.Decode()
	reg := &cpu.Register

	switch op {
	case OP_ADD:
		reg[dest] = reg[a] + reg[b]
	case OP_SUB:
		reg[dest] = reg[a] - reg[b]
	case OP_AND:
		reg[dest] = reg[a] & reg[b]
	case OP_OR:
		reg[dest] = reg[a] | reg[b]
	case OP_XOR:
		reg[dest] = reg[a] ^ reg[b]
	case OP_JMP:
		target = int(a)
		jump = true
	case OP_JZ:
		if reg[dest] == 0 {
			target = int(a)
			jump = true
		}
	default:
		err = ErrOpcode(code)
		return
	}

	cpu.Ticks++

	return
}
