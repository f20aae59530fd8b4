package cpu

import (
	"iter"
)

// Opcode represents a line of assembled code with its source location and generated instructions.
type Opcode struct {
	LineNo    int
	Ip        int
	Words     []string
	Codes     []Code
	LinkLabel string
}

// Program is an assembled program. Instruction addresses are relative to
// wherever the program is loaded.
type Program struct {
	Opcodes []Opcode
	Presets map[CodeReg]int32 // Register values to set before running.
}

type Debug struct {
	*Opcode
	Index int
}

// Debug finds the source opcode of the instruction at ip.
func (prog *Program) Debug(ip int) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if ip >= op.Ip && ip < op.Ip+len(op.Codes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  ip - op.Ip,
			}
			break
		}
	}

	return
}

// Binary returns the program as a flat list of instruction words.
func (prog *Program) Binary() (bins []Code) {
	for _, code := range prog.Codes() {
		bins = append(bins, code)
	}

	return
}

// Len returns the number of instruction words in the program.
func (prog *Program) Len() (count int) {
	for _, op := range prog.Opcodes {
		count += len(op.Codes)
	}
	return
}

// Codes iterates over the instruction words, with their relative address.
func (prog *Program) Codes() iter.Seq2[int, Code] {
	return func(yield func(ip int, code Code) bool) {
		for _, op := range prog.Opcodes {
			for n, code := range op.Codes {
				if !yield(op.Ip+n, code) {
					return
				}
			}
		}
	}
}

// Apply copies the register presets into the CPU.
func (prog *Program) Apply(cpu *Cpu) {
	for reg, value := range prog.Presets {
		cpu.Register[reg] = value
	}
}
