// Package cpu implements the processor and assembler for the simco system.
//
// The CPU consists of sixteen 32-bit signed general-purpose registers
// (r0-r15) and a word addressed instruction memory. Every instruction is a
// single 16-bit word of four nibbles: opcode, source register A, source
// register B and destination register. Word 0 is reserved as the
// end-of-program sentinel.
//
// The CPU has no program counter of its own. Execute reports a jump target
// and leaves it to the caller (see package machine) to act on it.
//
// The assembler provides a small assembly language for the instruction set,
// supporting macros, labels, equates, register presets and compile-time
// expression evaluation.
package cpu
