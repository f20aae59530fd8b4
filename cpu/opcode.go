package cpu

import (
	"fmt"
)

// CodeOp is the opcode nibble of an instruction.
type CodeOp int

// OP_HALT is reserved, and never executable.
//
//go:generate go tool stringer -linecomment -type=CodeOp
const (
	OP_HALT = CodeOp(0x0) // halt
	OP_ADD  = CodeOp(0x1) // add
	OP_SUB  = CodeOp(0x2) // sub
	OP_AND  = CodeOp(0x3) // and
	OP_OR   = CodeOp(0x4) // or
	OP_XOR  = CodeOp(0x5) // xor
	OP_JMP  = CodeOp(0x6) // jmp
	OP_JZ   = CodeOp(0x7) // jz
)

// Valid returns true if the opcode can be executed.
func (op CodeOp) Valid() bool {
	return op >= OP_ADD && op <= OP_JZ
}

// CodeReg is a register index nibble of an instruction.
type CodeReg int

const (
	REG_R0  = CodeReg(0)
	REG_R15 = CodeReg(15)
)

func (reg CodeReg) String() string {
	return fmt.Sprintf("r%d", int(reg))
}

// Code is a single instruction word: [opcode:4][regA:4][regB:4][dest:4]
type Code uint16

// CODE_HALT is the end-of-program sentinel.
const CODE_HALT = Code(0)

// MakeCode encodes an instruction word. Fields are truncated to a nibble.
func MakeCode(op CodeOp, a, b, dest CodeReg) Code {
	return Code((uint16(op)&0xf)<<12 | (uint16(a)&0xf)<<8 | (uint16(b)&0xf)<<4 | (uint16(dest) & 0xf))
}

// MakeCodeAlu encodes a register to register ALU operation.
func MakeCodeAlu(op CodeOp, a, b, dest CodeReg) Code {
	return MakeCode(op, a, b, dest)
}

// MakeCodeJmp encodes an unconditional jump to target.
func MakeCodeJmp(target int) Code {
	return MakeCode(OP_JMP, CodeReg(target), REG_R0, REG_R0)
}

// MakeCodeJz encodes a jump to target, taken when register test is zero.
func MakeCodeJz(target int, test CodeReg) Code {
	return MakeCode(OP_JZ, CodeReg(target), REG_R0, test)
}

// Op returns the opcode nibble.
func (code Code) Op() CodeOp {
	return CodeOp((code >> 12) & 0xf)
}

// Decode returns the four nibbles of the instruction word.
func (code Code) Decode() (op CodeOp, a, b, dest CodeReg) {
	word := uint16(code)
	op = CodeOp((word >> 12) & 0xf)
	a = CodeReg((word >> 8) & 0xf)
	b = CodeReg((word >> 4) & 0xf)
	dest = CodeReg((word >> 0) & 0xf)
	return
}

// String returns the assembly language representation of this instruction.
func (code Code) String() (out string) {
	op, a, b, dest := code.Decode()

	switch {
	case code == CODE_HALT:
		out = "halt"
	case op == OP_JMP:
		out = fmt.Sprintf("%v %d", op, int(a))
	case op == OP_JZ:
		out = fmt.Sprintf("%v %d %v", op, int(a), dest)
	case op.Valid():
		out = fmt.Sprintf("%v %v %v %v", op, a, b, dest)
	default:
		out = fmt.Sprintf(".word 0x%04x", uint16(code))
	}

	return
}
