package vm

import (
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// mnemonic renders an opcode as assembler-style text for the instruction
// trace. The opcode tables are matched the same way the decoder families
// are laid out: candidates grouped by the first nibble, selected by
// mask/value.
func mnemonic(opcode uint16) string {
	firstNibble := int(opcode&0xF000) >> 12

	for _, op := range chip8.Opcodes[firstNibble] {
		if op.Info.Mask&opcode == op.Info.Value {
			name := op.Instruction.Name
			if params := formatParams(name, opcode); params != "" {
				return name + " " + params
			}
			return name
		}
	}

	return fmt.Sprintf("unknown 0x%04X", opcode)
}

// formatParams returns the operand portion of the trace text, or "" for
// instructions rendered by their bare name.
func formatParams(name string, opcode uint16) string {
	x := (opcode & 0x0F00) >> 8
	y := (opcode & 0x00F0) >> 4

	switch name {
	case chip8.Jp.Name:
		if opcode&0xF000 == 0xB000 {
			return fmt.Sprintf("V0, $%03X", opcode&0x0FFF)
		}
		return fmt.Sprintf("$%03X", opcode&0x0FFF)

	case chip8.Call.Name:
		return fmt.Sprintf("$%03X", opcode&0x0FFF)

	case chip8.Se.Name, chip8.Sne.Name:
		switch opcode & 0xF000 {
		case 0x3000, 0x4000:
			return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
		case 0x5000, 0x9000:
			return fmt.Sprintf("V%X, V%X", x, y)
		}
		return ""

	case chip8.Ld.Name:
		switch opcode & 0xF000 {
		case 0x6000:
			return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
		case 0x8000:
			return fmt.Sprintf("V%X, V%X", x, y)
		case 0xA000:
			return fmt.Sprintf("I, $%03X", opcode&0x0FFF)
		}
		return ""

	case chip8.Add.Name:
		switch opcode & 0xF000 {
		case 0x7000:
			return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
		case 0x8000:
			return fmt.Sprintf("V%X, V%X", x, y)
		}
		return ""

	case chip8.Or.Name, chip8.And.Name, chip8.Xor.Name, chip8.Sub.Name, chip8.Subn.Name:
		return fmt.Sprintf("V%X, V%X", x, y)

	case chip8.Shr.Name, chip8.Shl.Name, chip8.Skp.Name, chip8.Sknp.Name:
		return fmt.Sprintf("V%X", x)

	case chip8.Rnd.Name:
		return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)

	case chip8.Drw.Name:
		return fmt.Sprintf("V%X, V%X, $%X", x, y, opcode&0x000F)
	}

	return ""
}
