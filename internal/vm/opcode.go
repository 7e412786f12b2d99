package vm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

func (vm *VM) execute(addr uint16, opcode uint16) {
	instr := decode(opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", addr),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", mnemonic(opcode),
		)
	}

	instr(vm, opcode)
}

type instructionFunc func(vm *VM, opcode uint16)

// decode selects the handler for an opcode. The first nibble picks the
// instruction family; families 0x0, 0x8 and 0xE dispatch again on the low
// nibble, family 0xF on the low byte. Patterns without a handler decode to
// an explicit no-op.
func decode(opcode uint16) instructionFunc {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode & 0x000F {
		case 0x0000:
			// 00E0 - Clear screen
			return clsInstruction

		case 0x000E:
			// 00EE - Return from subroutine
			return rtsInstruction
		}

	case 0x1000:
		// 1NNN - Jumps to address NNN
		return jmpInstruction

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return jsrInstruction

	case 0x3000:
		// 3XNN - Skips the next instruction if VX equals NN
		return skeq1Instruction

	case 0x4000:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return skne1Instruction

	case 0x5000:
		// 5XY0 - Skips the next instruction if VX equals VY
		return skeq2Instruction

	case 0x6000:
		// 6XNN - Sets VX to NN
		return mov1Instruction

	case 0x7000:
		// 7XNN - Adds NN to VX
		return add1Instruction

	case 0x8000:
		// 8XY_
		switch opcode & 0x000F {
		case 0x0000:
			// 8XY0 - Sets VX to the value of VY
			return mov2Instruction

		case 0x0001:
			// 8XY1 - Sets VX to (VX OR VY)
			return orInstruction

		case 0x0002:
			// 8XY2 - Sets VX to (VX AND VY)
			return andInstruction

		case 0x0003:
			// 8XY3 - Sets VX to (VX XOR VY)
			return xorInstruction

		case 0x0004:
			// 8XY4 - Adds VY to VX. VF is set to 1 when there's a carry, and to 0 when there isn't.
			return add2Instruction

		case 0x0005:
			// 8XY5 - VY is subtracted from VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return subInstruction

		case 0x0006:
			// 8XY6 - Shifts VX right by one. VF is set to the value of the least significant bit before the shift.
			return shrInstruction

		case 0x0007:
			// 8XY7 - Sets VX to VY minus VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return rsbInstruction

		case 0x000E:
			// 8XYE - Shifts VX left by one. VF is set to the value of the most significant bit before the shift.
			return shlInstruction
		}

	case 0x9000:
		// 9XY0 - Skips the next instruction if VX doesn't equal VY
		return skne2Instruction

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return mviInstruction

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0
		return jmiInstruction

	case 0xC000:
		// CXNN - Sets VX to a random number, masked by NN
		return randInstruction

	case 0xD000:
		// DXYN - Draws a sprite at coordinate (VX, VY) that has a width of 8
		// pixels and a height of N pixels.
		// Each row of 8 pixels is read as bit-coded starting from memory
		// location I;
		// I value doesn't change after the execution of this instruction.
		// VF is set to 1 if any screen pixels are flipped from set to unset
		// when the sprite is drawn, and to 0 if that doesn't happen.
		return spriteInstruction

	case 0xE000:
		switch opcode & 0x000F {
		case 0x000E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return skprInstruction

		case 0x0001:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return skupInstruction
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			// FX07 - Sets VX to the value of the delay timer
			return gdelayInstruction

		case 0x000A:
			// FX0A - A key press is awaited, and then stored in VX
			return keyInstruction

		case 0x0015:
			// FX15 - Sets the delay timer to VX
			return sdelayInstruction

		case 0x0018:
			// FX18 - Sets the sound timer to VX
			return ssoundInstruction

		case 0x001E:
			// FX1E - Adds VX to I
			return adiInstruction

		case 0x0029:
			// FX29 - Sets I to the location of the sprite for the
			// character in VX. Characters 0-F (in hexadecimal) are
			// represented by a 4x5 font
			return fontInstruction

		case 0x0033:
			// FX33 - Stores the Binary-coded decimal representation of VX
			// at the addresses I, I plus 1, and I plus 2
			return bcdInstruction

		case 0x0055:
			// FX55 - Stores V0 to VX in memory starting at address I
			return strInstruction

		case 0x0065:
			// FX65 - Reads memory starting at address I into V0...VX
			return ldrInstruction
		}
	}

	return unknownInstruction
}

// 00e0	cls	Clear the screen
func clsInstruction(vm *VM, _ uint16) {
	for i := range vm.video {
		vm.video[i] = 0
	}
	vm.drawFlag = true
}

// 00ee	rts	return from subroutine call
func rtsInstruction(vm *VM, _ uint16) {
	if vm.sp == 0 {
		slog.Error("stack underflow", "pc", fmt.Sprintf("0x%04x", vm.pc))
	}

	vm.sp--
	vm.pc = vm.stack[int(vm.sp)%StackSize]
}

// 1xxx	jmp xxx	jump to address xxx
func jmpInstruction(vm *VM, opcode uint16) {
	vm.pc = opcode & 0x0FFF
}

// 2xxx	jsr xxx	jump to subroutine at address xxx
func jsrInstruction(vm *VM, opcode uint16) {
	if vm.sp >= StackSize {
		slog.Error("stack overflow", "pc", fmt.Sprintf("0x%04x", vm.pc))
	}

	vm.stack[int(vm.sp)%StackSize] = vm.pc
	vm.sp++
	vm.pc = opcode & 0x0FFF
}

// 3rxx	skeq vr,xx	skip if register r = constant
func skeq1Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := vm.registers[vX]
	y := uint8(opcode & 0x00FF)

	if x == y {
		vm.pc += InstructionSize
	}
}

// 4rxx	skne vr,xx	skip if register r <> constant
func skne1Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := vm.registers[vX]
	y := uint8(opcode & 0x00FF)

	if x != y {
		vm.pc += InstructionSize
	}
}

// 5ry0	skeq vr,vy	skip if register r = register y
func skeq2Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	if x == y {
		vm.pc += InstructionSize
	}
}

// 6rxx	mov vr,xx	move constant to register r
func mov1Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	y := uint8(opcode & 0x00FF)

	vm.registers[vX] = y
}

// 7rxx	add vr,xx	add constant to register r	No carry generated
func add1Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	y := uint8(opcode & 0x00FF)

	vm.registers[vX] += y
}

// 8ry0	mov vr,vy	move register vy into vr
func mov2Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	y := vm.registers[vY]

	vm.registers[vX] = y
}

// 8ry1	or vr,vy	or register vy into register vx
func orInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	vm.registers[vX] = x | y
}

// 8ry2	and vr,vy	and register vy into register vx
func andInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	vm.registers[vX] = x & y
}

// 8ry3	xor vr,vy	exclusive or register vy into register vx
func xorInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	vm.registers[vX] = x ^ y
}

// 8ry4	add vr,vy	add register vy to vr, carry in vf
func add2Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	sum := uint16(x) + uint16(y)

	if sum > 0xFF {
		vm.registers[0x0F] = 1
	} else {
		vm.registers[0x0F] = 0
	}

	vm.registers[vX] = uint8(sum)
}

// 8ry5	sub vr,vy	subtract register vy from vr	vf set to 1 if no borrow
func subInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	if x > y {
		vm.registers[0x0F] = 1
	} else {
		vm.registers[0x0F] = 0
	}

	vm.registers[vX] = x - y
}

// 8ry6	shr vr	shift register vr right, bit 0 goes into register vf
func shrInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := vm.registers[vX]

	if vm.quirks.ShiftUsesVY {
		vY := (opcode & 0x00F0) >> 4
		x = vm.registers[vY]
	}

	vm.registers[0x0F] = x & 0x1
	vm.registers[vX] = x >> 1
}

// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr	vf set to 1 if no borrow
func rsbInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	if y > x {
		vm.registers[0x0F] = 1
	} else {
		vm.registers[0x0F] = 0
	}

	vm.registers[vX] = y - x
}

// 8rye	shl vr	shift register vr left, bit 7 goes into register vf
func shlInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := vm.registers[vX]

	if vm.quirks.ShiftUsesVY {
		vY := (opcode & 0x00F0) >> 4
		x = vm.registers[vY]
	}

	vm.registers[0x0F] = x >> 7
	vm.registers[vX] = x << 1
}

// 9ry0	skne vr,vy	skip if register r <> register y
func skne2Instruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	x := vm.registers[vX]
	y := vm.registers[vY]

	if x != y {
		vm.pc += InstructionSize
	}
}

// axxx	mvi xxx	Load index register with constant xxx
func mviInstruction(vm *VM, opcode uint16) {
	vm.index = opcode & 0x0FFF
}

// bxxx	jmi xxx	Jump to address xxx+register v0
func jmiInstruction(vm *VM, opcode uint16) {
	vm.pc = (opcode & 0x0FFF) + uint16(vm.registers[0])
}

// crxx	rand vr,xx	vr = random byte masked with xx
func randInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	mask := uint8(opcode & 0x00FF)

	vm.registers[vX] = uint8(rand.IntN(256)) & mask
}

// drys	sprite rx,ry,s	Draw sprite at screen location rx,ry height s
// Sprites stored in memory at location in index register, maximum 8 bits wide.
// The start position wraps onto the screen, and so does every pixel of a
// sprite extending past an edge.
// If when drawn, clears a pixel, vf is set to 1 otherwise it is zero.
// All drawing is xor drawing (e.g. it toggles the screen pixels)
func spriteInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	vY := (opcode & 0x00F0) >> 4
	height := opcode & 0x000F

	xLocation := uint16(vm.registers[vX]) % ScreenWidth
	yLocation := uint16(vm.registers[vY]) % ScreenHeight

	vm.registers[0x0F] = 0

	for y := uint16(0); y < height; y++ {
		row := vm.readMemory(vm.index + y)

		const width = uint16(8)
		for x := uint16(0); x < width; x++ {
			mask := uint8(0x80 >> x)
			if row&mask != 0 {
				screenAddr := getScreenAddr(xLocation+x, yLocation+y)

				if vm.video[screenAddr] == pixelOn {
					vm.registers[0x0F] = 1
				}

				vm.video[screenAddr] ^= pixelOn
			}
		}
	}

	vm.drawFlag = true
}

// er9e	skpr r	skip if key (register r) pressed
func skprInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := vm.registers[vX]

	if vm.keypad[x&0x0F] != 0 {
		vm.pc += InstructionSize
	}
}

// era1	skup r	skip if key (register r) not pressed
func skupInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := vm.registers[vX]

	if vm.keypad[x&0x0F] == 0 {
		vm.pc += InstructionSize
	}
}

// fr07	gdelay vr	get delay timer into vr
func gdelayInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8

	vm.registers[vX] = vm.delayTimer
}

// fr0a	key vr	wait for keypress, put key in register vr
func keyInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	keyPressed := false

	for i := range vm.keypad {
		if vm.keypad[i] != 0 {
			vm.registers[vX] = uint8(i)
			keyPressed = true
		}
	}

	if keyPressed {
		return
	}

	// No key is down, so the same instruction is refetched on the next
	// cycle.
	vm.pc -= InstructionSize
}

// fr15	sdelay vr	set the delay timer to vr
func sdelayInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8

	vm.delayTimer = vm.registers[vX]
}

// fr18	ssound vr	set the sound timer to vr
func ssoundInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8

	vm.soundTimer = vm.registers[vX]
}

// fr1e	adi vr	add register vr to the index register	No overflow check
func adiInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8

	vm.index += uint16(vm.registers[vX])
}

// fr29	font vr	point I to the sprite for hexadecimal character in vr	Sprite is 5 bytes high
func fontInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := uint16(vm.registers[vX])

	vm.index = FontStart + x*5
}

// fr33	bcd vr	store the bcd representation of register vr at location I,I+1,I+2	Doesn't change I
func bcdInstruction(vm *VM, opcode uint16) {
	vX := (opcode & 0x0F00) >> 8
	x := vm.registers[vX]

	vm.writeMemory(vm.index, x/100)
	vm.writeMemory(vm.index+1, (x/10)%10)
	vm.writeMemory(vm.index+2, x%10)
}

// fr55	str v0-vr	store registers v0-vr at location I onwards
func strInstruction(vm *VM, opcode uint16) {
	n := (opcode & 0x0F00) >> 8

	for i := uint16(0); i <= n; i++ {
		vm.writeMemory(vm.index+i, vm.registers[i])
	}

	if vm.quirks.IncrementIndex {
		vm.index += n + 1
	}
}

// fr65	ldr v0-vr	load registers v0-vr from location I onwards
func ldrInstruction(vm *VM, opcode uint16) {
	n := (opcode & 0x0F00) >> 8

	for i := uint16(0); i <= n; i++ {
		vm.registers[i] = vm.readMemory(vm.index + i)
	}

	if vm.quirks.IncrementIndex {
		vm.index += n + 1
	}
}

// Undefined opcode patterns execute as a no-op rather than failing.
func unknownInstruction(_ *VM, _ uint16) {}

func getScreenAddr(x, y uint16) uint16 {
	x %= ScreenWidth
	y %= ScreenHeight

	screenAddr := ScreenWidth*y + x
	return screenAddr
}
