package vm

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	FontStart       = uint16(0x050)
	ProgramStart    = uint16(0x200)
	InstructionSize = 2

	MaxProgramSize = MemorySize - int(ProgramStart)
)

// pixelOn is the "lit" state of a framebuffer word. Every pixel is either
// all-zeros or all-ones so a renderer can blit the buffer directly.
const pixelOn = uint32(0xFFFFFFFF)

// Quirks selects between incompatible behaviors of historical CHIP-8
// interpreters. The zero value is the behavior most ROMs written for
// modern interpreters expect.
type Quirks struct {
	// ShiftUsesVY makes 8XY6/8XYE shift the value of VY into VX instead
	// of shifting VX in place, as the original COSMAC VIP interpreter did.
	ShiftUsesVY bool

	// IncrementIndex makes FX55/FX65 leave the index register advanced
	// past the last copied register, as the original COSMAC VIP
	// interpreter did.
	IncrementIndex bool
}

type VM struct {
	memory    []uint8 // Memory (4k)
	registers []uint8 // V registers (V0-VF)

	stack []uint16 // Stack
	sp    uint8    // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	video    []uint32 // Framebuffer, one word per pixel
	keypad   []uint8  // Keypad
	drawFlag bool     // Indicates a draw has occurred

	opcode uint16 // Currently executing instruction

	quirks Quirks
}

func New(quirks Quirks) *VM {
	vm := &VM{
		memory:    make([]uint8, MemorySize),
		registers: make([]uint8, RegisterCount),
		stack:     make([]uint16, StackSize),
		video:     make([]uint32, ScreenWidth*ScreenHeight),
		keypad:    make([]uint8, KeyCount),
		pc:        ProgramStart,
		drawFlag:  true,
		quirks:    quirks,
	}

	copy(vm.memory[FontStart:], chip8Font)

	return vm
}

// Load copies a program image into memory at the program start address.
// Memory is left untouched if the image does not fit.
func (vm *VM) Load(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("program is %d bytes long, only %d bytes fit into memory", len(program), MaxProgramSize)
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	copy(vm.memory[ProgramStart:], program)
	return nil
}

type HAL interface {
	ReadInput(keyDown func(Key), keyUp func(Key)) error
	Draw(video []uint32) error
	Beep() error
	WaitForNextFrame() error
	WaitForQuit() error
}

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// errInfiniteLoop reports that the program jumped to its own address.
var errInfiniteLoop = errors.New("infinite loop")

func (vm *VM) Run(hal HAL) error {
	for {
		err := vm.runStep(hal)
		if err != nil {
			if errors.Is(err, errInfiniteLoop) {
				slog.Info("program looped")
				return vm.waitForReboot(hal)
			}

			return err
		}
	}
}

func (vm *VM) waitForReboot(hal HAL) error {
	for {
		if err := hal.WaitForNextFrame(); err != nil {
			return err
		}

		if err := hal.ReadInput(func(_ Key) {}, func(_ Key) {}); err != nil {
			return err
		}
	}
}

func (vm *VM) runStep(hal HAL) error {
	beep := vm.soundTimer == 1
	addr := vm.pc

	vm.Cycle()

	if beep {
		if err := hal.Beep(); err != nil {
			return err
		}
	}

	// A jump to its own address is how CHIP-8 programs terminate.
	if vm.opcode&0xF000 == 0x1000 && vm.opcode&0x0FFF == addr {
		return errInfiniteLoop
	}

	if vm.drawFlag {
		if err := hal.Draw(vm.video); err != nil {
			return err
		}
		vm.drawFlag = false
	}

	if err := hal.ReadInput(vm.keyDown, vm.keyUp); err != nil {
		return err
	}

	if err := hal.WaitForNextFrame(); err != nil {
		return err
	}

	return nil
}

func (vm *VM) keyDown(key Key) {
	vm.keypad[int(key)] = 1
}

func (vm *VM) keyUp(key Key) {
	vm.keypad[int(key)] = 0
}

// Cycle performs a single fetch-decode-execute step and then counts both
// timers down. Pacing the calls against a wall clock is the caller's job.
func (vm *VM) Cycle() {
	addr := vm.pc
	vm.opcode = vm.fetchOpcode()
	vm.pc += InstructionSize

	vm.execute(addr, vm.opcode)

	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

func (vm *VM) fetchOpcode() uint16 {
	hi := vm.readMemory(vm.pc)
	lo := vm.readMemory(vm.pc + 1)

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode
}

// readMemory and writeMemory wrap addresses into the 4K address space,
// mirroring the modular arithmetic of the original hardware instead of
// faulting on out-of-range access.
func (vm *VM) readMemory(addr uint16) uint8 {
	return vm.memory[addr&(MemorySize-1)]
}

func (vm *VM) writeMemory(addr uint16, value uint8) {
	vm.memory[addr&(MemorySize-1)] = value
}
