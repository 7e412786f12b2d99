package vm

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestNew(t *testing.T) {
	v := New(Quirks{})

	assert.Equal(t, ProgramStart, v.pc)
	assert.Equal(t, uint8(0), v.sp)
	assert.Equal(t, uint16(0), v.index)
	assert.Equal(t, uint8(0), v.delayTimer)
	assert.Equal(t, uint8(0), v.soundTimer)

	// Font sprites live at 0x050.
	assert.Equal(t, uint8(0xF0), v.memory[0x050])
	assert.Equal(t, uint8(0x80), v.memory[0x050+79])
	assert.Equal(t, uint8(0x00), v.memory[0x050+80])
}

func TestLoad(t *testing.T) {
	v := New(Quirks{})

	err := v.Load([]byte{0x12, 0x34, 0x56})

	assert.NoError(t, err)
	assert.Equal(t, uint8(0x12), v.memory[0x200])
	assert.Equal(t, uint8(0x34), v.memory[0x201])
	assert.Equal(t, uint8(0x56), v.memory[0x202])
}

func TestLoadMaxSize(t *testing.T) {
	v := New(Quirks{})
	rom := make([]byte, MaxProgramSize)
	rom[len(rom)-1] = 0xFF

	err := v.Load(rom)

	assert.NoError(t, err)
	assert.Equal(t, uint8(0xFF), v.memory[MemorySize-1])
}

func TestLoadTooLarge(t *testing.T) {
	v := New(Quirks{})
	rom := make([]byte, MaxProgramSize+1)
	for i := range rom {
		rom[i] = 0xFF
	}

	err := v.Load(rom)

	assert.Error(t, err)

	// Memory is untouched after a failed load.
	assert.Equal(t, uint8(0), v.memory[int(ProgramStart)])
	assert.Equal(t, uint8(0), v.memory[MemorySize-1])
}

func TestCycleAdvancesPC(t *testing.T) {
	v := runProgram(t, 0x6001)

	assert.Equal(t, uint16(0x0202), v.pc)
	assert.Equal(t, uint16(0x6001), v.opcode)
}

func TestTimersFloorAtZero(t *testing.T) {
	v := newTestVM(t, 0x0123, 0x0123, 0x0123)
	v.delayTimer = 2
	v.soundTimer = 1

	v.Cycle()
	v.Cycle()
	v.Cycle()

	assert.Equal(t, uint8(0), v.delayTimer)
	assert.Equal(t, uint8(0), v.soundTimer)
}

var errTestDone = errors.New("test done")

// fakeHAL drives Run without a window: it feeds queued key presses into
// the first input poll and stops the loop after a fixed number of frames.
type fakeHAL struct {
	maxFrames int
	keys      []Key

	frames int
	draws  int
	beeps  int
}

func (h *fakeHAL) ReadInput(keyDown func(Key), _ func(Key)) error {
	for _, k := range h.keys {
		keyDown(k)
	}
	h.keys = nil
	return nil
}

func (h *fakeHAL) Draw(_ []uint32) error {
	h.draws++
	return nil
}

func (h *fakeHAL) Beep() error {
	h.beeps++
	return nil
}

func (h *fakeHAL) WaitForNextFrame() error {
	h.frames++
	if h.frames >= h.maxFrames {
		return errTestDone
	}
	return nil
}

func (h *fakeHAL) WaitForQuit() error {
	return nil
}

func TestRunParksOnProgramLoop(t *testing.T) {
	v := newTestVM(t, 0x1200)
	h := &fakeHAL{maxFrames: 5}

	err := v.Run(h)

	assert.True(t, errors.Is(err, errTestDone))
	assert.Equal(t, uint16(0x0200), v.pc)
	assert.Equal(t, 5, h.frames)
}

func TestRunDrawsFrames(t *testing.T) {
	v := newTestVM(t, 0x00E0, 0x1202)
	h := &fakeHAL{maxFrames: 10}

	err := v.Run(h)

	assert.True(t, errors.Is(err, errTestDone))
	assert.Equal(t, 1, h.draws)
	assert.Equal(t, 10, h.frames)
}

func TestRunBeeps(t *testing.T) {
	v := newTestVM(t, 0x6102, 0xF118, 0x1204)
	h := &fakeHAL{maxFrames: 8}

	err := v.Run(h)

	assert.True(t, errors.Is(err, errTestDone))
	assert.Equal(t, 1, h.beeps)
}

func TestRunDeliversInput(t *testing.T) {
	v := newTestVM(t, 0xF10A, 0x1202)
	h := &fakeHAL{maxFrames: 6, keys: []Key{Key5}}

	err := v.Run(h)

	assert.True(t, errors.Is(err, errTestDone))
	assert.Equal(t, uint8(5), v.registers[1])
}
