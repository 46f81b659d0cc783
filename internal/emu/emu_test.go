package emu

import "testing"

// blankROM returns a minimal ROM-only cartridge image with no valid logo;
// LoadCartridge falls back to a permissive construction for it, per
// DESIGN.md's notes on cart.ErrBadLogo handling.
func blankROM(size int) []byte {
	return make([]byte, size)
}

func TestLoadCartridgeTolerantOfBadLogo(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(32*1024), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
}

func TestStepAdvancesCyclesAndPC(t *testing.T) {
	m := New(Config{})
	rom := blankROM(32 * 1024) // all zero bytes: NOP (0x00) at every address
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	before := m.totalCycles
	cycles := m.Step()
	if cycles != 4 {
		t.Fatalf("NOP step cycles = %d, want 4", cycles)
	}
	if m.totalCycles != before+4 {
		t.Fatalf("totalCycles = %d, want %d", m.totalCycles, before+4)
	}
}

func TestRunUntilReachesTarget(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(32*1024), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	ev := m.RunUntil(1000)
	if ev != EventUntilCycles {
		t.Fatalf("event = %v, want EventUntilCycles", ev)
	}
	if m.totalCycles < 1000 {
		t.Fatalf("totalCycles = %d, want >= 1000", m.totalCycles)
	}
}

func TestRunUntilStopsOnFrameBeforeTarget(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(32*1024), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	// cyclesPerFrame is well under this target, so a frame must fire first.
	ev := m.RunUntil(cyclesPerFrame * 10)
	if ev != EventFrame {
		t.Fatalf("event = %v, want EventFrame", ev)
	}
	if m.totalCycles >= cyclesPerFrame*10 {
		t.Fatalf("totalCycles = %d, expected RunUntil to stop at the frame edge", m.totalCycles)
	}
}

func TestRunUntilStopsOnAudioBufferFull(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(32*1024), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.SetAudioTargetFrames(4)
	ev := m.RunUntil(cyclesPerFrame * 10)
	if ev != EventAudioBufferFull {
		t.Fatalf("event = %v, want EventAudioBufferFull", ev)
	}
	if m.APUBufferedStereo() < 4 {
		t.Fatalf("buffered stereo frames = %d, want >= 4", m.APUBufferedStereo())
	}
}

func TestStepFrameAdvancesExactlyOneFrame(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(32*1024), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	if m.totalCycles < cyclesPerFrame {
		t.Fatalf("totalCycles = %d, want >= %d", m.totalCycles, cyclesPerFrame)
	}
}

func TestSaveLoadStateRoundTripsCPUAndCycles(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(32*1024), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.RunUntil(400)
	wantCycles, wantPC := m.totalCycles, m.cpu.PC
	snap := m.SaveState()

	// Advance further, diverging from the snapshot.
	m.RunUntil(800)
	if m.totalCycles == 400 {
		t.Fatal("expected totalCycles to have advanced past the snapshot")
	}

	if err := m.LoadState(snap); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if m.totalCycles != wantCycles {
		t.Fatalf("totalCycles after LoadState = %d, want %d", m.totalCycles, wantCycles)
	}
	if m.cpu.PC != wantPC {
		t.Fatalf("PC after LoadState = %#04x, want %#04x", m.cpu.PC, wantPC)
	}
}

func TestLoadStateRejectsBadHeader(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(32*1024), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m.LoadState([]byte{0, 0, 0, 0}); err == nil {
		t.Fatal("expected an error for a bad magic/version header")
	}
	if err := m.LoadState([]byte{1, 2}); err != ErrSaveStateSize {
		t.Fatalf("got %v, want ErrSaveStateSize", err)
	}
}
