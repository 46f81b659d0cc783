package ppu

import "testing"

func tickN(p *PPU, n int) {
	for i := 0; i < n; i++ {
		p.Tick()
	}
}

func TestModeSequenceAtLineStart(t *testing.T) {
	p := New(nil)
	if p.currentMode() != 0 {
		t.Fatalf("expected HBlank-family mode at reset, got %d", p.currentMode())
	}
	tickN(p, 1) // HBlank+4 -> Mode2
	if p.currentMode() != 2 {
		t.Fatalf("expected mode 2 after first tick, got %d", p.currentMode())
	}
}

func TestLineAdvancesToVBlankAt144(t *testing.T) {
	p := New(nil)
	// Drive enough M-cycles to cross 144 full lines (456 T-cycles = 114 M-cycles each).
	for line := 0; line < 144; line++ {
		tickN(p, 114)
	}
	if p.currentMode() != 1 {
		t.Fatalf("expected VBlank mode after 144 lines, got %d (LY=%d)", p.currentMode(), p.ly)
	}
	if p.ly < 144 {
		t.Fatalf("expected LY>=144, got %d", p.ly)
	}
}

func TestFrameWraps(t *testing.T) {
	p := New(nil)
	startFrame := p.frame
	for line := 0; line < 154; line++ {
		tickN(p, 114)
	}
	if p.frame != startFrame+1 {
		t.Fatalf("expected frame counter to advance by 1, got %d -> %d", startFrame, p.frame)
	}
	if p.ly != 0 {
		t.Fatalf("expected LY=0 at start of new frame, got %d", p.ly)
	}
}

func TestVRAMBlockedDuringMode3(t *testing.T) {
	p := New(nil)
	tickN(p, 1) // enter Mode2
	// advance through Mode2 (20 M-cycles) into Mode3
	tickN(p, 20)
	if p.currentMode() != 3 {
		t.Fatalf("expected Mode 3, got %d", p.currentMode())
	}
	if !p.VRAMBlocked() {
		t.Fatalf("expected VRAM blocked during Mode 3")
	}
	if p.ReadVRAM(0x8000) != 0xFF {
		t.Fatalf("expected 0xFF read from blocked VRAM")
	}
}

func TestLYCStatIRQRisingEdge(t *testing.T) {
	requests := 0
	p := New(func(bit int) {
		if bit == 1 {
			requests++
		}
	})
	p.WriteSTAT(0x40) // enable LYC=LY STAT IRQ
	p.WriteLYC(0)
	tickN(p, 1)
	if requests == 0 {
		t.Fatalf("expected STAT IRQ request on LY=LYC rising edge")
	}
}

func TestBGPaletteMapping(t *testing.T) {
	if applyPalette(0xE4, 0) != colorWhite {
		t.Fatalf("expected shade 0 white")
	}
	if applyPalette(0xE4, 3) != colorBlack {
		t.Fatalf("expected shade 3 black for default BGP 0xE4")
	}
}

func TestLCDDisableResetsLY(t *testing.T) {
	p := New(nil)
	tickN(p, 30)
	p.WriteLCDC(0x00)
	if p.LY() != 0 {
		t.Fatalf("expected LY=0 when LCD disabled, got %d", p.LY())
	}
	p.Tick()
	if p.LY() != 0 {
		t.Fatalf("expected LY to stay 0 while LCD disabled")
	}
}

func TestDisplayDelayFramesSetOnEnable(t *testing.T) {
	p := New(nil)
	p.WriteLCDC(0x00)
	p.WriteLCDC(0x80)
	if p.displayDelayFrames != 4 {
		t.Fatalf("expected displayDelayFrames=4 after re-enabling LCD, got %d", p.displayDelayFrames)
	}
}
