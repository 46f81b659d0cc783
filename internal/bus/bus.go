// Package bus implements the CPU-visible 16-bit address space: cartridge
// ROM/RAM banking, VRAM/OAM access-window rules, work/high RAM, and IO
// register dispatch to the timer, serial, joypad, PPU, APU, DMA engine
// and interrupt controller, per spec.md §3/§4.1.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/gbcore/dmg/internal/apu"
	"github.com/gbcore/dmg/internal/cart"
	"github.com/gbcore/dmg/internal/dma"
	"github.com/gbcore/dmg/internal/interrupt"
	"github.com/gbcore/dmg/internal/joypad"
	"github.com/gbcore/dmg/internal/ppu"
	"github.com/gbcore/dmg/internal/serial"
	"github.com/gbcore/dmg/internal/timer"
)

// Bus wires the address space to every subsystem and owns the interrupt
// controller shared with the CPU.
type Bus struct {
	cart cart.Cartridge

	ppu *ppu.PPU
	apu *apu.APU

	timer  *timer.Timer
	serial *serial.Serial
	joypad *joypad.Joypad
	dma    *dma.Engine
	ic     *interrupt.Controller

	// Work RAM 8 KiB at 0xC000-0xDFFF; echo 0xE000-0xFDFF mirrors C000-DDFF.
	wram [0x2000]byte

	// High RAM 0xFF80-0xFFFE (127 bytes).
	hram [0x7F]byte

	// Boot ROM support: optionally overlays 0x0000-0x00FF until disabled.
	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus from raw ROM bytes using a permissive cartridge
// constructor (tolerant of a missing/invalid logo), convenient for tests
// and ad-hoc wiring. Real ROM loading should go through cart.New and
// NewWithCartridge so header errors are surfaced to the caller.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewPermissive(rom))
}

// NewWithCartridge wires a provided cartridge implementation plus fresh
// PPU/APU/timer/serial/joypad/DMA/interrupt subsystems.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, ic: &interrupt.Controller{}}
	b.ppu = ppu.New(func(bit int) { b.ic.Request(bit) })
	b.apu = apu.New(48000)
	b.timer = timer.New(func(bit int) { b.ic.Request(bit) })
	b.serial = serial.New(func(bit int) { b.ic.Request(bit) })
	b.joypad = joypad.New(func(bit int) { b.ic.Request(bit) })
	b.dma = dma.New(b.dmaRead, b.ppu.WriteOAMDMA)
	// The DMG powers up with the LCD off; LCDC is enabled later by the
	// boot ROM or by the post-boot register setup.
	b.ppu.WriteLCDC(0x00)
	return b
}

// IC returns the shared interrupt controller, for wiring into cpu.New.
func (b *Bus) IC() *interrupt.Controller { return b.ic }

// PPU returns the internal PPU for rendering/save-state access.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU returns the internal APU for audio-buffer access.
func (b *Bus) APU() *apu.APU { return b.apu }

// Joypad returns the internal joypad for button/poll wiring.
func (b *Bus) Joypad() *joypad.Joypad { return b.joypad }

// Cart returns the underlying cartridge, e.g. for battery-RAM persistence.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// dmaRead services the DMA engine's own reads, bypassing the CPU's
// OAM-blocking view (DMA always sources from ROM/RAM/VRAM directly).
func (b *Bus) dmaRead(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return b.ppu.ReadVRAMRaw(addr)
	}
	return b.Read(addr)
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr <= 0x9FFF:
		return b.ppu.ReadVRAM(addr)
	case addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr <= 0xFDFF:
		return b.wram[(addr-0x2000)-0xC000]
	case addr <= 0xFE9F:
		if b.dma.Active() {
			return 0xFF
		}
		return b.ppu.ReadOAM(addr)
	case addr <= 0xFEFF:
		return 0xFF // unusable region
	case addr == 0xFF00:
		return b.joypad.Read()
	case addr == 0xFF01:
		return b.serial.SB()
	case addr == 0xFF02:
		return b.serial.SC()
	case addr == 0xFF04:
		return b.timer.DIV()
	case addr == 0xFF05:
		return b.timer.TIMA()
	case addr == 0xFF06:
		return b.timer.TMA()
	case addr == 0xFF07:
		return b.timer.TAC()
	case addr == 0xFF0F:
		return 0xE0 | (b.ic.New & 0x1F)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)
	case addr == 0xFF40:
		return b.ppu.LCDC()
	case addr == 0xFF41:
		return b.ppu.STAT()
	case addr == 0xFF42:
		return b.ppu.SCY()
	case addr == 0xFF43:
		return b.ppu.SCX()
	case addr == 0xFF44:
		return b.ppu.LY()
	case addr == 0xFF45:
		return b.ppu.LYC()
	case addr == 0xFF46:
		return 0xFF // DMA register is write-only in practice
	case addr == 0xFF47:
		return b.ppu.BGP()
	case addr == 0xFF48:
		return b.ppu.OBP0()
	case addr == 0xFF49:
		return b.ppu.OBP1()
	case addr == 0xFF4A:
		return b.ppu.WY()
	case addr == 0xFF4B:
		return b.ppu.WX()
	case addr == 0xFF50:
		return 0xFF
	case addr <= 0xFF7F:
		return 0xFF // unimplemented IO
	case addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ic.IE
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, v byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, v)
	case addr <= 0x9FFF:
		b.ppu.WriteVRAM(addr, v)
	case addr <= 0xBFFF:
		b.cart.Write(addr, v)
	case addr <= 0xDFFF:
		b.wram[addr-0xC000] = v
	case addr <= 0xFDFF:
		b.wram[(addr-0x2000)-0xC000] = v
	case addr <= 0xFE9F:
		if b.dma.Active() {
			return
		}
		b.ppu.WriteOAM(addr, v)
	case addr <= 0xFEFF:
		// unusable region, writes ignored
	case addr == 0xFF00:
		b.joypad.Write(v)
	case addr == 0xFF01:
		b.serial.WriteSB(v)
	case addr == 0xFF02:
		b.serial.WriteSC(v)
	case addr == 0xFF04:
		b.timer.WriteDIV()
	case addr == 0xFF05:
		b.timer.WriteTIMA(v)
	case addr == 0xFF06:
		b.timer.WriteTMA(v)
	case addr == 0xFF07:
		b.timer.WriteTAC(v)
	case addr == 0xFF0F:
		b.ic.New = (b.ic.New &^ 0x1F) | (v & 0x1F)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, v)
	case addr == 0xFF40:
		b.ppu.WriteLCDC(v)
	case addr == 0xFF41:
		b.ppu.WriteSTAT(v)
	case addr == 0xFF42:
		b.ppu.WriteSCY(v)
	case addr == 0xFF43:
		b.ppu.WriteSCX(v)
	case addr == 0xFF44:
		// LY is read-only on real hardware; writes have no effect.
	case addr == 0xFF45:
		b.ppu.WriteLYC(v)
	case addr == 0xFF46:
		b.dma.Trigger(v)
	case addr == 0xFF47:
		b.ppu.WriteBGP(v)
	case addr == 0xFF48:
		b.ppu.WriteOBP0(v)
	case addr == 0xFF49:
		b.ppu.WriteOBP1(v)
	case addr == 0xFF4A:
		b.ppu.WriteWY(v)
	case addr == 0xFF4B:
		b.ppu.WriteWX(v)
	case addr == 0xFF50:
		if v != 0x00 {
			b.bootEnabled = false
		}
	case addr <= 0xFF7F:
		// unimplemented IO, ignored
	case addr <= 0xFFFE:
		b.hram[addr-0xFF80] = v
	case addr == 0xFFFF:
		b.ic.IE = v
	}
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.serial.SetWriter(w) }

// BootROM returns the currently staged boot ROM bytes, if any, for reset
// paths that want to restage the same boot ROM on a fresh Bus.
func (b *Bus) BootROM() []byte { return b.bootROM }

// SetBootROM loads a DMG boot ROM to be mapped at 0x0000-0x00FF until disabled via 0xFF50 write.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances every subsystem by n T-cycles, n must be a multiple of 4
// (one M-cycle), per the scheduling model of spec.md §4.3: the interrupt
// controller's double-buffered IF is committed once per M-cycle before
// any subsystem observes it.
func (b *Bus) Tick(n int) {
	for ; n >= 4; n -= 4 {
		b.ic.Commit()
		b.ppu.Tick()
		b.timer.Tick()
		b.serial.Tick()
		b.dma.Tick()
		b.apu.Tick(4)
	}
}

// --- Save/Load state ---

type busState struct {
	WRAM        [0x2000]byte
	HRAM        [0x7F]byte
	BootEnabled bool

	IC     interrupt.Controller
	Timer  timer.State
	Serial serial.State
	Joypad joypad.State
	DMA    dma.State
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram, BootEnabled: b.bootEnabled,
		IC:     *b.ic,
		Timer:  b.timer.SaveState(),
		Serial: b.serial.SaveState(),
		Joypad: b.joypad.SaveState(),
		DMA:    b.dma.SaveState(),
	}
	_ = enc.Encode(s)
	_ = enc.Encode(b.ppu.SaveState())
	_ = enc.Encode(b.apu.SaveState())
	if sc, ok := b.cart.(interface{ SaveState() []byte }); ok {
		_ = enc.Encode(sc.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram, b.hram, b.bootEnabled = s.WRAM, s.HRAM, s.BootEnabled
	*b.ic = s.IC
	b.timer.LoadState(s.Timer)
	b.serial.LoadState(s.Serial)
	b.joypad.LoadState(s.Joypad)
	b.dma.LoadState(s.DMA)

	var ps ppu.State
	if err := dec.Decode(&ps); err == nil {
		b.ppu.LoadState(ps)
	}
	var as []byte
	if err := dec.Decode(&as); err == nil {
		b.apu.LoadState(as)
	}
	var cs []byte
	if err := dec.Decode(&cs); err == nil {
		if lc, ok := b.cart.(interface{ LoadState([]byte) }); ok {
			lc.LoadState(cs)
		}
	}
}
