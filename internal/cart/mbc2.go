package cart

import (
	"bytes"
	"encoding/gob"
)

// mbc2 implements cart types 0x05/0x06: a 4-bit ROM bank select plus a
// built-in 512x4-bit RAM mapped at the external-RAM window. Per spec.md
// §3, writes to the ROM bank select only take effect when the address's
// bit 8 is set (the same write line otherwise toggles RAM enable).
type mbc2 struct {
	rom []byte
	ram [512]byte // low nibble significant per byte

	ramEnable ramEnableLatch
	romBank   byte // 4 bits, 0 maps to 1
	battery   bool
}

func newMBC2(rom []byte, battery bool) *mbc2 {
	m := &mbc2{rom: rom, battery: battery}
	m.romBank = 1
	return m
}

func (m *mbc2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		off := int(m.romBank)*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled {
			return 0xFF
		}
		return 0xF0 | (m.ram[addr&0x1FF] & 0x0F)
	default:
		return 0xFF
	}
}

func (m *mbc2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x4000:
		if addr&0x0100 != 0 {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		} else {
			m.ramEnable.write(value)
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled {
			return
		}
		m.ram[addr&0x1FF] = value & 0x0F
	}
}

func (m *mbc2) SaveRAM() []byte {
	if !m.battery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram[:])
	return out
}

func (m *mbc2) LoadRAM(data []byte) {
	if len(data) == 0 {
		return
	}
	copy(m.ram[:], data)
}

type mbc2State struct {
	RAM       [512]byte
	RAMEnable bool
	ROMBank   byte
}

func (m *mbc2) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc2State{RAM: m.ram, RAMEnable: m.ramEnable.enabled, ROMBank: m.romBank})
	return buf.Bytes()
}

func (m *mbc2) LoadState(data []byte) {
	var s mbc2State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ram = s.RAM
	m.ramEnable.enabled = s.RAMEnable
	m.romBank = s.ROMBank
}
