package cart

import (
	"bytes"
	"encoding/gob"
)

// mbc3 implements cart types 0x0F-0x13: a 7-bit ROM bank and 3-bit RAM
// bank. The real-time-clock registers (0x08-0x0C select) are explicit
// non-goals per spec.md §1 and are simply ignored here: such a select
// leaves the current RAM bank in place.
type mbc3 struct {
	rom []byte
	ram []byte

	ramEnable ramEnableLatch
	romBank   byte // 7 bits, 0 maps to 1
	ramBank   byte // 0..7 (RTC select values >7 ignored)
	battery   bool
}

func newMBC3(rom []byte, ramSize int, battery bool) *mbc3 {
	m := &mbc3{rom: rom, battery: battery}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	return m
}

func (m *mbc3) Read(addr uint16) byte {
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
		if !m.ramEnable.enabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBank)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnable.write(value)
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x07 {
			m.ramBank = value
		}
		// RTC register select (0x08-0x0C): not modeled, ignored.
	case addr < 0x8000:
		// Latch clock data: not modeled without RTC.
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled || len(m.ram) == 0 {
			return
		}
		off := int(m.ramBank)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc3) SaveRAM() []byte {
	if len(m.ram) == 0 || !m.battery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mbc3) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type mbc3State struct {
	RAM                []byte
	RAMEnable          bool
	ROMBank, RAMBank byte
}

func (m *mbc3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RAM: m.ram, RAMEnable: m.ramEnable.enabled, ROMBank: m.romBank, RAMBank: m.ramBank,
	})
	return buf.Bytes()
}

func (m *mbc3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.ramEnable.enabled = s.RAMEnable
	m.romBank, m.ramBank = s.ROMBank, s.RAMBank
}
