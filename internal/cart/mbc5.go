package cart

import (
	"bytes"
	"encoding/gob"
)

// mbc5 implements cart types 0x19-0x1E: a 9-bit ROM bank split across two
// latches and a 4-bit RAM bank. Unlike MBC1/MBC3, bank 0 is a legal
// switchable-area selection (no "0 maps to 1" remap).
type mbc5 struct {
	rom []byte
	ram []byte

	ramEnable ramEnableLatch
	romBankLo byte
	romBankHi byte // bit 0 only
	ramBank   byte // 0..15
	battery   bool
}

func newMBC5(rom []byte, ramSize int, battery bool) *mbc5 {
	m := &mbc5{rom: rom, battery: battery}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBankLo = 1
	return m
}

func (m *mbc5) romBank() int {
	return int(m.romBankHi&0x01)<<8 | int(m.romBankLo)
}

func (m *mbc5) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		off := m.romBank()*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBank&0x0F)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc5) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnable.write(value)
	case addr < 0x3000:
		m.romBankLo = value
	case addr < 0x4000:
		m.romBankHi = value & 0x01
	case addr < 0x6000:
		m.ramBank = value & 0x0F
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled || len(m.ram) == 0 {
			return
		}
		off := int(m.ramBank&0x0F)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc5) SaveRAM() []byte {
	if len(m.ram) == 0 || !m.battery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mbc5) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type mbc5State struct {
	RAM                          []byte
	RAMEnable                    bool
	ROMBankLo, ROMBankHi, RAMBank byte
}

func (m *mbc5) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc5State{
		RAM: m.ram, RAMEnable: m.ramEnable.enabled,
		ROMBankLo: m.romBankLo, ROMBankHi: m.romBankHi, RAMBank: m.ramBank,
	})
	return buf.Bytes()
}

func (m *mbc5) LoadState(data []byte) {
	var s mbc5State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.ramEnable.enabled = s.RAMEnable
	m.romBankLo, m.romBankHi, m.ramBank = s.ROMBankLo, s.ROMBankHi, s.RAMBank
}
