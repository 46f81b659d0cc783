package cart

import (
	"bytes"
	"encoding/gob"
)

// mmm01 implements the MMM01 multiplexer used by a few multi-cart
// compilations. On the first ROM write it swaps the active cartridge
// window to a new 32 KiB slice selected by the written bank number;
// subsequent writes behave like a reduced MBC1 within that window, per
// spec.md §3.
type mmm01 struct {
	rom []byte
	ram []byte

	ramEnable  ramEnableLatch
	romBank    byte
	ramBank    byte
	bankMode   byte
	unlocked   bool // becomes true after the first ROM-bank-select write
	battery    bool
}

func newMMM01(rom []byte, ramSize int, battery bool) *mmm01 {
	m := &mmm01{rom: rom, battery: battery}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	return m
}

func (m *mmm01) romBankNumber() int {
	bank := int(m.romBank & 0x1F)
	if !m.unlocked {
		// Before the unlock write, the whole ROM is addressed as bank 0/1 of
		// the final 32 KiB slice (the menu code that selects a game).
		return len(m.rom)/0x4000 - 1
	}
	if bank == 0 {
		bank = 1
	}
	return bank | int(m.ramBank&0x03)<<5
}

func (m *mmm01) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		off := (m.romBankNumber()&^1)*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		off := m.romBankNumber()*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBank&0x03)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mmm01) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnable.write(value)
	case addr < 0x4000:
		m.romBank = value & 0x1F
		m.unlocked = true
	case addr < 0x6000:
		m.ramBank = value & 0x03
	case addr < 0x8000:
		m.bankMode = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled || len(m.ram) == 0 {
			return
		}
		off := int(m.ramBank&0x03)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mmm01) SaveRAM() []byte {
	if len(m.ram) == 0 || !m.battery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mmm01) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type mmm01State struct {
	RAM                            []byte
	RAMEnable, Unlocked            bool
	ROMBank, RAMBank, BankMode byte
}

func (m *mmm01) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mmm01State{
		RAM: m.ram, RAMEnable: m.ramEnable.enabled, Unlocked: m.unlocked,
		ROMBank: m.romBank, RAMBank: m.ramBank, BankMode: m.bankMode,
	})
	return buf.Bytes()
}

func (m *mmm01) LoadState(data []byte) {
	var s mmm01State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.ramEnable.enabled = s.RAMEnable
	m.unlocked = s.Unlocked
	m.romBank, m.ramBank, m.bankMode = s.ROMBank, s.RAMBank, s.BankMode
}
