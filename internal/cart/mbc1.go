package cart

import "bytes"
import "encoding/gob"

// mbc1 implements banking for cart types 0x01-0x03, including the MBC1M
// multi-cart variant used by a handful of compilation carts.
//
// Two 8-bit-ish latches per spec.md §3: r2000_3fff selects the low bits of
// the ROM1 bank (5 bits, or 4 bits under MBC1M); r4000_5fff is either the
// high ROM bits (bank_mode=ROM) or the external RAM bank (bank_mode=RAM).
type mbc1 struct {
	rom []byte
	ram []byte

	ramEnable ramEnableLatch

	r2000_3fff byte
	r4000_5fff byte
	bankMode   byte // 0: ROM banking, 1: RAM banking

	multicart bool // MBC1M: low latch is 4 bits, high latch shifts by 4
	battery   bool
}

func newMBC1(rom []byte, ramSize int, battery bool) *mbc1 {
	m := &mbc1{rom: rom, battery: battery}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.r2000_3fff = 1
	m.multicart = detectMBC1M(rom)
	return m
}

// detectMBC1M looks for a valid Nintendo logo at every 0x40000-byte
// boundary (16 ROM banks), the layout multi-cart compilations use.
func detectMBC1M(rom []byte) bool {
	if len(rom) < 0x140000 {
		return false
	}
	found := 0
	for off := 0; off+0x150 <= len(rom); off += 0x40000 {
		if LogoChecksumOK(rom[off:]) {
			found++
		}
	}
	return found >= 2
}

func (m *mbc1) lowMask() byte {
	if m.multicart {
		return 0x0F
	}
	return 0x1F
}

func (m *mbc1) highShift() uint {
	if m.multicart {
		return 4
	}
	return 5
}

func (m *mbc1) romBank() int {
	low := m.r2000_3fff & m.lowMask()
	if low == 0 {
		low = 1
	}
	if m.bankMode == 0 {
		return int(low) | int(m.r4000_5fff&0x03)<<m.highShift()
	}
	return int(low)
}

func (m *mbc1) rom0Bank() int {
	if m.bankMode == 1 {
		return int(m.r4000_5fff&0x03) << m.highShift()
	}
	return 0
}

func (m *mbc1) ramBank() int {
	if m.bankMode == 1 {
		return int(m.r4000_5fff & 0x03)
	}
	return 0
}

func (m *mbc1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		off := m.rom0Bank()*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
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
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnable.write(value)
	case addr < 0x4000:
		m.r2000_3fff = value & 0x1F
	case addr < 0x6000:
		m.r4000_5fff = value & 0x03
	case addr < 0x8000:
		m.bankMode = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnable.enabled || len(m.ram) == 0 {
			return
		}
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc1) SaveRAM() []byte {
	if len(m.ram) == 0 || !m.battery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *mbc1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type mbc1State struct {
	RAM                    []byte
	RAMEnable              bool
	R2000, R4000, BankMode byte
}

func (m *mbc1) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc1State{
		RAM: m.ram, RAMEnable: m.ramEnable.enabled,
		R2000: m.r2000_3fff, R4000: m.r4000_5fff, BankMode: m.bankMode,
	})
	return buf.Bytes()
}

func (m *mbc1) LoadState(data []byte) {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.ramEnable.enabled = s.RAMEnable
	m.r2000_3fff, m.r4000_5fff, m.bankMode = s.R2000, s.R4000, s.BankMode
}
