package cart

import (
	"bytes"
	"encoding/gob"
)

// huc1 behaves like MBC1 but with a 6-bit/2-bit latch split instead of
// 5-bit/2-bit, per spec.md §3. Its infrared port is not modeled.
type huc1 struct {
	rom []byte
	ram []byte

	ramEnable ramEnableLatch
	romBank   byte // 6 bits, 0 maps to 1
	ramBank   byte // 2 bits
	battery   bool
}

func newHUC1(rom []byte, ramSize int, battery bool) *huc1 {
	m := &huc1{rom: rom, battery: battery}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	return m
}

func (m *huc1) Read(addr uint16) byte {
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

func (m *huc1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnable.write(value)
	case addr < 0x4000:
		v := value & 0x3F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.ramBank = value & 0x03
	case addr < 0x8000:
		// mode select, not distinguished in this model
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

func (m *huc1) SaveRAM() []byte {
	if len(m.ram) == 0 || !m.battery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *huc1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type huc1State struct {
	RAM                []byte
	RAMEnable          bool
	ROMBank, RAMBank byte
}

func (m *huc1) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(huc1State{
		RAM: m.ram, RAMEnable: m.ramEnable.enabled, ROMBank: m.romBank, RAMBank: m.ramBank,
	})
	return buf.Bytes()
}

func (m *huc1) LoadState(data []byte) {
	var s huc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.ramEnable.enabled = s.RAMEnable
	m.romBank, m.ramBank = s.ROMBank, s.RAMBank
}
