package cart

import "testing"

func TestMBC3ROMBankSelect(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := newMBC3(rom, 0, false)
	m.Write(0x2000, 0x00) // 0 maps to 1
	if got := m.Read(0x4000); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	m.Write(0x2000, 0x0A)
	if got := m.Read(0x4000); got != 0x0A {
		t.Fatalf("got %d, want 10", got)
	}
}

func TestMBC3RAMBankSelect(t *testing.T) {
	rom := make([]byte, 32*1024)
	m := newMBC3(rom, 32*1024, true)
	m.Write(0x0000, 0x0A)
	m.Write(0x4000, 0x02)
	m.Write(0xA000, 0x77)
	saved := m.SaveRAM()
	if saved[0x4000] != 0x77 {
		t.Fatalf("expected saved RAM bank 2 offset 0 to be 0x77, got %#x", saved[0x4000])
	}
}

func TestMBC3IgnoresRTCSelect(t *testing.T) {
	rom := make([]byte, 32*1024)
	m := newMBC3(rom, 8*1024, false)
	m.Write(0x0000, 0x0A)
	m.Write(0x4000, 0x08) // RTC register select: ignored, ram bank stays 0
	m.Write(0xA000, 0x55)
	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got != 0x55 {
		t.Fatalf("got %#x, want 0x55", got)
	}
}
