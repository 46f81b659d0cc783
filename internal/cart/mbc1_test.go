package cart

import "testing"

func TestMBC1ROMBankZeroRemap(t *testing.T) {
	rom := make([]byte, 128*1024)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := newMBC1(rom, 0, false)
	m.Write(0x2000, 0x00) // select bank 0 -> remapped to 1
	if got := m.Read(0x4000); got != 1 {
		t.Fatalf("bank 0 remap: got %d, want 1", got)
	}
	m.Write(0x2000, 0x05)
	if got := m.Read(0x4000); got != 5 {
		t.Fatalf("bank 5 select: got %d, want 5", got)
	}
}

func TestMBC1RAMEnableLatch(t *testing.T) {
	rom := make([]byte, 32*1024)
	m := newMBC1(rom, 8*1024, false)
	m.Write(0xA000, 0x42) // write while disabled: dropped
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("RAM read while disabled = %#x, want 0xFF", got)
	}
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x42)
	if got := m.Read(0xA000); got != 0x42 {
		t.Fatalf("RAM read after enable = %#x, want 0x42", got)
	}
}

func TestMBC1RAMBankingMode(t *testing.T) {
	rom := make([]byte, 32*1024)
	m := newMBC1(rom, 32*1024, false)
	m.Write(0x0000, 0x0A)
	m.Write(0x6000, 0x01) // RAM banking mode
	m.Write(0x4000, 0x02) // select RAM bank 2
	m.Write(0xA000, 0x99)
	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got == 0x99 {
		t.Fatal("bank 0 should not see bank 2's write")
	}
	m.Write(0x4000, 0x02)
	if got := m.Read(0xA000); got != 0x99 {
		t.Fatalf("bank 2 read = %#x, want 0x99", got)
	}
}

func TestDetectMBC1M(t *testing.T) {
	rom := make([]byte, 0x140000+0x4000)
	copy(rom[0x0104:0x0134], nintendoLogo[:])
	copy(rom[0x140104:0x140134], nintendoLogo[:])
	if !detectMBC1M(rom) {
		t.Fatal("expected multicart ROM to be detected")
	}
	plain := make([]byte, 0x140000+0x4000)
	copy(plain[0x0104:0x0134], nintendoLogo[:])
	if detectMBC1M(plain) {
		t.Fatal("expected plain ROM to not be detected as multicart")
	}
}
