package cart

import "testing"

func makeROM(size int, cartType, romSizeCode, ramSizeCode byte) []byte {
	rom := make([]byte, size)
	copy(rom[0x0104:0x0134], nintendoLogo[:])
	copy(rom[0x0134:0x0144], []byte("TESTROM"))
	rom[0x0147] = cartType
	rom[0x0148] = romSizeCode
	rom[0x0149] = ramSizeCode
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	rom[0x014D] = sum
	return rom
}

func TestParseHeaderBanks(t *testing.T) {
	rom := makeROM(64*1024, 0x00, 0x01, 0x02)
	h, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.ROMBanks != 4 {
		t.Fatalf("ROMBanks = %d, want 4", h.ROMBanks)
	}
	if h.RAMSizeBytes != 8*1024 {
		t.Fatalf("RAMSizeBytes = %d, want 8192", h.RAMSizeBytes)
	}
	if h.Title != "TESTROM" {
		t.Fatalf("Title = %q", h.Title)
	}
}

func TestHeaderChecksumOK(t *testing.T) {
	rom := makeROM(32*1024, 0x00, 0x00, 0x00)
	if !HeaderChecksumOK(rom) {
		t.Fatal("expected header checksum to validate")
	}
	rom[0x014D] ^= 0xFF
	if HeaderChecksumOK(rom) {
		t.Fatal("expected header checksum to fail after corruption")
	}
}

func TestLogoChecksumOK(t *testing.T) {
	rom := makeROM(32*1024, 0x00, 0x00, 0x00)
	if !LogoChecksumOK(rom) {
		t.Fatal("expected logo checksum to validate")
	}
	rom[0x0133] ^= 0xFF
	if LogoChecksumOK(rom) {
		t.Fatal("expected logo checksum to fail after corruption")
	}
}

func TestNewRejectsUndersizedROM(t *testing.T) {
	if _, _, err := New(make([]byte, 100)); err != ErrROMTooSmall {
		t.Fatalf("err = %v, want ErrROMTooSmall", err)
	}
}

func TestNewSelectsMBCFamily(t *testing.T) {
	rom := makeROM(128*1024, 0x01, 0x02, 0x00)
	c, h, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h.CartType != 0x01 {
		t.Fatalf("CartType = %#x", h.CartType)
	}
	if _, ok := c.(*mbc1); !ok {
		t.Fatalf("expected *mbc1, got %T", c)
	}
}

func TestNewUnsupportedMBC(t *testing.T) {
	rom := makeROM(32*1024, 0xFD, 0x00, 0x00)
	if _, _, err := New(rom); err != ErrUnsupportedMBC {
		t.Fatalf("err = %v, want ErrUnsupportedMBC", err)
	}
}
