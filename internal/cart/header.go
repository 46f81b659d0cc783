package cart

import (
	"encoding/binary"
	"strings"
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// romBankCounts indexes rom_size code -> bank count, per spec.md §3.
var romBankCounts = [9]int{2, 4, 8, 16, 32, 64, 128, 256, 512}

// extRAMSizes indexes ext_ram_size code -> bytes, per spec.md §3.
var extRAMSizes = [6]int{0, 2 * 1024, 8 * 1024, 32 * 1024, 128 * 1024, 64 * 1024}

// Header holds the cartridge info parsed once at offset 0x0100.
type Header struct {
	Title          string
	CGBFlag        byte
	SGBFlag        byte
	CartType       byte
	ROMSizeCode    byte
	RAMSizeCode    byte
	HeaderChecksum byte
	GlobalChecksum uint16
	OldLicensee    byte
	NewLicensee    string

	ROMBanks     int
	ROMSizeBytes int
	RAMSizeBytes int

	// ChecksumBad records a header-checksum mismatch; logged, not fatal.
	ChecksumBad bool
}

// ParseHeader reads the fixed-layout DMG header starting at 0x0100.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < 0x0150 {
		return nil, ErrROMTooSmall
	}
	h := &Header{
		Title:          strings.TrimRight(string(rom[0x0134:0x0144]), "\x00"),
		CGBFlag:        rom[0x0143],
		SGBFlag:        rom[0x0146],
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
		OldLicensee:    rom[0x014B],
		NewLicensee:    string(rom[0x0144:0x0146]),
	}
	if int(h.ROMSizeCode) < len(romBankCounts) {
		h.ROMBanks = romBankCounts[h.ROMSizeCode]
		h.ROMSizeBytes = h.ROMBanks * 0x4000
	}
	if int(h.RAMSizeCode) < len(extRAMSizes) {
		h.RAMSizeBytes = extRAMSizes[h.RAMSizeCode]
	}
	return h, nil
}

var cartTypeNames = map[byte]string{
	0x00: "ROM ONLY", 0x01: "MBC1", 0x02: "MBC1+RAM", 0x03: "MBC1+RAM+BATTERY",
	0x05: "MBC2", 0x06: "MBC2+BATTERY", 0x08: "ROM+RAM", 0x09: "ROM+RAM+BATTERY",
	0x0B: "MMM01", 0x0C: "MMM01+RAM", 0x0D: "MMM01+RAM+BATTERY",
	0x0F: "MBC3+TIMER+BATTERY", 0x10: "MBC3+TIMER+RAM+BATTERY", 0x11: "MBC3",
	0x12: "MBC3+RAM", 0x13: "MBC3+RAM+BATTERY",
	0x19: "MBC5", 0x1A: "MBC5+RAM", 0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE", 0x1D: "MBC5+RUMBLE+RAM", 0x1E: "MBC5+RUMBLE+RAM+BATTERY",
	0xFC: "POCKET CAMERA", 0xFD: "BANDAI TAMA5", 0xFE: "HUC3", 0xFF: "HUC1+RAM+BATTERY",
}

// CartTypeStr returns a human-readable name for CartType, for logging.
func (h *Header) CartTypeStr() string {
	if name, ok := cartTypeNames[h.CartType]; ok {
		return name
	}
	return "UNKNOWN"
}

// HasBattery reports whether cart_type declares battery-backed RAM.
func (h *Header) HasBattery() bool {
	switch h.CartType {
	case 0x03, 0x06, 0x09, 0x0D, 0x0F, 0x10, 0x13, 0x1B, 0x1E, 0xFF, 0xFE:
		return true
	default:
		return false
	}
}

// HeaderChecksumOK verifies the byte at 0x014D against the sum over
// 0x0134..0x014C, per spec.md §3's cart-info invariant.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

// LogoChecksumOK recomputes the shift-xor over the boot logo bytes
// (0x0104..0x0133) and compares it against the fixed constant produced
// by the real Nintendo logo, per spec.md §3. The sum is 8 bits wide, so
// only the last eight logo bytes (0x012C..0x0133) influence the result.
func LogoChecksumOK(rom []byte) bool {
	if len(rom) < 0x0134 {
		return false
	}
	var sum byte
	for i := 0; i < 48; i++ {
		sum = (sum << 1) ^ rom[0x0104+i]
	}
	var want byte
	for i := 0; i < 48; i++ {
		want = (want << 1) ^ nintendoLogo[i]
	}
	return sum == want
}

// multiCartInfos returns the header parsed at every 32 KiB boundary of a
// multi-cart image that embeds several independent games. The MMM01 and
// MBC1M mappers do not call it; they bank the raw ROM image directly.
func multiCartInfos(rom []byte) []*Header {
	var infos []*Header
	for off := 0; off+0x0150 <= len(rom); off += 32 * 1024 {
		if h, err := ParseHeader(rom[off:]); err == nil {
			infos = append(infos, h)
		}
	}
	return infos
}
