package emu

// cgbCompatSets are the tint palettes applied over the 4 DMG gray shades
// when "DMG compatibility color" is engaged, a cosmetic feature supplementing
// the original's CGB-on-DMG boot palette selection (see DESIGN.md) without
// emulating actual CGB hardware. Packed 0xAARRGGBB, matching ppu.shadeRGBA's
// convention, ordered lightest (index 0, mapped from DMG white) to darkest
// (index 3, mapped from DMG black).
var cgbCompatSets = [6][4]uint32{
	{0xFFE0F8D0, 0xFF88C070, 0xFF346856, 0xFF081820}, // 0: Green (classic LCD)
	{0xFFFFF6D3, 0xFFD9A066, 0xFF8B5523, 0xFF3B2006}, // 1: Sepia
	{0xFFE8F4FF, 0xFF7FB8E0, 0xFF3A6B9E, 0xFF0E2840}, // 2: Blue
	{0xFFFFE8E0, 0xFFE08070, 0xFFA03828, 0xFF400C08}, // 3: Red
	{0xFFFAF0FF, 0xFFD8B8E8, 0xFF8868A8, 0xFF302048}, // 4: Pastel
	{0xFFFFFFFF, 0xFFAAAAAA, 0xFF555555, 0xFF000000}, // 5: Grayscale (no-op)
}

var cgbCompatSetNames = []string{"Green", "Sepia", "Blue", "Red", "Pastel", "Grayscale"}

// shadeIndex maps a raw PPU framebuffer pixel back to its 0..3 DMG shade
// index, recognizing the four fixed colorWhite/LightGray/DarkGray/Black
// constants ppu.applyPalette emits.
func shadeIndex(px uint32) (int, bool) {
	switch px {
	case 0xFFFFFFFF:
		return 0, true
	case 0xFFAAAAAA:
		return 1, true
	case 0xFF555555:
		return 2, true
	case 0xFF000000:
		return 3, true
	default:
		return 0, false
	}
}

// WantCGBColors reports whether the user has asked for DMG-compatibility
// tinting, independent of whether it is actually engaged right now.
func (m *Machine) WantCGBColors() bool { return m.wantCGBColors }

// UseCGBBG reports whether tinting is currently applied to the framebuffer.
func (m *Machine) UseCGBBG() bool { return m.cgbActive }

// SetUseCGBBG toggles tinting. Each time it is turned on it picks an
// automatic palette from the loaded ROM's header, replacing any palette
// chosen before.
func (m *Machine) SetUseCGBBG(v bool) {
	m.wantCGBColors = v
	m.cgbActive = v && m.header != nil
	if m.cgbActive {
		if id, ok := autoCompatPaletteFromHeader(m.header); ok {
			m.compatPaletteID = id % len(cgbCompatSets)
		}
	}
}

// ResetCGBPostBoot resets the machine (preserving the cartridge) and, if
// clean is true, re-engages tinting immediately after the reset.
func (m *Machine) ResetCGBPostBoot(clean bool) {
	want := m.wantCGBColors
	m.ResetPostBoot()
	if clean && want {
		m.SetUseCGBBG(true)
	}
}

// IsCGBCompat reports whether tinting is currently active for the loaded ROM.
func (m *Machine) IsCGBCompat() bool { return m.cgbActive }

func (m *Machine) SetCompatPalette(id int) {
	if id < 0 || id >= len(cgbCompatSets) {
		return
	}
	m.compatPaletteID = id
}

func (m *Machine) CycleCompatPalette(delta int) {
	n := len(cgbCompatSets)
	m.compatPaletteID = ((m.compatPaletteID+delta)%n + n) % n
}

func (m *Machine) CurrentCompatPalette() int { return m.compatPaletteID }

func (m *Machine) CompatPaletteName(id int) string {
	if id < 0 || id >= len(cgbCompatSetNames) {
		return "?"
	}
	return cgbCompatSetNames[id]
}
