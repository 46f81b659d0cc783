package ppu

// LCDC (0xFF40)
func (p *PPU) LCDC() byte {
	var v byte
	if p.lcdEnable {
		v |= 0x80
	}
	if p.windowTileMap9C {
		v |= 0x40
	}
	if p.windowEnable {
		v |= 0x20
	}
	if p.bgTileData8000 {
		v |= 0x10
	}
	if p.bgTileMap9C {
		v |= 0x08
	}
	if p.objSize16 {
		v |= 0x04
	}
	if p.objEnable {
		v |= 0x02
	}
	if p.bgEnable {
		v |= 0x01
	}
	return v
}

func (p *PPU) WriteLCDC(v byte) {
	wasEnabled := p.lcdEnable
	p.lcdEnable = v&0x80 != 0
	p.windowTileMap9C = v&0x40 != 0
	p.windowEnable = v&0x20 != 0
	p.bgTileData8000 = v&0x10 != 0
	p.bgTileMap9C = v&0x08 != 0
	p.objSize16 = v&0x04 != 0
	p.objEnable = v&0x02 != 0
	p.bgEnable = v&0x01 != 0

	if wasEnabled && !p.lcdEnable {
		p.ly = 0
		p.lineY = 0
		p.statLine = false
	} else if !wasEnabled && p.lcdEnable {
		p.lineY = 0
		p.ly = 0
		p.winY = 0
		p.frameWY = p.wy
		p.displayDelayFrames = 4
		p.state = lcdOnMode2
		p.stateCycles = mode2TCycles
		p.oamIndex = 0
		p.lineObjCount = 0
	}
}

// STAT (0xFF41); bit 7 always reads 1.
func (p *PPU) STAT() byte {
	v := byte(0x80) | p.currentMode()
	if p.lyEqLyc {
		v |= 0x04
	}
	if p.hblankIRQEnable {
		v |= 0x08
	}
	if p.vblankIRQEnable {
		v |= 0x10
	}
	if p.mode2IRQEnable {
		v |= 0x20
	}
	if p.lycIRQEnable {
		v |= 0x40
	}
	return v
}

func (p *PPU) WriteSTAT(v byte) {
	p.hblankIRQEnable = v&0x08 != 0
	p.vblankIRQEnable = v&0x10 != 0
	p.mode2IRQEnable = v&0x20 != 0
	p.lycIRQEnable = v&0x40 != 0
}

func (p *PPU) SCY() byte       { return p.scy }
func (p *PPU) WriteSCY(v byte) { p.scy = v }
func (p *PPU) SCX() byte       { return p.scx }
func (p *PPU) WriteSCX(v byte) { p.scx = v }
func (p *PPU) LY() byte        { return p.ly }
func (p *PPU) LYC() byte       { return p.lyc }
func (p *PPU) WriteLYC(v byte) { p.lyc = v }
func (p *PPU) WY() byte        { return p.wy }
func (p *PPU) WriteWY(v byte)  { p.wy = v }
func (p *PPU) WX() byte        { return p.wx }
func (p *PPU) WriteWX(v byte)  { p.wx = v }
func (p *PPU) BGP() byte       { return p.bgp }
func (p *PPU) WriteBGP(v byte) { p.bgp = v }
func (p *PPU) OBP0() byte      { return p.obp0 }
func (p *PPU) WriteOBP0(v byte) { p.obp0 = v }
func (p *PPU) OBP1() byte      { return p.obp1 }
func (p *PPU) WriteOBP1(v byte) { p.obp1 = v }

// VRAMBlocked reports whether the CPU's view of VRAM should read 0xFF /
// ignore writes, per spec.md §4.5 (blocked during mode 3).
func (p *PPU) VRAMBlocked() bool {
	return p.lcdEnable && p.currentMode() == 3
}

// OAMBlocked reports whether the CPU's view of OAM should read 0xFF /
// ignore writes, per spec.md §4.5 (blocked during modes 2 and 3).
func (p *PPU) OAMBlocked() bool {
	if !p.lcdEnable {
		return false
	}
	m := p.currentMode()
	return m == 2 || m == 3
}

func (p *PPU) ReadVRAM(addr uint16) byte {
	if p.VRAMBlocked() {
		return 0xFF
	}
	return p.vram[addr&0x1FFF]
}

func (p *PPU) WriteVRAM(addr uint16, v byte) {
	if p.VRAMBlocked() {
		return
	}
	p.vram[addr&0x1FFF] = v
}

// ReadVRAMRaw/WriteVRAMRaw bypass mode blocking, used by DMA and debug tooling.
func (p *PPU) ReadVRAMRaw(addr uint16) byte    { return p.vram[addr&0x1FFF] }
func (p *PPU) WriteVRAMRaw(addr uint16, v byte) { p.vram[addr&0x1FFF] = v }

func (p *PPU) ReadOAM(addr uint16) byte {
	if p.OAMBlocked() {
		return 0xFF
	}
	return p.oam[addr&0xFF]
}

func (p *PPU) WriteOAM(addr uint16, v byte) {
	if p.OAMBlocked() {
		return
	}
	p.oam[addr&0xFF] = v
}

// WriteOAMDMA is used by the DMA engine: it bypasses mode blocking since
// the DMA unit drives OAM directly from its own sequencing.
func (p *PPU) WriteOAMDMA(offset int, v byte) { p.oam[offset] = v }
