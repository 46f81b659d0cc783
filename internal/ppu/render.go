package ppu

// renderFour renders the next four pixels of the current scanline. The
// scheduler only calls Tick once per M-cycle, so a full 4-pixel-per-cycle
// fetch/shift pipeline (spec.md §4.5's pixel FIFO) is collapsed into a
// single pass over 4 columns; this is cycle-accurate to M-cycle
// granularity but does not model per-T-cycle FIFO stalls on window/
// sprite fetch restarts.
func (p *PPU) renderFour() {
	for i := 0; i < 4 && p.renderX < ScreenWidth; i++ {
		p.renderPixel()
		p.renderX++
	}
}

func (p *PPU) renderPixel() {
	x := p.renderX

	bgIndex := byte(0)
	if p.bgEnable && !p.DisableBG {
		bgIndex = p.bgColorIndex(x, false)
	}

	useWindow := p.windowEnable && !p.DisableWindow &&
		int(p.lineY) >= int(p.frameWY) && x+7 >= int(p.wx) && p.wx <= 166
	if useWindow {
		p.renderingWindow = true
		if p.bgEnable {
			bgIndex = p.bgColorIndex(x, true)
		}
	}

	color := applyPalette(p.bgp, bgIndex)

	if p.objEnable && !p.DisableOBJ {
		if si, colorIdx, attrs, ok := p.spritePixel(x); ok {
			_ = si
			behind := attrs&0x80 != 0
			if !behind || bgIndex == 0 {
				palette := p.obp0
				if attrs&0x10 != 0 {
					palette = p.obp1
				}
				color = applyPalette(palette, colorIdx)
			}
		}
	}

	p.framebuffer[int(p.lineY)*ScreenWidth+x] = color
}

// bgColorIndex returns the 2-bit BG/window color index at screen column x.
func (p *PPU) bgColorIndex(x int, window bool) byte {
	var tileMapHigh bool
	var mapX, mapY int
	if window {
		tileMapHigh = p.windowTileMap9C
		mapX = x - (int(p.wx) - 7)
		mapY = int(p.winY)
	} else {
		tileMapHigh = p.bgTileMap9C
		mapX = (int(p.scx) + x) & 0xFF
		mapY = (int(p.scy) + int(p.lineY)) & 0xFF
	}
	tileCol := (mapX / 8) & 31
	tileRow := (mapY / 8) & 31
	fineX := mapX % 8
	fineY := mapY % 8

	mapBase := 0x1800
	if tileMapHigh {
		mapBase = 0x1C00
	}
	tileIdx := p.vram[mapBase+tileRow*32+tileCol]

	var dataAddr int
	if p.bgTileData8000 {
		dataAddr = int(tileIdx) * 16
	} else {
		dataAddr = 0x1000 + int(int8(tileIdx))*16
	}
	lo := p.vram[dataAddr+fineY*2]
	hi := p.vram[dataAddr+fineY*2+1]
	bit := 7 - fineX
	return (hi>>bit&1)<<1 | (lo >> bit & 1)
}

// spritePixel returns the highest-priority sprite covering screen column x.
func (p *PPU) spritePixel(x int) (oamIndex int, colorIdx byte, attrs byte, ok bool) {
	height := 8
	if p.objSize16 {
		height = 16
	}
	for i := 0; i < p.lineObjCount; i++ {
		s := p.lineObj[i]
		screenX := int(s.x) - 8
		if x < screenX || x >= screenX+8 {
			continue
		}
		row := int(p.lineY) - (int(s.y) - 16)
		if s.attrs&0x40 != 0 {
			row = height - 1 - row
		}
		tile := s.tile
		if height == 16 {
			tile &^= 0x01
			if row >= 8 {
				tile |= 0x01
				row -= 8
			}
		}
		col := x - screenX
		if s.attrs&0x20 != 0 {
			col = 7 - col
		}
		dataAddr := int(tile) * 16
		lo := p.vram[dataAddr+row*2]
		hi := p.vram[dataAddr+row*2+1]
		bit := 7 - col
		idx := (hi>>bit&1)<<1 | (lo >> bit & 1)
		if idx == 0 {
			continue
		}
		return s.oamIndex, idx, s.attrs, true
	}
	return 0, 0, 0, false
}
