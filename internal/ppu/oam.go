package ppu

// scanOAM runs the full 40-entry mode-2 sprite scan in one shot (the
// scheduler only observes mode-2 boundaries, not its 20 internal
// M-cycle steps) and fills lineObj with up to 10 sprites, sorted
// ascending by X, stable on ties, per spec.md §4.5.
func (p *PPU) scanOAM() {
	p.lineObjCount = 0
	height := byte(8)
	if p.objSize16 {
		height = 16
	}
	for i := 0; i < 40 && p.lineObjCount < 10; i++ {
		base := i * 4
		y := p.oam[base]
		x := p.oam[base+1]
		tile := p.oam[base+2]
		attrs := p.oam[base+3]

		top := int(y) - 16
		if int(p.lineY) < top || int(p.lineY) >= top+int(height) {
			continue
		}
		s := sprite{y: y, x: x, tile: tile, attrs: attrs, oamIndex: i}
		j := p.lineObjCount
		for j > 0 && p.lineObj[j-1].x > s.x {
			p.lineObj[j] = p.lineObj[j-1]
			j--
		}
		p.lineObj[j] = s
		p.lineObjCount++
	}
}

// computeMode3Length derives the dynamic mode-3 duration from SCX and
// the sprites selected this line, per spec.md §4.5's cycle-penalty
// model, rounded down to a multiple of 4 to match our M-cycle
// scheduling granularity.
func (p *PPU) computeMode3Length() int {
	length := 172 + int(p.scx&7)

	buckets := map[int]int{}
	for i := 0; i < p.lineObjCount; i++ {
		s := p.lineObj[i]
		length += 6
		if s.x == 0 && i == 0 {
			length += int(p.scx & 7)
		}
		adjusted := int(s.x) + int(p.scx&7)
		bucket := adjusted >> 3
		penalty := 5 - (adjusted & 7)
		if penalty < 0 {
			penalty = 0
		}
		if penalty > buckets[bucket] {
			buckets[bucket] = penalty
		}
	}
	for _, v := range buckets {
		length += v
	}
	return length &^ 3
}
