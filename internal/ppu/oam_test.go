package ppu

import "testing"

func TestScanOAMSortsByXAndCapsAtTen(t *testing.T) {
	p := New(nil)
	p.lineY = 50
	for i := 0; i < 15; i++ {
		base := i * 4
		p.oam[base] = 66   // y=66 -> covers screen lines 50..57
		p.oam[base+1] = byte(200 - i)
		p.oam[base+2] = byte(i)
		p.oam[base+3] = 0
	}
	p.scanOAM()
	if p.lineObjCount != 10 {
		t.Fatalf("expected 10 sprites selected, got %d", p.lineObjCount)
	}
	for i := 1; i < p.lineObjCount; i++ {
		if p.lineObj[i-1].x > p.lineObj[i].x {
			t.Fatalf("lineObj not sorted ascending by x at %d", i)
		}
	}
}

func TestScanOAMSkipsSpritesOffLine(t *testing.T) {
	p := New(nil)
	p.lineY = 10
	p.oam[0] = 100 // covers lines 84..91, not line 10
	p.oam[1] = 20
	p.scanOAM()
	if p.lineObjCount != 0 {
		t.Fatalf("expected 0 sprites selected, got %d", p.lineObjCount)
	}
}

func TestComputeMode3LengthBaseline(t *testing.T) {
	p := New(nil)
	l := p.computeMode3Length()
	if l < 172 || l%4 != 0 {
		t.Fatalf("expected baseline mode3 length >=172 and multiple of 4, got %d", l)
	}
}

func TestComputeMode3LengthGrowsWithSprites(t *testing.T) {
	p := New(nil)
	base := p.computeMode3Length()
	p.lineObjCount = 3
	p.lineObj[0] = sprite{x: 20}
	p.lineObj[1] = sprite{x: 60}
	p.lineObj[2] = sprite{x: 100}
	withSprites := p.computeMode3Length()
	if withSprites <= base {
		t.Fatalf("expected mode3 length to grow with sprites: base=%d withSprites=%d", base, withSprites)
	}
}
