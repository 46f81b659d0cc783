// Package ppu implements the DMG pixel-processing unit: the 12-state
// line pipeline, mode-2 OAM scan, mode-3 rendering with dynamic length,
// sprite selection, and STAT/LY=LYC interrupt triggering, per spec.md §4.5.
package ppu

const (
	ScreenWidth  = 160
	ScreenHeight = 144

	lineTCycles  = 456
	mode2TCycles = 80
	totalLines   = 154
	vblankStart  = 144
)

// state enumerates the 12 PPU pipeline states of spec.md §3.
type state int

const (
	hblank state = iota
	hblankPlus4
	vblank
	vblankPlus4
	vblankLY0
	vblankLY0Plus4
	vblankLineY0
	lcdOnMode2
	mode2
	mode3EarlyTrigger
	mode3
	mode3Common
)

// RequestFunc raises an IF bit (VBlank=0, STAT=1).
type RequestFunc func(bit int)

// sprite is a cached, sorted OAM entry collected during mode 2.
type sprite struct {
	y, x, tile, attrs byte
	oamIndex          int
}

// PPU owns VRAM/OAM, the LCDC/STAT/scroll/palette registers, and the
// per-M-cycle state machine that produces the framebuffer.
type PPU struct {
	vram [0x2000]byte
	oam  [0xA0]byte

	// LCDC bits, unpacked for readability; packed on read/write.
	lcdEnable       bool
	windowTileMap9C bool
	windowEnable    bool
	bgTileData8000  bool
	bgTileMap9C     bool
	objSize16       bool
	objEnable       bool
	bgEnable        bool

	// STAT
	lycIRQEnable   bool
	mode2IRQEnable bool
	vblankIRQEnable bool
	hblankIRQEnable bool
	statLine       bool // latched OR of the four trigger conditions

	scy, scx   byte
	ly, lyc    byte
	lyEqLyc    bool
	newLyEqLyc bool
	wy, wx     byte
	bgp, obp0, obp1 byte

	state       state
	stateCycles int
	lineY       byte
	winY        byte
	frameWY     byte
	frame       uint64

	renderX         int
	renderingWindow bool
	mode3Length     int

	lineObj      [10]sprite
	lineObjCount int
	oamIndex     int

	newFrameEdge       bool
	displayDelayFrames int

	// Disable* implement the host-side "hide a layer" debug config
	// (spec.md §6 Config): they zero out a layer's contribution without
	// altering any timing.
	DisableBG     bool
	DisableWindow bool
	DisableOBJ    bool

	framebuffer [ScreenWidth * ScreenHeight]uint32

	request RequestFunc
}

func New(request RequestFunc) *PPU {
	p := &PPU{request: request}
	p.lcdEnable = true
	p.bgEnable = true
	p.bgp = 0xFC
	p.state = hblankPlus4
	p.stateCycles = 4
	p.lyEqLyc, p.newLyEqLyc = true, true // LY == LYC == 0 at reset
	for i := range p.framebuffer {
		p.framebuffer[i] = colorWhite
	}
	return p
}

// Framebuffer returns the 160x144 RGBA pixel array, valid until the next Tick.
func (p *PPU) Framebuffer() *[ScreenWidth * ScreenHeight]uint32 { return &p.framebuffer }

// ConsumeNewFrame reports and clears the new-frame edge used by the
// scheduler's RunUntil event mask.
func (p *PPU) ConsumeNewFrame() bool {
	v := p.newFrameEdge
	p.newFrameEdge = false
	return v
}

// Tick advances the PPU by one M-cycle (4 T-cycles), per spec.md §4.3.
func (p *PPU) Tick() {
	if !p.lcdEnable {
		return
	}
	p.lyEqLyc = p.newLyEqLyc

	if p.state == mode3 || p.state == mode3Common {
		p.renderFour()
	}

	p.stateCycles -= 4
	if p.stateCycles <= 0 {
		p.transition()
	}

	p.newLyEqLyc = p.ly == p.lyc
	p.evaluateStatIRQ()
}

func (p *PPU) currentMode() byte {
	switch p.state {
	case hblank, hblankPlus4:
		return 0
	case vblank, vblankPlus4, vblankLY0, vblankLY0Plus4, vblankLineY0:
		return 1
	case lcdOnMode2, mode2:
		return 2
	default:
		return 3
	}
}

func (p *PPU) evaluateStatIRQ() {
	mode := p.currentMode()
	line := (mode == 0 && p.hblankIRQEnable) ||
		(mode == 1 && p.vblankIRQEnable) ||
		(mode == 2 && p.mode2IRQEnable) ||
		(p.lyEqLyc && p.lycIRQEnable)
	if line && !p.statLine && p.request != nil {
		p.request(1)
	}
	p.statLine = line
}

func (p *PPU) transition() {
	switch p.state {
	case hblank:
		if p.lineY == vblankStart-1 {
			p.lineY = vblankStart
			p.ly = vblankStart
			p.state = vblank
			p.stateCycles = lineTCycles - 4
			p.newFrameEdge = true
			if p.request != nil {
				p.request(0)
			}
		} else {
			p.state = hblankPlus4
			p.stateCycles = 4
		}
	case hblankPlus4:
		if p.renderingWindow {
			p.winY++
		}
		p.lineY++
		p.ly = p.lineY
		p.oamIndex = 0
		p.lineObjCount = 0
		p.state = mode2
		p.stateCycles = mode2TCycles
	case vblank:
		p.state = vblankPlus4
		p.stateCycles = 4
	case vblankPlus4:
		if p.lineY < totalLines-1 {
			p.lineY++
			p.ly = p.lineY
			p.state = vblank
			p.stateCycles = lineTCycles - 4
		} else {
			p.state = vblankLY0
			p.stateCycles = 4
			p.ly = 0
		}
	case vblankLY0:
		p.state = vblankLY0Plus4
		p.stateCycles = 4
	case vblankLY0Plus4:
		p.state = vblankLineY0
		p.stateCycles = lineTCycles - 4 - 4
	case vblankLineY0:
		p.lineY = 0
		p.ly = 0
		p.frame++
		p.winY = 0
		p.frameWY = p.wy
		if p.displayDelayFrames > 0 {
			p.displayDelayFrames--
		}
		p.state = hblankPlus4
		p.stateCycles = 4
		p.oamIndex = 0
		p.lineObjCount = 0
	case lcdOnMode2:
		p.enterMode3()
	case mode2:
		p.scanOAM()
		p.enterMode3()
	case mode3EarlyTrigger:
		p.state = mode3Common
		p.stateCycles = 1
	case mode3, mode3Common:
		p.state = hblank
		hb := lineTCycles - mode2TCycles - p.mode3Length - 4
		if hb < 0 {
			hb = 0
		}
		p.stateCycles = hb
		if p.stateCycles == 0 {
			p.stateCycles = 1 // always make forward progress
		}
	}
}

func (p *PPU) enterMode3() {
	p.mode3Length = p.computeMode3Length()
	p.renderX = 0
	p.renderingWindow = false
	p.state = mode3
	p.stateCycles = p.mode3Length
}
