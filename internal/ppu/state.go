package ppu

// State is the gob-serializable snapshot of the PPU, per spec.md §7.
type State struct {
	VRAM [0x2000]byte
	OAM  [0xA0]byte

	LCDEnable, WindowTileMap9C, WindowEnable                bool
	BGTileData8000, BGTileMap9C, ObjSize16, ObjEnable, BGEnable bool

	LYCIRQEnable, Mode2IRQEnable, VBlankIRQEnable, HBlankIRQEnable bool
	StatLine bool

	SCY, SCX, LY, LYC       byte
	LyEqLyc, NewLyEqLyc     bool
	WY, WX                  byte
	BGP, OBP0, OBP1         byte

	State       int
	StateCycles int
	LineY       byte
	WinY        byte
	FrameWY     byte
	Frame       uint64

	RenderX         int
	RenderingWindow bool
	Mode3Length     int

	LineObj      [10]sprite
	LineObjCount int
	OAMIndex     int

	NewFrameEdge       bool
	DisplayDelayFrames int

	Framebuffer [ScreenWidth * ScreenHeight]uint32
}

func (p *PPU) SaveState() State {
	return State{
		VRAM: p.vram, OAM: p.oam,
		LCDEnable: p.lcdEnable, WindowTileMap9C: p.windowTileMap9C, WindowEnable: p.windowEnable,
		BGTileData8000: p.bgTileData8000, BGTileMap9C: p.bgTileMap9C, ObjSize16: p.objSize16,
		ObjEnable: p.objEnable, BGEnable: p.bgEnable,
		LYCIRQEnable: p.lycIRQEnable, Mode2IRQEnable: p.mode2IRQEnable,
		VBlankIRQEnable: p.vblankIRQEnable, HBlankIRQEnable: p.hblankIRQEnable, StatLine: p.statLine,
		SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		LyEqLyc: p.lyEqLyc, NewLyEqLyc: p.newLyEqLyc,
		WY: p.wy, WX: p.wx, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		State: int(p.state), StateCycles: p.stateCycles, LineY: p.lineY, WinY: p.winY,
		FrameWY: p.frameWY, Frame: p.frame,
		RenderX: p.renderX, RenderingWindow: p.renderingWindow, Mode3Length: p.mode3Length,
		LineObj: p.lineObj, LineObjCount: p.lineObjCount, OAMIndex: p.oamIndex,
		NewFrameEdge: p.newFrameEdge, DisplayDelayFrames: p.displayDelayFrames,
		Framebuffer: p.framebuffer,
	}
}

func (p *PPU) LoadState(s State) {
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdEnable, p.windowTileMap9C, p.windowEnable = s.LCDEnable, s.WindowTileMap9C, s.WindowEnable
	p.bgTileData8000, p.bgTileMap9C, p.objSize16 = s.BGTileData8000, s.BGTileMap9C, s.ObjSize16
	p.objEnable, p.bgEnable = s.ObjEnable, s.BGEnable
	p.lycIRQEnable, p.mode2IRQEnable = s.LYCIRQEnable, s.Mode2IRQEnable
	p.vblankIRQEnable, p.hblankIRQEnable, p.statLine = s.VBlankIRQEnable, s.HBlankIRQEnable, s.StatLine
	p.scy, p.scx, p.ly, p.lyc = s.SCY, s.SCX, s.LY, s.LYC
	p.lyEqLyc, p.newLyEqLyc = s.LyEqLyc, s.NewLyEqLyc
	p.wy, p.wx, p.bgp, p.obp0, p.obp1 = s.WY, s.WX, s.BGP, s.OBP0, s.OBP1
	p.state, p.stateCycles, p.lineY, p.winY = state(s.State), s.StateCycles, s.LineY, s.WinY
	p.frameWY, p.frame = s.FrameWY, s.Frame
	p.renderX, p.renderingWindow, p.mode3Length = s.RenderX, s.RenderingWindow, s.Mode3Length
	p.lineObj, p.lineObjCount, p.oamIndex = s.LineObj, s.LineObjCount, s.OAMIndex
	p.newFrameEdge, p.displayDelayFrames = s.NewFrameEdge, s.DisplayDelayFrames
	p.framebuffer = s.Framebuffer
}
