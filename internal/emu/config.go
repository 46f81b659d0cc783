package emu

// Config contains settings that affect emulation behavior, mirroring the
// Non-goals-scoped feature toggles of spec.md §6: the core always runs at
// full accuracy, these flags only hide output for debugging/comparison.
type Config struct {
	Trace    bool // log CPU instructions
	LimitFPS bool // throttle to ~60 Hz (useful for headless test mode)

	// UseFetcherBG is a legacy rendering-path toggle kept for UI/config
	// compatibility; the scanline renderer has a single code path now
	// (see DESIGN.md), so this has no effect beyond being echoed back by
	// the getters the UI reads.
	UseFetcherBG bool

	DisableBG     bool
	DisableWindow bool
	DisableOBJ    bool
	DisableSound  [4]bool // per-channel mute: square1, square2, wave, noise

	// AllowSimultaneousDPadOpposites disables the real-hardware filtering
	// that drops Left+Right or Up+Down held together; off by default.
	AllowSimultaneousDPadOpposites bool

	// LogLevel selects verbosity for Logf: 0=quiet, 1=info, 2=trace.
	LogLevel int
}
