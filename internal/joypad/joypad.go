// Package joypad implements the JOYP matrix select, opposite-direction
// filtering, and high->low edge interrupt of spec.md §4.8.
package joypad

const ifJoypadBit = 4

// Buttons is the polled button state; true means pressed.
type Buttons struct {
	Right, Left, Up, Down bool
	A, B, Select, Start   bool
}

type RequestFunc func(bit int)

// Joypad owns the JOYP register and button state. Button state is
// refreshed from a host-supplied callback whenever JOYP is read, or set
// directly via SetButtons.
type Joypad struct {
	selectButtons bool // P15: 0 selects the action-button group
	selectDPad    bool // P14: 0 selects the d-pad group

	buttons Buttons

	AllowSimultaneousOpposites bool

	lastP10P13 byte // previous matrix output, for edge detection

	Poll func(*Buttons)

	request RequestFunc
}

func New(request RequestFunc) *Joypad {
	return &Joypad{request: request, lastP10P13: 0x0F}
}

func (j *Joypad) SetButtons(b Buttons) {
	j.buttons = b
	j.filterOpposites()
	j.updateEdge()
}

func (j *Joypad) filterOpposites() {
	if j.AllowSimultaneousOpposites {
		return
	}
	if j.buttons.Left && j.buttons.Right {
		j.buttons.Left = false
	}
	if j.buttons.Up && j.buttons.Down {
		j.buttons.Up = false
	}
}

// matrixLow4 computes the active-low 4-bit matrix output for the
// currently selected group(s); both groups are ORed if both are selected.
func (j *Joypad) matrixLow4() byte {
	out := byte(0x0F)
	if !j.selectDPad {
		if j.buttons.Right {
			out &^= 0x01
		}
		if j.buttons.Left {
			out &^= 0x02
		}
		if j.buttons.Up {
			out &^= 0x04
		}
		if j.buttons.Down {
			out &^= 0x08
		}
	}
	if !j.selectButtons {
		if j.buttons.A {
			out &^= 0x01
		}
		if j.buttons.B {
			out &^= 0x02
		}
		if j.buttons.Select {
			out &^= 0x04
		}
		if j.buttons.Start {
			out &^= 0x08
		}
	}
	return out
}

func (j *Joypad) updateEdge() {
	newLow := j.matrixLow4()
	falling := j.lastP10P13 &^ newLow
	if falling != 0 && j.request != nil {
		j.request(ifJoypadBit)
	}
	j.lastP10P13 = newLow
}

// Read returns JOYP (0xFF00): upper two bits read as 1, selection bits as
// last written, lower 4 bits the (possibly OR'd) matrix output.
func (j *Joypad) Read() byte {
	if j.Poll != nil {
		j.Poll(&j.buttons)
		j.filterOpposites()
	}
	sel := byte(0)
	if j.selectButtons {
		sel |= 0x20
	}
	if j.selectDPad {
		sel |= 0x10
	}
	res := 0xC0 | sel | j.matrixLow4()
	j.updateEdge()
	return res
}

// Write handles a write to JOYP: only bits 4-5 (group select) are latched.
func (j *Joypad) Write(v byte) {
	j.selectDPad = v&0x10 != 0
	j.selectButtons = v&0x20 != 0
	j.updateEdge()
}

type State struct {
	SelectButtons, SelectDPad bool
	Buttons                   Buttons
	LastP10P13                byte
}

func (j *Joypad) SaveState() State {
	return State{j.selectButtons, j.selectDPad, j.buttons, j.lastP10P13}
}

func (j *Joypad) LoadState(s State) {
	j.selectButtons, j.selectDPad = s.SelectButtons, s.SelectDPad
	j.buttons, j.lastP10P13 = s.Buttons, s.LastP10P13
}
