package emu

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/gbcore/dmg/internal/cpu"
)

// saveStateMagic is the fixed prefix of every save-state file; version is
// added to it so future format changes fail loudly on an old file rather
// than silently decoding garbage (spec.md §6).
const saveStateMagic uint32 = 0x6b57a7e0
const saveStateVersion uint32 = 1

// machineState carries the scheduler-level fields that sit above the Bus:
// CPU registers and the monotonic cycle counter. IME/IE/IF live on the
// shared interrupt.Controller and are saved by the bus instead.
type machineState struct {
	CPU         cpu.State
	TotalCycles int
}

// SaveState returns a versioned snapshot: a 4-byte big-endian header,
// the CPU/cycle-counter snapshot, then the Bus's chained gob stream
// (Bus/PPU/APU/cart).
func (m *Machine) SaveState() []byte {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], saveStateMagic+saveStateVersion)
	buf.Write(hdr[:])

	ms := machineState{CPU: m.cpu.SaveState(), TotalCycles: m.totalCycles}
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(ms)

	buf.Write(m.bus.SaveState())
	return buf.Bytes()
}

// LoadState restores a snapshot produced by SaveState.
func (m *Machine) LoadState(data []byte) error {
	if len(data) < 4 {
		return ErrSaveStateSize
	}
	got := binary.BigEndian.Uint32(data[:4])
	if got != saveStateMagic+saveStateVersion {
		return fmt.Errorf("%w: got %08x want %08x", ErrSaveStateHeader, got, saveStateMagic+saveStateVersion)
	}

	r := bytes.NewReader(data[4:])
	dec := gob.NewDecoder(r)
	var ms machineState
	if err := dec.Decode(&ms); err != nil {
		return fmt.Errorf("emu: decode machine state: %w", err)
	}
	m.cpu.LoadState(ms.CPU)
	m.totalCycles = ms.TotalCycles

	rest, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("emu: read bus state: %w", err)
	}
	m.bus.LoadState(rest)
	return nil
}

func (m *Machine) SaveStateToFile(path string) error {
	if m.bus == nil {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	return os.WriteFile(path, m.SaveState(), 0644)
}

func (m *Machine) LoadStateFromFile(path string) error {
	if m.bus == nil {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
