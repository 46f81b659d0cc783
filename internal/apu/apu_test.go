package apu

import "testing"

func TestZombieModeBumpsVolumeWhileActive(t *testing.T) {
	a := New(44100)
	a.CPUWrite(0xFF12, 0x08) // vol=0, increase direction, period=0
	a.CPUWrite(0xFF14, 0x80) // trigger, no length
	a.ch1.curVol = 4
	a.ch1.envAuto = true

	a.CPUWrite(0xFF12, 0x08) // rewrite NR12 while active with period 0

	if a.ch1.curVol != 5 {
		t.Fatalf("curVol after zombie write = %d, want 5", a.ch1.curVol)
	}
}

func TestZombieModeDoesNotApplyWithNonzeroPeriod(t *testing.T) {
	a := New(44100)
	a.CPUWrite(0xFF12, 0x19) // vol=1, increase direction, period=1
	a.CPUWrite(0xFF14, 0x80)
	a.ch1.curVol = 4

	a.CPUWrite(0xFF12, 0x19)

	if a.ch1.curVol != 4 {
		t.Fatalf("curVol changed with nonzero envelope period: got %d, want 4", a.ch1.curVol)
	}
}

func TestLengthExtraClockOnOddFrame(t *testing.T) {
	a := New(44100)
	a.fsStep = 1 // odd: next sequencer clock will not tick length
	a.ch1.length = 10
	a.ch1.lenEn = false

	a.CPUWrite(0xFF14, 0x40) // enable length only, no trigger

	if a.ch1.length != 9 {
		t.Fatalf("length = %d, want 9 (immediate extra clock)", a.ch1.length)
	}
}

func TestLengthExtraClockSkippedOnEvenFrame(t *testing.T) {
	a := New(44100)
	a.fsStep = 0 // even: next sequencer clock will tick length itself
	a.ch1.length = 10
	a.ch1.lenEn = false

	a.CPUWrite(0xFF14, 0x40)

	if a.ch1.length != 10 {
		t.Fatalf("length = %d, want 10 (no immediate extra clock)", a.ch1.length)
	}
}

func TestLengthExtraClockOnTriggerReload(t *testing.T) {
	a := New(44100)
	a.fsStep = 3 // odd
	a.ch1.dacOn = true
	a.ch1.length = 0 // trigger reloads to 64

	a.CPUWrite(0xFF14, 0xC0) // trigger + length enable

	if a.ch1.length != 63 {
		t.Fatalf("length after triggered reload+quirk = %d, want 63", a.ch1.length)
	}
}

func TestChannelSampleRespectsDisableChannel(t *testing.T) {
	a := New(44100)
	a.ch1.enabled = true
	a.ch1.dacOn = true
	a.ch1.curVol = 15
	a.ch1.duty = 2
	a.ch1.phase = 0 // dutyTable[2][0] == 1 (50% pattern)

	if got := a.channelSample(0); got != 15 {
		t.Fatalf("channelSample(0) = %d, want 15", got)
	}
	a.DisableChannel[0] = true
	if got := a.channelSample(0); got != 0 {
		t.Fatalf("channelSample(0) with DisableChannel = %d, want 0", got)
	}
}

func TestEmitSampleAveragesAccumulatorAcrossDivisor(t *testing.T) {
	a := New(44100)
	a.nr50 = 0x77 // max volume both sides
	a.nr51 = 0xFF // route every channel to both sides
	a.accum[0] = 15 * 100
	a.divisor = 100

	a.emitSample()

	frames := a.PullStereo(1)
	if len(frames) != 2 {
		t.Fatalf("PullStereo returned %d values, want 2", len(frames))
	}
	// Only channel 1 contributed, at its maximum per-cycle value (15) over
	// the full divisor: (15*100)*8*16/(32*100) == 60, per the mix formula
	// of spec.md §4.9 ("Resampling").
	want := u8ToPCM16(60)
	if frames[0] != want || frames[1] != want {
		t.Fatalf("frame = (%d,%d), want (%d,%d)", frames[0], frames[1], want, want)
	}
	if a.divisor != 0 {
		t.Fatalf("divisor after emit = %d, want 0", a.divisor)
	}
}

func TestResamplerEmitsAtConfiguredRate(t *testing.T) {
	a := New(44100)
	a.CPUWrite(0xFF26, 0x80) // power on
	a.CPUWrite(0xFF25, 0xFF)
	a.CPUWrite(0xFF24, 0x77)
	a.CPUWrite(0xFF12, 0xF0) // ch1 vol=15, no envelope
	a.CPUWrite(0xFF14, 0x80) // trigger, no length

	a.Tick(cpuHz / 4) // exactly a quarter second of T-cycles

	avail := a.StereoAvailable()
	// A quarter second at 44.1kHz is 11025 stereo frames, which fits in
	// the ring buffer, so every emitted frame is still buffered.
	if avail != 44100/4 {
		t.Fatalf("StereoAvailable = %d after a quarter second, want %d", avail, 44100/4)
	}
	if avail > len(a.sL) {
		t.Fatalf("StereoAvailable = %d, exceeds ring capacity %d", avail, len(a.sL))
	}
}

func TestPowerUpResetsFrameSequencerToStep7(t *testing.T) {
	a := New(44100)
	a.CPUWrite(0xFF26, 0x00) // power off
	a.fsStep = 3
	a.CPUWrite(0xFF26, 0x80) // power on
	if a.fsStep != 7 {
		t.Fatalf("fsStep after power-up = %d, want 7", a.fsStep)
	}
}
