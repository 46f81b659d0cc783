package interrupt

import "testing"

func TestPendingObservesRequestBeforeCommit(t *testing.T) {
	var c Controller
	c.IE = 0x1F
	c.Request(Timer)
	if c.Pending() == 0 {
		t.Fatal("Pending should observe New directly, not require Commit")
	}
	c.Commit()
	if c.If&(1<<Timer) == 0 {
		t.Fatal("Commit should copy New into If")
	}
}

func TestHighestPriorityOrder(t *testing.T) {
	var c Controller
	c.IE = 0x1F
	c.Request(Joypad)
	c.Request(VBlank)
	c.Request(Timer)
	bit, vector, ok := c.HighestPriority()
	if !ok || bit != VBlank || vector != 0x40 {
		t.Fatalf("got bit=%d vector=%#x ok=%v, want VBlank/0x40", bit, vector, ok)
	}
}

func TestHighestPriorityNoneOk(t *testing.T) {
	var c Controller
	c.IE = 0x1F
	if _, _, ok := c.HighestPriority(); ok {
		t.Fatal("expected ok=false when nothing pending")
	}
}

func TestAcknowledgeClearsNewIF(t *testing.T) {
	var c Controller
	c.IE = 0x1F
	c.Request(STAT)
	c.Acknowledge(STAT)
	if c.Pending() != 0 {
		t.Fatal("Acknowledge should clear the bit from New")
	}
}

func TestShouldDispatchRequiresIMEOrHalt(t *testing.T) {
	var c Controller
	c.IE = 0x1F
	c.Request(Serial)
	if c.ShouldDispatch() {
		t.Fatal("should not dispatch with IME=false and Halt=false")
	}
	c.IME = true
	if !c.ShouldDispatch() {
		t.Fatal("expected dispatch once IME is set with a pending interrupt")
	}
}

func TestPendingMasksAgainstIE(t *testing.T) {
	var c Controller
	c.IE = 1 << VBlank // only VBlank enabled
	c.Request(Timer)
	if c.Pending() != 0 {
		t.Fatal("Timer bit should not be pending when IE does not enable it")
	}
	c.Request(VBlank)
	if c.Pending()&(1<<VBlank) == 0 {
		t.Fatal("VBlank bit should be pending once enabled and requested")
	}
}
