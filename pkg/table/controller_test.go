package table

import (
	"sync"
	"testing"
	"time"

	"github.com/hephy-dd/table-control/pkg/driver"
	"github.com/hephy-dd/table-control/pkg/types"
)

var testLimits = types.Limits{
	X: types.AxisLimits{Min: 0, Max: 1000},
	Y: types.AxisLimits{Min: 0, Max: 1000},
	Z: types.AxisLimits{Min: 0, Max: 100},
}

// newTestController wires a controller to a fast simulator. The poll
// loop is not started; tests drive the state machine by calling
// refresh directly.
func newTestController(opts Options) (*Controller, *driver.Simulator) {
	sim := driver.NewSimulator(1e6)
	sim.SetCalibrationDuration(10 * time.Millisecond)

	if opts.Limits == (types.Limits{}) {
		opts.Limits = testLimits
	}
	if opts.LockTimeout == 0 {
		opts.LockTimeout = time.Minute
	}

	c := NewController(sim, opts)
	c.refresh()
	return c, sim
}

// waitIdle polls the state machine until the move cycle settles.
func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	for i := 0; i < 200; i++ {
		time.Sleep(5 * time.Millisecond)
		c.refresh()
		if c.MoveState() == types.MoveIdle {
			return
		}
	}
	t.Fatalf("table did not settle to idle, state=%s", c.MoveState())
}

func TestMoveRelativeLifecycle(t *testing.T) {
	c, _ := newTestController(Options{})

	if err := c.MoveRelative(types.Position{X: 10, Y: 20, Z: 5}); err != nil {
		t.Fatalf("MoveRelative returned error: %v", err)
	}
	if c.MoveState() != types.MoveMoving {
		t.Fatalf("expected moving state, got %s", c.MoveState())
	}

	waitIdle(t, c)

	want := types.Position{X: 10, Y: 20, Z: 5}
	if got := c.Position(); got != want {
		t.Fatalf("expected position %v, got %v", want, got)
	}
}

func TestMoveRejectedWhileMoving(t *testing.T) {
	c, _ := newTestController(Options{})

	if err := c.MoveRelative(types.Position{X: 10}); err != nil {
		t.Fatalf("MoveRelative returned error: %v", err)
	}

	err := c.MoveRelative(types.Position{X: 1})
	if err != ErrMoveInProgress {
		t.Fatalf("expected move-in-progress rejection, got %v", err)
	}
	if err := c.MoveAbsolute(types.Position{X: 1}); err != ErrMoveInProgress {
		t.Fatalf("expected move-in-progress rejection, got %v", err)
	}

	waitIdle(t, c)
}

func TestMoveLimitRejected(t *testing.T) {
	c, _ := newTestController(Options{})

	err := c.MoveRelative(types.Position{X: -1})
	if err == nil || err.Code != CodeLimitExceeded {
		t.Fatalf("expected limit error, got %v", err)
	}
	if c.MoveState() != types.MoveIdle {
		t.Fatalf("rejected move must not change state, got %s", c.MoveState())
	}

	if err := c.MoveAbsolute(types.Position{Z: 101}); err == nil || err.Code != CodeLimitExceeded {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestAbortIdleIsNoop(t *testing.T) {
	c, _ := newTestController(Options{})

	if err := c.Abort(); err != nil {
		t.Fatalf("aborting an idle table should not fail: %v", err)
	}
	if c.MoveState() != types.MoveIdle {
		t.Fatalf("expected idle state, got %s", c.MoveState())
	}
}

func TestAbortStopsMovement(t *testing.T) {
	sim := driver.NewSimulator(0.001)
	c := NewController(sim, Options{Limits: testLimits, LockTimeout: time.Minute})
	c.refresh()

	if err := c.MoveRelative(types.Position{X: 500}); err != nil {
		t.Fatalf("MoveRelative returned error: %v", err)
	}
	if err := c.Abort(); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}
	if c.MoveState() != types.MoveAborting {
		t.Fatalf("expected aborting state, got %s", c.MoveState())
	}

	waitIdle(t, c)

	if got := c.Position(); got.X >= 500 {
		t.Fatalf("aborted move should not reach target, got %v", got)
	}
}

func TestCalibrationEngagesLock(t *testing.T) {
	c, _ := newTestController(Options{})

	if err := c.Calibrate(true, true, true); err != nil {
		t.Fatalf("Calibrate returned error: %v", err)
	}
	if c.MoveState() != types.MoveMoving {
		t.Fatalf("expected moving state during calibration, got %s", c.MoveState())
	}

	waitIdle(t, c)

	if !c.Calibration().Complete() {
		t.Fatalf("expected complete calibration, got %v", c.Calibration())
	}
	if !c.Lock().Engaged() {
		t.Fatalf("expected calibration lock engaged after completion")
	}

	if err := c.Calibrate(true, true, true); err != ErrCalibrationLocked {
		t.Fatalf("expected calibration-locked rejection, got %v", err)
	}
	if err := c.RangeMeasure(true, true, true); err != ErrCalibrationLocked {
		t.Fatalf("expected calibration-locked rejection, got %v", err)
	}
}

func TestCalibrationLockReleasesByTimeout(t *testing.T) {
	released := make(chan struct{}, 1)
	c, _ := newTestController(Options{
		LockTimeout:   30 * time.Millisecond,
		OnLockRelease: func() { released <- struct{}{} },
	})

	if err := c.Calibrate(true, true, true); err != nil {
		t.Fatalf("Calibrate returned error: %v", err)
	}
	waitIdle(t, c)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("lock did not release by timeout")
	}

	if err := c.Calibrate(true, true, true); err != nil {
		t.Fatalf("calibration should be allowed after lock release: %v", err)
	}
	waitIdle(t, c)
}

func TestStagedAbsoluteMove(t *testing.T) {
	zLimit := 25.0
	c, _ := newTestController(Options{ZLimit: &zLimit})

	// Below the safe height the move is a single leg.
	if err := c.MoveAbsolute(types.Position{X: 10, Y: 10, Z: 50}); err != nil {
		t.Fatalf("MoveAbsolute returned error: %v", err)
	}
	waitIdle(t, c)

	// Above the safe height the table drops first, travels, then settles Z.
	if err := c.MoveAbsolute(types.Position{X: 50, Y: 60, Z: 10}); err != nil {
		t.Fatalf("MoveAbsolute returned error: %v", err)
	}

	c.stateMu.RLock()
	stages := len(c.stages)
	c.stateMu.RUnlock()
	if stages != 2 {
		t.Fatalf("expected 2 remaining legs, got %d", stages)
	}

	waitIdle(t, c)

	want := types.Position{X: 50, Y: 60, Z: 10}
	if got := c.Position(); got != want {
		t.Fatalf("expected position %v, got %v", want, got)
	}
}

// stallingDriver wraps the simulator and blocks MoveRelative until
// released, imitating unresponsive hardware.
type stallingDriver struct {
	driver.Driver
	started chan struct{}
	release chan struct{}
}

func (d *stallingDriver) MoveRelative(delta types.Position) error {
	close(d.started)
	<-d.release
	return d.Driver.MoveRelative(delta)
}

func TestQueriesRespondDuringSlowDriverCommand(t *testing.T) {
	drv := &stallingDriver{
		Driver:  driver.NewSimulator(1e6),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewController(drv, Options{Limits: testLimits, LockTimeout: time.Minute})
	c.refresh()

	moveDone := make(chan struct{})
	go func() {
		defer close(moveDone)
		if err := c.MoveRelative(types.Position{X: 10}); err != nil {
			t.Errorf("MoveRelative returned error: %v", err)
		}
	}()
	<-drv.started

	got := make(chan types.Position, 1)
	go func() { got <- c.Position() }()
	select {
	case <-got:
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("position query blocked behind the in-flight driver command")
	}
	if state := c.MoveState(); state != types.MoveIdle {
		t.Fatalf("state must not change before the driver accepts, got %s", state)
	}

	close(drv.release)
	<-moveDone
	waitIdle(t, c)
}

// countingDriver records how many absolute moves reach the hardware.
type countingDriver struct {
	driver.Driver
	mu       sync.Mutex
	absolute int
}

func (d *countingDriver) MoveAbsolute(target types.Position) error {
	d.mu.Lock()
	d.absolute++
	d.mu.Unlock()
	return d.Driver.MoveAbsolute(target)
}

func (d *countingDriver) absoluteCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.absolute
}

func TestAbortBeforeStagedHandoff(t *testing.T) {
	drv := &countingDriver{Driver: driver.NewSimulator(1e6)}
	c := NewController(drv, Options{Limits: testLimits, LockTimeout: time.Minute})
	c.refresh()

	// A staged move whose first leg has settled: the driver is idle
	// and one leg is still queued.
	c.stateMu.Lock()
	c.moveState = types.MoveMoving
	c.stages = []types.Position{{X: 50, Y: 60, Z: 10}}
	c.stateMu.Unlock()

	if err := c.Abort(); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}

	c.refresh()
	if got := drv.absoluteCalls(); got != 0 {
		t.Fatalf("no staged leg may start after abort, driver saw %d", got)
	}
	if c.MoveState() != types.MoveIdle {
		t.Fatalf("expected idle state after abort settled, got %s", c.MoveState())
	}
}

func TestStagedHandoffRechecksMoveState(t *testing.T) {
	drv := &countingDriver{Driver: driver.NewSimulator(1e6)}
	c := NewController(drv, Options{Limits: testLimits, LockTimeout: time.Minute})
	c.refresh()

	// An abort interleaving between stage detection and handoff leaves
	// the state machine aborting; the handoff must back off.
	c.stateMu.Lock()
	c.moveState = types.MoveAborting
	c.stages = []types.Position{{X: 50, Y: 60, Z: 10}}
	c.stateMu.Unlock()

	c.issueNextStage()
	if got := drv.absoluteCalls(); got != 0 {
		t.Fatalf("staged leg issued while aborting, driver saw %d", got)
	}
}

func TestAbortClearsStagedMove(t *testing.T) {
	zLimit := 25.0
	c, _ := newTestController(Options{ZLimit: &zLimit})

	if err := c.MoveAbsolute(types.Position{Z: 50}); err != nil {
		t.Fatalf("MoveAbsolute returned error: %v", err)
	}
	waitIdle(t, c)

	if err := c.MoveAbsolute(types.Position{X: 50, Z: 10}); err != nil {
		t.Fatalf("MoveAbsolute returned error: %v", err)
	}
	if err := c.Abort(); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}

	waitIdle(t, c)

	c.stateMu.RLock()
	stages := len(c.stages)
	c.stateMu.RUnlock()
	if stages != 0 {
		t.Fatalf("abort should clear staged legs, %d remain", stages)
	}
}
