package table

import (
	"testing"

	"github.com/hephy-dd/table-control/pkg/types"
)

const testIdentity = "Table Control vtest"

func newTestDispatcher() (*Dispatcher, *Controller) {
	c, _ := newTestController(Options{})
	return NewDispatcher(c, testIdentity), c
}

func TestDispatchIdentify(t *testing.T) {
	d, _ := newTestDispatcher()

	result := d.Dispatch(Command{Verb: VerbIdentify, Dialect: DialectSCPI})
	if result.Err != nil {
		t.Fatalf("identify failed: %v", result.Err)
	}
	if result.Identity != testIdentity {
		t.Fatalf("expected identity %q, got %q", testIdentity, result.Identity)
	}
}

func TestDispatchUnknownPushesForSCPI(t *testing.T) {
	d, c := newTestDispatcher()

	result := d.Dispatch(Command{Verb: VerbUnknown, Dialect: DialectSCPI})
	if result.Err == nil || result.Err.Code != CodeInvalidCommand {
		t.Fatalf("expected invalid command error, got %v", result.Err)
	}

	if got := c.Errors().Count(); got != 1 {
		t.Fatalf("expected 1 stacked error, got %d", got)
	}

	next := d.Dispatch(Command{Verb: VerbQueryErrorNext, Dialect: DialectSCPI})
	if next.Entry.Code != CodeInvalidCommand {
		t.Fatalf("expected stacked code %d, got %d", CodeInvalidCommand, next.Entry.Code)
	}

	empty := d.Dispatch(Command{Verb: VerbQueryErrorNext, Dialect: DialectSCPI})
	if empty.Entry != types.NoError {
		t.Fatalf("expected no-error entry on empty stack, got %v", empty.Entry)
	}
}

func TestDispatchLegacyProtocolErrorNotPushed(t *testing.T) {
	d, c := newTestDispatcher()

	result := d.Dispatch(Command{Verb: VerbUnknown, Dialect: DialectLegacy})
	if result.Err == nil || result.Err.Code != CodeInvalidCommand {
		t.Fatalf("expected invalid command error, got %v", result.Err)
	}

	if got := c.Errors().Count(); got != 0 {
		t.Fatalf("legacy protocol errors must not be stacked, got %d", got)
	}
}

func TestDispatchLegacyMotionErrorPushed(t *testing.T) {
	d, c := newTestDispatcher()

	result := d.Dispatch(Command{
		Verb:    VerbMoveAbsolute,
		Dialect: DialectLegacy,
		Args:    []float64{-1, 0, 0},
	})
	if result.Err == nil || result.Err.Code != CodeLimitExceeded {
		t.Fatalf("expected limit error, got %v", result.Err)
	}

	if got := c.Errors().Count(); got != 1 {
		t.Fatalf("legacy motion errors must be stacked, got %d", got)
	}
}

func TestDispatchPositionState(t *testing.T) {
	d, c := newTestDispatcher()

	result := d.Dispatch(Command{Verb: VerbQueryPositionState, Dialect: DialectLegacy})
	if result.Err != nil {
		t.Fatalf("position state query failed: %v", result.Err)
	}
	if result.MoveState != types.MoveIdle {
		t.Fatalf("expected idle state, got %s", result.MoveState)
	}
	if result.Position != (types.Position{}) {
		t.Fatalf("expected home position, got %v", result.Position)
	}

	if err := c.MoveRelative(types.Position{X: 5}); err != nil {
		t.Fatalf("MoveRelative returned error: %v", err)
	}
	result = d.Dispatch(Command{Verb: VerbQueryPositionState, Dialect: DialectLegacy})
	if result.MoveState != types.MoveMoving {
		t.Fatalf("expected moving state, got %s", result.MoveState)
	}

	waitIdle(t, c)
}

func TestDispatchMoveRelativeSingleAxis(t *testing.T) {
	d, c := newTestDispatcher()

	result := d.Dispatch(Command{
		Verb:    VerbMoveRelative,
		Dialect: DialectLegacy,
		Axis:    types.AxisY,
		Args:    []float64{5},
	})
	if result.Err != nil {
		t.Fatalf("move failed: %v", result.Err)
	}

	waitIdle(t, c)

	want := types.Position{Y: 5}
	if got := c.Position(); got != want {
		t.Fatalf("expected position %v, got %v", want, got)
	}
}

func TestDispatchArityValidation(t *testing.T) {
	d, _ := newTestDispatcher()

	tests := []struct {
		name string
		cmd  Command
	}{
		{"relative too few", Command{Verb: VerbMoveRelative, Args: []float64{1, 2}}},
		{"relative axis too many", Command{Verb: VerbMoveRelative, Axis: types.AxisX, Args: []float64{1, 2}}},
		{"relative bad axis", Command{Verb: VerbMoveRelative, Axis: types.Axis(4), Args: []float64{1}}},
		{"absolute too few", Command{Verb: VerbMoveAbsolute, Args: []float64{1}}},
		{"calibrate partial flags", Command{Verb: VerbCalibrate, Args: []float64{1}}},
		{"joystick no arg", Command{Verb: VerbEnableJoystick}},
	}

	for _, tt := range tests {
		tt.cmd.Dialect = DialectSCPI
		result := d.Dispatch(tt.cmd)
		if result.Err == nil || result.Err.Code != CodeInvalidAttributes {
			t.Fatalf("%s: expected invalid attributes, got %v", tt.name, result.Err)
		}
	}
}

func TestDispatchCalibrateAxisSelection(t *testing.T) {
	d, c := newTestDispatcher()

	result := d.Dispatch(Command{
		Verb:    VerbCalibrate,
		Dialect: DialectInternal,
		Args:    []float64{1, 0, 0},
	})
	if result.Err != nil {
		t.Fatalf("calibrate failed: %v", result.Err)
	}

	waitIdle(t, c)

	cal := c.Calibration()
	if cal.X != types.CalCalibrated|types.CalRangeMeasured {
		t.Fatalf("expected X axis calibrated, got %v", cal)
	}
	if cal.Y != 0 || cal.Z != 0 {
		t.Fatalf("expected Y and Z untouched, got %v", cal)
	}
}

func TestDispatchClearErrors(t *testing.T) {
	d, c := newTestDispatcher()

	d.Dispatch(Command{Verb: VerbUnknown, Dialect: DialectSCPI})
	d.Dispatch(Command{Verb: VerbUnknown, Dialect: DialectSCPI})

	count := d.Dispatch(Command{Verb: VerbQueryErrorCount, Dialect: DialectSCPI})
	if count.Count != 2 {
		t.Fatalf("expected 2 stacked errors, got %d", count.Count)
	}

	if result := d.Dispatch(Command{Verb: VerbClearErrors, Dialect: DialectSCPI}); result.Err != nil {
		t.Fatalf("clear failed: %v", result.Err)
	}
	if got := c.Errors().Count(); got != 0 {
		t.Fatalf("expected empty stack after clear, got %d", got)
	}
}
