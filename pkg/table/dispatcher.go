package table

import (
	"github.com/hephy-dd/table-control/pkg/types"
)

// Dialect identifies where a command originated. Protocol-class errors
// are pushed onto the error stack for every dialect except the legacy
// one, which reports them inline only.
type Dialect int

const (
	DialectInternal Dialect = iota
	DialectSCPI
	DialectLegacy
)

// Verb is the protocol-agnostic operation of an internal command.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbIdentify
	VerbClearErrors
	VerbQueryPosition
	VerbQueryCalibration
	VerbQueryMoveState
	VerbQueryPositionState
	VerbMoveRelative
	VerbMoveAbsolute
	VerbAbort
	VerbCalibrate
	VerbRangeMeasure
	VerbQueryErrorNext
	VerbQueryErrorCount
	VerbEnableJoystick
)

// Command is the internal representation every protocol parser and the
// HTTP surface produce. A single-axis relative move carries Axis and
// one argument; three-axis moves carry three arguments and no axis.
type Command struct {
	Verb    Verb
	Dialect Dialect
	Axis    types.Axis
	Args    []float64
}

// Result carries the outcome of a dispatched command back to the
// protocol-specific formatter. Only the fields relevant to the verb
// are populated; Err is nil on success.
type Result struct {
	Identity    string
	Position    types.Position
	Calibration types.CalibrationState
	MoveState   types.MoveState
	Entry       types.ErrorEntry
	Count       int
	Err         *Error
}

// Dispatcher validates internal commands and routes them to the
// controller. It owns the policy of which failures reach the error
// stack; manual GUI actions and remote protocol commands are
// indistinguishable here.
type Dispatcher struct {
	ctrl     *Controller
	identity string
}

func NewDispatcher(ctrl *Controller, identity string) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, identity: identity}
}

func (d *Dispatcher) Dispatch(cmd Command) Result {
	switch cmd.Verb {
	case VerbIdentify:
		return Result{Identity: d.identity}

	case VerbClearErrors:
		d.ctrl.Errors().Clear()
		return Result{}

	case VerbQueryPosition:
		return Result{Position: d.ctrl.Position()}

	case VerbQueryCalibration:
		return Result{Calibration: d.ctrl.Calibration()}

	case VerbQueryMoveState:
		return Result{MoveState: d.ctrl.MoveState()}

	case VerbQueryPositionState:
		pos, state := d.ctrl.PositionState()
		return Result{Position: pos, MoveState: state}

	case VerbQueryErrorNext:
		entry, ok := d.ctrl.Errors().PopOldest()
		if !ok {
			entry = types.NoError
		}
		return Result{Entry: entry}

	case VerbQueryErrorCount:
		return Result{Count: d.ctrl.Errors().Count()}

	case VerbMoveRelative:
		delta, ok := moveVector(cmd)
		if !ok {
			return d.fail(cmd, ErrInvalidAttributes)
		}
		if err := d.ctrl.MoveRelative(delta); err != nil {
			return d.fail(cmd, err)
		}
		return Result{}

	case VerbMoveAbsolute:
		if len(cmd.Args) != 3 {
			return d.fail(cmd, ErrInvalidAttributes)
		}
		target := types.Position{X: cmd.Args[0], Y: cmd.Args[1], Z: cmd.Args[2]}
		if err := d.ctrl.MoveAbsolute(target); err != nil {
			return d.fail(cmd, err)
		}
		return Result{}

	case VerbAbort:
		if err := d.ctrl.Abort(); err != nil {
			return d.fail(cmd, err)
		}
		return Result{}

	case VerbCalibrate, VerbRangeMeasure:
		x, y, z, ok := axisSelection(cmd.Args)
		if !ok {
			return d.fail(cmd, ErrInvalidAttributes)
		}
		var err *Error
		if cmd.Verb == VerbCalibrate {
			err = d.ctrl.Calibrate(x, y, z)
		} else {
			err = d.ctrl.RangeMeasure(x, y, z)
		}
		if err != nil {
			return d.fail(cmd, err)
		}
		return Result{}

	case VerbEnableJoystick:
		if len(cmd.Args) != 1 {
			return d.fail(cmd, ErrInvalidAttributes)
		}
		if err := d.ctrl.EnableJoystick(cmd.Args[0] != 0); err != nil {
			return d.fail(cmd, err)
		}
		return Result{}
	}

	return d.fail(cmd, ErrInvalidCommand)
}

// fail records the failure on the error stack unless it is a protocol
// error from the legacy dialect, which is reported inline only.
func (d *Dispatcher) fail(cmd Command, err *Error) Result {
	if !(err.IsProtocol() && cmd.Dialect == DialectLegacy) {
		d.ctrl.Errors().Push(err.Entry())
	}
	return Result{Err: err}
}

// moveVector resolves the delta of a relative move: either one value
// on a selected axis or a full three-axis vector.
func moveVector(cmd Command) (types.Position, bool) {
	if cmd.Axis != 0 {
		if !cmd.Axis.Valid() || len(cmd.Args) != 1 {
			return types.Position{}, false
		}
		return types.AxisDelta(cmd.Axis, cmd.Args[0]), true
	}
	if len(cmd.Args) != 3 {
		return types.Position{}, false
	}
	return types.Position{X: cmd.Args[0], Y: cmd.Args[1], Z: cmd.Args[2]}, true
}

// axisSelection interprets calibration arguments as per-axis flags.
// No arguments selects all three axes.
func axisSelection(args []float64) (x, y, z, ok bool) {
	switch len(args) {
	case 0:
		return true, true, true, true
	case 3:
		return args[0] != 0, args[1] != 0, args[2] != 0, true
	}
	return false, false, false, false
}
