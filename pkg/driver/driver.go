// Package driver provides a uniform capability interface over the
// supported table controller backends: Corvus, Hydra 2x and a software
// simulator. All backends accept move commands asynchronously; motion
// progress is observed by polling Position and IsMoving.
package driver

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/hephy-dd/table-control/pkg/types"
)

// Driver is the capability set shared by all backend variants. Move,
// calibration and range measurement commands return immediately after
// being accepted by the hardware.
type Driver interface {
	// Identify returns one identity string per underlying device.
	Identify() ([]string, error)
	// Configure puts the hardware into remote-control mode.
	Configure() error

	Position() (types.Position, error)
	IsMoving() (bool, error)

	MoveRelative(delta types.Position) error
	MoveAbsolute(target types.Position) error
	// Abort cancels an in-flight move. Aborting an idle table is a
	// no-op, not an error.
	Abort() error

	// Calibrate starts a calibration run on the selected axes.
	Calibrate(x, y, z bool) error
	// RangeMeasure starts a travel range measurement on the selected axes.
	RangeMeasure(x, y, z bool) error
	CalibrationState() (types.CalibrationState, error)

	EnableJoystick(enabled bool) error

	Close() error
}

// New opens the named backend. resources holds one transport address
// per device the backend requires (none for the simulator).
func New(backend string, resources []string, simVelocity float64) (Driver, error) {
	switch backend {
	case "simulator", "dummy":
		return NewSimulator(simVelocity), nil
	case "corvus":
		if len(resources) != 1 {
			return nil, pkgerrors.Errorf("corvus requires 1 resource, got %d", len(resources))
		}
		res, err := OpenResource(resources[0])
		if err != nil {
			return nil, err
		}
		return NewCorvus(res), nil
	case "hydra2x":
		if len(resources) != 2 {
			return nil, pkgerrors.Errorf("hydra2x requires 2 resources, got %d", len(resources))
		}
		xy, err := OpenResource(resources[0])
		if err != nil {
			return nil, err
		}
		z, err := OpenResource(resources[1])
		if err != nil {
			xy.Close()
			return nil, err
		}
		return NewHydra2x(xy, z), nil
	}
	return nil, fmt.Errorf("unknown backend: %q", backend)
}
