package driver

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/hephy-dd/table-control/pkg/types"
)

// Corvus speaks the Venus-1 command set of the ITK Corvus controller
// through a single resource.
type Corvus struct {
	res Resource
}

var _ Driver = &Corvus{}

func NewCorvus(res Resource) *Corvus {
	return &Corvus{res: res}
}

func (c *Corvus) Identify() ([]string, error) {
	idn, err := c.res.Query("identify")
	if err != nil {
		return nil, err
	}
	version, err := c.res.Query("version")
	if err != nil {
		return nil, err
	}
	return []string{idn + " " + version}, nil
}

func (c *Corvus) Configure() error {
	// Host mode is required before any remote command.
	return c.res.Write("0 mode")
}

func (c *Corvus) Position() (types.Position, error) {
	reply, err := c.res.Query("pos")
	if err != nil {
		return types.Position{}, err
	}
	return parsePositionReply(reply)
}

func (c *Corvus) IsMoving() (bool, error) {
	reply, err := c.res.Query("status")
	if err != nil {
		return false, err
	}
	status, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return false, pkgerrors.Wrapf(err, "unexpected status reply %q", reply)
	}
	return status&0x1 != 0, nil
}

func (c *Corvus) MoveRelative(delta types.Position) error {
	return c.res.Write(fmt.Sprintf("%.6f %.6f %.6f rmove", delta.X, delta.Y, delta.Z))
}

func (c *Corvus) MoveAbsolute(target types.Position) error {
	return c.res.Write(fmt.Sprintf("%.6f %.6f %.6f move", target.X, target.Y, target.Z))
}

func (c *Corvus) Abort() error {
	// Ctrl+C stops any movement.
	return c.res.Write("\x03")
}

func (c *Corvus) Calibrate(x, y, z bool) error {
	return c.perAxis("ncal", x, y, z)
}

func (c *Corvus) RangeMeasure(x, y, z bool) error {
	return c.perAxis("nrm", x, y, z)
}

func (c *Corvus) perAxis(command string, x, y, z bool) error {
	for axis, selected := range []bool{x, y, z} {
		if !selected {
			continue
		}
		if err := c.res.Write(fmt.Sprintf("%d %s", axis+1, command)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Corvus) CalibrationState() (types.CalibrationState, error) {
	reply, err := c.res.Query("-1 getcaldone")
	if err != nil {
		return types.CalibrationState{}, err
	}
	fields := strings.Fields(reply)
	if len(fields) < 3 {
		return types.CalibrationState{}, pkgerrors.Errorf("unexpected getcaldone reply %q", reply)
	}
	var state types.CalibrationState
	for i, dst := range []*int{&state.X, &state.Y, &state.Z} {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return types.CalibrationState{}, pkgerrors.Wrapf(err, "unexpected getcaldone reply %q", reply)
		}
		*dst = v & 0x3
	}
	return state, nil
}

func (c *Corvus) EnableJoystick(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return c.res.Write(fmt.Sprintf("%d joystick", v))
}

func (c *Corvus) Close() error {
	return c.res.Close()
}

func parsePositionReply(reply string) (types.Position, error) {
	fields := strings.Fields(reply)
	if len(fields) < 3 {
		return types.Position{}, pkgerrors.Errorf("unexpected position reply %q", reply)
	}
	var pos types.Position
	for i, dst := range []*float64{&pos.X, &pos.Y, &pos.Z} {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return types.Position{}, pkgerrors.Wrapf(err, "unexpected position reply %q", reply)
		}
		*dst = v
	}
	return pos, nil
}
