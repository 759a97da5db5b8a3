package driver

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/hephy-dd/table-control/pkg/types"
)

// Hydra2x drives X/Y and Z through two separate PI Hydra controllers.
// The first resource carries axes 1 (X) and 2 (Y), the second carries
// axis 1 (Z).
type Hydra2x struct {
	xy Resource
	z  Resource
}

var _ Driver = &Hydra2x{}

func NewHydra2x(xy, z Resource) *Hydra2x {
	return &Hydra2x{xy: xy, z: z}
}

func identifyHydra(res Resource) (string, error) {
	parts := make([]string, 0, 3)
	for _, q := range []string{"identify", "version", "getserialno"} {
		reply, err := res.Query(q)
		if err != nil {
			return "", err
		}
		parts = append(parts, reply)
	}
	return strings.Join(parts, " "), nil
}

func (h *Hydra2x) Identify() ([]string, error) {
	var out []string
	for _, res := range []Resource{h.xy, h.z} {
		idn, err := identifyHydra(res)
		if err != nil {
			return nil, err
		}
		out = append(out, idn)
	}
	return out, nil
}

func (h *Hydra2x) Configure() error {
	return nil
}

func queryFloat(res Resource, message string) (float64, error) {
	reply, err := res.Query(message)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "unexpected reply %q to %q", reply, message)
	}
	return v, nil
}

func queryInt(res Resource, message string) (int, error) {
	reply, err := res.Query(message)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "unexpected reply %q to %q", reply, message)
	}
	return v, nil
}

func (h *Hydra2x) Position() (types.Position, error) {
	x, err := queryFloat(h.xy, "1 np")
	if err != nil {
		return types.Position{}, err
	}
	y, err := queryFloat(h.xy, "2 np")
	if err != nil {
		return types.Position{}, err
	}
	z, err := queryFloat(h.z, "1 np")
	if err != nil {
		return types.Position{}, err
	}
	return types.Position{X: x, Y: y, Z: z}, nil
}

func (h *Hydra2x) IsMoving() (bool, error) {
	for _, res := range []Resource{h.xy, h.z} {
		status, err := queryInt(res, "st")
		if err != nil {
			return false, err
		}
		if status&0x1 != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (h *Hydra2x) MoveRelative(delta types.Position) error {
	if err := h.xy.Write(fmt.Sprintf("%.6f %.6f r", delta.X, delta.Y)); err != nil {
		return err
	}
	return h.z.Write(fmt.Sprintf("%.6f 0 r", delta.Z))
}

func (h *Hydra2x) MoveAbsolute(target types.Position) error {
	if err := h.xy.Write(fmt.Sprintf("%.6f %.6f m", target.X, target.Y)); err != nil {
		return err
	}
	return h.z.Write(fmt.Sprintf("%.6f 0 m", target.Z))
}

func (h *Hydra2x) Abort() error {
	if err := h.xy.Write("\x03"); err != nil {
		return err
	}
	return h.z.Write("\x03")
}

func (h *Hydra2x) Calibrate(x, y, z bool) error {
	return h.perAxis("ncal", x, y, z)
}

func (h *Hydra2x) RangeMeasure(x, y, z bool) error {
	return h.perAxis("nrm", x, y, z)
}

func (h *Hydra2x) perAxis(command string, x, y, z bool) error {
	if x {
		if err := h.xy.Write("1 " + command); err != nil {
			return err
		}
	}
	if y {
		if err := h.xy.Write("2 " + command); err != nil {
			return err
		}
	}
	if z {
		if err := h.z.Write("1 " + command); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hydra2x) CalibrationState() (types.CalibrationState, error) {
	// Bits 3..4 of the axis status word hold cal/rm done flags.
	x, err := queryInt(h.xy, "1 nst")
	if err != nil {
		return types.CalibrationState{}, err
	}
	y, err := queryInt(h.xy, "2 nst")
	if err != nil {
		return types.CalibrationState{}, err
	}
	z, err := queryInt(h.z, "1 nst")
	if err != nil {
		return types.CalibrationState{}, err
	}
	return types.CalibrationState{
		X: (x >> 3) & 0x3,
		Y: (y >> 3) & 0x3,
		Z: (z >> 3) & 0x3,
	}, nil
}

func (h *Hydra2x) EnableJoystick(enabled bool) error {
	states := 0x0
	if enabled {
		states = 0xF
	}
	for _, res := range []Resource{h.xy, h.z} {
		for _, axis := range []int{1, 2} {
			if err := res.Write(fmt.Sprintf("%d %d setmanctrl", states, axis)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Hydra2x) Close() error {
	err := h.xy.Close()
	if err2 := h.z.Close(); err == nil {
		err = err2
	}
	return err
}
