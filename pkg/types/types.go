// Package types holds the wire-level data model shared by the daemon,
// the protocol servers, and the HTTP clients.
package types

import (
	"fmt"
	"time"
)

// Axis indexes one of the table's three linear degrees of freedom.
// The numbering matches the legacy protocol's MR command.
type Axis int

const (
	AxisX Axis = 1
	AxisY Axis = 2
	AxisZ Axis = 3
)

func (a Axis) Valid() bool {
	return a >= AxisX && a <= AxisZ
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Position is a point in table coordinates. Positions are always
// rendered with exactly six fractional digits.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p Position) String() string {
	return fmt.Sprintf("%.6f %.6f %.6f", p.X, p.Y, p.Z)
}

// Add returns p shifted by delta.
func (p Position) Add(delta Position) Position {
	return Position{X: p.X + delta.X, Y: p.Y + delta.Y, Z: p.Z + delta.Z}
}

// AxisDelta returns a position vector with value d on the given axis
// and zero elsewhere.
func AxisDelta(a Axis, d float64) Position {
	switch a {
	case AxisX:
		return Position{X: d}
	case AxisY:
		return Position{Y: d}
	case AxisZ:
		return Position{Z: d}
	}
	return Position{}
}

// Calibration bits reported per axis.
const (
	CalCalibrated    = 0x1
	CalRangeMeasured = 0x2
)

// CalibrationState holds the per-axis calibration bitmask. Each value
// is in 0..3 (bit 0 calibrated, bit 1 range measured).
type CalibrationState struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Complete reports whether every axis is both calibrated and range measured.
func (c CalibrationState) Complete() bool {
	full := CalCalibrated | CalRangeMeasured
	return c.X == full && c.Y == full && c.Z == full
}

func (c CalibrationState) String() string {
	return fmt.Sprintf("%d %d %d", c.X, c.Y, c.Z)
}

// MoveState is the motion state of the table as a whole. At most one
// move cycle is active at a time; new requests while not idle are
// rejected, never queued.
type MoveState int32

const (
	MoveIdle MoveState = iota
	MoveMoving
	MoveAborting
)

func (s MoveState) String() string {
	switch s {
	case MoveIdle:
		return "idle"
	case MoveMoving:
		return "moving"
	case MoveAborting:
		return "aborting"
	}
	return fmt.Sprintf("MoveState(%d)", int32(s))
}

// ErrorEntry is one diagnostic entry on the error stack.
type ErrorEntry struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NoError is returned by the error query when the stack is empty.
var NoError = ErrorEntry{Code: 0, Message: "no error"}

// AxisLimits bounds travel on a single axis.
type AxisLimits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (l AxisLimits) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Limits bounds travel on all three axes.
type Limits struct {
	X AxisLimits `json:"x"`
	Y AxisLimits `json:"y"`
	Z AxisLimits `json:"z"`
}

// Contains reports whether p lies within the configured travel range.
func (l Limits) Contains(p Position) bool {
	return l.X.Contains(p.X) && l.Y.Contains(p.Y) && l.Z.Contains(p.Z)
}

// Status is the snapshot reported to HTTP clients.
type Status struct {
	Position          Position         `json:"position"`
	MoveState         string           `json:"moveState"`
	Moving            bool             `json:"moving"`
	Calibration       CalibrationState `json:"calibration"`
	CalibrationLocked bool             `json:"calibrationLocked"`
	LockExpiresAt     *time.Time       `json:"lockExpiresAt,omitempty"`
	ErrorCount        int              `json:"errorCount"`
}
