package driver

import (
	"testing"
	"time"

	"github.com/hephy-dd/table-control/pkg/types"
)

func TestClampStep(t *testing.T) {
	tests := []struct {
		name                  string
		start, target, vel, d float64
		want                  float64
	}{
		{"forward partial", 0, 10, 1, 4, 4},
		{"forward overshoot clamps", 0, 10, 1, 100, 10},
		{"backward partial", 10, 0, 1, 4, 6},
		{"backward overshoot clamps", 10, 0, 1, 100, 0},
		{"already at target", 5, 5, 1, 10, 5},
		{"zero velocity snaps", 0, 10, 0, 1, 10},
	}

	for _, tt := range tests {
		if got := clampStep(tt.start, tt.target, tt.vel, tt.d); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestSimulatorMoveCompletes(t *testing.T) {
	s := NewSimulator(1e6)

	if err := s.MoveRelative(types.Position{X: 10, Y: 20, Z: 5}); err != nil {
		t.Fatalf("MoveRelative returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		moving, err := s.IsMoving()
		if err != nil {
			t.Fatalf("IsMoving returned error: %v", err)
		}
		if !moving {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("simulated move did not complete")
		}
		time.Sleep(time.Millisecond)
	}

	pos, err := s.Position()
	if err != nil {
		t.Fatalf("Position returned error: %v", err)
	}
	want := types.Position{X: 10, Y: 20, Z: 5}
	if pos != want {
		t.Fatalf("expected position %v, got %v", want, pos)
	}
}

func TestSimulatorAbortFreezesPosition(t *testing.T) {
	s := NewSimulator(0.001)

	if err := s.MoveRelative(types.Position{X: 500}); err != nil {
		t.Fatalf("MoveRelative returned error: %v", err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}

	moving, _ := s.IsMoving()
	if moving {
		t.Fatalf("expected simulator stopped after abort")
	}
	pos, _ := s.Position()
	if pos.X >= 500 {
		t.Fatalf("aborted move should not reach target, got %v", pos)
	}
}

func TestSimulatorCalibrationHomesAxes(t *testing.T) {
	s := NewSimulator(1e6)
	s.SetCalibrationDuration(10 * time.Millisecond)

	if err := s.MoveAbsolute(types.Position{X: 10, Y: 10, Z: 10}); err != nil {
		t.Fatalf("MoveAbsolute returned error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := s.Calibrate(true, false, true); err != nil {
		t.Fatalf("Calibrate returned error: %v", err)
	}

	moving, _ := s.IsMoving()
	if !moving {
		t.Fatalf("expected simulator busy during calibration")
	}

	time.Sleep(20 * time.Millisecond)

	moving, _ = s.IsMoving()
	if moving {
		t.Fatalf("expected calibration finished")
	}

	cal, _ := s.CalibrationState()
	done := types.CalCalibrated | types.CalRangeMeasured
	if cal.X != done || cal.Z != done {
		t.Fatalf("expected X and Z calibrated, got %v", cal)
	}
	if cal.Y != 0 {
		t.Fatalf("expected Y untouched, got %v", cal)
	}

	pos, _ := s.Position()
	if pos.X != 0 || pos.Z != 0 {
		t.Fatalf("calibrated axes should be homed to zero, got %v", pos)
	}
	if pos.Y != 10 {
		t.Fatalf("uncalibrated axis should keep its position, got %v", pos)
	}
}
