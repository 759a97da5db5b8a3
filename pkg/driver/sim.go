package driver

import (
	"sync"
	"time"

	"github.com/hephy-dd/table-control/pkg/types"
)

// Simulator emulates a table in software for testing without physical
// hardware. Motion advances linearly at a configurable velocity,
// interpolated against the monotonic clock on every observation.
type Simulator struct {
	mu sync.Mutex

	vel         float64
	calDuration time.Duration

	pos    types.Position
	start  types.Position
	target types.Position
	t0     time.Time
	moving bool

	cal         types.CalibrationState
	calAxes     [3]bool
	calDeadline time.Time
}

var _ Driver = &Simulator{}

// NewSimulator returns a simulator moving at vel units per second on
// every axis.
func NewSimulator(vel float64) *Simulator {
	if vel <= 0 {
		vel = 2.0
	}
	return &Simulator{
		vel:         vel,
		calDuration: 100 * time.Millisecond,
	}
}

// SetCalibrationDuration overrides how long a simulated calibration
// run takes.
func (s *Simulator) SetCalibrationDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calDuration = d
}

func (s *Simulator) Identify() ([]string, error) {
	return []string{"Simulator, v1.0"}, nil
}

func (s *Simulator) Configure() error {
	return nil
}

// clampStep advances one axis from start toward target at vel units
// per second over dt, without overshooting.
func clampStep(start, target, vel, dt float64) float64 {
	if vel == 0 || start == target {
		return target
	}
	if target > start {
		stepped := start + vel*dt
		if stepped > target {
			return target
		}
		return stepped
	}
	stepped := start - vel*dt
	if stepped < target {
		return target
	}
	return stepped
}

// update recomputes pos and moving from elapsed time. Callers must
// hold s.mu.
func (s *Simulator) update() {
	now := time.Now()

	if !s.calDeadline.IsZero() && now.After(s.calDeadline) {
		// Calibration homes the selected axes to zero and marks them done.
		done := types.CalCalibrated | types.CalRangeMeasured
		if s.calAxes[0] {
			s.cal.X = done
			s.pos.X = 0
		}
		if s.calAxes[1] {
			s.cal.Y = done
			s.pos.Y = 0
		}
		if s.calAxes[2] {
			s.cal.Z = done
			s.pos.Z = 0
		}
		s.calDeadline = time.Time{}
		s.calAxes = [3]bool{}
		s.moving = false
	}

	if !s.moving || !s.calDeadline.IsZero() {
		return
	}

	dt := now.Sub(s.t0).Seconds()
	s.pos = types.Position{
		X: clampStep(s.start.X, s.target.X, s.vel, dt),
		Y: clampStep(s.start.Y, s.target.Y, s.vel, dt),
		Z: clampStep(s.start.Z, s.target.Z, s.vel, dt),
	}
	if s.pos == s.target {
		s.moving = false
	}
}

func (s *Simulator) Position() (types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
	return s.pos, nil
}

func (s *Simulator) IsMoving() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
	return s.moving || !s.calDeadline.IsZero(), nil
}

func (s *Simulator) MoveRelative(delta types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
	s.start = s.pos
	s.target = s.pos.Add(delta)
	s.t0 = time.Now()
	s.moving = true
	return nil
}

func (s *Simulator) MoveAbsolute(target types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
	s.start = s.pos
	s.target = target
	s.t0 = time.Now()
	s.moving = true
	return nil
}

func (s *Simulator) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
	s.moving = false
	s.calDeadline = time.Time{}
	s.calAxes = [3]bool{}
	return nil
}

func (s *Simulator) Calibrate(x, y, z bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
	s.calAxes = [3]bool{x, y, z}
	s.calDeadline = time.Now().Add(s.calDuration)
	return nil
}

func (s *Simulator) RangeMeasure(x, y, z bool) error {
	return s.Calibrate(x, y, z)
}

func (s *Simulator) CalibrationState() (types.CalibrationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
	return s.cal, nil
}

func (s *Simulator) EnableJoystick(bool) error {
	return nil
}

func (s *Simulator) Close() error {
	return nil
}
