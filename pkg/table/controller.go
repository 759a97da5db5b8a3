// Package table holds the shared control core: the controller wrapping
// the hardware driver with snapshot state and a poll loop, the error
// stack, the calibration interlock and the protocol-agnostic command
// dispatcher.
package table

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hephy-dd/table-control/pkg/driver"
	"github.com/hephy-dd/table-control/pkg/types"
)

// Options configures a Controller.
type Options struct {
	Limits        types.Limits
	PollInterval  time.Duration
	ErrorStackCap int
	LockTimeout   time.Duration
	// OnLockRelease is invoked whenever the calibration lock releases,
	// including automatic release by timeout.
	OnLockRelease func()
	// ZLimit, when set, is the safe travel height: absolute moves
	// starting above it first drop to ZLimit, travel in X/Y, then
	// settle Z on the target.
	ZLimit *float64
}

// Controller owns the single driver handle and all shared table state.
// Hardware-mutating commands are serialized through one mutex across
// all clients; queries read a snapshot refreshed by the poll loop and
// never block on in-flight motion.
type Controller struct {
	drv    driver.Driver
	limits types.Limits
	zLimit *float64

	// mu serializes move, abort and calibration commands and is the
	// only lock held across driver calls.
	mu sync.Mutex

	// stateMu guards the snapshot and is never held during driver
	// I/O, so queries stay responsive while the hardware is slow.
	stateMu     sync.RWMutex
	pos         types.Position
	cal         types.CalibrationState
	moveState   types.MoveState
	calibrating bool
	// stages holds the remaining legs of a staged absolute move; the
	// poll loop issues the next leg when the current one settles.
	stages []types.Position

	errors *ErrorStack
	lock   *CalibrationLock

	pollInterval time.Duration
	stop         chan struct{}
	done         chan struct{}
}

func NewController(drv driver.Driver, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Controller{
		drv:          drv,
		limits:       opts.Limits,
		zLimit:       opts.ZLimit,
		errors:       NewErrorStack(opts.ErrorStackCap),
		lock:         NewCalibrationLock(opts.LockTimeout, opts.OnLockRelease),
		pollInterval: opts.PollInterval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start performs an initial state refresh and launches the poll loop.
func (c *Controller) Start() {
	c.refresh()
	go c.pollLoop()
}

func (c *Controller) Stop() {
	close(c.stop)
	<-c.done
}

func (c *Controller) pollLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

// refresh polls the driver and updates the shared snapshot, driving
// the move state machine: Moving/Aborting settle to Idle once the
// driver reports no motion, calibration completion engages the lock,
// and staged moves issue their next leg.
func (c *Controller) refresh() {
	pos, err := c.drv.Position()
	if err != nil {
		logrus.WithError(err).Error("failed to poll position")
		return
	}
	moving, err := c.drv.IsMoving()
	if err != nil {
		logrus.WithError(err).Error("failed to poll motion state")
		return
	}
	cal, err := c.drv.CalibrationState()
	if err != nil {
		logrus.WithError(err).Error("failed to poll calibration state")
		return
	}

	var engageLock bool
	var stagePending bool

	c.stateMu.Lock()
	c.pos = pos
	c.cal = cal
	if !moving {
		switch c.moveState {
		case types.MoveMoving:
			if c.calibrating {
				c.calibrating = false
				engageLock = true
				c.moveState = types.MoveIdle
				logrus.WithField("calibration", cal).Info("calibration finished")
			} else if len(c.stages) > 0 {
				stagePending = true
			} else {
				c.moveState = types.MoveIdle
				logrus.WithField("position", pos).Info("movement finished")
			}
		case types.MoveAborting:
			c.moveState = types.MoveIdle
			logrus.Info("movement aborted")
		}
	}
	c.stateMu.Unlock()

	if engageLock {
		c.lock.Engage()
	}
	if stagePending {
		c.issueNextStage()
	}
}

// issueNextStage starts the next leg of a staged absolute move. It
// holds mu across pop and driver call and re-checks the move state, so
// an abort that won mu first leaves no leg to issue.
func (c *Controller) issueNextStage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stateMu.Lock()
	if c.moveState != types.MoveMoving || len(c.stages) == 0 {
		c.stateMu.Unlock()
		return
	}
	stage := c.stages[0]
	c.stages = c.stages[1:]
	c.stateMu.Unlock()

	if err := c.drv.MoveAbsolute(stage); err != nil {
		logrus.WithError(err).Error("failed to start staged move")
		c.errors.Push(motionError(err).Entry())
		c.stateMu.Lock()
		c.stages = nil
		c.moveState = types.MoveIdle
		c.stateMu.Unlock()
	}
}

// Snapshot queries.

func (c *Controller) Position() types.Position {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.pos
}

func (c *Controller) Calibration() types.CalibrationState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.cal
}

func (c *Controller) MoveState() types.MoveState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.moveState
}

// PositionState returns position and move state from one snapshot, so
// the pair is always consistent on the wire.
func (c *Controller) PositionState() (types.Position, types.MoveState) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.pos, c.moveState
}

func (c *Controller) IsMoving() bool {
	return c.MoveState() != types.MoveIdle
}

func (c *Controller) Errors() *ErrorStack {
	return c.errors
}

func (c *Controller) Lock() *CalibrationLock {
	return c.lock
}

// Status assembles the full snapshot reported to HTTP clients.
func (c *Controller) Status() types.Status {
	c.stateMu.RLock()
	pos := c.pos
	cal := c.cal
	state := c.moveState
	c.stateMu.RUnlock()

	status := types.Status{
		Position:    pos,
		MoveState:   state.String(),
		Moving:      state != types.MoveIdle,
		Calibration: cal,
		ErrorCount:  c.errors.Count(),
	}
	if deadline, engaged := c.lock.Deadline(); engaged {
		status.CalibrationLocked = true
		status.LockExpiresAt = &deadline
	}
	return status
}

// Mutating commands. Each returns nil once the hardware accepted the
// command; completion is observed through the poll loop.

func (c *Controller) MoveRelative(delta types.Position) *Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, state := c.PositionState()
	if state != types.MoveIdle {
		return ErrMoveInProgress
	}
	target := pos.Add(delta)
	if !c.limits.Contains(target) {
		return limitError(target)
	}
	if err := c.drv.MoveRelative(delta); err != nil {
		return motionError(err)
	}

	c.stateMu.Lock()
	c.moveState = types.MoveMoving
	c.stateMu.Unlock()
	logrus.WithFields(logrus.Fields{
		"delta":  delta,
		"target": target,
	}).Info("move relative")
	return nil
}

func (c *Controller) MoveAbsolute(target types.Position) *Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, state := c.PositionState()
	if state != types.MoveIdle {
		return ErrMoveInProgress
	}
	if !c.limits.Contains(target) {
		return limitError(target)
	}

	first, rest := c.planAbsolute(pos, target)
	if err := c.drv.MoveAbsolute(first); err != nil {
		return motionError(err)
	}

	c.stateMu.Lock()
	c.stages = rest
	c.moveState = types.MoveMoving
	c.stateMu.Unlock()
	logrus.WithFields(logrus.Fields{
		"target": target,
		"stages": len(rest),
	}).Info("move absolute")
	return nil
}

// planAbsolute splits an absolute move into safe-travel legs when a Z
// limit is configured and the table sits above it: drop to the safe
// height, travel in X/Y, then settle Z.
func (c *Controller) planAbsolute(pos, target types.Position) (types.Position, []types.Position) {
	if c.zLimit == nil || pos.Z <= *c.zLimit {
		return target, nil
	}
	safe := *c.zLimit
	drop := types.Position{X: pos.X, Y: pos.Y, Z: safe}
	travel := types.Position{X: target.X, Y: target.Y, Z: safe}
	return drop, []types.Position{travel, target}
}

func (c *Controller) Abort() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.MoveState() == types.MoveIdle {
		// Aborting an idle table is not an error.
		return nil
	}
	if err := c.drv.Abort(); err != nil {
		return motionError(err)
	}

	c.stateMu.Lock()
	c.stages = nil
	c.calibrating = false
	c.moveState = types.MoveAborting
	c.stateMu.Unlock()
	logrus.Info("abort requested")
	return nil
}

func (c *Controller) Calibrate(x, y, z bool) *Error {
	return c.startCalibration("calibrate", x, y, z, c.drv.Calibrate)
}

func (c *Controller) RangeMeasure(x, y, z bool) *Error {
	return c.startCalibration("range measure", x, y, z, c.drv.RangeMeasure)
}

func (c *Controller) startCalibration(name string, x, y, z bool, start func(x, y, z bool) error) *Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lock.Engaged() {
		return ErrCalibrationLocked
	}
	if c.MoveState() != types.MoveIdle {
		return ErrMoveInProgress
	}
	if err := start(x, y, z); err != nil {
		return calibrationError(err)
	}

	c.stateMu.Lock()
	c.calibrating = true
	c.moveState = types.MoveMoving
	c.stateMu.Unlock()
	logrus.WithFields(logrus.Fields{
		"x": x, "y": y, "z": z,
	}).Info(name)
	return nil
}

func (c *Controller) EnableJoystick(enabled bool) *Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.drv.EnableJoystick(enabled); err != nil {
		return motionError(err)
	}
	logrus.WithField("enabled", enabled).Info("set joystick")
	return nil
}
