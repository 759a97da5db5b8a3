package table

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CalibrationLock is the interlock that prevents re-triggering a
// calibration right after one completes. It engages on calibration
// completion and releases automatically after a fixed timeout,
// independent of client activity. The release hook fires on every
// release so UI indicators are reset even when no client asked.
type CalibrationLock struct {
	mu        sync.Mutex
	timeout   time.Duration
	engaged   bool
	deadline  time.Time
	timer     *time.Timer
	onRelease func()
}

func NewCalibrationLock(timeout time.Duration, onRelease func()) *CalibrationLock {
	return &CalibrationLock{
		timeout:   timeout,
		onRelease: onRelease,
	}
}

// Engage arms the lock. A running release timer is restarted.
func (l *CalibrationLock) Engage() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.timer != nil {
		l.timer.Stop()
	}
	l.engaged = true
	l.deadline = time.Now().Add(l.timeout)
	l.timer = time.AfterFunc(l.timeout, l.expire)

	logrus.WithField("deadline", l.deadline).Debug("calibration lock engaged")
}

func (l *CalibrationLock) expire() {
	l.mu.Lock()
	if !l.engaged {
		l.mu.Unlock()
		return
	}
	l.engaged = false
	l.deadline = time.Time{}
	hook := l.onRelease
	l.mu.Unlock()

	logrus.Debug("calibration lock released by timeout")
	if hook != nil {
		hook()
	}
}

// Release disengages the lock before the timeout elapses.
func (l *CalibrationLock) Release() {
	l.mu.Lock()
	if !l.engaged {
		l.mu.Unlock()
		return
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.engaged = false
	l.deadline = time.Time{}
	hook := l.onRelease
	l.mu.Unlock()

	logrus.Debug("calibration lock released")
	if hook != nil {
		hook()
	}
}

func (l *CalibrationLock) Engaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engaged
}

// Deadline returns the automatic release time. The second value is
// false when the lock is not engaged.
func (l *CalibrationLock) Deadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deadline, l.engaged
}
