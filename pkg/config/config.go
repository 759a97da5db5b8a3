package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hephy-dd/table-control/pkg/types"
)

type Config interface {
	Backend() string
	Resources() []string

	SCPIEnabled() bool
	SCPIAddr() string
	LegacyEnabled() bool
	LegacyAddr() string

	PollInterval() time.Duration
	LockTimeout() time.Duration
	ErrorStackCap() int
	Limits() types.Limits
	SimVelocity() float64
	// ZLimit returns the safe travel height for absolute moves. The
	// second value is false when no limit is configured.
	ZLimit() (float64, bool)
	CalibrationCron() string

	// LogrusFields renders the effective configuration for startup logging.
	LogrusFields() logrus.Fields
	// Raw exposes the backing representation as stored on disk.
	Raw() *RawFileConfig

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
