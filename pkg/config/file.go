package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hephy-dd/table-control/pkg/types"
	"github.com/hephy-dd/table-control/pkg/utils/ptr"
)

var defaultFileConfig = &RawFileConfig{
	Backend:   ptr.To("simulator"),
	Resources: &[]string{},
	SCPI: &RawSocketConfig{
		Enabled: ptr.To(true),
		Host:    ptr.To("localhost"),
		Port:    ptr.To(4000),
	},
	Legacy: &RawSocketConfig{
		Enabled: ptr.To(false),
		Host:    ptr.To("localhost"),
		Port:    ptr.To(6345),
	},
	PollIntervalMS: ptr.To(500),
	LockTimeoutSec: ptr.To(60),
	// 0 keeps the error stack unbounded.
	ErrorStackCap: ptr.To(0),
	Limits: &types.Limits{
		X: types.AxisLimits{Min: 0, Max: 1000},
		Y: types.AxisLimits{Min: 0, Max: 1000},
		Z: types.AxisLimits{Min: 0, Max: 100},
	},
	SimVelocity: ptr.To(2.0),
}

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

type RawSocketConfig struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Host    *string `json:"host,omitempty"`
	Port    *int    `json:"port,omitempty"`
}

type RawFileConfig struct {
	Backend         *string          `json:"backend,omitempty"`
	Resources       *[]string        `json:"resources,omitempty"`
	SCPI            *RawSocketConfig `json:"scpi,omitempty"`
	Legacy          *RawSocketConfig `json:"legacy,omitempty"`
	PollIntervalMS  *int             `json:"pollIntervalMs,omitempty"`
	LockTimeoutSec  *int             `json:"lockTimeoutSec,omitempty"`
	ErrorStackCap   *int             `json:"errorStackCap,omitempty"`
	Limits          *types.Limits    `json:"limits,omitempty"`
	SimVelocity     *float64         `json:"simVelocity,omitempty"`
	ZLimit          *float64         `json:"zLimit,omitempty"`
	CalibrationCron *string          `json:"calibrationCron,omitempty"`
}

// Raw exposes the backing representation as stored on disk.
func (f *File) Raw() *RawFileConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.raw()
}

func (f *File) raw() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) Backend() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.raw().Backend != nil {
		return *f.c.Backend
	}
	return *defaultFileConfig.Backend
}

func (f *File) Resources() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.raw().Resources != nil {
		return *f.c.Resources
	}
	return *defaultFileConfig.Resources
}

func socketAddr(c, d *RawSocketConfig) string {
	host := *d.Host
	port := *d.Port
	if c != nil {
		if c.Host != nil {
			host = *c.Host
		}
		if c.Port != nil {
			port = *c.Port
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func socketEnabled(c, d *RawSocketConfig) bool {
	if c != nil && c.Enabled != nil {
		return *c.Enabled
	}
	return *d.Enabled
}

func (f *File) SCPIEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return socketEnabled(f.raw().SCPI, defaultFileConfig.SCPI)
}

func (f *File) SCPIAddr() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return socketAddr(f.raw().SCPI, defaultFileConfig.SCPI)
}

func (f *File) LegacyEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return socketEnabled(f.raw().Legacy, defaultFileConfig.Legacy)
}

func (f *File) LegacyAddr() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return socketAddr(f.raw().Legacy, defaultFileConfig.Legacy)
}

func (f *File) PollInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ms := *defaultFileConfig.PollIntervalMS
	if f.raw().PollIntervalMS != nil {
		ms = *f.c.PollIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (f *File) LockTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sec := *defaultFileConfig.LockTimeoutSec
	if f.raw().LockTimeoutSec != nil {
		sec = *f.c.LockTimeoutSec
	}
	return time.Duration(sec) * time.Second
}

func (f *File) ErrorStackCap() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.raw().ErrorStackCap != nil {
		return *f.c.ErrorStackCap
	}
	return *defaultFileConfig.ErrorStackCap
}

func (f *File) Limits() types.Limits {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.raw().Limits != nil {
		return *f.c.Limits
	}
	return *defaultFileConfig.Limits
}

func (f *File) SimVelocity() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.raw().SimVelocity != nil {
		return *f.c.SimVelocity
	}
	return *defaultFileConfig.SimVelocity
}

func (f *File) ZLimit() (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.raw().ZLimit != nil {
		return *f.c.ZLimit, true
	}
	return 0, false
}

func (f *File) CalibrationCron() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.raw().CalibrationCron != nil {
		return *f.c.CalibrationCron
	}
	return ""
}

// LogrusFields renders the effective configuration for startup logging.
func (f *File) LogrusFields() logrus.Fields {
	zlimit := "disabled"
	if v, ok := f.ZLimit(); ok {
		zlimit = fmt.Sprintf("%.6f", v)
	}
	return logrus.Fields{
		"backend":       f.Backend(),
		"resources":     f.Resources(),
		"scpiEnabled":   f.SCPIEnabled(),
		"scpiAddr":      f.SCPIAddr(),
		"legacyEnabled": f.LegacyEnabled(),
		"legacyAddr":    f.LegacyAddr(),
		"pollInterval":  f.PollInterval().String(),
		"lockTimeout":   f.LockTimeout().String(),
		"errorStackCap": f.ErrorStackCap(),
		"zLimit":        zlimit,
	}
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, use the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}
