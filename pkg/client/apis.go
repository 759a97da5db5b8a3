package client

import (
	"encoding/json"
	"fmt"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/hephy-dd/table-control/pkg/config"
	"github.com/hephy-dd/table-control/pkg/types"
)

func (c *Client) GetStatus() (*types.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}

	var status types.Status
	if err := json.Unmarshal([]byte(ret), &status); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}
	return &status, nil
}

func (c *Client) GetPosition() (*types.Position, error) {
	ret, err := c.Get("/position")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get position")
	}

	var pos types.Position
	if err := json.Unmarshal([]byte(ret), &pos); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal position")
	}
	return &pos, nil
}

func (c *Client) GetCalibration() (*types.CalibrationState, error) {
	ret, err := c.Get("/calibration")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get calibration state")
	}

	var cal types.CalibrationState
	if err := json.Unmarshal([]byte(ret), &cal); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal calibration state")
	}
	return &cal, nil
}

func (c *Client) GetMoving() (bool, error) {
	ret, err := c.Get("/moving")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to get motion state")
	}
	return parseBoolResponse(ret)
}

func (c *Client) MoveRelative(delta types.Position) (string, error) {
	payload, err := json.Marshal(delta)
	if err != nil {
		return "", err
	}
	return c.Post("/move-relative", string(payload))
}

func (c *Client) MoveAbsolute(target types.Position) (string, error) {
	payload, err := json.Marshal(target)
	if err != nil {
		return "", err
	}
	return c.Post("/move-absolute", string(payload))
}

func (c *Client) Abort() (string, error) {
	return c.Post("/abort", "")
}

func (c *Client) Calibrate() (string, error) {
	return c.Post("/calibrate", "")
}

func (c *Client) RangeMeasure() (string, error) {
	return c.Post("/range-measure", "")
}

func (c *Client) Unlock() (string, error) {
	return c.Post("/calibration/unlock", "")
}

func (c *Client) GetErrorNext() (*types.ErrorEntry, error) {
	ret, err := c.Get("/errors/next")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get next error")
	}

	var entry types.ErrorEntry
	if err := json.Unmarshal([]byte(ret), &entry); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal error entry")
	}
	return &entry, nil
}

func (c *Client) GetErrorCount() (int, error) {
	ret, err := c.Get("/errors/count")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get error count")
	}
	count, err := strconv.Atoi(ret)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to unmarshal error count")
	}
	return count, nil
}

func (c *Client) ClearErrors() (string, error) {
	return c.Post("/errors/clear", "")
}

func (c *Client) SetJoystick(enabled bool) (string, error) {
	return c.Put("/joystick", strconv.FormatBool(enabled))
}

// ScheduleStatus mirrors the daemon's calibration schedule report.
type ScheduleStatus struct {
	Cron    string `json:"cron,omitempty"`
	NextRun string `json:"nextRun,omitempty"`
	Running bool   `json:"running"`
}

func (c *Client) GetSchedule() (*ScheduleStatus, error) {
	ret, err := c.Get("/calibration/schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get calibration schedule")
	}

	var status ScheduleStatus
	if err := json.Unmarshal([]byte(ret), &status); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal calibration schedule")
	}
	return &status, nil
}

func (c *Client) SetSchedule(cronExpr string) (string, error) {
	payload, err := json.Marshal(cronExpr)
	if err != nil {
		return "", err
	}
	return c.Put("/calibration/schedule", string(payload))
}

func (c *Client) PostponeCalibration(duration string) (string, error) {
	payload, err := json.Marshal(duration)
	if err != nil {
		return "", err
	}
	return c.Post("/calibration/postpone", string(payload))
}

func (c *Client) SkipCalibration() (string, error) {
	return c.Post("/calibration/skip", "")
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var version string
	if err := json.Unmarshal([]byte(ret), &version); err != nil {
		return "", fmt.Errorf("failed to unmarshal version: %w", err)
	}
	return version, nil
}

func parseBoolResponse(resp string) (bool, error) {
	switch resp {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, pkgerrors.Errorf("unexpected response: %s", resp)
	}
}
