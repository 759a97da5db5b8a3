package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hephy-dd/table-control/pkg/table"
	"github.com/hephy-dd/table-control/pkg/types"
)

// httpStatus maps a controller error to the HTTP status it is reported
// with. Rejections of busy or locked hardware are conflicts, protocol
// errors are bad requests, everything else is a hardware failure.
func httpStatus(err *table.Error) int {
	switch err.Code {
	case table.CodeMoveInProgress, table.CodeCalibrationLocked:
		return http.StatusConflict
	}
	if err.IsProtocol() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func dispatch(c *gin.Context, cmd table.Command) {
	cmd.Dialect = table.DialectInternal
	result := disp.Dispatch(cmd)
	if result.Err != nil {
		c.AbortWithError(httpStatus(result.Err), result.Err)
		return
	}
	c.IndentedJSON(http.StatusOK, "ok")
}

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.Status())
}

func getPosition(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.Position())
}

func getCalibration(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.Calibration())
}

func getMoving(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.IsMoving())
}

func postMoveRelative(c *gin.Context) {
	var delta types.Position
	if err := c.BindJSON(&delta); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	dispatch(c, table.Command{
		Verb: table.VerbMoveRelative,
		Args: []float64{delta.X, delta.Y, delta.Z},
	})
}

func postMoveAbsolute(c *gin.Context) {
	var target types.Position
	if err := c.BindJSON(&target); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	dispatch(c, table.Command{
		Verb: table.VerbMoveAbsolute,
		Args: []float64{target.X, target.Y, target.Z},
	})
}

func postAbort(c *gin.Context) {
	dispatch(c, table.Command{Verb: table.VerbAbort})
}

// AxisSelection selects the axes a calibration command applies to. An
// empty request body selects all three.
type AxisSelection struct {
	X bool `json:"x"`
	Y bool `json:"y"`
	Z bool `json:"z"`
}

func axisArgs(c *gin.Context) ([]float64, error) {
	if c.Request.ContentLength == 0 {
		return nil, nil
	}
	var sel AxisSelection
	if err := c.BindJSON(&sel); err != nil {
		return nil, err
	}
	toArg := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	return []float64{toArg(sel.X), toArg(sel.Y), toArg(sel.Z)}, nil
}

func postCalibrate(c *gin.Context) {
	args, err := axisArgs(c)
	if err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	dispatch(c, table.Command{Verb: table.VerbCalibrate, Args: args})
}

func postRangeMeasure(c *gin.Context) {
	args, err := axisArgs(c)
	if err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	dispatch(c, table.Command{Verb: table.VerbRangeMeasure, Args: args})
}

func getErrorNext(c *gin.Context) {
	result := disp.Dispatch(table.Command{
		Verb:    table.VerbQueryErrorNext,
		Dialect: table.DialectInternal,
	})
	c.IndentedJSON(http.StatusOK, result.Entry)
}

func getErrorCount(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.Errors().Count())
}

func postErrorsClear(c *gin.Context) {
	dispatch(c, table.Command{Verb: table.VerbClearErrors})
}

func setJoystick(c *gin.Context) {
	var enabled bool
	if err := c.BindJSON(&enabled); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	arg := 0.0
	if enabled {
		arg = 1.0
	}
	dispatch(c, table.Command{Verb: table.VerbEnableJoystick, Args: []float64{arg}})
}

func postUnlock(c *gin.Context) {
	ctrl.Lock().Release()
	c.IndentedJSON(http.StatusOK, "ok")
}

// ScheduleStatus reports the state of the automatic calibration schedule.
type ScheduleStatus struct {
	Cron    string     `json:"cron,omitempty"`
	NextRun *time.Time `json:"nextRun,omitempty"`
	Running bool       `json:"running"`
}

func getSchedule(c *gin.Context) {
	nextRun, running := sched.Status()
	status := ScheduleStatus{
		Cron:    conf.CalibrationCron(),
		Running: running,
	}
	if !nextRun.IsZero() {
		status.NextRun = &nextRun
	}
	c.IndentedJSON(http.StatusOK, status)
}

func setSchedule(c *gin.Context) {
	var expr string
	if err := c.BindJSON(&expr); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := sched.Schedule(expr); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("calibration schedule set to %q", expr))
}

func postSchedulePostpone(c *gin.Context) {
	var durationStr string
	if err := c.BindJSON(&durationStr); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := sched.Postpone(d); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fmt.Sprintf("next calibration postponed by %s", d))
}

func postScheduleSkip(c *gin.Context) {
	if err := sched.Skip(); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusOK, "next calibration skipped")
}

func getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, conf.Raw())
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, Identity())
}
