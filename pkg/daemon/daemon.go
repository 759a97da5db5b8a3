// Package daemon wires the controller, the protocol servers and the
// HTTP API into the long-running tablectld process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hephy-dd/table-control/pkg/config"
	"github.com/hephy-dd/table-control/pkg/driver"
	"github.com/hephy-dd/table-control/pkg/protocol/legacy"
	"github.com/hephy-dd/table-control/pkg/protocol/scpi"
	"github.com/hephy-dd/table-control/pkg/server"
	"github.com/hephy-dd/table-control/pkg/table"
	"github.com/hephy-dd/table-control/pkg/version"
)

var (
	conf  config.Config
	ctrl  *table.Controller
	disp  *table.Dispatcher
	sched *Scheduler
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", getStatus)
	router.GET("/position", getPosition)
	router.GET("/calibration", getCalibration)
	router.GET("/moving", getMoving)
	router.POST("/move-relative", postMoveRelative)
	router.POST("/move-absolute", postMoveAbsolute)
	router.POST("/abort", postAbort)
	router.POST("/calibrate", postCalibrate)
	router.POST("/range-measure", postRangeMeasure)
	router.GET("/errors/next", getErrorNext)
	router.GET("/errors/count", getErrorCount)
	router.POST("/errors/clear", postErrorsClear)
	router.PUT("/joystick", setJoystick)
	router.POST("/calibration/unlock", postUnlock)
	router.GET("/calibration/schedule", getSchedule)
	router.PUT("/calibration/schedule", setSchedule)
	router.POST("/calibration/postpone", postSchedulePostpone)
	router.POST("/calibration/skip", postScheduleSkip)
	router.GET("/config", getConfig)
	router.GET("/version", getVersion)

	return router
}

// Identity is the string reported by *IDN? and the version endpoint.
func Identity() string {
	return "Table Control v" + version.Version
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	drv, err := driver.New(conf.Backend(), conf.Resources(), conf.SimVelocity())
	if err != nil {
		logrus.Fatalf("failed to open backend: %v", err)
	}
	if err := drv.Configure(); err != nil {
		logrus.Fatalf("failed to configure backend: %v", err)
	}
	idns, err := drv.Identify()
	if err != nil {
		logrus.Warnf("failed to identify devices: %v", err)
	}
	for i, idn := range idns {
		logrus.WithFields(logrus.Fields{
			"device":   i,
			"identity": idn,
		}).Info("connected device")
	}

	opts := table.Options{
		Limits:        conf.Limits(),
		PollInterval:  conf.PollInterval(),
		ErrorStackCap: conf.ErrorStackCap(),
		LockTimeout:   conf.LockTimeout(),
		OnLockRelease: func() {
			logrus.Info("calibration lock released")
		},
	}
	if z, ok := conf.ZLimit(); ok {
		zl := z
		opts.ZLimit = &zl
	}
	ctrl = table.NewController(drv, opts)
	disp = table.NewDispatcher(ctrl, Identity())
	ctrl.Start()

	var servers []*server.Server
	if conf.SCPIEnabled() {
		servers = append(servers, server.New("scpi", conf.SCPIAddr(), scpi.NewHandler(disp)))
	}
	if conf.LegacyEnabled() {
		servers = append(servers, server.New("legacy", conf.LegacyAddr(), legacy.NewHandler(disp)))
	}
	for _, srv := range servers {
		if err := srv.Start(); err != nil {
			logrus.Fatalf("failed to start tcp server: %v", err)
		}
	}

	sched = NewScheduler(scheduledCalibration, calibrationPreCheck)
	if expr := conf.CalibrationCron(); expr != "" {
		if err := sched.Schedule(expr); err != nil {
			logrus.Errorf("invalid calibration cron %q: %v", expr, err)
		}
	}
	sched.Start()

	httpSrv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if allowNonRoot {
		logrus.Infof("non-root access is allowed, chaning permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = httpSrv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping scheduler")
	sched.Stop()

	for _, srv := range servers {
		srv.Stop()
	}

	logrus.Info("stopping controller")
	ctrl.Stop()

	// Hand the table back to the hardware joystick before exiting.
	if err := ctrl.EnableJoystick(true); err != nil {
		logrus.Errorf("failed to re-enable joystick before exiting: %v", err)
	}

	logrus.Info("closing backend connection")
	if err := drv.Close(); err != nil {
		logrus.Errorf("failed to close backend connection: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

// scheduledCalibration runs a full calibration on all axes.
func scheduledCalibration() error {
	result := disp.Dispatch(table.Command{
		Verb:    table.VerbCalibrate,
		Dialect: table.DialectInternal,
	})
	if result.Err != nil {
		return result.Err
	}
	return nil
}

// calibrationPreCheck defers a scheduled calibration while the table
// is busy or the interlock is still engaged.
func calibrationPreCheck() error {
	if ctrl.IsMoving() {
		return fmt.Errorf("table is moving")
	}
	if ctrl.Lock().Engaged() {
		return fmt.Errorf("calibration lock is engaged")
	}
	return nil
}
