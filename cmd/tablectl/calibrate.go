package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCalibrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "calibrate",
		Short:   "Calibrate the table axes",
		GroupID: gAdvanced,
		Long: `Calibrate the table axes.

The table drives every axis to its reference switch and zeroes the
coordinate system. Calibration runs in the background; follow progress
with 'tablectl status'. After a calibration finishes, further
calibration requests are locked out for a configurable time.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Calibrate()
			if err != nil {
				return fmt.Errorf("failed to calibrate: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("calibration started")
			return nil
		},
	}
}

func NewRangeMeasureCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "range-measure",
		Short:   "Measure the travel range of the table axes",
		GroupID: gAdvanced,
		Long: `Measure the travel range of the table axes.

The table drives every axis to its limit switch to determine the usable
travel range. The measurement runs in the background; follow progress
with 'tablectl status'.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.RangeMeasure()
			if err != nil {
				return fmt.Errorf("failed to range measure: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("range measurement started")
			return nil
		},
	}
}

func NewUnlockCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "unlock",
		Short:   "Release the calibration lock",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := apiClient.Unlock(); err != nil {
				return fmt.Errorf("failed to unlock: %v", err)
			}

			logrus.Infof("calibration lock released")
			return nil
		},
	}
}

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Manage the automatic calibration schedule",
		GroupID: gAdvanced,
		Long: `Manage the automatic calibration schedule.

The daemon can run a full calibration on a cron schedule. A scheduled
run is deferred while the table is busy and skipped when it stays busy
for too long.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the calibration schedule",
			RunE: func(cmd *cobra.Command, _ []string) error {
				status, err := apiClient.GetSchedule()
				if err != nil {
					return fmt.Errorf("failed to get schedule: %v", err)
				}

				if status.Cron == "" {
					cmd.Println("no calibration schedule configured")
					return nil
				}
				cmd.Printf("cron: %s\n", status.Cron)
				if status.NextRun != "" {
					cmd.Printf("next run: %s\n", status.NextRun)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <cron>",
			Short: "Set the calibration schedule",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				ret, err := apiClient.SetSchedule(args[0])
				if err != nil {
					return fmt.Errorf("failed to set schedule: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "postpone <duration>",
			Short: "Postpone the next scheduled calibration",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				ret, err := apiClient.PostponeCalibration(args[0])
				if err != nil {
					return fmt.Errorf("failed to postpone calibration: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "skip",
			Short: "Skip the next scheduled calibration",
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.SkipCalibration()
				if err != nil {
					return fmt.Errorf("failed to skip calibration: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				return nil
			},
		},
	)

	return cmd
}
