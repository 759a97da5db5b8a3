package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hephy-dd/table-control/pkg/types"
)

type statusData struct {
	status *types.Status
	config *configSummary
}

type configSummary struct {
	backend string
	limits  types.Limits
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	status, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	summary := &configSummary{backend: "simulator"}
	if conf.Backend != nil {
		summary.backend = *conf.Backend
	}
	if conf.Limits != nil {
		summary.limits = *conf.Limits
	}

	return &statusData{
		status: status,
		config: summary,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of the table",
		Long:    `Get the table position, motion state, calibration state and error count.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Get various info first.
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			status := data.status

			cmd.Println(bold("Table status:"))
			cmd.Printf("  Position: %s\n", bold("%s", status.Position.String()))

			state := status.MoveState
			switch state {
			case "moving":
				state = color.GreenString("moving")
			case "aborting":
				state = color.RedString("aborting")
			}
			cmd.Printf("  Motion state: %s\n", bold("%s", state))

			cmd.Println()

			cmd.Println(bold("Calibration:"))
			cmd.Printf("  Calibrated: %s\n", axes2Text(status.Calibration, types.CalCalibrated))
			cmd.Printf("  Range measured: %s\n", axes2Text(status.Calibration, types.CalRangeMeasured))
			if status.CalibrationLocked {
				lock := "engaged"
				if status.LockExpiresAt != nil {
					lock = fmt.Sprintf("engaged, releases in %s", time.Until(*status.LockExpiresAt).Round(time.Second))
				}
				cmd.Printf("  Lock: %s\n", color.YellowString(lock))
			} else {
				cmd.Printf("  Lock: %s\n", "released")
			}

			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Backend: %s\n", bold("%s", data.config.backend))
			l := data.config.limits
			cmd.Printf("  Limits X: %s\n", bold("%.6f .. %.6f", l.X.Min, l.X.Max))
			cmd.Printf("  Limits Y: %s\n", bold("%.6f .. %.6f", l.Y.Min, l.Y.Max))
			cmd.Printf("  Limits Z: %s\n", bold("%.6f .. %.6f", l.Z.Min, l.Z.Max))

			cmd.Println()

			if status.ErrorCount > 0 {
				cmd.Printf("%s %s\n", color.New(color.Bold, color.FgRed).Sprintf("%d stacked error(s).", status.ErrorCount), "Inspect them with 'tablectl errors next'.")
			} else {
				cmd.Println("No stacked errors.")
			}
			return nil
		},
	}
}

// axes2Text renders one calibration bit across the three axes.
func axes2Text(cal types.CalibrationState, bit int) string {
	render := func(name string, v int) string {
		if v&bit != 0 {
			return name + " " + color.New(color.Bold, color.FgGreen).Sprint("✔")
		}
		return name + " " + color.New(color.Bold, color.FgRed).Sprint("✘")
	}
	return render("X", cal.X) + "  " + render("Y", cal.Y) + "  " + render("Z", cal.Z)
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
