package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewErrorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "errors",
		Short:   "Inspect the daemon error stack",
		GroupID: gAdvanced,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "next",
			Short: "Pop the oldest error from the stack",
			RunE: func(cmd *cobra.Command, _ []string) error {
				entry, err := apiClient.GetErrorNext()
				if err != nil {
					return fmt.Errorf("failed to get next error: %v", err)
				}

				cmd.Printf("%d,%q\n", entry.Code, entry.Message)
				return nil
			},
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of stacked errors",
			RunE: func(cmd *cobra.Command, _ []string) error {
				count, err := apiClient.GetErrorCount()
				if err != nil {
					return fmt.Errorf("failed to get error count: %v", err)
				}

				cmd.Println(count)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the error stack",
			RunE: func(_ *cobra.Command, _ []string) error {
				if _, err := apiClient.ClearErrors(); err != nil {
					return fmt.Errorf("failed to clear errors: %v", err)
				}
				return nil
			},
		},
	)

	return cmd
}

func NewJoystickCommand() *cobra.Command {
	return newEnableDisableCommand(
		"joystick",
		"manual joystick control",
		`Enable or disable manual joystick control of the table.

While the joystick is enabled the hardware ignores remote movement
commands. Disable it before moving the table through tablectl.`,
		func() (string, error) { return apiClient.SetJoystick(true) },
		func() (string, error) { return apiClient.SetJoystick(false) },
	)
}
