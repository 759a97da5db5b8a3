package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hephy-dd/table-control/pkg/types"
	"github.com/hephy-dd/table-control/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewPositionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "position",
		Short:   "Print the current table position",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pos, err := apiClient.GetPosition()
			if err != nil {
				return fmt.Errorf("failed to get position: %v", err)
			}

			cmd.Println(pos.String())
			return nil
		},
	}
}

func NewMoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "move",
		Short:   "Move the table",
		GroupID: gBasic,
		Long: `Move the table relative to its current position or to an absolute target.

Movements are asynchronous: the daemon accepts the command and the table
keeps moving in the background. Use 'tablectl status' to follow progress
and 'tablectl abort' to stop a movement.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "relative <dx> <dy> <dz>",
			Short: "Move relative to the current position",
			Args:  cobra.ExactArgs(3),
			RunE: func(_ *cobra.Command, args []string) error {
				delta, err := parsePositionArgs(args)
				if err != nil {
					return err
				}

				ret, err := apiClient.MoveRelative(delta)
				if err != nil {
					return fmt.Errorf("failed to move: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}

				logrus.Infof("relative move %.6f %.6f %.6f started", delta.X, delta.Y, delta.Z)
				return nil
			},
		},
		&cobra.Command{
			Use:   "absolute <x> <y> <z>",
			Short: "Move to an absolute position",
			Args:  cobra.ExactArgs(3),
			RunE: func(_ *cobra.Command, args []string) error {
				target, err := parsePositionArgs(args)
				if err != nil {
					return err
				}

				ret, err := apiClient.MoveAbsolute(target)
				if err != nil {
					return fmt.Errorf("failed to move: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}

				logrus.Infof("absolute move to %.6f %.6f %.6f started", target.X, target.Y, target.Z)
				return nil
			},
		},
	)

	return cmd
}

func NewAbortCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "abort",
		Short:   "Abort the current movement",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Abort()
			if err != nil {
				return fmt.Errorf("failed to abort: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("abort requested")
			return nil
		},
	}
}

func parsePositionArgs(args []string) (types.Position, error) {
	values, err := parseFloatArgs(args, 3)
	if err != nil {
		return types.Position{}, err
	}
	return types.Position{X: values[0], Y: values[1], Z: values[2]}, nil
}
