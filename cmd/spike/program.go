package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/hub"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the program in a slot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgramFlow(cmd, "Starting program", func(ctx context.Context, conn *hub.Connection, slot uint8) error {
			if err := conn.StartProgram(ctx, slot); err != nil {
				return err
			}
			fmt.Printf("Started program in slot %d\n", slot)
			return nil
		})
	},
}

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the program in a slot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgramFlow(cmd, "Stopping program", func(ctx context.Context, conn *hub.Connection, slot uint8) error {
			if err := conn.StopProgram(ctx, slot); err != nil {
				return err
			}
			fmt.Printf("Stopped program in slot %d\n", slot)
			return nil
		})
	},
}

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the program in a slot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgramFlow(cmd, "Clearing slot", func(ctx context.Context, conn *hub.Connection, slot uint8) error {
			if err := conn.ClearSlot(ctx, slot); err != nil {
				return err
			}
			fmt.Printf("Cleared slot %d\n", slot)
			return nil
		})
	},
}

var programSlot uint8

func init() {
	for _, cmd := range []*cobra.Command{runCmd, stopCmd, clearCmd} {
		addAddressFlag(cmd)
		cmd.Flags().Uint8VarP(&programSlot, "slot", "s", 0, "Program slot (0-19)")
	}
}

func runProgramFlow(cmd *cobra.Command, action string, fn func(ctx context.Context, conn *hub.Connection, slot uint8) error) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withConnection(cfg, logger, action, func(ctx context.Context, conn *hub.Connection) error {
		return withOpTimeout(ctx, func(ctx context.Context) error {
			return fn(ctx, conn, programSlot)
		})
	})
}
