package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/protocol"
)

// nameCmd represents the name command
var nameCmd = &cobra.Command{
	Use:   "name [new-name]",
	Short: "Show or change the hub name",
	Long: fmt.Sprintf(`Without an argument, prints the hub's advertised name.
With an argument, renames the hub (at most %d characters).

Example:
  spike name
  spike name Gearbox`, protocol.MaxHubNameLen),
	Args: cobra.MaximumNArgs(1),
	RunE: runNameCmd,
}

func init() {
	addAddressFlag(nameCmd)
}

func runNameCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && len(args[0]) > protocol.MaxHubNameLen {
		return fmt.Errorf("name %q is too long: at most %d characters", args[0], protocol.MaxHubNameLen)
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withConnection(cfg, logger, "Talking to hub", func(ctx context.Context, conn *hub.Connection) error {
		return withOpTimeout(ctx, func(ctx context.Context) error {
			if len(args) == 0 {
				name, err := conn.HubName(ctx)
				if err != nil {
					return err
				}
				fmt.Println(name)
				return nil
			}

			if err := conn.SetHubName(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Hub renamed to %q\n", args[0])
			return nil
		})
	})
}
