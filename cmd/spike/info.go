package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/hub"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show hub versions, limits and identity",
	Long: `Connect to a hub and display its firmware and protocol versions,
transfer limits, current name and device UUID.`,
	RunE: runInfoCmd,
}

func init() {
	addAddressFlag(infoCmd)
}

func runInfoCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withConnection(cfg, logger, "Querying hub", func(ctx context.Context, conn *hub.Connection) error {
		var name, deviceUUID string
		err := withOpTimeout(ctx, func(ctx context.Context) error {
			var err error
			if name, err = conn.HubName(ctx); err != nil {
				return err
			}
			deviceUUID, err = conn.DeviceUUID(ctx)
			return err
		})
		if err != nil {
			return err
		}

		info := conn.Info()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", name)
		fmt.Fprintf(w, "Device UUID:\t%s\n", deviceUUID)
		fmt.Fprintf(w, "Firmware:\t%s\n", info.Firmware)
		fmt.Fprintf(w, "RPC version:\t%s\n", info.RPC)
		fmt.Fprintf(w, "Max packet size:\t%d bytes\n", info.MaxPacketSize)
		fmt.Fprintf(w, "Max message size:\t%d bytes\n", info.MaxMessageSize)
		fmt.Fprintf(w, "Max chunk size:\t%d bytes\n", info.MaxChunkSize)
		return w.Flush()
	})
}
