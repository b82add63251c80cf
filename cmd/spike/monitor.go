package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/protocol"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live view of hub sensors, motors and IMU",
	Long: `Subscribe to the hub's device notifications and render a live
dashboard of battery level, IMU orientation and everything attached to
the ports. Press Ctrl+C to stop.`,
	RunE: runMonitorCmd,
}

var monitorInterval time.Duration

func init() {
	addAddressFlag(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 500*time.Millisecond, "Screen refresh interval")
}

func runMonitorCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withConnection(cfg, logger, "Starting monitor", func(ctx context.Context, conn *hub.Connection) error {
		err := withOpTimeout(ctx, func(ctx context.Context) error {
			return conn.EnableDeviceNotifications(ctx)
		})
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			_ = conn.DisableDeviceNotifications(stopCtx)
		}()

		state := hub.NewHubState()
		ticker := time.NewTicker(monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				fmt.Println()
				return nil
			case <-ticker.C:
				state.Apply(conn.DeviceNotification())
				clearScreen(os.Stdout)
				if err := renderState(os.Stdout, state); err != nil {
					return err
				}
			}
		}
	})
}

// renderState writes the dashboard for the current hub state.
func renderState(out io.Writer, state *hub.HubState) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if battery := state.Battery(); battery != nil {
		fmt.Fprintf(w, "Battery:\t%d%%\n", battery.Percent)
	} else {
		fmt.Fprintf(w, "Battery:\t-\n")
	}

	if imu := state.IMU(); imu != nil {
		fmt.Fprintf(w, "Orientation:\t%s up, yaw %d pitch %d roll %d\n",
			imu.UpFace, imu.Yaw, imu.Pitch, imu.Roll)
	} else {
		fmt.Fprintf(w, "Orientation:\t-\n")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "PORT\tDEVICE\tREADING")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, pr := range state.Ports() {
		kind, reading := describeReading(pr.Reading)
		fmt.Fprintf(w, "%s\t%s\t%s\n", pr.Port, kind, reading)
	}
	return w.Flush()
}

func describeReading(msg protocol.DeviceMessage) (kind, reading string) {
	switch m := msg.(type) {
	case *protocol.MotorReading:
		return fmt.Sprintf("%s motor", m.Type), fmt.Sprintf("speed %d, power %d, position %d", m.Speed, m.Power, m.Position)
	case *protocol.ForceSensorReading:
		pressed := ""
		if m.Pressed {
			pressed = " (pressed)"
		}
		return "force sensor", fmt.Sprintf("%d%s", m.Value, pressed)
	case *protocol.ColorSensorReading:
		if !m.Detected {
			return "color sensor", "no color"
		}
		return "color sensor", fmt.Sprintf("%s (r=%d g=%d b=%d)", m.Color, m.Red, m.Green, m.Blue)
	case *protocol.DistanceSensorReading:
		if m.Distance < 0 {
			return "distance sensor", "out of range"
		}
		return "distance sensor", fmt.Sprintf("%d mm", m.Distance)
	case *protocol.ColorMatrixReading:
		return "color matrix", fmt.Sprintf("%v", m.Pixels)
	default:
		return "unknown", ""
	}
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}
