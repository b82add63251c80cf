package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/hub"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for SPIKE Prime hubs",
	Long: `Scan for SPIKE Prime hubs advertising nearby and display their
names, addresses and signal strength.

Hubs connected to another app do not advertise and will not show up.`,
	RunE: runScanCmd,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanWatch    bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default: config scan_timeout)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Continuously scan and redraw until Ctrl+C")
}

type scannedHub struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	RSSI     int    `json:"rssi"`
	LastSeen string `json:"last_seen"`
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	format := cfg.OutputFormat
	if scanFormat != "" {
		format = scanFormat
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format '%s': must be table or json", format)
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	timeout := cfg.ScanTimeout
	if scanDuration > 0 {
		timeout = scanDuration
	}

	ctx, cancel := signalContext()
	defer cancel()

	scanner := hub.NewScanner(logger)
	opts := hub.DefaultScanOptions()
	opts.Timeout = timeout
	if scanWatch {
		// Watch refreshes RSSI and last-seen from repeat advertisements
		opts.AllowDuplicates = true
		return runScanWatch(ctx, scanner, opts, format)
	}

	scanCtx, scanCancel := context.WithTimeout(ctx, timeout)
	defer scanCancel()

	progress := NewProgressPrinter("Scanning for SPIKE Prime hubs", "Scanning", timeout)
	progress.Start()
	defer progress.Stop()

	hubs, err := scanner.Scan(scanCtx, opts)
	if err != nil {
		return err
	}

	var found []*hub.Hub
	for h := range hubs {
		found = append(found, h)
	}
	progress.Stop()

	if err := scanCtx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return displayHubs(found, format)
}

// runScanWatch keeps scanning until Ctrl+C, redrawing the table once a
// second as hubs appear and their signal changes.
func runScanWatch(ctx context.Context, scanner *hub.Scanner, opts *hub.ScanOptions, format string) error {
	hubs, err := scanner.Scan(ctx, opts)
	if err != nil {
		return err
	}

	var found []*hub.Hub
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	redraw := func() error {
		clearScreen(os.Stdout)
		fmt.Println("Scanning for SPIKE Prime hubs (Ctrl+C to stop)")
		fmt.Println()
		return displayHubs(found, format)
	}

	for {
		select {
		case <-ctx.Done():
			return redraw()
		case h, ok := <-hubs:
			if !ok {
				return redraw()
			}
			found = append(found, h)
		case <-ticker.C:
			if err := redraw(); err != nil {
				return err
			}
		}
	}
}

func displayHubs(hubs []*hub.Hub, format string) error {
	if len(hubs) == 0 {
		fmt.Println("No hubs discovered")
		return nil
	}

	sort.Slice(hubs, func(i, j int) bool {
		return hubs[i].Name() < hubs[j].Name()
	})

	if format == "json" {
		entries := make([]scannedHub, len(hubs))
		for i, h := range hubs {
			entries[i] = scannedHub{
				Name:     h.Name(),
				Address:  h.Address(),
				RSSI:     h.RSSI(),
				LastSeen: h.LastSeen().Format(time.RFC3339),
			}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}
	return displayHubTable(os.Stdout, hubs)
}

func displayHubTable(out io.Writer, hubs []*hub.Hub) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for _, h := range hubs {
		lastSeen := time.Since(h.LastSeen()).Truncate(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s ago\n", h.Name(), h.Address(), h.RSSI(), lastSeen)
	}
	return w.Flush()
}
