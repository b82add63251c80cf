package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/pkg/config"
)

var hubAddress string

// addAddressFlag registers the shared --address flag on commands that talk
// to a hub.
func addAddressFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&hubAddress, "address", "a", "", "Hub BLE address (default: first hub discovered)")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, plus its
// cancel func for deferred cleanup.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// resolveAddress returns the explicit --address value or scans for the
// first hub in range.
func resolveAddress(ctx context.Context, cfg *config.Config, logger *logrus.Logger, progress *ProgressPrinter) (string, error) {
	if hubAddress != "" {
		return hubAddress, nil
	}

	if progress != nil {
		progress.SetPhase("Scanning")
	}
	opts := hub.DefaultScanOptions()
	opts.Timeout = cfg.ScanTimeout
	h, err := hub.ScanFirst(ctx, opts, logger)
	if err != nil {
		return "", err
	}
	logger.WithFields(logrus.Fields{
		"name":    h.Name(),
		"address": h.Address(),
	}).Info("Discovered hub")
	return h.Address(), nil
}

// withConnection scans (if needed), connects and hands the live connection
// to fn, closing it afterwards. The context is cancelled on Ctrl+C.
func withConnection(cfg *config.Config, logger *logrus.Logger, action string, fn func(ctx context.Context, conn *hub.Connection) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	progress := NewProgressPrinter(action, "Scanning", 0)
	progress.Start()
	defer progress.Stop()

	address, err := resolveAddress(ctx, cfg, logger, progress)
	if err != nil {
		return err
	}

	progress.SetPhase("Connecting")
	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer connectCancel()

	conn, err := hub.Connect(connectCtx, address, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	progress.Stop()
	return fn(ctx, conn)
}

// opTimeout bounds a single request/response exchange.
const opTimeout = 5 * time.Second

func withOpTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return fn(opCtx)
}
