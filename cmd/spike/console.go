package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/bridge"
	"github.com/srg/spikeprime/hub"
	"golang.org/x/term"
)

// detachByte detaches an attached terminal, like telnet's escape.
const detachByte = 0x1D // Ctrl+]

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Bridge the hub console to a pseudo-terminal",
	Long: `Create a pseudo-terminal connected to the hub's Python console.
Program output (print statements, tracebacks) appears on the terminal
and anything typed into it is tunneled to the running program.

Attach with any serial terminal:
  spike console --symlink /tmp/spike-hub
  screen /tmp/spike-hub    # in another terminal

Or attach the current terminal directly:
  spike console --attach   # Ctrl+] detaches

Press Ctrl+C to tear the bridge down.`,
	RunE: runConsoleCmd,
}

var (
	consoleSymlink string
	consoleAttach  bool
)

func init() {
	addAddressFlag(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleSymlink, "symlink", "", "Create a symlink to the terminal device (e.g. /tmp/spike-hub)")
	consoleCmd.Flags().BoolVar(&consoleAttach, "attach", false, "Attach this terminal to the console (raw mode, Ctrl+] detaches)")
}

func runConsoleCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	symlink := consoleSymlink
	if symlink == "" {
		symlink = cfg.TTYSymlink
	}

	return withConnection(cfg, logger, "Starting console bridge", func(ctx context.Context, conn *hub.Connection) error {
		b, err := bridge.New(conn, &bridge.Options{
			TTYSymlinkPath: symlink,
			Logger:         logger,
		})
		if err != nil {
			return err
		}
		defer b.Close()

		fmt.Printf("Console bridged to %s", b.TTYName())
		if symlink != "" {
			fmt.Printf(" (symlink %s)", symlink)
		}
		fmt.Println()

		if consoleAttach {
			attachCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			fmt.Println("Attached. Press Ctrl+] to detach.")
			restore, err := attachTerminal(b.TTYName(), cancel)
			if err != nil {
				return err
			}
			defer restore()
			return b.Run(attachCtx)
		}

		fmt.Println("Press Ctrl+C to stop.")
		return b.Run(ctx)
	})
}

// attachTerminal puts the controlling terminal into raw mode and pumps it
// to and from the bridge tty. The detach byte in the input stream calls
// stop. The returned func restores the terminal.
func attachTerminal(ttyName string, stop context.CancelFunc) (func(), error) {
	tty, err := os.OpenFile(ttyName, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", ttyName, err)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("failed to set terminal to raw mode: %w", err)
	}

	// Raw mode turns Ctrl+C into a plain byte, so the detach byte is the
	// only way out of an attached session
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if i := bytes.IndexByte(buf[:n], detachByte); i >= 0 {
					_, _ = tty.Write(buf[:i])
					stop()
					return
				}
				if _, err := tty.Write(buf[:n]); err != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	go func() { _, _ = io.Copy(os.Stdout, tty) }()

	return func() {
		_ = term.Restore(fd, oldState)
		_ = tty.Close()
	}, nil
}
