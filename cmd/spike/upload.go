package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/protocol"
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a program to a hub slot",
	Long: `Upload a Python program file into one of the hub's program slots.
The target slot is cleared first, then the file is transferred in
CRC-checked chunks.

Example:
  spike upload robot.py --slot 3
  spike upload robot.py --slot 3 --start`,
	Args: cobra.ExactArgs(1),
	RunE: runUploadCmd,
}

var (
	uploadSlot  uint8
	uploadName  string
	uploadStart bool
)

func init() {
	addAddressFlag(uploadCmd)
	uploadCmd.Flags().Uint8VarP(&uploadSlot, "slot", "s", 0, "Program slot (0-19)")
	uploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "File name on the hub (default: base name of the file)")
	uploadCmd.Flags().BoolVar(&uploadStart, "start", false, "Start the program after uploading")
}

func runUploadCmd(cmd *cobra.Command, args []string) error {
	name := uploadName
	if name == "" {
		name = filepath.Base(args[0])
	}
	if len(name) > protocol.MaxFileNameLen {
		return fmt.Errorf("file name %q is too long: at most %d characters", name, protocol.MaxFileNameLen)
	}

	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withConnection(cfg, logger, fmt.Sprintf("Uploading %s", name), func(ctx context.Context, conn *hub.Connection) error {
		// Uploads of large programs take a while; bound the whole
		// transfer rather than each exchange
		uploadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		if err := conn.ClearSlot(uploadCtx, uploadSlot); err != nil {
			return err
		}
		if err := conn.UploadProgram(uploadCtx, uploadSlot, name, code); err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%d bytes) to slot %d\n", name, len(code), uploadSlot)

		if uploadStart {
			if err := conn.StartProgram(uploadCtx, uploadSlot); err != nil {
				return err
			}
			fmt.Printf("Started program in slot %d\n", uploadSlot)
		}
		return nil
	})
}
