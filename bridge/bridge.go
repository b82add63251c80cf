// Package bridge exposes a connected hub as a pseudo-terminal: console
// output printed by the running program appears on the terminal, and bytes
// typed into the terminal are tunneled back to the program.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/srg/spikeprime/internal/ptyio"
	"github.com/srg/spikeprime/internal/transport"
	"github.com/srg/spikeprime/protocol"
)

// Console is the slice of the hub connection the bridge needs.
type Console interface {
	Receive(ctx context.Context) (protocol.Response, error)
	Tunnel(payload []byte) error
}

// Options configures a bridge.
type Options struct {
	// TTYSymlinkPath optionally creates a stable symlink to the terminal
	// device (e.g. /tmp/spike-hub).
	TTYSymlinkPath string

	// BufferSize is the terminal write queue capacity in bytes (0 uses
	// the ptyio default).
	BufferSize int

	Logger *logrus.Logger
}

// Bridge pumps console traffic between a hub connection and a PTY.
type Bridge struct {
	conn    Console
	pty     ptyio.PTY
	symlink string
	logger  *logrus.Logger
}

// New creates the PTY side of the bridge and wires terminal input to the
// hub tunnel. Call Run to start pumping hub output.
func New(conn Console, opts *Options) (*Bridge, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	p, err := ptyio.New(opts.BufferSize, logger)
	if err != nil {
		return nil, err
	}

	b := &Bridge{conn: conn, pty: p, logger: logger}

	if opts.TTYSymlinkPath != "" {
		if err := os.Symlink(p.TTYName(), opts.TTYSymlinkPath); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create tty symlink %s -> %s: %w", opts.TTYSymlinkPath, p.TTYName(), err)
		}
		b.symlink = opts.TTYSymlinkPath
		logger.WithFields(logrus.Fields{
			"symlink": b.symlink,
			"target":  p.TTYName(),
		}).Info("Created PTY symlink")
	}

	p.SetReadCallback(func(data []byte) {
		if err := conn.Tunnel(data); err != nil {
			logger.WithField("error", err).Warn("Failed to tunnel terminal input to hub")
		}
	})

	logger.WithField("tty", p.TTYName()).Info("Console bridge ready")
	return b, nil
}

// TTYName returns the terminal device path to attach to.
func (b *Bridge) TTYName() string {
	return b.pty.TTYName()
}

// Run pumps hub output to the terminal until ctx is done or the connection
// closes. Console text and tunnel payloads are written to the terminal;
// other messages are logged and discarded.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		msg, err := b.conn.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			case errors.Is(err, transport.ErrNotConnected):
				return nil
			default:
				return err
			}
		}

		switch m := msg.(type) {
		case *protocol.ConsoleNotification:
			b.pty.Write([]byte(m.Text))
		case *protocol.TunnelMessage:
			b.pty.Write(m.Payload)
		case *protocol.ProgramFlowNotification:
			b.logger.WithField("action", m.Action.String()).Info("Program flow changed")
		default:
			b.logger.WithField("opcode", fmt.Sprintf("0x%02X", byte(msg.Opcode()))).
				Debug("Ignoring message while bridged")
		}
	}
}

// Close removes the symlink and closes the PTY. It is idempotent.
func (b *Bridge) Close() error {
	if b.symlink != "" {
		if err := os.Remove(b.symlink); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.WithField("error", err).Warn("Failed to remove tty symlink")
		}
		b.symlink = ""
	}
	b.pty.SetReadCallback(nil)
	return b.pty.Close()
}
