// Package ptyio wraps a pseudo-terminal pair for the console bridge: writes
// are queued through a ring buffer so the notification path never blocks on
// a slow terminal reader, and bytes typed into the terminal are delivered
// through a callback.
package ptyio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/srg/spikeprime/internal/groutine"
	"golang.org/x/term"
)

// DefaultBufferSize is the write ring buffer capacity used when the caller
// passes zero.
const DefaultBufferSize = 4096

// ReadCallback is invoked from a background goroutine with bytes typed into
// the terminal. Implementations must not retain the slice.
type ReadCallback func(data []byte)

// PTY is a non-blocking pseudo-terminal handle. Write queues data for the
// terminal; input from the terminal arrives via SetReadCallback.
type PTY interface {
	io.WriteCloser
	TTYName() string
	SetReadCallback(cb ReadCallback)
	Stats() Stats
}

// Stats provides counters for monitoring the bridge.
type Stats struct {
	DroppedWriteCount uint64
	ReadBytesTotal    uint64
	WriteBytesTotal   uint64
}

type ringPTY struct {
	logger  *logrus.Logger
	master  *os.File
	slave   *os.File
	ttyName string

	writeBuf    *ringbuffer.RingBuffer
	writeNotify chan struct{}
	readCb      atomic.Value // ReadCallback

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup

	droppedWrite uint64
	readBytes    uint64
	writeBytes   uint64
}

// New opens a PTY pair, puts the terminal side into raw mode and starts the
// background pump goroutines. bufferSize is the write queue capacity in
// bytes (0 uses the default).
func New(bufferSize int, logger *logrus.Logger) (PTY, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to create PTY: %w", err)
	}
	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("failed to set PTY %s to raw mode: %w", slave.Name(), err)
	}

	p := &ringPTY{
		logger:      logger,
		master:      master,
		slave:       slave,
		ttyName:     slave.Name(),
		writeBuf:    ringbuffer.New(bufferSize),
		writeNotify: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	p.wg.Add(2)
	groutine.Go(nil, "pty-write-loop", func(ctx context.Context) {
		p.writeLoop()
	})
	groutine.Go(nil, "pty-read-loop", func(ctx context.Context) {
		p.readLoop()
	})
	return p, nil
}

// Write queues data for the terminal and returns immediately. When the
// queue is full the overflow is dropped; the returned count reflects what
// was actually queued.
func (p *ringPTY) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, os.ErrClosed
	}
	if len(data) == 0 {
		return 0, nil
	}

	written, err := p.writeBuf.Write(data)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		return 0, err
	}
	if written < len(data) {
		dropped := uint64(len(data) - written)
		atomic.AddUint64(&p.droppedWrite, dropped)
		p.logger.WithField("dropped", dropped).Warn("PTY write buffer overflow")
	}

	select {
	case p.writeNotify <- struct{}{}:
	default:
	}
	return written, nil
}

func (p *ringPTY) writeLoop() {
	defer p.wg.Done()

	buf := make([]byte, 4096)
	for {
		select {
		case <-p.done:
			return
		case <-p.writeNotify:
		}

		for {
			n, err := p.writeBuf.TryRead(buf)
			if n == 0 || errors.Is(err, ringbuffer.ErrIsEmpty) {
				break
			}
			written, err := p.master.Write(buf[:n])
			atomic.AddUint64(&p.writeBytes, uint64(written))
			if err != nil {
				if !p.closed.Load() {
					p.logger.WithField("error", err).Warn("PTY write failed")
				}
				return
			}
		}
	}
}

func (p *ringPTY) readLoop() {
	defer p.wg.Done()

	buf := make([]byte, 4096)
	for {
		// Blocking read; Close unblocks it through the runtime poller.
		n, err := p.master.Read(buf)
		if n > 0 {
			atomic.AddUint64(&p.readBytes, uint64(n))
			if cb, ok := p.readCb.Load().(ReadCallback); ok && cb != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				cb(chunk)
			}
		}
		if err != nil {
			if !p.closed.Load() && !errors.Is(err, io.EOF) {
				p.logger.WithField("error", err).Warn("PTY read failed")
			}
			return
		}
	}
}

// SetReadCallback sets or clears the terminal input callback. Pass nil to
// unregister.
func (p *ringPTY) SetReadCallback(cb ReadCallback) {
	p.readCb.Store(cb)
}

// TTYName returns the terminal device path (e.g. "/dev/pts/5").
func (p *ringPTY) TTYName() string {
	return p.ttyName
}

// Close shuts down the pump goroutines and closes both sides of the pair.
// It is idempotent.
func (p *ringPTY) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(p.done)

	err := p.master.Close()
	if serr := p.slave.Close(); err == nil {
		err = serr
	}
	p.wg.Wait()
	return err
}

// Stats returns instantaneous counters.
func (p *ringPTY) Stats() Stats {
	return Stats{
		DroppedWriteCount: atomic.LoadUint64(&p.droppedWrite),
		ReadBytesTotal:    atomic.LoadUint64(&p.readBytes),
		WriteBytesTotal:   atomic.LoadUint64(&p.writeBytes),
	}
}
