package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/spikeprime/internal/frame"
	"github.com/srg/spikeprime/internal/ringchan"
	"github.com/srg/spikeprime/internal/trace"
	"github.com/srg/spikeprime/internal/transport"
	"github.com/srg/spikeprime/protocol"
)

// incomingQueueSize bounds the non-device-notification receive queue.
const incomingQueueSize = 128

// DeviceNotificationInterval is the reporting period requested from the hub
// by EnableDeviceNotifications.
const DeviceNotificationInterval = 10 // milliseconds

// Connection is a live session with a hub. It owns the transport, decodes
// the notification stream in the background, and provides both the raw
// Send/Receive primitives and the typed convenience operations built on
// them.
//
// A Connection is safe for concurrent use, but interleaving raw Receive
// calls with convenience operations from multiple goroutines will race for
// replies.
type Connection struct {
	tr     transport.Transport
	logger *logrus.Logger
	info   *protocol.InfoResponse

	incoming *ringchan.RingChannel[protocol.Response]

	notifMu     sync.RWMutex
	latestNotif *protocol.DeviceNotification

	writeMu sync.Mutex
	rxBuf   []byte // notification reassembly, only touched by the subscribe callback

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dialer opens the transport link (can be overridden in tests).
var Dialer = transport.Dial

// Connect dials the hub at address and performs the info handshake: it
// subscribes to the notification stream, requests the hub info, verifies the
// product group and captures the transfer limits.
func Connect(ctx context.Context, address string, logger *logrus.Logger) (*Connection, error) {
	if logger == nil {
		logger = logrus.New()
	}

	tr, err := Dialer(ctx, address, logger)
	if err != nil {
		return nil, err
	}

	c, err := newConnection(ctx, tr, logger)
	if err != nil {
		tr.Close()
		return nil, err
	}
	return c, nil
}

func newConnection(ctx context.Context, tr transport.Transport, logger *logrus.Logger) (*Connection, error) {
	c := &Connection{
		tr:       tr,
		logger:   logger,
		incoming: ringchan.New[protocol.Response](incomingQueueSize),
		done:     make(chan struct{}),
	}

	if err := tr.Subscribe(c.onNotify); err != nil {
		return nil, fmt.Errorf("failed to subscribe to hub notifications: %w", err)
	}

	if err := c.Send(protocol.InfoRequest{}); err != nil {
		return nil, fmt.Errorf("info handshake: %w", err)
	}
	resp, err := c.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("info handshake: %w", err)
	}
	info, ok := resp.(*protocol.InfoResponse)
	if !ok {
		return nil, &WrongMessageError{Want: protocol.OpInfoResponse, Got: resp.Opcode()}
	}
	if info.ProductGroup != 0 {
		return nil, fmt.Errorf("%w: product group %d", ErrBadDevice, info.ProductGroup)
	}
	// A zero limit would stall the chunked write paths, so treat it as a
	// broken handshake.
	if info.MaxPacketSize == 0 || info.MaxMessageSize == 0 || info.MaxChunkSize == 0 {
		return nil, fmt.Errorf("%w: handshake advertised a zero transfer limit", ErrBadDevice)
	}
	c.info = info

	logger.WithFields(logrus.Fields{
		"rpc":             fmt.Sprintf("%d.%d.%d", info.RPC.Major, info.RPC.Minor, info.RPC.Build),
		"firmware":        fmt.Sprintf("%d.%d.%d", info.Firmware.Major, info.Firmware.Minor, info.Firmware.Build),
		"max_packet_size": info.MaxPacketSize,
		"max_chunk_size":  info.MaxChunkSize,
	}).Info("Hub handshake completed")
	return c, nil
}

// Info returns the versions and transfer limits captured during the
// handshake.
func (c *Connection) Info() protocol.InfoResponse {
	return *c.info
}

// onNotify reassembles notification fragments into frames. A frame ends at
// the delimiter byte, which the codec guarantees appears nowhere else.
func (c *Connection) onNotify(data []byte) {
	if trace.Enabled {
		trace.Dump(c.logger, "recv", data)
	}
	c.rxBuf = append(c.rxBuf, data...)

	for {
		end := indexDelimiter(c.rxBuf)
		if end < 0 {
			return
		}
		packet := c.rxBuf[:end+1]
		c.handleFrame(packet)
		c.rxBuf = c.rxBuf[:copy(c.rxBuf, c.rxBuf[end+1:])]
	}
}

func indexDelimiter(buf []byte) int {
	for i, b := range buf {
		if b == frame.Delimiter {
			return i
		}
	}
	return -1
}

func (c *Connection) handleFrame(packet []byte) {
	payload, err := frame.Decode(packet)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"error": err,
			"len":   len(packet),
		}).Warn("Dropping malformed frame")
		return
	}

	msg, err := protocol.Decode(payload)
	if err != nil {
		c.logger.WithField("error", err).Warn("Dropping undecodable message")
		return
	}

	if n, ok := msg.(*protocol.DeviceNotification); ok {
		// Latest-value mailbox: a slow consumer sees the newest snapshot,
		// never a backlog.
		c.notifMu.Lock()
		c.latestNotif = n
		c.notifMu.Unlock()
		return
	}

	if c.closed.Load() {
		return
	}
	if c.incoming.Send(msg) {
		c.logger.WithField("opcode", fmt.Sprintf("0x%02X", byte(msg.Opcode()))).
			Warn("Incoming queue full, dropped oldest message")
	}
}

// Send encodes, frames and writes one message. Messages larger than the
// hub's advertised maximum are rejected; the framed packet is written in
// max-packet-size pieces.
func (c *Connection) Send(msg protocol.Request) error {
	if c.closed.Load() {
		return transport.ErrNotConnected
	}

	payload := msg.Encode()
	if c.info != nil && len(payload) > int(c.info.MaxMessageSize) {
		return &MessageTooLargeError{Size: len(payload), Max: int(c.info.MaxMessageSize)}
	}

	packet := frame.Encode(payload)
	if trace.Enabled {
		trace.Dump(c.logger, "send", packet)
	}

	chunk := len(packet)
	if c.info != nil && int(c.info.MaxPacketSize) < chunk {
		chunk = int(c.info.MaxPacketSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for off := 0; off < len(packet); off += chunk {
		end := min(off+chunk, len(packet))
		if err := c.tr.WritePacket(packet[off:end]); err != nil {
			return fmt.Errorf("failed to write message 0x%02X: %w", payload[0], err)
		}
	}
	return nil
}

// Receive returns the next incoming message that is not a device
// notification. It blocks until a message arrives, ctx is done or the
// connection closes.
func (c *Connection) Receive(ctx context.Context) (protocol.Response, error) {
	select {
	case msg, ok := <-c.incoming.C():
		if !ok {
			return nil, transport.ErrNotConnected
		}
		return msg, nil
	case <-c.done:
		return nil, transport.ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// request sends req and waits for its reply, checking the reply type and
// acknowledgement status.
func (c *Connection) request(ctx context.Context, req protocol.Request, want protocol.Opcode) (protocol.Response, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}
	resp, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Opcode() != want {
		return nil, &WrongMessageError{Want: want, Got: resp.Opcode()}
	}
	if ack, ok := resp.(protocol.AckResponse); ok && ack.AckStatus() != protocol.Acknowledged {
		return nil, &NotAcknowledgedError{Request: protocol.Opcode(req.Encode()[0])}
	}
	return resp, nil
}

// HubName asks the hub for its current name.
func (c *Connection) HubName(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, protocol.GetHubNameRequest{}, protocol.OpGetHubNameResponse)
	if err != nil {
		return "", err
	}
	return resp.(*protocol.GetHubNameResponse).Name, nil
}

// SetHubName renames the hub. Names longer than the protocol limit are
// truncated.
func (c *Connection) SetHubName(ctx context.Context, name string) error {
	_, err := c.request(ctx, protocol.SetHubNameRequest{Name: name}, protocol.OpSetHubNameResponse)
	return err
}

// DeviceUUID asks the hub for its unique device identifier.
func (c *Connection) DeviceUUID(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, protocol.DeviceUUIDRequest{}, protocol.OpDeviceUUIDResponse)
	if err != nil {
		return "", err
	}
	return resp.(*protocol.DeviceUUIDResponse).UUID.String(), nil
}

// EnableDeviceNotifications asks the hub to stream device state snapshots.
// The latest snapshot is available from DeviceNotification.
func (c *Connection) EnableDeviceNotifications(ctx context.Context) error {
	_, err := c.request(ctx,
		protocol.DeviceNotificationRequest{IntervalMS: DeviceNotificationInterval},
		protocol.OpDeviceNotificationResponse)
	return err
}

// DisableDeviceNotifications stops the device state stream.
func (c *Connection) DisableDeviceNotifications(ctx context.Context) error {
	_, err := c.request(ctx,
		protocol.DeviceNotificationRequest{IntervalMS: 0},
		protocol.OpDeviceNotificationResponse)
	return err
}

// DeviceNotification returns the most recent device state snapshot, or nil
// when none has arrived yet.
func (c *Connection) DeviceNotification() *protocol.DeviceNotification {
	c.notifMu.RLock()
	defer c.notifMu.RUnlock()
	return c.latestNotif
}

// StartProgram runs the program stored in slot.
func (c *Connection) StartProgram(ctx context.Context, slot uint8) error {
	_, err := c.request(ctx,
		protocol.ProgramFlowRequest{Action: protocol.ProgramStart, Slot: slot},
		protocol.OpProgramFlowResponse)
	return err
}

// StopProgram stops the program running from slot.
func (c *Connection) StopProgram(ctx context.Context, slot uint8) error {
	_, err := c.request(ctx,
		protocol.ProgramFlowRequest{Action: protocol.ProgramStop, Slot: slot},
		protocol.OpProgramFlowResponse)
	return err
}

// ClearSlot erases the program stored in slot.
func (c *Connection) ClearSlot(ctx context.Context, slot uint8) error {
	_, err := c.request(ctx, protocol.ClearSlotRequest{Slot: slot}, protocol.OpClearSlotResponse)
	return err
}

// UploadProgram transfers a program file into slot. The upload announces the
// whole-file checksum, then streams chunks of the hub's preferred size, each
// carrying the running checksum of everything sent so far.
func (c *Connection) UploadProgram(ctx context.Context, slot uint8, name string, code []byte) error {
	_, err := c.request(ctx, protocol.StartFileUploadRequest{
		FileName: name,
		Slot:     slot,
		CRC32:    protocol.Checksum(code),
	}, protocol.OpStartFileUploadResponse)
	if err != nil {
		return fmt.Errorf("failed to start upload of %q: %w", name, err)
	}

	chunkSize := int(c.info.MaxChunkSize)
	var digest protocol.Digest
	for off := 0; off < len(code); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+chunkSize, len(code))
		chunk := code[off:end]

		_, err := c.request(ctx, protocol.TransferChunkRequest{
			CRC32:   digest.Update(chunk),
			Payload: chunk,
		}, protocol.OpTransferChunkResponse)
		if err != nil {
			return fmt.Errorf("failed to transfer chunk at offset %d: %w", off, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"name": name,
		"slot": slot,
		"size": len(code),
	}).Info("Program uploaded")
	return nil
}

// Tunnel sends an opaque payload to a program running on the hub. Tunnel
// messages from the hub arrive via Receive.
func (c *Connection) Tunnel(payload []byte) error {
	return c.Send(&protocol.TunnelMessage{Payload: payload})
}

// Close disconnects from the hub. It is idempotent; all blocked and future
// operations fail with a not-connected error.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.tr.Close()
	})
	return err
}
