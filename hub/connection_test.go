package hub_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/internal/frame"
	"github.com/srg/spikeprime/internal/transport"
	"github.com/srg/spikeprime/protocol"
	"github.com/stretchr/testify/suite"
)

// fakeTransport implements transport.Transport in-process. Written packets
// are reassembled and decoded; onRequest scripts the hub's replies.
type fakeTransport struct {
	mu        sync.Mutex
	handler   func([]byte)
	buf       []byte
	received  [][]byte // decoded message payloads written by the connection
	onRequest func(payload []byte)
	closed    bool
}

func (f *fakeTransport) WritePacket(data []byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return transport.ErrNotConnected
	}
	f.buf = append(f.buf, data...)

	var complete [][]byte
	for {
		i := bytes.IndexByte(f.buf, frame.Delimiter)
		if i < 0 {
			break
		}
		payload, err := frame.Decode(f.buf[:i+1])
		f.buf = f.buf[i+1:]
		if err != nil {
			f.mu.Unlock()
			return err
		}
		f.received = append(f.received, payload)
		complete = append(complete, payload)
	}
	onRequest := f.onRequest
	f.mu.Unlock()

	if onRequest != nil {
		for _, payload := range complete {
			onRequest(payload)
		}
	}
	return nil
}

func (f *fakeTransport) Subscribe(handler func(data []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// respond frames payloads and delivers them as one notification each.
func (f *fakeTransport) respond(payloads ...[]byte) {
	for _, p := range payloads {
		f.handler(frame.Encode(p))
	}
}

// respondFragmented frames a payload and delivers it in n-byte pieces.
func (f *fakeTransport) respondFragmented(payload []byte, n int) {
	packet := frame.Encode(payload)
	for off := 0; off < len(packet); off += n {
		end := min(off+n, len(packet))
		f.handler(packet[off:end])
	}
}

const (
	testMaxPacketSize  = 180
	testMaxMessageSize = 8192
	testMaxChunkSize   = 400
)

// infoReply builds an InfoResponse payload with the test transfer limits.
func infoReply(productGroup uint16) []byte {
	p := []byte{byte(protocol.OpInfoResponse), 1, 0}
	p = binary.LittleEndian.AppendUint16(p, 0) // rpc build
	p = append(p, 3, 1)
	p = binary.LittleEndian.AppendUint16(p, 68) // firmware build
	p = binary.LittleEndian.AppendUint16(p, testMaxPacketSize)
	p = binary.LittleEndian.AppendUint16(p, testMaxMessageSize)
	p = binary.LittleEndian.AppendUint16(p, testMaxChunkSize)
	return binary.LittleEndian.AppendUint16(p, productGroup)
}

func ackReply(op protocol.Opcode, status protocol.ResponseStatus) []byte {
	return []byte{byte(op), byte(status)}
}

type ConnectionTestSuite struct {
	suite.Suite
	originalDialer func(context.Context, string, *logrus.Logger) (transport.Transport, error)
	tr             *fakeTransport
}

func (suite *ConnectionTestSuite) SetupTest() {
	suite.originalDialer = hub.Dialer
	suite.tr = &fakeTransport{}
	hub.Dialer = func(ctx context.Context, address string, logger *logrus.Logger) (transport.Transport, error) {
		return suite.tr, nil
	}
}

func (suite *ConnectionTestSuite) TearDownTest() {
	hub.Dialer = suite.originalDialer
}

// connect performs the handshake against the fake, answering the info
// request with a product group 0 reply.
func (suite *ConnectionTestSuite) connect() *hub.Connection {
	suite.tr.onRequest = func(payload []byte) {
		if protocol.Opcode(payload[0]) == protocol.OpInfoRequest {
			suite.tr.respond(infoReply(0))
		}
	}
	conn, err := hub.Connect(context.Background(), "aa:bb:cc:dd:ee:ff", testLogger())
	suite.Require().NoError(err)
	return conn
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func (suite *ConnectionTestSuite) TestHandshake() {
	// GOAL: Verify Connect subscribes, sends an info request as its first
	// message and captures the hub's transfer limits
	//
	// TEST SCENARIO: Connect → hub answers info request → Info() reports
	// the advertised limits

	conn := suite.connect()
	defer conn.Close()

	suite.Require().NotEmpty(suite.tr.received)
	suite.Equal([]byte{byte(protocol.OpInfoRequest)}, suite.tr.received[0],
		"first message on the wire MUST be the info request")

	info := conn.Info()
	suite.Equal(uint16(testMaxPacketSize), info.MaxPacketSize)
	suite.Equal(uint16(testMaxMessageSize), info.MaxMessageSize)
	suite.Equal(uint16(testMaxChunkSize), info.MaxChunkSize)
}

func (suite *ConnectionTestSuite) TestHandshakeRejectsWrongProductGroup() {
	// GOAL: Verify a peripheral with the right service but the wrong
	// product group is rejected and the link torn down

	suite.tr.onRequest = func(payload []byte) {
		suite.tr.respond(infoReply(7))
	}

	_, err := hub.Connect(context.Background(), "aa:bb:cc:dd:ee:ff", testLogger())
	suite.ErrorIs(err, hub.ErrBadDevice)
	suite.True(suite.tr.isClosed(), "transport MUST be closed after a failed handshake")
}

func (suite *ConnectionTestSuite) TestHandshakeRejectsZeroTransferLimits() {
	// GOAL: Verify a hub advertising a zero transfer limit is rejected at
	// handshake time; a zero stride would make the chunked write paths
	// loop forever
	//
	// TEST SCENARIO: Connect → hub answers with max packet size 0 →
	// Connect fails and the link is torn down

	p := []byte{byte(protocol.OpInfoResponse), 1, 0}
	p = binary.LittleEndian.AppendUint16(p, 0) // rpc build
	p = append(p, 3, 1)
	p = binary.LittleEndian.AppendUint16(p, 68) // firmware build
	p = binary.LittleEndian.AppendUint16(p, 0)  // max packet size
	p = binary.LittleEndian.AppendUint16(p, testMaxMessageSize)
	p = binary.LittleEndian.AppendUint16(p, testMaxChunkSize)
	p = binary.LittleEndian.AppendUint16(p, 0) // product group

	suite.tr.onRequest = func(payload []byte) {
		suite.tr.respond(p)
	}

	_, err := hub.Connect(context.Background(), "aa:bb:cc:dd:ee:ff", testLogger())
	suite.ErrorIs(err, hub.ErrBadDevice)
	suite.True(suite.tr.isClosed(), "transport MUST be closed after a failed handshake")
}

func (suite *ConnectionTestSuite) TestHubNameRoundTrip() {
	conn := suite.connect()
	defer conn.Close()

	suite.tr.onRequest = func(payload []byte) {
		switch protocol.Opcode(payload[0]) {
		case protocol.OpGetHubNameRequest:
			suite.tr.respond(append(append([]byte{byte(protocol.OpGetHubNameResponse)}, "Prime"...), 0x00))
		case protocol.OpSetHubNameRequest:
			suite.tr.respond(ackReply(protocol.OpSetHubNameResponse, protocol.Acknowledged))
		}
	}

	name, err := conn.HubName(context.Background())
	suite.Require().NoError(err)
	suite.Equal("Prime", name)

	suite.NoError(conn.SetHubName(context.Background(), "Renamed"))
	last := suite.tr.received[len(suite.tr.received)-1]
	suite.Equal(append(append([]byte{byte(protocol.OpSetHubNameRequest)}, "Renamed"...), 0x00), last)
}

func (suite *ConnectionTestSuite) TestNackBecomesError() {
	// GOAL: Verify a NAK reply surfaces as a NotAcknowledgedError naming
	// the request that failed

	conn := suite.connect()
	defer conn.Close()

	suite.tr.onRequest = func(payload []byte) {
		suite.tr.respond(ackReply(protocol.OpClearSlotResponse, protocol.NotAcknowledged))
	}

	err := conn.ClearSlot(context.Background(), 3)
	var nackErr *hub.NotAcknowledgedError
	suite.ErrorAs(err, &nackErr)
	suite.Equal(protocol.OpClearSlotRequest, nackErr.Request)
}

func (suite *ConnectionTestSuite) TestWrongReplyType() {
	conn := suite.connect()
	defer conn.Close()

	suite.tr.onRequest = func(payload []byte) {
		suite.tr.respond(ackReply(protocol.OpProgramFlowResponse, protocol.Acknowledged))
	}

	_, err := conn.HubName(context.Background())
	var wrongErr *hub.WrongMessageError
	suite.ErrorAs(err, &wrongErr)
	suite.Equal(protocol.OpGetHubNameResponse, wrongErr.Want)
	suite.Equal(protocol.OpProgramFlowResponse, wrongErr.Got)
}

func (suite *ConnectionTestSuite) TestDeviceNotificationMailbox() {
	// GOAL: Verify device notifications land in the latest-value mailbox
	// instead of the receive queue, and that newer snapshots replace older
	// ones

	conn := suite.connect()
	defer conn.Close()

	battery := func(percent byte) []byte {
		p := []byte{byte(protocol.OpDeviceNotification)}
		p = binary.LittleEndian.AppendUint16(p, 2)
		return append(p, 0x00, percent)
	}
	suite.tr.respond(battery(80), battery(75))

	n := conn.DeviceNotification()
	suite.Require().NotNil(n)
	suite.Require().Len(n.Messages, 1)
	suite.Equal(&protocol.BatteryStatus{Percent: 75}, n.Messages[0])

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := conn.Receive(ctx)
	suite.ErrorIs(err, context.DeadlineExceeded,
		"device notifications MUST NOT appear on the receive queue")
}

func (suite *ConnectionTestSuite) TestFragmentedNotifications() {
	// GOAL: Verify the receive path reassembles frames delivered in
	// arbitrarily small radio fragments

	conn := suite.connect()
	defer conn.Close()

	payload := append(append([]byte{byte(protocol.OpConsoleNotification)}, "hello\n"...), 0x00)
	suite.tr.respondFragmented(payload, 1)

	msg, err := conn.Receive(context.Background())
	suite.Require().NoError(err)
	suite.Equal(&protocol.ConsoleNotification{Text: "hello\n"}, msg)
}

func (suite *ConnectionTestSuite) TestUploadProgram() {
	// GOAL: Verify an upload announces the whole-file checksum, then
	// streams max-chunk-size pieces each carrying the running checksum
	//
	// TEST SCENARIO: Upload a program larger than one chunk → start and
	// chunk requests acknowledged → wire layout verified per request

	conn := suite.connect()
	defer conn.Close()

	suite.tr.onRequest = func(payload []byte) {
		switch protocol.Opcode(payload[0]) {
		case protocol.OpStartFileUploadRequest:
			suite.tr.respond(ackReply(protocol.OpStartFileUploadResponse, protocol.Acknowledged))
		case protocol.OpTransferChunkRequest:
			suite.tr.respond(ackReply(protocol.OpTransferChunkResponse, protocol.Acknowledged))
		}
	}

	code := make([]byte, testMaxChunkSize+100)
	for i := range code {
		code[i] = byte(i)
	}
	start := len(suite.tr.received)
	suite.Require().NoError(conn.UploadProgram(context.Background(), 2, "main.py", code))

	sent := suite.tr.received[start:]
	suite.Require().Len(sent, 3, "one start request plus two chunks expected")

	suite.Equal(protocol.StartFileUploadRequest{
		FileName: "main.py",
		Slot:     2,
		CRC32:    protocol.Checksum(code),
	}.Encode(), sent[0])

	var digest protocol.Digest
	first := digest.Update(code[:testMaxChunkSize])
	suite.Equal(protocol.TransferChunkRequest{
		CRC32:   first,
		Payload: code[:testMaxChunkSize],
	}.Encode(), sent[1])

	second := digest.Update(code[testMaxChunkSize:])
	suite.Equal(protocol.TransferChunkRequest{
		CRC32:   second,
		Payload: code[testMaxChunkSize:],
	}.Encode(), sent[2])
}

func (suite *ConnectionTestSuite) TestSendEnforcesMessageSize() {
	conn := suite.connect()
	defer conn.Close()

	err := conn.Tunnel(make([]byte, testMaxMessageSize))
	var sizeErr *hub.MessageTooLargeError
	suite.ErrorAs(err, &sizeErr)
	suite.Equal(testMaxMessageSize, sizeErr.Max)
}

func (suite *ConnectionTestSuite) TestSendSplitsIntoPackets() {
	// GOAL: Verify framed messages larger than the packet size go out in
	// max-packet-size pieces that reassemble into one frame

	conn := suite.connect()
	defer conn.Close()

	payload := make([]byte, 600)
	suite.Require().NoError(conn.Tunnel(payload))

	last := suite.tr.received[len(suite.tr.received)-1]
	suite.Equal((&protocol.TunnelMessage{Payload: payload}).Encode(), last)
}

func (suite *ConnectionTestSuite) TestCloseInvalidatesHandle() {
	conn := suite.connect()

	suite.NoError(conn.Close())
	suite.NoError(conn.Close(), "Close MUST be idempotent")
	suite.True(suite.tr.isClosed())

	suite.ErrorIs(conn.Tunnel([]byte{1}), transport.ErrNotConnected)
	_, err := conn.Receive(context.Background())
	suite.ErrorIs(err, transport.ErrNotConnected)
}

func (suite *ConnectionTestSuite) TestReceiveHonorsContext() {
	conn := suite.connect()
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := conn.Receive(ctx)
	suite.ErrorIs(err, context.Canceled)
}

func TestConnectionTestSuite(t *testing.T) {
	suite.Run(t, new(ConnectionTestSuite))
}
