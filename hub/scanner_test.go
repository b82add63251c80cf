package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/internal/transport"
	"github.com/stretchr/testify/suite"
)

// fakeAdvertisement implements ble.Advertisement for scripted scans.
type fakeAdvertisement struct {
	name     string
	addr     string
	rssi     int
	services []ble.UUID
}

func (a *fakeAdvertisement) LocalName() string              { return a.name }
func (a *fakeAdvertisement) ManufacturerData() []byte       { return nil }
func (a *fakeAdvertisement) ServiceData() []ble.ServiceData { return nil }
func (a *fakeAdvertisement) Services() []ble.UUID           { return a.services }
func (a *fakeAdvertisement) OverflowService() []ble.UUID    { return nil }
func (a *fakeAdvertisement) TxPowerLevel() int              { return 127 }
func (a *fakeAdvertisement) Connectable() bool              { return true }
func (a *fakeAdvertisement) SolicitedService() []ble.UUID   { return nil }
func (a *fakeAdvertisement) RSSI() int                      { return a.rssi }
func (a *fakeAdvertisement) Addr() ble.Addr                 { return ble.NewAddr(a.addr) }

// fakeDevice implements just enough of ble.Device for scanning; the embedded
// interface covers the methods the scanner never calls.
type fakeDevice struct {
	ble.Device
	advertisements []*fakeAdvertisement
}

func (d *fakeDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	for _, adv := range d.advertisements {
		h(adv)
	}
	<-ctx.Done()
	return ctx.Err()
}

var hubService = ble.MustParse("fd02")

type ScannerTestSuite struct {
	suite.Suite
	originalFactory func() (ble.Device, error)
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.originalFactory = transport.DeviceFactory
}

func (suite *ScannerTestSuite) TearDownTest() {
	transport.DeviceFactory = suite.originalFactory
}

func (suite *ScannerTestSuite) setAdvertisements(advs ...*fakeAdvertisement) {
	transport.DeviceFactory = func() (ble.Device, error) {
		return &fakeDevice{advertisements: advs}, nil
	}
}

func (suite *ScannerTestSuite) TestScanFiltersAndDeduplicates() {
	// GOAL: Verify only peripherals advertising the hub service are
	// reported, and repeat advertisements do not produce repeat events
	//
	// TEST SCENARIO: Mixed advertisements (hub, unrelated, repeated hub)
	// → exactly one event per hub address

	suite.setAdvertisements(
		&fakeAdvertisement{name: "Spike-1", addr: "aa:aa", rssi: -40, services: []ble.UUID{hubService}},
		&fakeAdvertisement{name: "Headphones", addr: "bb:bb", rssi: -50, services: []ble.UUID{ble.MustParse("180f")}},
		&fakeAdvertisement{name: "Spike-1", addr: "aa:aa", rssi: -45, services: []ble.UUID{hubService}},
		&fakeAdvertisement{name: "Spike-2", addr: "cc:cc", rssi: -60, services: []ble.UUID{hubService}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	hubs, err := hub.NewScanner(testLogger()).Scan(ctx, nil)
	suite.Require().NoError(err)

	found := map[string]*hub.Hub{}
	for h := range hubs {
		found[h.Address()] = h
	}

	suite.Len(found, 2)
	suite.Require().Contains(found, "aa:aa")
	suite.Require().Contains(found, "cc:cc")
	suite.Equal("Spike-1", found["aa:aa"].Name())
	suite.Equal(-45, found["aa:aa"].RSSI(), "repeat advertisements MUST refresh RSSI")
}

func (suite *ScannerTestSuite) TestScanIsRestartable() {
	// GOAL: Verify a Scanner survives repeated Scan calls: each call gets
	// a fresh event channel and a fresh dedupe window, so a hub seen in an
	// earlier window is reported again
	//
	// TEST SCENARIO: Two sequential scan windows on one Scanner → both
	// complete, both report the same hub

	suite.setAdvertisements(
		&fakeAdvertisement{name: "Spike-1", addr: "aa:aa", rssi: -40, services: []ble.UUID{hubService}},
	)
	scanner := hub.NewScanner(testLogger())

	for pass := 0; pass < 2; pass++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		hubs, err := scanner.Scan(ctx, nil)
		suite.Require().NoError(err)

		var found []*hub.Hub
		for h := range hubs {
			found = append(found, h)
		}
		cancel()

		suite.Require().Len(found, 1, "every scan window MUST report the hub")
		suite.Equal("aa:aa", found[0].Address())
	}
}

func (suite *ScannerTestSuite) TestScanFirst() {
	suite.setAdvertisements(
		&fakeAdvertisement{name: "Spike-1", addr: "aa:aa", rssi: -40, services: []ble.UUID{hubService}},
	)

	h, err := hub.ScanFirst(context.Background(), &hub.ScanOptions{Timeout: 500 * time.Millisecond}, testLogger())
	suite.Require().NoError(err)
	suite.Equal("aa:aa", h.Address())
}

func (suite *ScannerTestSuite) TestScanFirstTimesOut() {
	// GOAL: Verify ScanFirst never hangs when no hub is around

	suite.setAdvertisements(
		&fakeAdvertisement{name: "Headphones", addr: "bb:bb", rssi: -50, services: []ble.UUID{ble.MustParse("180f")}},
	)

	start := time.Now()
	_, err := hub.ScanFirst(context.Background(), &hub.ScanOptions{Timeout: 100 * time.Millisecond}, testLogger())
	suite.ErrorIs(err, hub.ErrNoHubFound)
	suite.Less(time.Since(start), time.Second)
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}
