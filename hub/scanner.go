package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/spikeprime/internal/groutine"
	"github.com/srg/spikeprime/internal/ringchan"
	"github.com/srg/spikeprime/internal/transport"
)

// ScanOptions configures discovery behavior.
type ScanOptions struct {
	// Timeout bounds ScanFirst. Ignored by Scan, which runs until its
	// context is done.
	Timeout time.Duration

	// AllowDuplicates forwards repeat advertisements from the radio. Hubs
	// are still reported once; duplicates only refresh RSSI and last-seen.
	AllowDuplicates bool
}

// DefaultScanOptions returns the default discovery options.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Timeout: 10 * time.Second,
	}
}

// scanEventBuffer bounds each scan's discovery channel.
const scanEventBuffer = 100

// Scanner discovers hubs by their advertised service UUID. A Scanner is
// reusable: every Scan call is an independent discovery pass with its own
// event channel and dedupe window.
type Scanner struct {
	logger *logrus.Logger
}

// NewScanner creates a hub scanner.
func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{logger: logger}
}

// Scan starts continuous discovery and returns a channel of hubs. Each hub
// is emitted once per call, deduplicated by address; the channel closes when
// ctx is done or the radio fails.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan *Hub, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}

	dev, err := transport.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", transport.NormalizeError(err))
	}

	devices := hashmap.New[string, *Hub]()
	events := ringchan.New[*Hub](scanEventBuffer)

	s.logger.Info("Starting hub scan...")
	groutine.Go(ctx, "hub-scan", func(ctx context.Context) {
		err := dev.Scan(ctx, opts.AllowDuplicates, func(adv blelib.Advertisement) {
			s.handleAdvertisement(devices, events, adv)
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.logger.WithField("error", transport.NormalizeError(err)).Error("Hub scan failed")
		}
		s.logger.WithField("hub_count", devices.Len()).Info("Hub scan completed")
		events.Close()
	})

	return events.C(), nil
}

// ScanFirst discovers hubs until the first match or the scan timeout. It
// never hangs: the timeout from opts (default 10s) always applies.
func ScanFirst(ctx context.Context, opts *ScanOptions, logger *logrus.Logger) (*Hub, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultScanOptions().Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hubs, err := NewScanner(logger).Scan(ctx, opts)
	if err != nil {
		return nil, err
	}

	select {
	case h, ok := <-hubs:
		if !ok {
			return nil, ErrNoHubFound
		}
		return h, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w within %s", ErrNoHubFound, timeout)
	}
}

// handleAdvertisement filters for the hub service and reports each hub once
// per scan window.
func (s *Scanner) handleAdvertisement(devices *hashmap.Map[string, *Hub], events *ringchan.RingChannel[*Hub], adv blelib.Advertisement) {
	if !matchesHub(adv) {
		return
	}

	address := adv.Addr().String()
	h, existing := devices.Get(address)
	if !existing {
		h, existing = devices.GetOrInsert(address, &Hub{
			name:     adv.LocalName(),
			address:  address,
			rssi:     adv.RSSI(),
			lastSeen: time.Now(),
			logger:   s.logger,
		})
	}

	if existing {
		h.refresh(adv.LocalName(), adv.RSSI())
		return
	}

	s.logger.WithFields(logrus.Fields{
		"hub":     h.Name(),
		"address": h.Address(),
		"rssi":    h.RSSI(),
	}).Info("Discovered hub")
	events.Send(h)
}

func matchesHub(adv blelib.Advertisement) bool {
	uuids := make([]string, 0, len(adv.Services()))
	for _, u := range adv.Services() {
		uuids = append(uuids, u.String())
	}
	return transport.MatchesService(uuids)
}
