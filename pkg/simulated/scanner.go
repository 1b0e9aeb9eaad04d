package simulated

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/config"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// Scanner is a discovery.Scanner that announces a fixed fleet of simulated
// readers, one more per interval, mimicking readers entering radio range.
type Scanner struct {
	readers  []*model.Reader
	interval time.Duration
}

// NewScanner returns a scanner over the given fleet. With no readers given,
// a default fleet of two simulated readers is generated.
func NewScanner(readers ...*model.Reader) *Scanner {
	if len(readers) == 0 {
		readers = []*model.Reader{NewReader(), NewReader()}
	}
	return &Scanner{readers: readers, interval: 50 * time.Millisecond}
}

// NewReader generates a simulated reader descriptor with a unique serial.
func NewReader() *model.Reader {
	return &model.Reader{
		SerialNumber:          fmt.Sprintf("SIMULATOR-%s", uuid.NewString()[:8]),
		DeviceType:            model.DeviceTypeSimulated,
		DeviceSoftwareVersion: "1.0.0.99",
		BatteryLevel:          0.85,
		SignalStrength:        1.0,
	}
}

// Scan emits growing batches of the fleet until ctx ends. It never fails.
func (s *Scanner) Scan(ctx context.Context, cfg config.DiscoveryConfiguration, found chan<- []*model.Reader) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 1; i <= len(s.readers); i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		batch := make([]*model.Reader, i)
		copy(batch, s.readers[:i])
		select {
		case found <- batch:
		case <-ctx.Done():
			return nil
		}
	}

	<-ctx.Done()
	return nil
}
