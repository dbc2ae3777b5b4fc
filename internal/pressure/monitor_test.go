package pressure

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gristmill/internal/logging"
	"gristmill/internal/testsupport"
)

func TestMonitorReclaimsAboveThreshold(t *testing.T) {
	provider := testsupport.NewStaticTelemetry(uint64(0.88*float64(testLimit)), 88)
	m := NewMonitor(provider, testLimit, 10*time.Millisecond, logging.NewNop())

	var reclaims atomic.Int64
	m.reclaim = func() { reclaims.Add(1) }

	m.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for reclaims.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("monitor never requested reclamation above threshold")
		case <-time.After(5 * time.Millisecond):
		}
	}
	m.Stop()
}

func TestMonitorQuietBelowThreshold(t *testing.T) {
	provider := testsupport.NewStaticTelemetry(uint64(0.2*float64(testLimit)), 20)
	m := NewMonitor(provider, testLimit, 5*time.Millisecond, logging.NewNop())

	var reclaims atomic.Int64
	m.reclaim = func() { reclaims.Add(1) }

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	if reclaims.Load() != 0 {
		t.Fatalf("monitor reclaimed %d times below threshold", reclaims.Load())
	}
}

func TestMonitorSurvivesTelemetryFailure(t *testing.T) {
	provider := testsupport.NewFailingTelemetry(errors.New("sampler offline"))
	m := NewMonitor(provider, testLimit, 5*time.Millisecond, logging.NewNop())
	m.reclaim = func() { t.Fatal("reclaim must not run on telemetry failure") }

	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	provider := testsupport.NewStaticTelemetry(0, 0)
	m := NewMonitor(provider, testLimit, time.Hour, logging.NewNop())

	m.Start(context.Background())
	m.Stop()
	m.Stop()

	// restart works after a stop
	m.Start(context.Background())
	m.Stop()
}
