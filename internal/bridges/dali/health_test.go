package dali

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
)

// staticSource implements SnapshotSource.
type staticSource struct {
	mu   sync.Mutex
	snap gear.Snapshot
}

func (s *staticSource) Snapshot() gear.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// connFlag implements ConnectionChecker.
type connFlag bool

func (c connFlag) IsConnected() bool { return bool(c) }

func TestNewHealthReporter_DefaultInterval(t *testing.T) {
	hr := NewHealthReporter(HealthReporterConfig{GearID: "kitchen"})
	if hr.interval != defaultHealthInterval {
		t.Errorf("interval = %v, want %v", hr.interval, defaultHealthInterval)
	}
}

func TestHealthReporter_DetermineStatus(t *testing.T) {
	healthy := testSnapshot()

	tests := []struct {
		name       string
		transport  ConnectionChecker
		modify     func(*gear.Snapshot)
		wantStatus HealthStatus
		wantReason string
	}{
		{"healthy", connFlag(true), nil, HealthHealthy, ""},
		{"transport down", connFlag(false), nil, HealthUnhealthy, "transport disconnected"},
		{"no transport", nil, nil, HealthUnhealthy, "transport disconnected"},
		{"disabled", connFlag(true), func(s *gear.Snapshot) { s.Enabled = false }, HealthDegraded, "gear disabled"},
		{"bus down", connFlag(true), func(s *gear.Snapshot) { s.BusDown = true }, HealthDegraded, "bus power down"},
		{"lamp failure", connFlag(true), func(s *gear.Snapshot) { s.LampFailure = true }, HealthDegraded, "lamp failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := healthy
			if tt.modify != nil {
				tt.modify(&snap)
			}
			hr := NewHealthReporter(HealthReporterConfig{
				GearID:    "kitchen",
				Source:    &staticSource{snap: snap},
				Transport: tt.transport,
			})

			status, reason := hr.determineStatus()
			if status != tt.wantStatus || reason != tt.wantReason {
				t.Errorf("determineStatus() = %q, %q; want %q, %q", status, reason, tt.wantStatus, tt.wantReason)
			}
		})
	}
}

func TestHealthReporter_PublishNow(t *testing.T) {
	pub := newMockPublisher(true)
	snap := testSnapshot()
	snap.Stats.FramesReceived = 12
	hr := NewHealthReporter(HealthReporterConfig{
		GearID:    "kitchen",
		Version:   "1.2.3",
		Publisher: pub,
		Source:    &staticSource{snap: snap},
		Transport: connFlag(true),
	})

	if err := hr.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	msgs := pub.getMessages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != (mqtt.Topics{}).Health("kitchen") {
		t.Errorf("topic = %q, want health topic", msgs[0].topic)
	}
	if !msgs[0].retained || msgs[0].qos != 1 {
		t.Errorf("qos/retained = %d/%v, want 1/true", msgs[0].qos, msgs[0].retained)
	}

	var msg HealthMessage
	if err := json.Unmarshal(msgs[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthHealthy || msg.Version != "1.2.3" || !msg.TransportConnected {
		t.Errorf("health = %+v", msg)
	}
	if msg.ShortAddress == nil || *msg.ShortAddress != 5 {
		t.Errorf("ShortAddress = %v, want 5", msg.ShortAddress)
	}
	if msg.Statistics == nil || msg.Statistics.FramesReceived != 12 {
		t.Errorf("Statistics = %+v, want 12 frames received", msg.Statistics)
	}
}

func TestHealthReporter_NoPublisher(t *testing.T) {
	hr := NewHealthReporter(HealthReporterConfig{GearID: "kitchen", Transport: connFlag(true)})
	if err := hr.PublishNow(); err != nil {
		t.Errorf("PublishNow() without publisher error = %v", err)
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	pub := newMockPublisher(true)
	hr := NewHealthReporter(HealthReporterConfig{
		GearID:    "kitchen",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
		Source:    &staticSource{snap: testSnapshot()},
		Transport: connFlag(true),
	})

	if err := hr.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}
	hr.Start(context.Background())
	waitFor(t, "periodic health", func() bool { return len(pub.getMessages()) >= 3 })
	hr.Stop()
	hr.Stop()

	msgs := pub.getMessages()
	statusOf := func(m publishedMessage) HealthStatus {
		var h HealthMessage
		if err := json.Unmarshal(m.payload, &h); err != nil {
			t.Fatalf("unmarshal health: %v", err)
		}
		return h.Status
	}
	if got := statusOf(msgs[0]); got != HealthStarting {
		t.Errorf("first status = %q, want starting", got)
	}
	if got := statusOf(msgs[len(msgs)-1]); got != HealthStopping {
		t.Errorf("last status = %q, want stopping", got)
	}
}
