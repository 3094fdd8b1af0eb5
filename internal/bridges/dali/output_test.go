package dali

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
)

func testSnapshot() gear.Snapshot {
	return gear.Snapshot{
		State:            "idle",
		Enabled:          true,
		ActualLevel:      254,
		RequestedLevel:   254,
		Status:           gear.StatusLampOn,
		ShortAddress:     5,
		Groups:           1<<0 | 1<<3,
		RandomAddress:    0xABCDEF,
		OutputHundredths: 10000,
	}
}

func TestNewGearState(t *testing.T) {
	snap := testSnapshot()
	snap.Params[gear.ParamMaxLevel] = 200

	st := NewGearState("kitchen", snap, time.Unix(0, 0))

	if st.ShortAddress == nil || *st.ShortAddress != 5 {
		t.Errorf("ShortAddress = %v, want 5", st.ShortAddress)
	}
	if len(st.Groups) != 2 || st.Groups[0] != 0 || st.Groups[1] != 3 {
		t.Errorf("Groups = %v, want [0 3]", st.Groups)
	}
	if st.RandomAddress != "abcdef" {
		t.Errorf("RandomAddress = %q, want abcdef", st.RandomAddress)
	}
	if st.OutputPercent != 100 {
		t.Errorf("OutputPercent = %v, want 100", st.OutputPercent)
	}
	if st.Params["max_level"] != 200 {
		t.Errorf("Params[max_level] = %d, want 200", st.Params["max_level"])
	}

	snap.ShortAddress = gear.ShortUnassigned
	snap.Groups = 0
	st = NewGearState("kitchen", snap, time.Unix(0, 0))
	if st.ShortAddress != nil {
		t.Errorf("ShortAddress = %d, want nil when unassigned", *st.ShortAddress)
	}
	if st.Groups == nil {
		t.Error("Groups = nil, want empty list")
	}
}

func TestStateOutput_LampStatus(t *testing.T) {
	o := NewStateOutput(StateOutputConfig{GearID: "kitchen"})

	if !o.LampOn() {
		t.Fatal("lamp should start on")
	}
	if err := o.HandleLampStatus("", []byte("off")); err != nil {
		t.Fatalf("HandleLampStatus(off) error = %v", err)
	}
	if o.LampOn() {
		t.Error("LampOn() = true after off report")
	}
	if err := o.HandleLampStatus("", []byte("flicker")); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("HandleLampStatus(flicker) error = %v, want ErrInvalidPayload", err)
	}
}

func TestStateOutput_PublishesLampOnChange(t *testing.T) {
	pub := newMockPublisher(true)
	o := NewStateOutput(StateOutputConfig{GearID: "kitchen", Publisher: pub, Interval: time.Hour})
	lampTopic := mqtt.Topics{}.Lamp("kitchen")
	now := time.Now()

	o.Observe(now, testSnapshot())
	if n := len(pub.onTopic(lampTopic)); n != 0 {
		t.Errorf("lamp published %d times before any level was set", n)
	}

	o.SetLightLevelPercent(5000)
	o.Observe(now, testSnapshot())
	o.Observe(now, testSnapshot())
	o.SetLightLevelPercent(0)
	o.Observe(now, testSnapshot())

	msgs := pub.onTopic(lampTopic)
	if len(msgs) != 2 {
		t.Fatalf("lamp published %d times, want 2", len(msgs))
	}
	if string(msgs[0].payload) != "5000" || string(msgs[1].payload) != "0" {
		t.Errorf("lamp payloads = %q, %q; want 5000, 0", msgs[0].payload, msgs[1].payload)
	}
	if !msgs[0].retained {
		t.Error("lamp level not retained")
	}
}

func TestStateOutput_StateRateLimitedAndDeduplicated(t *testing.T) {
	pub := newMockPublisher(true)
	metrics := &mockMetrics{}
	o := NewStateOutput(StateOutputConfig{
		GearID:    "kitchen",
		Publisher: pub,
		Metrics:   metrics,
		Interval:  time.Second,
	})
	stateTopic := mqtt.Topics{}.State("kitchen")
	t0 := time.Now()
	snap := testSnapshot()

	o.Observe(t0, snap)
	o.Observe(t0.Add(100*time.Millisecond), snap)
	if n := len(pub.onTopic(stateTopic)); n != 1 {
		t.Fatalf("state published %d times inside interval, want 1", n)
	}

	o.Observe(t0.Add(2*time.Second), snap)
	if n := len(pub.onTopic(stateTopic)); n != 1 {
		t.Errorf("unchanged state republished (%d messages)", n)
	}

	snap.ActualLevel = 100
	o.Observe(t0.Add(2500*time.Millisecond), snap)
	if n := len(pub.onTopic(stateTopic)); n != 1 {
		t.Errorf("state published %d times inside interval after change, want 1", n)
	}
	o.Observe(t0.Add(4*time.Second), snap)

	msgs := pub.onTopic(stateTopic)
	if len(msgs) != 2 {
		t.Fatalf("state published %d times, want 2", len(msgs))
	}
	var st GearState
	if err := json.Unmarshal(msgs[1].payload, &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.ActualLevel != 100 || st.GearID != "kitchen" {
		t.Errorf("state = %+v, want actual level 100 for kitchen", st)
	}
	if st.Timestamp.IsZero() {
		t.Error("state timestamp not set")
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.levels) != 2 || metrics.status != 2 || metrics.frames != 2 {
		t.Errorf("metrics writes = %d/%d/%d, want 2 each", len(metrics.levels), metrics.status, metrics.frames)
	}
}

func TestStateOutput_DisconnectedPublisher(t *testing.T) {
	pub := newMockPublisher(false)
	o := NewStateOutput(StateOutputConfig{GearID: "kitchen", Publisher: pub})

	o.SetLightLevelPercent(10000)
	o.Observe(time.Now(), testSnapshot())

	if n := len(pub.getMessages()); n != 0 {
		t.Errorf("published %d messages while disconnected", n)
	}

	// Publishing resumes once connected.
	pub.mu.Lock()
	pub.connected = true
	pub.mu.Unlock()
	o.Observe(time.Now(), testSnapshot())
	if n := len(pub.onTopic(mqtt.Topics{}.Lamp("kitchen"))); n != 1 {
		t.Errorf("lamp published %d times after reconnect, want 1", n)
	}
}

func TestStateOutput_StateRetriedAfterReconnect(t *testing.T) {
	pub := newMockPublisher(false)
	o := NewStateOutput(StateOutputConfig{GearID: "kitchen", Publisher: pub, Interval: time.Second})
	stateTopic := mqtt.Topics{}.State("kitchen")
	t0 := time.Now()

	o.Observe(t0, testSnapshot())

	pub.mu.Lock()
	pub.connected = true
	pub.mu.Unlock()
	o.Observe(t0.Add(time.Second), testSnapshot())

	if n := len(pub.onTopic(stateTopic)); n != 1 {
		t.Errorf("state published %d times after reconnect, want 1", n)
	}
}
