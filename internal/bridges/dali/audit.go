package dali

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/audit"
	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
)

// auditWriteTimeout bounds one audit_logs insert.
const auditWriteTimeout = 2 * time.Second

// auditSource marks entries written for bus commands.
const auditSource = "dali"

// Change names reported by the Auditor.
const (
	ChangeShortAddress  = "short_address"
	ChangeGroups        = "groups"
	ChangeRandomAddress = "random_address"
	ChangeResetState    = "reset_state"
	ChangeInitialise    = "initialise_window"
	ChangeEnabled       = "enabled"
)

// ConfigEvent is published on the event topic when a bus command changes
// the gear's configuration.
// Topic: graylogic/dali/{gear_id}/event
type ConfigEvent struct {
	GearID    string    `json:"gear_id"`
	Timestamp time.Time `json:"timestamp"`
	Change    string    `json:"change"`
	Old       any       `json:"old"`
	New       any       `json:"new"`
}

// Auditor records configuration changes made over the bus. It compares
// successive snapshots and writes one audit_logs row and one MQTT event per
// changed item.
//
// Thread Safety: Observe may be called from any goroutine.
type Auditor struct {
	gearID    string
	repo      audit.Repository
	publisher Publisher
	topics    mqtt.Topics

	mu   sync.Mutex
	last *gear.Snapshot

	logger Logger
}

// NewAuditor creates an Auditor. repo and publisher are both optional.
func NewAuditor(gearID string, repo audit.Repository, publisher Publisher) *Auditor {
	return &Auditor{
		gearID:    gearID,
		repo:      repo,
		publisher: publisher,
		logger:    nopLogger{},
	}
}

// SetLogger sets the logger for the auditor.
func (a *Auditor) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Observe implements Observer. The first snapshot only sets the baseline.
func (a *Auditor) Observe(now time.Time, snap gear.Snapshot) {
	a.mu.Lock()
	prev := a.last
	a.last = &snap
	a.mu.Unlock()

	if prev == nil {
		return
	}
	for _, ev := range diffSnapshots(*prev, snap) {
		ev.GearID = a.gearID
		ev.Timestamp = now.UTC()
		a.record(ev)
	}
}

func diffSnapshots(prev, cur gear.Snapshot) []ConfigEvent {
	var events []ConfigEvent
	if prev.ShortAddress != cur.ShortAddress {
		events = append(events, ConfigEvent{
			Change: ChangeShortAddress,
			Old:    shortAddressValue(prev.ShortAddress),
			New:    shortAddressValue(cur.ShortAddress),
		})
	}
	if prev.Groups != cur.Groups {
		events = append(events, ConfigEvent{
			Change: ChangeGroups,
			Old:    groupList(prev.Groups),
			New:    groupList(cur.Groups),
		})
	}
	if prev.RandomAddress != cur.RandomAddress {
		events = append(events, ConfigEvent{
			Change: ChangeRandomAddress,
			Old:    fmt.Sprintf("%06X", prev.RandomAddress),
			New:    fmt.Sprintf("%06X", cur.RandomAddress),
		})
	}
	prevReset := prev.Status&gear.StatusResetState != 0
	curReset := cur.Status&gear.StatusResetState != 0
	if prevReset != curReset {
		events = append(events, ConfigEvent{Change: ChangeResetState, Old: prevReset, New: curReset})
	}
	if prev.InitialiseWindow != cur.InitialiseWindow {
		events = append(events, ConfigEvent{Change: ChangeInitialise, Old: prev.InitialiseWindow, New: cur.InitialiseWindow})
	}
	if prev.Enabled != cur.Enabled {
		events = append(events, ConfigEvent{Change: ChangeEnabled, Old: prev.Enabled, New: cur.Enabled})
	}
	return events
}

// shortAddressValue returns nil for an unassigned address.
func shortAddressValue(sa byte) any {
	if sa > gear.MaxShortAddress {
		return nil
	}
	return int(sa)
}

func (a *Auditor) record(ev ConfigEvent) {
	a.logger.Info("gear configuration changed",
		"gear_id", ev.GearID,
		"change", ev.Change,
		"old", ev.Old,
		"new", ev.New)

	if a.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		err := a.repo.Create(ctx, &audit.Entry{
			GearID:    ev.GearID,
			Change:    ev.Change,
			Old:       ev.Old,
			New:       ev.New,
			Source:    auditSource,
			CreatedAt: ev.Timestamp,
		})
		cancel()
		if err != nil {
			a.logger.Error("writing audit log", "gear_id", ev.GearID, "error", err)
		}
	}

	if a.publisher == nil || !a.publisher.IsConnected() {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		a.logger.Error("encoding config event", "gear_id", ev.GearID, "error", err)
		return
	}
	if err := a.publisher.Publish(a.topics.Event(a.gearID), payload, 1, false); err != nil {
		a.logger.Warn("publishing config event", "gear_id", ev.GearID, "error", err)
	}
}
