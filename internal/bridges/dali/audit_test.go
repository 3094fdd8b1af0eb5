package dali

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/audit"
	"github.com/nerrad567/gray-logic-dali/internal/gear"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/mqtt"
	_ "github.com/nerrad567/gray-logic-dali/migrations"
)

func setupAuditRepo(t *testing.T) *audit.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "gear.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return audit.NewSQLiteRepository(db.DB)
}

// failingRepo implements audit.Repository and rejects every write.
type failingRepo struct{}

func (failingRepo) Create(context.Context, *audit.Entry) error {
	return errors.New("disk full")
}

func (failingRepo) List(context.Context, audit.Filter) (*audit.Page, error) {
	return &audit.Page{}, nil
}

func TestDiffSnapshots(t *testing.T) {
	base := testSnapshot()

	tests := []struct {
		name   string
		modify func(*gear.Snapshot)
		want   []string
	}{
		{"no change", func(*gear.Snapshot) {}, nil},
		{"level only", func(s *gear.Snapshot) { s.ActualLevel = 10 }, nil},
		{"short address", func(s *gear.Snapshot) { s.ShortAddress = 7 }, []string{ChangeShortAddress}},
		{"groups", func(s *gear.Snapshot) { s.Groups = 0 }, []string{ChangeGroups}},
		{"random address", func(s *gear.Snapshot) { s.RandomAddress = 0x123456 }, []string{ChangeRandomAddress}},
		{"reset state", func(s *gear.Snapshot) { s.Status |= gear.StatusResetState }, []string{ChangeResetState}},
		{"initialise window", func(s *gear.Snapshot) { s.InitialiseWindow = true }, []string{ChangeInitialise}},
		{"enabled", func(s *gear.Snapshot) { s.Enabled = false }, []string{ChangeEnabled}},
		{"reset", func(s *gear.Snapshot) {
			s.ShortAddress = gear.ShortUnassigned
			s.Groups = 0
			s.Status |= gear.StatusResetState
		}, []string{ChangeShortAddress, ChangeGroups, ChangeResetState}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := base
			tt.modify(&cur)

			events := diffSnapshots(base, cur)
			if len(events) != len(tt.want) {
				t.Fatalf("diffSnapshots() = %d events, want %d", len(events), len(tt.want))
			}
			for i, ev := range events {
				if ev.Change != tt.want[i] {
					t.Errorf("event[%d] = %q, want %q", i, ev.Change, tt.want[i])
				}
			}
		})
	}
}

func TestAuditor_RecordsShortAddressChange(t *testing.T) {
	repo := setupAuditRepo(t)
	pub := newMockPublisher(true)
	a := NewAuditor("kitchen", repo, pub)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prev := testSnapshot()
	prev.ShortAddress = gear.ShortUnassigned
	a.Observe(now, prev)

	if n := len(pub.getMessages()); n != 0 {
		t.Fatalf("baseline snapshot produced %d events", n)
	}

	cur := prev
	cur.ShortAddress = 12
	a.Observe(now.Add(time.Second), cur)

	page, err := repo.List(context.Background(), audit.Filter{GearID: "kitchen"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("audit rows = %d, want 1", page.Total)
	}
	entry := page.Entries[0]
	if entry.Source != "dali" || !entry.CreatedAt.Equal(now.Add(time.Second)) {
		t.Errorf("entry = %+v, want dali entry at the observation time", entry)
	}
	if entry.Change != ChangeShortAddress || entry.Old != nil || entry.New != float64(12) {
		t.Errorf("entry change = %s %v -> %v, want short_address nil -> 12", entry.Change, entry.Old, entry.New)
	}

	msgs := pub.onTopic(mqtt.Topics{}.Event("kitchen"))
	if len(msgs) != 1 {
		t.Fatalf("published %d events, want 1", len(msgs))
	}
	var ev ConfigEvent
	if err := json.Unmarshal(msgs[0].payload, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.GearID != "kitchen" || ev.Change != ChangeShortAddress {
		t.Errorf("event = %+v", ev)
	}
	if msgs[0].retained {
		t.Error("config event published retained")
	}
}

func TestAuditor_RepositoryFailureStillPublishes(t *testing.T) {
	pub := newMockPublisher(true)
	a := NewAuditor("kitchen", failingRepo{}, pub)

	snap := testSnapshot()
	a.Observe(time.Now(), snap)
	snap.Groups = 0xFFFF
	a.Observe(time.Now(), snap)

	if n := len(pub.getMessages()); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
}

func TestAuditor_WithRunner(t *testing.T) {
	pub := newMockPublisher(true)
	a := NewAuditor("test-gear", nil, pub)
	r, _, _ := newTestRunner(t, a)

	// SET SHORT ADDRESS reads DTR0 and must be sent twice.
	r.Frame(gear.NewSpecialFrame(gear.SpecialDTR0, gear.EncodeShortAddress(9)))
	setShort := gear.NewCommandFrame(gear.ModeBroadcast, 0, gear.OpSetShortAddress)
	r.Frame(setShort)
	r.Frame(setShort)

	waitFor(t, "address event", func() bool {
		return len(pub.onTopic(mqtt.Topics{}.Event("test-gear"))) > 0
	})
	if sa := r.Gear().Snapshot().ShortAddress; sa != 9 {
		t.Errorf("short address = %d, want 9", sa)
	}
}
