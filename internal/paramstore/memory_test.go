package paramstore

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

func testIdentity() Identity {
	id := DefaultIdentity()
	id.GTIN = 0x0123456789AB
	id.Serial = 0x1122334455667788
	id.FirmwareMajor = 2
	id.FirmwareMinor = 7
	id.PhysicalMinLevel = 85
	return id
}

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(testIdentity())
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	return m
}

func TestIdentityValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Identity)
		wantErr bool
	}{
		{"default", func(*Identity) {}, false},
		{"gtin 48 bits", func(id *Identity) { id.GTIN = 0xFFFFFFFFFFFF }, false},
		{"gtin too wide", func(id *Identity) { id.GTIN = 1 << 48 }, true},
		{"physical min zero", func(id *Identity) { id.PhysicalMinLevel = 0 }, true},
		{"physical min mask", func(id *Identity) { id.PhysicalMinLevel = 255 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := DefaultIdentity()
			tt.modify(&id)
			err := id.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentity) {
				t.Errorf("Validate() error = %v, want ErrInvalidIdentity", err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults(testIdentity())

	tests := []struct {
		param gear.ParamID
		want  byte
	}{
		{gear.ParamShortAddress, gear.ShortUnassigned},
		{gear.ParamMinLevel, 85},
		{gear.ParamPhysicalMinLevel, 85},
		{gear.ParamMaxLevel, gear.MaxLevel},
		{gear.ParamPowerOnLevel, gear.MaxLevel},
		{gear.ParamFadeRate, 7},
		{gear.ParamRandomAddressM, 0xFF},
		{gear.ParamDeviceType, gear.DeviceTypeLED},
		{gear.ParamVersionNumber, VersionDALI2},
		{gear.SceneParam(0), gear.Mask},
		{gear.SceneParam(15), gear.Mask},
	}
	for _, tt := range tests {
		if got := d[tt.param]; got != tt.want {
			t.Errorf("default %s = %d, want %d", tt.param, got, tt.want)
		}
	}
}

func TestMemoryParameters(t *testing.T) {
	m := newTestMemory(t)

	if got := m.Get(gear.ParamMaxLevel); got != gear.MaxLevel {
		t.Errorf("Get(max level) = %d, want %d", got, gear.MaxLevel)
	}
	m.Put(gear.ParamMaxLevel, 200)
	if got := m.Get(gear.ParamMaxLevel); got != 200 {
		t.Errorf("Get(max level) after Put = %d, want 200", got)
	}
	if got := m.Default(gear.ParamMaxLevel); got != gear.MaxLevel {
		t.Errorf("Default(max level) = %d, want %d", got, gear.MaxLevel)
	}

	// Out-of-range ids are ignored.
	m.Put(gear.ParamCount, 1)
	if got := m.Get(gear.ParamCount); got != 0 {
		t.Errorf("Get(out of range) = %d, want 0", got)
	}
}

func TestMemoryBank0(t *testing.T) {
	m := newTestMemory(t)

	tests := []struct {
		addr byte
		want byte
		ok   bool
	}{
		{0x00, bank0Last, true},
		{0x01, 0, false},
		{0x02, lastBank, true},
		{0x03, 0x01, true}, // GTIN MSB
		{0x08, 0xAB, true}, // GTIN LSB
		{0x09, 2, true},
		{0x0A, 7, true},
		{0x0B, 0x11, true},
		{0x12, 0x88, true},
		{0x16, VersionDALI2, true},
		{0x19, 1, true},
		{0x1B, 0, false},
		{0xFF, 0, false},
	}
	for _, tt := range tests {
		got, ok := m.ReadMemory(0, tt.addr)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ReadMemory(0, %#02x) = %#02x, %v; want %#02x, %v", tt.addr, got, ok, tt.want, tt.ok)
		}
	}

	if m.WriteMemory(0, 0x09, 0x55) {
		t.Error("bank 0 accepted a write")
	}
	if _, ok := m.ReadMemory(2, 0); ok {
		t.Error("unimplemented bank 2 answered")
	}
}

func TestMemoryBank1Lock(t *testing.T) {
	m := newTestMemory(t)

	if m.WriteMemory(1, 0x03, 0x42) {
		t.Fatal("locked bank 1 accepted a write")
	}
	for _, addr := range []byte{0x00, 0x01, bank1Last + 1} {
		if m.WriteMemory(1, addr, 0x55) {
			t.Errorf("location %#02x accepted a write", addr)
		}
	}

	if !m.WriteMemory(1, LockByteLocation, UnlockValue) {
		t.Fatal("lock byte rejected a write")
	}
	if !m.WriteMemory(1, 0x03, 0x42) {
		t.Fatal("unlocked bank 1 rejected a write")
	}
	if got, _ := m.ReadMemory(1, 0x03); got != 0x42 {
		t.Errorf("ReadMemory(1, 3) = %#02x, want 0x42", got)
	}

	m.ResetMemory(1)
	if got, _ := m.ReadMemory(1, 0x03); got != erased {
		t.Errorf("after reset location 3 = %#02x, want erased", got)
	}
	if got, _ := m.ReadMemory(1, LockByteLocation); got == UnlockValue {
		t.Error("bank 1 still unlocked after reset")
	}
}

func TestMemoryResetLockedBankIsNoOp(t *testing.T) {
	m := newTestMemory(t)
	m.WriteMemory(1, LockByteLocation, UnlockValue)
	m.WriteMemory(1, 0x05, 0x99)
	m.WriteMemory(1, LockByteLocation, 0x00)

	m.ResetMemory(1)
	if got, _ := m.ReadMemory(1, 0x05); got != 0x99 {
		t.Errorf("locked bank was reset: location 5 = %#02x", got)
	}
}

func TestMemoryBankCopy(t *testing.T) {
	m := newTestMemory(t)
	b := m.Bank(0)
	b[0x09] = 0
	if got, _ := m.ReadMemory(0, 0x09); got != 2 {
		t.Error("Bank() returned the live slice")
	}
	if m.Bank(7) != nil {
		t.Error("Bank(7) should be nil")
	}
}

// The store satisfies the core's collaborator contract end to end.
func TestMemoryDrivesGear(t *testing.T) {
	m := newTestMemory(t)
	g, err := gear.New(gear.Options{Store: m, Random: fixedRandom{}, Output: nopOutput{}})
	if err != nil {
		t.Fatalf("gear.New() error = %v", err)
	}
	g.PowerOn()

	// DTR1 = 0, DTR0 = 3, READ MEMORY LOCATION reads the GTIN MSB.
	g.HandleFrame(gear.NewSpecialFrame(gear.SpecialDTR1, 0))
	g.HandleFrame(gear.NewSpecialFrame(gear.SpecialDTR0, 3))
	res := g.HandleFrame(gear.NewCommandFrame(gear.ModeBroadcast, 0, gear.OpReadMemoryLocation))
	if res.Action != gear.TransmitResponse || res.Response != 0x01 {
		t.Errorf("READ MEMORY LOCATION = %+v, want response 0x01", res)
	}
	g.HandleTransmitDone()

	// SET MAX LEVEL from DTR0 lands in the store.
	g.HandleFrame(gear.NewSpecialFrame(gear.SpecialDTR0, 180))
	set := gear.NewCommandFrame(gear.ModeBroadcast, 0, gear.OpSetMaxLevel)
	g.HandleFrame(set)
	g.HandleFrame(set)
	if got := m.Get(gear.ParamMaxLevel); got != 180 {
		t.Errorf("stored max level = %d, want 180", got)
	}
}

type fixedRandom struct{}

func (fixedRandom) RandomByte() byte { return 0x5A }

type nopOutput struct{}

func (nopOutput) SetLightLevelPercent(uint16) {}
func (nopOutput) LampOn() bool                { return true }
