package paramstore

// Memory bank layout.
const (
	// LockByteLocation is the bank 1 location that guards its OEM data.
	LockByteLocation byte = 0x02

	// UnlockValue written to the lock byte permits writes to bank 1.
	UnlockValue byte = 0x55

	// lastBank is the highest implemented memory bank.
	lastBank byte = 1

	// bank0Last and bank1Last are the last accessible locations.
	bank0Last byte = 0x1A
	bank1Last byte = 0x10

	// erased is the content of an unwritten location.
	erased byte = 0xFF
)

// Bank 0 locations.
const (
	b0NotImplemented = 0x01
	b0LastBank       = 0x02
	b0GTIN           = 0x03 // 6 bytes, MSB first
	b0FirmwareMajor  = 0x09
	b0FirmwareMinor  = 0x0A
	b0Serial         = 0x0B // 8 bytes, MSB first
	b0HardwareMajor  = 0x13
	b0HardwareMinor  = 0x14
	b0Version101     = 0x15
	b0Version102     = 0x16
	b0Version103     = 0x17
	b0DeviceUnits    = 0x18
	b0GearUnits      = 0x19
	b0GearUnitIndex  = 0x1A
)

// Bank 1 locations.
const (
	b1Indicator  = 0x01
	b1FirstOEM   = 0x03 // OEM GTIN (6 bytes) then OEM serial (8 bytes)
	b1FirstWrite = LockByteLocation
)

// newBank0 builds the read-only identity bank.
func newBank0(id Identity) []byte {
	b := make([]byte, int(bank0Last)+1)
	b[0] = bank0Last
	b[b0NotImplemented] = erased
	b[b0LastBank] = lastBank
	putUint(b[b0GTIN:b0GTIN+6], id.GTIN)
	b[b0FirmwareMajor] = id.FirmwareMajor
	b[b0FirmwareMinor] = id.FirmwareMinor
	putUint(b[b0Serial:b0Serial+8], id.Serial)
	b[b0HardwareMajor] = id.HardwareMajor
	b[b0HardwareMinor] = id.HardwareMinor
	b[b0Version101] = erased // no control device part
	b[b0Version102] = VersionDALI2
	b[b0Version103] = erased
	b[b0DeviceUnits] = 0
	b[b0GearUnits] = 1
	b[b0GearUnitIndex] = 0
	return b
}

// newBank1 builds an erased, locked OEM bank.
func newBank1() []byte {
	b := make([]byte, int(bank1Last)+1)
	for i := range b {
		b[i] = erased
	}
	b[0] = bank1Last
	b[b1Indicator] = 0
	return b
}

// putUint writes v big-endian into dst, truncating to len(dst) bytes.
func putUint(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

// readBank returns a byte of bank, or false outside the accessible range
// and for locations reserved as not implemented.
func readBank(bank []byte, number, addr byte) (byte, bool) {
	if int(addr) >= len(bank) {
		return 0, false
	}
	if number == 0 && addr == b0NotImplemented {
		return 0, false
	}
	return bank[addr], true
}

// bank1Writable reports whether a bank 1 location accepts a write in the
// current lock state.
func bank1Writable(bank []byte, addr byte) bool {
	switch {
	case addr < b1FirstWrite || int(addr) >= len(bank):
		return false
	case addr == LockByteLocation:
		return true
	default:
		return bank[LockByteLocation] == UnlockValue
	}
}

// resetBank1 erases the OEM data of an unlocked bank and locks it again.
// A locked bank is left untouched.
func resetBank1(bank []byte) bool {
	if bank[LockByteLocation] != UnlockValue {
		return false
	}
	for i := b1FirstOEM; i < len(bank); i++ {
		bank[i] = erased
	}
	bank[LockByteLocation] = erased
	return true
}
