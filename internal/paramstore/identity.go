package paramstore

import (
	"fmt"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// Version numbers encoded as (major << 2) | minor.
const (
	// VersionDALI2 is IEC 62386-102 edition 2.0.
	VersionDALI2 byte = 0x08

	// VersionDT6 is IEC 62386-207 edition 2.0.
	VersionDT6 byte = 0x08
)

// Identity is the manufacturer data of one control gear.
type Identity struct {
	// GTIN is the 48-bit Global Trade Item Number.
	GTIN uint64

	FirmwareMajor byte
	FirmwareMinor byte

	// Serial is the 64-bit identification number.
	Serial uint64

	HardwareMajor byte
	HardwareMinor byte

	// DeviceType is reported by QUERY DEVICE TYPE (6 for LED gear).
	DeviceType byte

	// PhysicalMinLevel is the lowest arc power level the driver can produce.
	PhysicalMinLevel byte

	// LightSourceType is reported by QUERY LIGHT SOURCE TYPE (6 = LED).
	LightSourceType byte
}

// DefaultIdentity returns the identity of a generic LED driver.
func DefaultIdentity() Identity {
	return Identity{
		FirmwareMajor:    1,
		HardwareMajor:    1,
		DeviceType:       gear.DeviceTypeLED,
		PhysicalMinLevel: 1,
		LightSourceType:  6,
	}
}

// Validate checks that the identity describes a usable device.
func (id Identity) Validate() error {
	if id.GTIN > 0xFFFFFFFFFFFF {
		return fmt.Errorf("%w: gtin %d exceeds 48 bits", ErrInvalidIdentity, id.GTIN)
	}
	if id.PhysicalMinLevel == 0 || id.PhysicalMinLevel > gear.MaxLevel {
		return fmt.Errorf("%w: physical min level %d not in 1-%d", ErrInvalidIdentity, id.PhysicalMinLevel, gear.MaxLevel)
	}
	return nil
}

// Defaults returns the factory default of every parameter for a device.
func Defaults(id Identity) [gear.ParamCount]byte {
	var d [gear.ParamCount]byte

	d[gear.ParamShortAddress] = gear.ShortUnassigned
	d[gear.ParamMinLevel] = id.PhysicalMinLevel
	d[gear.ParamMaxLevel] = gear.MaxLevel
	d[gear.ParamPowerOnLevel] = gear.MaxLevel
	d[gear.ParamSystemFailureLevel] = gear.MaxLevel
	d[gear.ParamFadeRate] = 7
	d[gear.ParamPhysicalMinLevel] = id.PhysicalMinLevel
	d[gear.ParamRandomAddressH] = 0xFF
	d[gear.ParamRandomAddressM] = 0xFF
	d[gear.ParamRandomAddressL] = 0xFF
	d[gear.ParamLastActiveLevel] = gear.MaxLevel
	d[gear.ParamDimmingCurve] = gear.DimmingLogarithmic
	d[gear.ParamCurrentProtector] = 1
	d[gear.ParamDeviceType] = id.DeviceType
	d[gear.ParamVersionNumber] = VersionDALI2
	d[gear.ParamExtendedVersion] = VersionDT6
	d[gear.ParamGearType] = 0x01 // LED power supply integrated
	d[gear.ParamMinFastFadeTime] = 1
	d[gear.ParamLightSourceType] = id.LightSourceType

	for n := 0; n < gear.SceneCount; n++ {
		d[gear.SceneParam(n)] = gear.Mask
	}
	return d
}
