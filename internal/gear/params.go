package gear

import "fmt"

// ParamID identifies one persisted device parameter byte.
type ParamID uint8

// Persisted parameters. The order is stable and used as the storage key.
const (
	ParamShortAddress ParamID = iota
	ParamMinLevel
	ParamMaxLevel
	ParamPowerOnLevel
	ParamSystemFailureLevel
	ParamFadeTime
	ParamFadeRate
	ParamExtendedFadeTime
	ParamFastFadeTime
	ParamPhysicalMinLevel
	ParamRandomAddressH
	ParamRandomAddressM
	ParamRandomAddressL
	ParamGroupsLow
	ParamGroupsHigh
	ParamLastActiveLevel
	ParamOperatingMode
	ParamDimmingCurve
	ParamCurrentProtector
	ParamDeviceType
	ParamVersionNumber
	ParamExtendedVersion
	ParamGearType
	ParamFeatures
	ParamMinFastFadeTime
	ParamLightSourceType
	ParamScene0

	// ParamCount is the number of parameters including all scenes.
	ParamCount = ParamScene0 + SceneCount
)

var paramNames = [...]string{
	ParamShortAddress:       "short_address",
	ParamMinLevel:           "min_level",
	ParamMaxLevel:           "max_level",
	ParamPowerOnLevel:       "power_on_level",
	ParamSystemFailureLevel: "system_failure_level",
	ParamFadeTime:           "fade_time",
	ParamFadeRate:           "fade_rate",
	ParamExtendedFadeTime:   "extended_fade_time",
	ParamFastFadeTime:       "fast_fade_time",
	ParamPhysicalMinLevel:   "physical_min_level",
	ParamRandomAddressH:     "random_address_h",
	ParamRandomAddressM:     "random_address_m",
	ParamRandomAddressL:     "random_address_l",
	ParamGroupsLow:          "groups_0_7",
	ParamGroupsHigh:         "groups_8_15",
	ParamLastActiveLevel:    "last_active_level",
	ParamOperatingMode:      "operating_mode",
	ParamDimmingCurve:       "dimming_curve",
	ParamCurrentProtector:   "current_protector",
	ParamDeviceType:         "device_type",
	ParamVersionNumber:      "version_number",
	ParamExtendedVersion:    "extended_version",
	ParamGearType:           "gear_type",
	ParamFeatures:           "features",
	ParamMinFastFadeTime:    "min_fast_fade_time",
	ParamLightSourceType:    "light_source_type",
}

// SceneParam returns the parameter holding scene n (0-15).
func SceneParam(n int) ParamID {
	return ParamScene0 + ParamID(n&0x0F)
}

// String returns the storage name of the parameter.
func (p ParamID) String() string {
	if p >= ParamScene0 && p < ParamCount {
		return fmt.Sprintf("scene_%d", p-ParamScene0)
	}
	if int(p) < len(paramNames) {
		return paramNames[p]
	}
	return fmt.Sprintf("param_%d", uint8(p))
}

// Valid reports whether p names a known parameter.
func (p ParamID) Valid() bool {
	return p < ParamCount
}

// ParseParamID is the inverse of ParamID.String.
func ParseParamID(name string) (ParamID, bool) {
	for p := ParamID(0); p < ParamCount; p++ {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}

// paramCache mirrors the store in memory. Writes go through to the store.
type paramCache struct {
	values [ParamCount]byte
	store  ParameterStore
}

func (c *paramCache) load() {
	for p := ParamID(0); p < ParamCount; p++ {
		c.values[p] = c.store.Get(p)
	}
}

// resetToDefaults reloads every parameter from its factory default.
func (c *paramCache) resetToDefaults() {
	for p := ParamID(0); p < ParamCount; p++ {
		c.set(p, c.store.Default(p))
	}
}

func (c *paramCache) get(p ParamID) byte {
	return c.values[p]
}

func (c *paramCache) set(p ParamID, v byte) {
	if c.values[p] == v {
		return
	}
	c.values[p] = v
	c.store.Put(p, v)
}

// isDefault reports whether every parameter except the short address and the
// last active level equals its factory default.
func (c *paramCache) isDefault() bool {
	for p := ParamID(0); p < ParamCount; p++ {
		if p == ParamShortAddress || p == ParamLastActiveLevel {
			continue
		}
		if c.values[p] != c.store.Default(p) {
			return false
		}
	}
	return true
}

func (c *paramCache) randomAddress() uint32 {
	return uint32(c.values[ParamRandomAddressH])<<16 |
		uint32(c.values[ParamRandomAddressM])<<8 |
		uint32(c.values[ParamRandomAddressL])
}

func (c *paramCache) groups() uint16 {
	return uint16(c.values[ParamGroupsHigh])<<8 | uint16(c.values[ParamGroupsLow])
}

func (c *paramCache) setGroups(g uint16) {
	c.set(ParamGroupsLow, byte(g))
	c.set(ParamGroupsHigh, byte(g>>8))
}
