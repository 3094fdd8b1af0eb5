package gear

// Normal command opcodes referenced outside the table.
const (
	OpOff                     byte = 0x00
	OpRecallMaxLevel          byte = 0x05
	OpRecallMinLevel          byte = 0x06
	OpGoToScene               byte = 0x10
	OpReset                   byte = 0x20
	OpStoreActualLevelInDTR0  byte = 0x21
	OpSetMaxLevel             byte = 0x2A
	OpSetMinLevel             byte = 0x2B
	OpSetFadeTime             byte = 0x2E
	OpSetScene                byte = 0x40
	OpAddToGroup              byte = 0x60
	OpRemoveFromGroup         byte = 0x70
	OpSetShortAddress         byte = 0x80
	OpEnableWriteMemory       byte = 0x81
	OpQueryStatus             byte = 0x90
	OpQueryControlGearPresent byte = 0x91
	OpQueryMissingShortAddr   byte = 0x96
	OpQueryActualLevel        byte = 0xA0
	OpQueryGroups0To7         byte = 0xC0
	OpQueryGroups8To15        byte = 0xC1
	OpReadMemoryLocation      byte = 0xC5
)

var normalCommands = []commandDef{
	{Op: OpOff, Name: "OFF", Handler: cmdOff},
	{Op: 0x01, Name: "UP", Handler: cmdUp},
	{Op: 0x02, Name: "DOWN", Handler: cmdDown},
	{Op: 0x03, Name: "STEP UP", Handler: cmdStepUp},
	{Op: 0x04, Name: "STEP DOWN", Handler: cmdStepDown},
	{Op: OpRecallMaxLevel, Name: "RECALL MAX LEVEL", Handler: cmdRecallMax},
	{Op: OpRecallMinLevel, Name: "RECALL MIN LEVEL", Handler: cmdRecallMin},
	{Op: 0x07, Name: "STEP DOWN AND OFF", Handler: cmdStepDownAndOff},
	{Op: 0x08, Name: "ON AND STEP UP", Handler: cmdOnAndStepUp},
	{Op: 0x09, Name: "ENABLE DAPC SEQUENCE", Handler: cmdEnableDAPCSequence},
	{Op: 0x0A, Name: "GO TO LAST ACTIVE LEVEL", Handler: cmdGoToLastActiveLevel},
	{Op: OpGoToScene, Count: SceneCount, Name: "GO TO SCENE", Handler: cmdGoToScene},

	{Op: OpReset, Name: "RESET", Repeat: true, Handler: cmdReset},
	{Op: OpStoreActualLevelInDTR0, Name: "STORE ACTUAL LEVEL IN DTR0", Repeat: true, Handler: cmdStoreActualLevel},
	{Op: 0x22, Name: "SAVE PERSISTENT VARIABLES", Repeat: true, Handler: cmdSavePersistent},
	{Op: 0x23, Name: "SET OPERATING MODE", Repeat: true, Handler: cmdSetOperatingMode},
	{Op: 0x24, Name: "RESET MEMORY BANK", Repeat: true, Handler: cmdResetMemoryBank},
	{Op: 0x25, Name: "IDENTIFY DEVICE", Repeat: true, Handler: cmdIdentify},
	{Op: OpSetMaxLevel, Name: "SET MAX LEVEL", Repeat: true, Handler: cmdSetMaxLevel},
	{Op: OpSetMinLevel, Name: "SET MIN LEVEL", Repeat: true, Handler: cmdSetMinLevel},
	{Op: 0x2C, Name: "SET SYSTEM FAILURE LEVEL", Repeat: true, Handler: cmdStoreDTR(ParamSystemFailureLevel)},
	{Op: 0x2D, Name: "SET POWER ON LEVEL", Repeat: true, Handler: cmdStoreDTR(ParamPowerOnLevel)},
	{Op: OpSetFadeTime, Name: "SET FADE TIME", Repeat: true, Handler: cmdSetFadeTime},
	{Op: 0x2F, Name: "SET FADE RATE", Repeat: true, Handler: cmdSetFadeRate},
	{Op: 0x30, Name: "SET EXTENDED FADE TIME", Repeat: true, Handler: cmdSetExtendedFadeTime},
	{Op: OpSetScene, Count: SceneCount, Name: "SET SCENE", Repeat: true, Handler: cmdSetScene},
	{Op: 0x50, Count: SceneCount, Name: "REMOVE FROM SCENE", Repeat: true, Handler: cmdRemoveFromScene},
	{Op: OpAddToGroup, Count: GroupCount, Name: "ADD TO GROUP", Repeat: true, Handler: cmdAddToGroup},
	{Op: OpRemoveFromGroup, Count: GroupCount, Name: "REMOVE FROM GROUP", Repeat: true, Handler: cmdRemoveFromGroup},
	{Op: OpSetShortAddress, Name: "SET SHORT ADDRESS", Repeat: true, Handler: cmdSetShortAddress},
	{Op: OpEnableWriteMemory, Name: "ENABLE WRITE MEMORY", Repeat: true, KeepWriteEnable: true, Handler: cmdEnableWriteMemory},

	{Op: OpQueryStatus, Name: "QUERY STATUS", Response: ResponseAlways, Handler: cmdQueryStatus},
	{Op: OpQueryControlGearPresent, Name: "QUERY CONTROL GEAR PRESENT", Response: ResponseAlways, Handler: cmdQueryYes},
	{Op: 0x92, Name: "QUERY LAMP FAILURE", Response: ResponseIfFlagged, Handler: cmdQueryLampFailure},
	{Op: 0x93, Name: "QUERY LAMP POWER ON", Response: ResponseIfFlagged, Handler: cmdQueryLampPowerOn},
	{Op: 0x94, Name: "QUERY LIMIT ERROR", Response: ResponseIfFlagged, Handler: cmdQueryLimitError},
	{Op: 0x95, Name: "QUERY RESET STATE", Response: ResponseIfFlagged, Handler: cmdQueryResetState},
	{Op: OpQueryMissingShortAddr, Name: "QUERY MISSING SHORT ADDRESS", Response: ResponseIfFlagged, Handler: cmdQueryMissingShort},
	{Op: 0x97, Name: "QUERY VERSION NUMBER", Response: ResponseAlways, Handler: cmdQueryParam(ParamVersionNumber)},
	{Op: 0x98, Name: "QUERY CONTENT DTR0", Response: ResponseAlways, KeepWriteEnable: true, Handler: cmdQueryDTR0},
	{Op: 0x99, Name: "QUERY DEVICE TYPE", Response: ResponseAlways, Handler: cmdQueryParam(ParamDeviceType)},
	{Op: 0x9A, Name: "QUERY PHYSICAL MINIMUM", Response: ResponseAlways, Handler: cmdQueryParam(ParamPhysicalMinLevel)},
	{Op: 0x9B, Name: "QUERY POWER FAILURE", Response: ResponseIfFlagged, Handler: cmdQueryPowerFailure},
	{Op: 0x9C, Name: "QUERY CONTENT DTR1", Response: ResponseAlways, KeepWriteEnable: true, Handler: cmdQueryDTR1},
	{Op: 0x9D, Name: "QUERY CONTENT DTR2", Response: ResponseAlways, KeepWriteEnable: true, Handler: cmdQueryDTR2},
	{Op: 0x9E, Name: "QUERY OPERATING MODE", Response: ResponseAlways, Handler: cmdQueryParam(ParamOperatingMode)},
	{Op: 0x9F, Name: "QUERY LIGHT SOURCE TYPE", Response: ResponseAlways, Handler: cmdQueryParam(ParamLightSourceType)},
	{Op: OpQueryActualLevel, Name: "QUERY ACTUAL LEVEL", Response: ResponseAlways, Handler: cmdQueryActualLevel},
	{Op: 0xA1, Name: "QUERY MAX LEVEL", Response: ResponseAlways, Handler: cmdQueryParam(ParamMaxLevel)},
	{Op: 0xA2, Name: "QUERY MIN LEVEL", Response: ResponseAlways, Handler: cmdQueryParam(ParamMinLevel)},
	{Op: 0xA3, Name: "QUERY POWER ON LEVEL", Response: ResponseAlways, Handler: cmdQueryParam(ParamPowerOnLevel)},
	{Op: 0xA4, Name: "QUERY SYSTEM FAILURE LEVEL", Response: ResponseAlways, Handler: cmdQueryParam(ParamSystemFailureLevel)},
	{Op: 0xA5, Name: "QUERY FADE TIME/FADE RATE", Response: ResponseAlways, Handler: cmdQueryFadeTimeRate},
	{Op: 0xA6, Name: "QUERY MANUFACTURER SPECIFIC MODE", Response: ResponseIfFlagged, Handler: cmdQueryManufacturerMode},
	{Op: 0xA8, Name: "QUERY EXTENDED FADE TIME", Response: ResponseAlways, Handler: cmdQueryParam(ParamExtendedFadeTime)},
	{Op: 0xB0, Count: SceneCount, Name: "QUERY SCENE LEVEL", Response: ResponseAlways, Handler: cmdQuerySceneLevel},
	{Op: OpQueryGroups0To7, Name: "QUERY GROUPS 0-7", Response: ResponseAlways, Handler: cmdQueryGroupsLow},
	{Op: OpQueryGroups8To15, Name: "QUERY GROUPS 8-15", Response: ResponseAlways, Handler: cmdQueryGroupsHigh},
	{Op: 0xC2, Name: "QUERY RANDOM ADDRESS (H)", Response: ResponseAlways, Handler: cmdQueryRandomH},
	{Op: 0xC3, Name: "QUERY RANDOM ADDRESS (M)", Response: ResponseAlways, Handler: cmdQueryRandomM},
	{Op: 0xC4, Name: "QUERY RANDOM ADDRESS (L)", Response: ResponseAlways, Handler: cmdQueryRandomL},
	{Op: OpReadMemoryLocation, Name: "READ MEMORY LOCATION", Response: ResponseIfFlagged, Handler: cmdReadMemoryLocation},
}

// Configuration commands.

func cmdReset(s *Session, _ Frame) {
	s.params.resetToDefaults()
	s.resetMemoryBanks()
	s.addr.search = SearchAddressReset
	s.limitError = false
	s.powerCycleSeen = false
	s.setLevel(s.maxLevel())
}

func cmdStoreActualLevel(s *Session, _ Frame) {
	s.dtr0 = s.fade.current
}

func cmdSavePersistent(s *Session, _ Frame) {
	if s.fade.current != 0 {
		s.params.set(ParamLastActiveLevel, s.fade.current)
	}
}

func cmdSetOperatingMode(s *Session, _ Frame) {
	// Only the standard mode is implemented.
	if s.dtr0 == 0 {
		s.params.set(ParamOperatingMode, 0)
	}
}

func cmdResetMemoryBank(s *Session, _ Frame) {
	if s.dtr0 != 0 {
		s.params.store.ResetMemory(s.dtr0)
		return
	}
	s.resetMemoryBanks()
}

// resetMemoryBanks resets every writable bank. Bank 0 is read-only.
func (s *Session) resetMemoryBanks() {
	for bank := 1; bank <= 0xFF; bank++ {
		s.params.store.ResetMemory(byte(bank))
	}
}

func cmdIdentify(s *Session, _ Frame) {
	s.identifyRemaining = identifyDuration
}

func cmdSetMaxLevel(s *Session, _ Frame) {
	v := s.dtr0
	if v > MaxLevel {
		v = MaxLevel
	}
	if lo := s.minLevel(); v < lo {
		v = lo
	}
	s.params.set(ParamMaxLevel, v)
	if s.fade.current > v {
		s.setLevel(v)
	}
}

func cmdSetMinLevel(s *Session, _ Frame) {
	v := s.dtr0
	if phys := s.params.get(ParamPhysicalMinLevel); v < phys {
		v = phys
	}
	if hi := s.maxLevel(); v > hi {
		v = hi
	}
	s.params.set(ParamMinLevel, v)
	if cur := s.fade.current; cur != 0 && cur < v {
		s.setLevel(v)
	}
}

// cmdStoreDTR stores DTR0 unchanged into a parameter.
func cmdStoreDTR(p ParamID) HandlerFunc {
	return func(s *Session, _ Frame) {
		s.params.set(p, s.dtr0)
	}
}

func cmdSetFadeTime(s *Session, _ Frame) {
	s.params.set(ParamFadeTime, min(s.dtr0, 15))
}

func cmdSetFadeRate(s *Session, _ Frame) {
	s.params.set(ParamFadeRate, max(min(s.dtr0, 15), 1))
}

func cmdSetExtendedFadeTime(s *Session, _ Frame) {
	v := s.dtr0
	if ExtendedFadeTime(v) == 0 {
		v = 0
	}
	s.params.set(ParamExtendedFadeTime, v)
}

func cmdSetScene(s *Session, f Frame) {
	s.params.set(SceneParam(int(f.Data&0x0F)), s.dtr0)
}

func cmdRemoveFromScene(s *Session, f Frame) {
	s.params.set(SceneParam(int(f.Data&0x0F)), Mask)
}

func cmdEnableWriteMemory(s *Session, _ Frame) {
	s.flags.set(flagWriteMemoryEnabled)
}

// Queries.

func cmdQueryStatus(s *Session, _ Frame) { s.reply(s.statusByte()) }
func cmdQueryYes(s *Session, _ Frame)    { s.reply(Yes) }

func cmdQueryParam(p ParamID) HandlerFunc {
	return func(s *Session, _ Frame) {
		s.reply(s.params.get(p))
	}
}

func cmdQueryLampFailure(s *Session, _ Frame)  { s.replyIf(s.lampFailure) }
func cmdQueryLampPowerOn(s *Session, _ Frame)  { s.replyIf(s.fade.current > 0) }
func cmdQueryLimitError(s *Session, _ Frame)   { s.replyIf(s.limitError) }
func cmdQueryResetState(s *Session, _ Frame)   { s.replyIf(s.params.isDefault()) }
func cmdQueryMissingShort(s *Session, _ Frame) { s.replyIf(!s.hasShortAddress()) }
func cmdQueryPowerFailure(s *Session, _ Frame) { s.replyIf(s.powerCycleSeen) }

func cmdQueryDTR0(s *Session, _ Frame) { s.reply(s.dtr0) }
func cmdQueryDTR1(s *Session, _ Frame) { s.reply(s.dtr1) }
func cmdQueryDTR2(s *Session, _ Frame) { s.reply(s.dtr2) }

func cmdQueryActualLevel(s *Session, _ Frame) {
	if s.lampFailure {
		s.reply(Mask)
		return
	}
	s.reply(s.fade.current)
}

func cmdQueryFadeTimeRate(s *Session, _ Frame) {
	s.reply(s.params.get(ParamFadeTime)<<4 | s.params.get(ParamFadeRate)&0x0F)
}

func cmdQueryManufacturerMode(s *Session, _ Frame) {
	s.replyIf(s.params.get(ParamOperatingMode) >= 0x80)
}

func cmdQuerySceneLevel(s *Session, f Frame) {
	s.reply(s.params.get(SceneParam(int(f.Data & 0x0F))))
}

// cmdReadMemoryLocation answers the byte at DTR1:DTR0, advances DTR0 and
// latches the following byte.
func cmdReadMemoryLocation(s *Session, _ Frame) {
	bank := s.dtr1
	if v, ok := s.params.store.ReadMemory(bank, s.dtr0); ok {
		s.reply(v)
	}
	if s.dtr0 < 0xFF {
		s.dtr0++
	}
	s.memoryPrefetch, s.memoryPrefetchOK = s.params.store.ReadMemory(bank, s.dtr0)
}
