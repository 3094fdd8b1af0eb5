package gear

// DeviceTypeLED is the IEC 62386-207 device type implemented by the
// extended command table.
const DeviceTypeLED byte = 6

// Extended (DT6) opcodes referenced outside the table.
const (
	OpReferenceSystemPower   byte = 0xE0
	OpSelectDimmingCurve     byte = 0xE3
	OpStoreDTRAsFastFadeTime byte = 0xE4
	OpQueryGearType          byte = 0xED
	OpQueryDimmingCurve      byte = 0xEE
	OpQueryFailureStatus     byte = 0xF1
	OpQueryFastFadeTime      byte = 0xFD
	OpQueryExtendedVersion   byte = 0xFF
)

// maxFastFadeTime is the highest fast fade time code (27 x 25 ms).
const maxFastFadeTime byte = 27

var extendedCommands = []commandDef{
	{Op: OpReferenceSystemPower, Name: "REFERENCE SYSTEM POWER", Repeat: true, Handler: cmdReferenceSystemPower},
	{Op: 0xE1, Name: "ENABLE CURRENT PROTECTOR", Repeat: true, Handler: cmdSetCurrentProtector(1)},
	{Op: 0xE2, Name: "DISABLE CURRENT PROTECTOR", Repeat: true, Handler: cmdSetCurrentProtector(0)},
	{Op: OpSelectDimmingCurve, Name: "SELECT DIMMING CURVE", Repeat: true, Handler: cmdSelectDimmingCurve},
	{Op: OpStoreDTRAsFastFadeTime, Name: "STORE DTR AS FAST FADE TIME", Repeat: true, Handler: cmdStoreFastFadeTime},

	{Op: OpQueryGearType, Name: "QUERY GEAR TYPE", Response: ResponseAlways, Handler: cmdQueryParam(ParamGearType)},
	{Op: OpQueryDimmingCurve, Name: "QUERY DIMMING CURVE", Response: ResponseAlways, Handler: cmdQueryParam(ParamDimmingCurve)},
	{Op: 0xEF, Name: "QUERY POSSIBLE OPERATING MODES", Response: ResponseAlways, Handler: cmdQueryPossibleModes},
	{Op: 0xF0, Name: "QUERY FEATURES", Response: ResponseAlways, Handler: cmdQueryParam(ParamFeatures)},
	{Op: OpQueryFailureStatus, Name: "QUERY FAILURE STATUS", Response: ResponseAlways, Handler: cmdQueryFailureStatus},
	{Op: 0xF3, Name: "QUERY OPEN CIRCUIT", Response: ResponseIfFlagged, Handler: cmdQueryLampFailure},
	{Op: 0xF6, Name: "QUERY CURRENT PROTECTOR ACTIVE", Response: ResponseIfFlagged, Handler: cmdQueryCurrentProtectorActive},
	{Op: 0xF9, Name: "QUERY REFERENCE RUNNING", Response: ResponseIfFlagged, Handler: cmdQueryReferenceRunning},
	{Op: 0xFB, Name: "QUERY CURRENT PROTECTOR ENABLED", Response: ResponseIfFlagged, Handler: cmdQueryCurrentProtectorEnabled},
	{Op: 0xFC, Name: "QUERY OPERATING MODE", Response: ResponseAlways, Handler: cmdQueryParam(ParamOperatingMode)},
	{Op: OpQueryFastFadeTime, Name: "QUERY FAST FADE TIME", Response: ResponseAlways, Handler: cmdQueryParam(ParamFastFadeTime)},
	{Op: 0xFE, Name: "QUERY MIN FAST FADE TIME", Response: ResponseAlways, Handler: cmdQueryParam(ParamMinFastFadeTime)},
	{Op: OpQueryExtendedVersion, Name: "QUERY EXTENDED VERSION NUMBER", Response: ResponseAlways, Handler: cmdQueryParam(ParamExtendedVersion)},
}

func cmdReferenceSystemPower(s *Session, _ Frame) {
	s.referenceRemaining = referenceDuration
}

func cmdSetCurrentProtector(v byte) HandlerFunc {
	return func(s *Session, _ Frame) {
		s.params.set(ParamCurrentProtector, v)
	}
}

func cmdSelectDimmingCurve(s *Session, _ Frame) {
	if s.dtr0 > DimmingLinear {
		return
	}
	if s.params.get(ParamDimmingCurve) == s.dtr0 {
		return
	}
	s.params.set(ParamDimmingCurve, s.dtr0)
	s.applyOutput()
}

// cmdStoreFastFadeTime accepts 0 or the range [min fast fade time, 27];
// other values are clamped into that range.
func cmdStoreFastFadeTime(s *Session, _ Frame) {
	v := s.dtr0
	lo := s.params.get(ParamMinFastFadeTime)
	switch {
	case v == 0:
	case v < lo:
		v = lo
	case v > maxFastFadeTime:
		v = maxFastFadeTime
	}
	s.params.set(ParamFastFadeTime, v)
}

// cmdQueryPossibleModes reports PWM and current-controlled output.
func cmdQueryPossibleModes(s *Session, _ Frame) { s.reply(0x06) }

func cmdQueryFailureStatus(s *Session, _ Frame) { s.reply(s.failureStatus()) }

// cmdQueryCurrentProtectorActive reports a tripped protector. The output
// has no current sensing, so it never trips and the query stays silent.
func cmdQueryCurrentProtectorActive(s *Session, _ Frame) {
	s.replyIf(false)
}

func cmdQueryReferenceRunning(s *Session, _ Frame) {
	s.replyIf(s.referenceRemaining > 0)
}

func cmdQueryCurrentProtectorEnabled(s *Session, _ Frame) {
	s.replyIf(s.params.get(ParamCurrentProtector) != 0)
}
