package gear

// PhysicalSelection is the state of touch-based commissioning.
type PhysicalSelection uint8

// Physical selection states.
const (
	PhysicalDisabled PhysicalSelection = iota
	PhysicalRequested
	PhysicalEnabled
)

// String returns the state name.
func (p PhysicalSelection) String() string {
	switch p {
	case PhysicalRequested:
		return "requested"
	case PhysicalEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// SearchAddressReset is the search address after power-up.
const SearchAddressReset uint32 = 0xFFFFFF

// addressing is the volatile commissioning state. The random address,
// short address and groups are persisted through the parameter cache.
type addressing struct {
	search    uint32
	compare   bool
	withdrawn bool
	physical  PhysicalSelection
}

// EncodeShortAddress returns the wire form of a short address, (a<<1)|1,
// or 0xFF when unassigned.
func EncodeShortAddress(a byte) byte {
	if a > MaxShortAddress {
		return ShortUnassigned
	}
	return a<<1 | 1
}

// decodeShortAddress validates a wire short address. ok is false for
// malformed values; 0xFF decodes to unassigned.
func decodeShortAddress(v byte) (byte, bool) {
	if v == ShortUnassigned {
		return ShortUnassigned, true
	}
	if v&1 == 0 || v>>1 > MaxShortAddress {
		return 0, false
	}
	return v >> 1, true
}

// selected reports whether this device is the current commissioning target.
func (s *Session) selected() bool {
	if s.addr.physical == PhysicalEnabled {
		return true
	}
	return s.params.randomAddress() == s.addr.search
}

func cmdInitialise(s *Session, f Frame) {
	var match bool
	switch {
	case f.Data == 0x00:
		match = true
	case f.Data == 0xFF:
		match = !s.hasShortAddress()
	default:
		match = s.hasShortAddress() && f.Data == EncodeShortAddress(s.shortAddress())
	}
	if !match {
		return
	}
	s.flags.set(flagInitialiseWindow)
	s.addr.compare = true
	s.addr.withdrawn = false
	s.addr.physical = PhysicalDisabled
	if s.sched != nil {
		s.sched.Arm(TimerInitialise)
	}
}

func cmdRandomise(s *Session, _ Frame) {
	s.params.set(ParamRandomAddressH, s.rng.RandomByte())
	s.params.set(ParamRandomAddressM, s.rng.RandomByte())
	s.params.set(ParamRandomAddressL, s.rng.RandomByte())
}

func cmdCompare(s *Session, _ Frame) {
	s.replyIf(s.addr.compare && s.params.randomAddress() <= s.addr.search)
}

func cmdWithdraw(s *Session, _ Frame) {
	if s.params.randomAddress() != s.addr.search {
		return
	}
	s.addr.compare = false
	s.addr.withdrawn = true
}

func cmdSearchAddrH(s *Session, f Frame) {
	s.addr.search = s.addr.search&0x00FFFF | uint32(f.Data)<<16
}

func cmdSearchAddrM(s *Session, f Frame) {
	s.addr.search = s.addr.search&0xFF00FF | uint32(f.Data)<<8
}

func cmdSearchAddrL(s *Session, f Frame) {
	s.addr.search = s.addr.search&0xFFFF00 | uint32(f.Data)
}

func cmdProgramShortAddress(s *Session, f Frame) {
	if !s.selected() {
		return
	}
	if a, ok := decodeShortAddress(f.Data); ok {
		s.params.set(ParamShortAddress, a)
	}
}

func cmdVerifyShortAddress(s *Session, f Frame) {
	if !s.selected() || !s.hasShortAddress() {
		return
	}
	s.replyIf(f.Data == EncodeShortAddress(s.shortAddress()))
}

func cmdQueryShortAddress(s *Session, _ Frame) {
	if !s.selected() {
		return
	}
	s.reply(EncodeShortAddress(s.shortAddress()))
}

// cmdPhysicalSelection toggles touch selection. Leaving the enabled state
// hands control back to compare mode unless the device was withdrawn.
func cmdPhysicalSelection(s *Session, _ Frame) {
	switch s.addr.physical {
	case PhysicalDisabled:
		s.addr.physical = PhysicalRequested
	case PhysicalEnabled:
		s.addr.physical = PhysicalDisabled
		s.addr.compare = !s.addr.withdrawn
	default:
		s.addr.physical = PhysicalDisabled
	}
}

func cmdTerminate(s *Session, _ Frame) {
	s.closeWindow()
	if s.sched != nil {
		s.sched.Cancel(TimerInitialise)
	}
}

func (s *Session) closeWindow() {
	s.flags.clear(flagInitialiseWindow)
	s.addr.compare = false
	s.addr.physical = PhysicalDisabled
}

// tickPhysicalSelection promotes a requested selection while the lamp is dark.
func (s *Session) tickPhysicalSelection() {
	if s.addr.physical == PhysicalRequested && s.lampFailure {
		s.addr.physical = PhysicalEnabled
		s.addr.compare = false
	}
}

func cmdAddToGroup(s *Session, f Frame) {
	s.params.setGroups(s.params.groups() | 1<<(f.Data&0x0F))
}

func cmdRemoveFromGroup(s *Session, f Frame) {
	s.params.setGroups(s.params.groups() &^ (1 << (f.Data & 0x0F)))
}

func cmdSetShortAddress(s *Session, _ Frame) {
	if a, ok := decodeShortAddress(s.dtr0); ok {
		s.params.set(ParamShortAddress, a)
	}
}

func cmdQueryGroupsLow(s *Session, _ Frame)  { s.reply(s.params.get(ParamGroupsLow)) }
func cmdQueryGroupsHigh(s *Session, _ Frame) { s.reply(s.params.get(ParamGroupsHigh)) }
func cmdQueryRandomH(s *Session, _ Frame)    { s.reply(s.params.get(ParamRandomAddressH)) }
func cmdQueryRandomM(s *Session, _ Frame)    { s.reply(s.params.get(ParamRandomAddressM)) }
func cmdQueryRandomL(s *Session, _ Frame)    { s.reply(s.params.get(ParamRandomAddressL)) }

// addressedToMe reports whether a non-special frame targets this device.
func (s *Session) addressedToMe(f Frame) bool {
	switch f.Mode() {
	case ModeShort:
		return s.hasShortAddress() && f.Target() == s.shortAddress()
	case ModeGroup:
		return s.params.groups()&(1<<f.Target()) != 0
	case ModeBroadcast:
		return true
	case ModeBroadcastUnaddressed:
		return !s.hasShortAddress()
	case ModeSpecial:
		return true
	default:
		return false
	}
}
