package gear

// Special command address bytes. Special commands are bus-wide: they are
// processed regardless of this device's address.
const (
	SpecialTerminate           byte = 0xA1
	SpecialDTR0                byte = 0xA3
	SpecialInitialise          byte = 0xA5
	SpecialRandomise           byte = 0xA7
	SpecialCompare             byte = 0xA9
	SpecialWithdraw            byte = 0xAB
	SpecialPing                byte = 0xAD
	SpecialSearchAddrH         byte = 0xB1
	SpecialSearchAddrM         byte = 0xB3
	SpecialSearchAddrL         byte = 0xB5
	SpecialProgramShortAddress byte = 0xB7
	SpecialVerifyShortAddress  byte = 0xB9
	SpecialQueryShortAddress   byte = 0xBB
	SpecialPhysicalSelection   byte = 0xBD
	SpecialEnableDeviceType    byte = 0xC1
	SpecialDTR1                byte = 0xC3
	SpecialDTR2                byte = 0xC5
	SpecialWriteMemoryLocation byte = 0xC7
	SpecialWriteMemoryNoReply  byte = 0xC9
)

// sx maps a special address byte to its table index.
func sx(addr byte) byte {
	return (addr - firstSpecial) / 2
}

var specialCommands = []commandDef{
	{Op: sx(SpecialTerminate), Name: "TERMINATE", Handler: cmdTerminate},
	{Op: sx(SpecialDTR0), Name: "DTR0", KeepWriteEnable: true, Handler: cmdSetDTR0},
	{Op: sx(SpecialInitialise), Name: "INITIALISE", Repeat: true, Handler: cmdInitialise},
	{Op: sx(SpecialRandomise), Name: "RANDOMISE", Repeat: true, Gated: true, Handler: cmdRandomise},
	{Op: sx(SpecialCompare), Name: "COMPARE", Gated: true, Response: ResponseIfFlagged, Handler: cmdCompare},
	{Op: sx(SpecialWithdraw), Name: "WITHDRAW", Gated: true, Handler: cmdWithdraw},
	{Op: sx(SpecialPing), Name: "PING"},
	{Op: sx(SpecialSearchAddrH), Name: "SEARCHADDRH", Gated: true, Handler: cmdSearchAddrH},
	{Op: sx(SpecialSearchAddrM), Name: "SEARCHADDRM", Gated: true, Handler: cmdSearchAddrM},
	{Op: sx(SpecialSearchAddrL), Name: "SEARCHADDRL", Gated: true, Handler: cmdSearchAddrL},
	{Op: sx(SpecialProgramShortAddress), Name: "PROGRAM SHORT ADDRESS", Gated: true, Handler: cmdProgramShortAddress},
	{Op: sx(SpecialVerifyShortAddress), Name: "VERIFY SHORT ADDRESS", Gated: true, Response: ResponseIfFlagged, Handler: cmdVerifyShortAddress},
	{Op: sx(SpecialQueryShortAddress), Name: "QUERY SHORT ADDRESS", Gated: true, Response: ResponseIfFlagged, Handler: cmdQueryShortAddress},
	{Op: sx(SpecialPhysicalSelection), Name: "PHYSICAL SELECTION", Gated: true, Handler: cmdPhysicalSelection},
	{Op: sx(SpecialEnableDeviceType), Name: "ENABLE DEVICE TYPE", Handler: cmdEnableDeviceType},
	{Op: sx(SpecialDTR1), Name: "DTR1", KeepWriteEnable: true, Handler: cmdSetDTR1},
	{Op: sx(SpecialDTR2), Name: "DTR2", KeepWriteEnable: true, Handler: cmdSetDTR2},
	{Op: sx(SpecialWriteMemoryLocation), Name: "WRITE MEMORY LOCATION", KeepWriteEnable: true, Response: ResponseIfFlagged, Handler: cmdWriteMemoryLocation},
	{Op: sx(SpecialWriteMemoryNoReply), Name: "WRITE MEMORY LOCATION - NO REPLY", KeepWriteEnable: true, Handler: cmdWriteMemoryLocation},
}

func cmdSetDTR0(s *Session, f Frame) { s.dtr0 = f.Data }
func cmdSetDTR1(s *Session, f Frame) { s.dtr1 = f.Data }
func cmdSetDTR2(s *Session, f Frame) { s.dtr2 = f.Data }

// cmdEnableDeviceType opens the application extension for the next command.
func cmdEnableDeviceType(s *Session, f Frame) {
	s.enabledDeviceType = f.Data
	s.flags.set(flagAppExtensionRequested)
}

// cmdWriteMemoryLocation writes the frame data to DTR1:DTR0 and advances
// DTR0. The written value is echoed back when the write succeeded; the
// NO REPLY variant shares the handler and drops the answer by policy.
func cmdWriteMemoryLocation(s *Session, f Frame) {
	if !s.flags.has(flagWriteMemoryEnabled) {
		return
	}
	if s.params.store.WriteMemory(s.dtr1, s.dtr0, f.Data) {
		s.reply(f.Data)
	}
	if s.dtr0 < 0xFF {
		s.dtr0++
	}
}
