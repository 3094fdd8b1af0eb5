package gear

import "fmt"

// HandlerFunc executes one command against the session.
type HandlerFunc func(s *Session, f Frame)

// ResponsePolicy says when a command produces a backward frame.
type ResponsePolicy uint8

// Response policies.
const (
	// ResponseNone never answers.
	ResponseNone ResponsePolicy = iota

	// ResponseAlways answers with whatever the handler left in the response register.
	ResponseAlways

	// ResponseIfFlagged answers only when the handler called reply.
	ResponseIfFlagged
)

// commandDef is one row of a declarative command table. Count > 1 defines
// a run of consecutive opcodes sharing the same handler (scenes, groups).
type commandDef struct {
	Op       byte
	Count    int
	Name     string
	Repeat   bool
	Response ResponsePolicy
	Gated    bool
	// KeepWriteEnable leaves ENABLE WRITE MEMORY in force after the command.
	KeepWriteEnable bool
	// DAPC marks arc power frames, which do not end a DAPC sequence.
	DAPC    bool
	Handler HandlerFunc
}

// commandEntry is a resolved table slot. A nil Handler is a silent no-op.
type commandEntry struct {
	name            string
	repeat          bool
	response        ResponsePolicy
	gated           bool
	keepWriteEnable bool
	dapc            bool
	handler         HandlerFunc
}

// commandTable maps an opcode index to its entry; nil slots are holes.
type commandTable []*commandEntry

// buildTable assembles a table of the given size from its definitions.
// It panics on overlapping or out-of-range rows, which are programming errors.
func buildTable(size int, base byte, defs []commandDef) commandTable {
	t := make(commandTable, size)
	for _, d := range defs {
		n := d.Count
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			idx := int(d.Op) - int(base) + i
			if idx < 0 || idx >= size {
				panic(fmt.Sprintf("gear: command %q opcode 0x%02X out of table range", d.Name, int(d.Op)+i))
			}
			if t[idx] != nil {
				panic(fmt.Sprintf("gear: command %q overlaps %q", d.Name, t[idx].name))
			}
			name := d.Name
			if n > 1 {
				name = fmt.Sprintf("%s %d", d.Name, i)
			}
			t[idx] = &commandEntry{
				name:            name,
				repeat:          d.Repeat,
				response:        d.Response,
				gated:           d.Gated,
				keepWriteEnable: d.KeepWriteEnable,
				dapc:            d.DAPC,
				handler:         d.Handler,
			}
		}
	}
	return t
}

const (
	normalTableSize   = int(firstExtendedOpcode)
	specialTableSize  = (lastSpecial-firstSpecial)/2 + 1
	extendedTableSize = 256 - int(firstExtendedOpcode)
)

var (
	normalTable   = buildTable(normalTableSize, 0, normalCommands)
	specialTable  = buildTable(specialTableSize, 0, specialCommands)
	extendedTable = buildTable(extendedTableSize, firstExtendedOpcode, extendedCommands)

	arcPowerEntry = &commandEntry{name: "DAPC", dapc: true, handler: cmdDirectArcPower}
)

// resolve selects the table entry for f. addressed is false when the frame
// targets another device; entry is nil for holes and disabled extensions.
func (s *Session) resolve(f Frame, appExt bool) (entry *commandEntry, addressed bool) {
	if f.IsSpecial() {
		return specialTable[f.specialIndex()], true
	}
	if !s.addressedToMe(f) {
		return nil, false
	}
	if !f.IsCommand() {
		return arcPowerEntry, true
	}
	if f.Data >= firstExtendedOpcode {
		// Only the LED extension is implemented; other device types have
		// no extended table.
		if !appExt || s.enabledDeviceType != DeviceTypeLED || s.deviceType() != DeviceTypeLED {
			return nil, true
		}
		return extendedTable[f.Data-firstExtendedOpcode], true
	}
	return normalTable[f.Data], true
}

// Describe returns the command name of a frame, or "" for unknown opcodes.
// Extended opcodes are described as device type 6 commands.
func Describe(f Frame) string {
	var e *commandEntry
	switch {
	case f.IsSpecial():
		e = specialTable[f.specialIndex()]
	case !f.IsCommand():
		e = arcPowerEntry
	case f.Mode() == ModeReserved:
		return ""
	case f.Data >= firstExtendedOpcode:
		e = extendedTable[f.Data-firstExtendedOpcode]
	default:
		e = normalTable[f.Data]
	}
	if e == nil {
		return ""
	}
	return e.name
}

// RepeatRequired reports whether f must be received twice before it executes.
func RepeatRequired(f Frame) bool {
	var e *commandEntry
	switch {
	case f.IsSpecial():
		e = specialTable[f.specialIndex()]
	case !f.IsCommand():
		return false
	case f.Data >= firstExtendedOpcode:
		e = extendedTable[f.Data-firstExtendedOpcode]
	default:
		e = normalTable[f.Data]
	}
	return e != nil && e.repeat
}
