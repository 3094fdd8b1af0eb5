package gear

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Frame size and address byte layout.
const (
	// FrameSize is the number of bytes in a forward frame.
	FrameSize = 2

	// BroadcastTarget is the target number of a broadcast frame.
	BroadcastTarget = 63

	// MaxShortAddress is the highest assignable short address.
	MaxShortAddress = 63

	// GroupCount is the number of addressable groups.
	GroupCount = 16

	// SceneCount is the number of scenes per device.
	SceneCount = 16

	// ShortUnassigned marks a device without a short address (wire value 0xFF).
	ShortUnassigned byte = 0xFF

	// contentBit distinguishes an opcode (1) from a direct arc power level (0).
	contentBit = 0x01

	// groupMask/groupValue select 100AAAAS group frames.
	groupMask  = 0xE0
	groupValue = 0x80

	// broadcast and broadcast-unaddressed descriptors with the content bit masked.
	broadcastValue            = 0xFE
	broadcastUnaddressedValue = 0xFC

	// firstSpecial/lastSpecial bound the special-command address bytes.
	firstSpecial = 0xA1
	lastSpecial  = 0xCB

	// firstExtendedOpcode is the first opcode routed to the extended table.
	firstExtendedOpcode = 0xE0
)

// AddressMode is the decoded addressing mode of a frame's address byte.
type AddressMode uint8

// Address modes.
const (
	// ModeShort addresses a single device by short address (0AAAAAAS).
	ModeShort AddressMode = iota

	// ModeGroup addresses every member of a group (100AAAAS).
	ModeGroup

	// ModeBroadcast addresses every device (1111111S).
	ModeBroadcast

	// ModeBroadcastUnaddressed addresses devices without a short address (1111110S).
	ModeBroadcastUnaddressed

	// ModeSpecial marks a special (commissioning) command; the address byte is the opcode.
	ModeSpecial

	// ModeReserved covers address bytes with no defined meaning.
	ModeReserved
)

// String returns the mode name.
func (m AddressMode) String() string {
	switch m {
	case ModeShort:
		return "short"
	case ModeGroup:
		return "group"
	case ModeBroadcast:
		return "broadcast"
	case ModeBroadcastUnaddressed:
		return "broadcast-unaddressed"
	case ModeSpecial:
		return "special"
	default:
		return "reserved"
	}
}

// Frame is a two-byte DALI forward frame.
//
// Address carries the addressing mode, a 6-bit target (or special-command
// selector) and the content-type bit. Data is either a direct arc power
// level or an opcode, depending on the content-type bit.
type Frame struct {
	Address byte
	Data    byte
}

// ParseFrame decodes transport bytes into a Frame.
//
// Parameters:
//   - data: exactly two bytes, address first
//
// Returns:
//   - Frame: decoded frame
//   - error: ErrInvalidFrame if the length is wrong
func ParseFrame(data []byte) (Frame, error) {
	if len(data) != FrameSize {
		return Frame{}, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidFrame, FrameSize, len(data))
	}
	return Frame{Address: data[0], Data: data[1]}, nil
}

// ParseFrameHex decodes a hex payload such as "A3 10", "a310" or "0xA3 0x10".
func ParseFrameHex(s string) (Frame, error) {
	clean := strings.NewReplacer(" ", "", "0x", "", "0X", "", ":", "", "\n", "", "\r", "").Replace(strings.TrimSpace(s))
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return ParseFrame(raw)
}

// NewCommandFrame builds a frame carrying an opcode for the given address mode.
// Target is ignored for broadcast modes.
func NewCommandFrame(mode AddressMode, target, opcode byte) Frame {
	return Frame{Address: encodeAddress(mode, target) | contentBit, Data: opcode}
}

// NewArcPowerFrame builds a direct arc power frame.
func NewArcPowerFrame(mode AddressMode, target, level byte) Frame {
	return Frame{Address: encodeAddress(mode, target), Data: level}
}

// NewSpecialFrame builds a special command frame from its address byte.
func NewSpecialFrame(opcode, data byte) Frame {
	return Frame{Address: opcode, Data: data}
}

func encodeAddress(mode AddressMode, target byte) byte {
	switch mode {
	case ModeGroup:
		return groupValue | (target&0x0F)<<1
	case ModeBroadcast:
		return broadcastValue
	case ModeBroadcastUnaddressed:
		return broadcastUnaddressedValue
	default:
		return (target & 0x3F) << 1
	}
}

// Bytes returns the wire representation.
func (f Frame) Bytes() []byte {
	return []byte{f.Address, f.Data}
}

// IsSpecial reports whether the address byte is a special command.
func (f Frame) IsSpecial() bool {
	return f.Address >= firstSpecial && f.Address <= lastSpecial && f.Address&contentBit == 1
}

// IsCommand reports whether Data is an opcode rather than an arc power level.
func (f Frame) IsCommand() bool {
	return f.Address&contentBit == 1
}

// IsExtended reports whether the opcode belongs to the extended table.
func (f Frame) IsExtended() bool {
	return f.IsCommand() && !f.IsSpecial() && f.Data >= firstExtendedOpcode
}

// Mode decodes the addressing mode.
func (f Frame) Mode() AddressMode {
	a := f.Address
	switch {
	case a&0x80 == 0:
		return ModeShort
	case a&groupMask == groupValue:
		return ModeGroup
	case a&^contentBit == broadcastValue:
		return ModeBroadcast
	case a&^contentBit == broadcastUnaddressedValue:
		return ModeBroadcastUnaddressed
	case f.IsSpecial():
		return ModeSpecial
	default:
		return ModeReserved
	}
}

// Target returns the 6-bit target number (short address, group, or 63 for broadcast).
func (f Frame) Target() byte {
	switch f.Mode() {
	case ModeGroup:
		return (f.Address >> 1) & 0x0F
	case ModeBroadcast, ModeBroadcastUnaddressed:
		return BroadcastTarget
	default:
		return (f.Address >> 1) & 0x3F
	}
}

// specialIndex returns the special-table selector.
func (f Frame) specialIndex() int {
	return int(f.Address-firstSpecial) / 2 //nolint:mnd // odd address bytes only
}

// String returns a human-readable representation of the frame.
func (f Frame) String() string {
	kind := "arc"
	if f.IsCommand() {
		kind = "cmd"
	}
	if f.IsSpecial() {
		return fmt.Sprintf("Frame{special 0x%02X data=0x%02X}", f.Address, f.Data)
	}
	return fmt.Sprintf("Frame{%s %d %s=0x%02X}", f.Mode(), f.Target(), kind, f.Data)
}
