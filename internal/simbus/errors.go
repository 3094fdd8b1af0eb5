package simbus

import "errors"

var (
	// ErrAddressSpaceExhausted is returned when more gears answer than there
	// are short addresses.
	ErrAddressSpaceExhausted = errors.New("simbus: no short address left")

	// ErrVerifyFailed is returned when a programmed gear does not confirm its
	// short address.
	ErrVerifyFailed = errors.New("simbus: short address not verified")

	// ErrNoGears is returned when a bus is created without gears.
	ErrNoGears = errors.New("simbus: bus needs at least one gear")
)
