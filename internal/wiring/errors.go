package wiring

import "errors"

// Build-time integrity errors. All of these indicate a malformed
// device definition and abort construction.
var (
	// ErrUnresolvedState indicates a sub-component declared a state
	// name not present in its parent device's state list.
	ErrUnresolvedState = errors.New("wiring: sub-component state not declared by device")

	// ErrDuplicateClaim indicates two sub-components claimed the same
	// device state.
	ErrDuplicateClaim = errors.New("wiring: device state claimed by two sub-components")

	// ErrUnclaimedState indicates a device declared a state no
	// sub-component owns, which would leave a gap in its range.
	ErrUnclaimedState = errors.New("wiring: device state claimed by no sub-component")

	// ErrUnknownBus indicates a device references a bus missing from
	// the network index.
	ErrUnknownBus = errors.New("wiring: device bus not present in network")
)
