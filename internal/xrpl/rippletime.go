// Package xrpl defines the contract this service has with the XRP Ledger:
// value conversions, the narrow gateway interface used for all reads and
// writes, and an in-memory implementation for tests and local development.
// Transaction signing and settlement belong to the node and the external
// signer; nothing in this package holds key material.
package xrpl

import "time"

// rippleEpochOffset is the Unix timestamp of the ledger epoch (2000-01-01).
const rippleEpochOffset = 946684800

// RippleTime is seconds since the ledger epoch, the unit escrow time locks
// are expressed in.
type RippleTime int64

// ToRippleTime converts a wall clock time to ledger time.
func ToRippleTime(t time.Time) RippleTime {
	return RippleTime(t.Unix() - rippleEpochOffset)
}

// Time converts ledger time back to wall clock time.
func (rt RippleTime) Time() time.Time {
	return time.Unix(int64(rt)+rippleEpochOffset, 0).UTC()
}
