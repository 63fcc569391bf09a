package ntp

import "time"

// TimeProvider is the clock used wherever the bot compares timestamps.
// It is satisfied by the local clock, the NTP-corrected clock and test fakes.
type TimeProvider interface {
	Now() time.Time
}
