package ntp

import "time"

// LocalTimeProvider provides time based on the local system clock.
type LocalTimeProvider struct{}

// NewLocalTimeProvider creates a new local time provider.
func NewLocalTimeProvider() *LocalTimeProvider {
	return &LocalTimeProvider{}
}

func (l *LocalTimeProvider) Now() time.Time {
	return time.Now()
}
