package utils

import (
	log "github.com/sirupsen/logrus"
)

// Recover runs fn and turns a panic into an error log, so one bad update
// cannot take down the goroutine that delivers the rest.
func Recover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("prefix", name).Errorf("RECOVERED FROM PANIC: %v", r)
		}
	}()
	fn()
}
