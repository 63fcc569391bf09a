package mode

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is how the bot receives updates from Telegram.
type Mode string

const (
	Webhook Mode = "webhook"
	Polling Mode = "polling"
)

var (
	ErrEmptyBase   = errors.New("webhook base URL is empty")
	ErrNotHTTPS    = errors.New("webhook base URL must start with https://")
	ErrLocalTarget = errors.New("webhook base URL points to a local address")
)

// localHosts can never be reached by Telegram.
var localHosts = []string{"127.0.0.1", "0.0.0.0", "localhost"}

// Resolve picks the delivery mode. An explicit "webhook" or "polling" always
// wins; otherwise webhook is used only if base is a usable public HTTPS URL.
func Resolve(explicit, base string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(explicit))); m {
	case Webhook, Polling:
		return m
	}
	if ValidateWebhookBase(base) != nil {
		return Polling
	}
	return Webhook
}

// ValidateWebhookBase explains why base cannot be registered as a webhook.
func ValidateWebhookBase(base string) error {
	if base == "" {
		return ErrEmptyBase
	}
	lower := strings.ToLower(base)
	if !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("%w: %q", ErrNotHTTPS, base)
	}
	for _, host := range localHosts {
		if strings.Contains(lower, host) {
			return fmt.Errorf("%w: %q", ErrLocalTarget, base)
		}
	}
	return nil
}
