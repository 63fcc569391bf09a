package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/geocode-bot/internal/mode"
)

var (
	ErrAlreadyRunning = errors.New("controller is already running")
	ErrTerminated     = errors.New("controller has been stopped")
)

// Messenger is the part of the Telegram client the controller drives.
type Messenger interface {
	SetWebhook(link string, dropPending bool) error
	DeleteWebhook(dropPending bool) error
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error)
	Close()
}

// UpdateHandler processes updates pulled in polling mode.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, source, traceID string, update tgbotapi.Update)
}

type Options struct {
	ExplicitMode string
	// WebhookBase decides the mode and is validated before registration.
	WebhookBase string
	// WebhookURL is the address registered with Telegram in webhook mode.
	WebhookURL  string
	PollTimeout time.Duration
	// PollPause is the delay after a failed getUpdates call.
	PollPause time.Duration
}

type state int

const (
	stateStopped state = iota
	stateRunning
	stateTerminated
)

// Controller owns update delivery: it registers the webhook or runs the
// polling goroutine, and undoes that on Stop.
type Controller struct {
	messenger Messenger
	handler   UpdateHandler
	opts      Options

	mu     sync.Mutex
	state  state
	mode   mode.Mode
	cancel context.CancelFunc
	done   chan error
}

func NewController(messenger Messenger, handler UpdateHandler, opts Options) *Controller {
	if opts.PollPause <= 0 {
		opts.PollPause = time.Second
	}
	return &Controller{
		messenger: messenger,
		handler:   handler,
		opts:      opts,
	}
}

// Start resolves the delivery mode and begins receiving updates. In webhook
// mode an unusable base URL or a failed registration is returned as an error
// and the controller stays stopped.
func (c *Controller) Start(ctx context.Context) (mode.Mode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateRunning:
		return c.mode, ErrAlreadyRunning
	case stateTerminated:
		return "", ErrTerminated
	}

	m := mode.Resolve(c.opts.ExplicitMode, c.opts.WebhookBase)
	log := logrus.WithFields(logrus.Fields{"prefix": "lifecycle", "mode": m})

	switch m {
	case mode.Webhook:
		if err := mode.ValidateWebhookBase(c.opts.WebhookBase); err != nil {
			return m, fmt.Errorf("webhook mode: %w", err)
		}
		if err := c.messenger.SetWebhook(c.opts.WebhookURL, true); err != nil {
			return m, fmt.Errorf("webhook mode: %w", err)
		}
		log.WithField("webhook_base", c.opts.WebhookBase).Info("webhook registered")
	case mode.Polling:
		logDeregisterFailure("startup", c.messenger.DeleteWebhook(false))
		pollCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- c.poll(pollCtx)
		}()
		c.cancel = cancel
		c.done = done
		log.Info("polling started")
	}

	c.mode = m
	c.state = stateRunning
	return m, nil
}

// Stop tears delivery down and releases the Telegram client. It never
// fails; cleanup errors are logged. The controller cannot be restarted.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateTerminated {
		return
	}
	defer func() {
		c.messenger.Close()
		c.state = stateTerminated
		logrus.WithField("prefix", "lifecycle").Info("stopped")
	}()

	if c.cancel != nil {
		c.cancel()
		logPollerExit(<-c.done)
		c.cancel = nil
		c.done = nil
	}
	if c.state == stateRunning && c.mode == mode.Webhook {
		logDeregisterFailure("shutdown", c.messenger.DeleteWebhook(true))
	}
}

// Running reports whether updates are being delivered.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRunning
}

// logDeregisterFailure: a webhook left registered only delays the switch
// to polling, so failures to delete it are logged and otherwise ignored.
func logDeregisterFailure(stage string, err error) {
	if err == nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"prefix": "lifecycle",
		"stage":  stage,
	}).WithError(err).Warn("failed to delete webhook")
}

// logPollerExit: cancellation is the normal way for the poller to end;
// anything else is logged and shutdown continues.
func logPollerExit(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	logrus.WithField("prefix", "lifecycle").WithError(err).Error("poller exited with error")
}
