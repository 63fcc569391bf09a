package ntp

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/sirupsen/logrus"
)

// QueryFunc asks a single server for the clock offset.
type QueryFunc func(server string, timeout time.Duration) (time.Duration, error)

// Client is a TimeProvider that corrects the local clock with the offset
// reported by the first NTP server that answers.
type Client struct {
	servers      []string
	syncInterval time.Duration
	queryTimeout time.Duration
	query        QueryFunc

	offset   atomic.Int64 // nanoseconds
	lastSync atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	started  atomic.Bool
}

type Options struct {
	Servers      []string
	SyncInterval time.Duration
	QueryTimeout time.Duration
	Query        QueryFunc
}

func NewClient(opts Options) *Client {
	if len(opts.Servers) == 0 {
		opts.Servers = []string{
			"time.google.com",
			"time.cloudflare.com",
			"pool.ntp.org",
		}
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 5 * time.Minute
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.Query == nil {
		opts.Query = queryServer
	}

	return &Client{
		servers:      opts.Servers,
		syncInterval: opts.SyncInterval,
		queryTimeout: opts.QueryTimeout,
		query:        opts.Query,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start performs one synchronous sync and then keeps syncing in the
// background until Stop is called.
func (c *Client) Start() {
	if !c.started.CompareAndSwap(false, true) {
		logrus.Warn("NTP client already started")
		return
	}

	logrus.WithFields(logrus.Fields{
		"servers":       c.servers,
		"sync_interval": c.syncInterval,
	}).Info("Starting NTP client")

	c.syncOnce()
	go c.syncLoop()
}

// Stop ends the background sync and waits for it to exit.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if c.started.Load() {
			<-c.done
		}
		logrus.Info("NTP client stopped")
	})
}

func (c *Client) syncLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.syncOnce()
		}
	}
}

func (c *Client) syncOnce() bool {
	for _, server := range c.servers {
		offset, err := c.query(server, c.queryTimeout)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"server": server,
				"error":  err,
			}).Debug("Failed to query NTP server")
			continue
		}
		c.offset.Store(int64(offset))
		c.lastSync.Store(time.Now().Unix())
		logrus.WithFields(logrus.Fields{
			"server": server,
			"offset": offset,
		}).Info("Successfully synchronized with NTP server")
		return true
	}

	logrus.Warn("Failed to synchronize with any NTP server, using local time")
	return false
}

func queryServer(server string, timeout time.Duration) (time.Duration, error) {
	response, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := response.Validate(); err != nil {
		return 0, err
	}
	return response.ClockOffset, nil
}

// Offset is the correction applied to the local clock.
func (c *Client) Offset() time.Duration {
	return time.Duration(c.offset.Load())
}

func (c *Client) Now() time.Time {
	return time.Now().Add(c.Offset())
}
