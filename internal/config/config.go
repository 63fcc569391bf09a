package config

import (
	"errors"
	"log"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
)

var Config = struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Port        int    `env:"PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9103"`

	// Telegram related settings
	GeocodeBotToken     string `env:"GEOCODE_BOT_TOKEN"`
	BotToken            string `env:"BOT_TOKEN"`
	TelegramAPIEndpoint string `env:"TELEGRAM_API_ENDPOINT" envDefault:"https://api.telegram.org/bot%s/%s"`
	PollTimeout         int    `env:"POLL_TIMEOUT" envDefault:"30"`

	// Delivery mode settings
	BotMode     string `env:"BOT_MODE"` // webhook, polling or empty to detect from WEBHOOK_BASE
	WebhookBase string `env:"WEBHOOK_BASE"`
	WebhookPath string `env:"WEBHOOK_PATH"`

	// NTP related settings
	NTPEnabled      bool     `env:"NTP_ENABLED" envDefault:"false"`
	NTPServers      []string `env:"NTP_SERVERS" envDefault:"time.google.com,time.cloudflare.com,pool.ntp.org"`
	NTPSyncInterval int      `env:"NTP_SYNC_INTERVAL" envDefault:"300"`
	NTPQueryTimeout int      `env:"NTP_QUERY_TIMEOUT" envDefault:"5"`

	// Other settings
	DedupTTL           int      `env:"DEDUP_TTL" envDefault:"300"`
	TrustedProxyRanges []string `env:"TRUSTED_PROXY_RANGES" envDefault:"0.0.0.0/0"`
	PprofEnabled       bool     `env:"PPROF_ENABLED" envDefault:"false"`
}{}

var ErrMissingToken = errors.New("bot token is not set (GEOCODE_BOT_TOKEN or BOT_TOKEN)")

func LoadConfig() {
	if err := env.Parse(&Config); err != nil {
		log.Fatalf("config parsing failed: %v\n", err)
	}
	Config.WebhookBase = strings.TrimRight(strings.TrimSpace(Config.WebhookBase), "/")

	level, err := logrus.ParseLevel(strings.ToLower(Config.LogLevel))
	if err != nil {
		log.Printf("Invalid LOG_LEVEL '%s', using default 'info'. Valid levels: panic, fatal, error, warn, info, debug, trace", Config.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if err := Validate(); err != nil {
		log.Fatalf("config validation failed: %v\n", err)
	}
}

// Validate reports configuration that makes the bot unable to start.
func Validate() error {
	if Token() == "" {
		return ErrMissingToken
	}
	return nil
}

// Token returns GEOCODE_BOT_TOKEN, falling back to BOT_TOKEN.
func Token() string {
	if token := strings.TrimSpace(Config.GeocodeBotToken); token != "" {
		return token
	}
	return strings.TrimSpace(Config.BotToken)
}

// WebhookPath returns the configured path or one derived from the bot id
// part of the token, so the endpoint is not guessable without the token.
func WebhookPath() string {
	if path := strings.TrimSpace(Config.WebhookPath); path != "" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return path
	}
	botID, _, _ := strings.Cut(Token(), ":")
	return "/webhook/" + botID
}

// WebhookURL is the address registered with Telegram in webhook mode.
func WebhookURL() string {
	return Config.WebhookBase + WebhookPath()
}
