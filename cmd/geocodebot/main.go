package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/tonkeeper/geocode-bot/internal"
	"github.com/tonkeeper/geocode-bot/internal/app"
	"github.com/tonkeeper/geocode-bot/internal/config"
	"github.com/tonkeeper/geocode-bot/internal/dedupe"
	"github.com/tonkeeper/geocode-bot/internal/handler"
	"github.com/tonkeeper/geocode-bot/internal/lifecycle"
	"github.com/tonkeeper/geocode-bot/internal/ntp"
	"github.com/tonkeeper/geocode-bot/internal/telegram"
	"github.com/tonkeeper/geocode-bot/internal/utils"
	"golang.org/x/exp/slices"
)

func main() {
	log.Info(fmt.Sprintf("Geocode bot %s is running", internal.BotVersionRevision))
	config.LoadConfig()
	app.InitMetrics()

	var timeProvider ntp.TimeProvider
	if config.Config.NTPEnabled {
		ntpClient := ntp.NewClient(ntp.Options{
			Servers:      config.Config.NTPServers,
			SyncInterval: time.Duration(config.Config.NTPSyncInterval) * time.Second,
			QueryTimeout: time.Duration(config.Config.NTPQueryTimeout) * time.Second,
		})
		ntpClient.Start()
		defer ntpClient.Stop()
		timeProvider = ntpClient
		log.WithFields(log.Fields{
			"servers":       config.Config.NTPServers,
			"sync_interval": config.Config.NTPSyncInterval,
		}).Info("NTP synchronization enabled")
	} else {
		timeProvider = ntp.NewLocalTimeProvider()
		log.Info("NTP synchronization disabled, using local time")
	}

	client, err := telegram.NewClient(telegram.Options{
		Token:    config.Token(),
		Endpoint: config.Config.TelegramAPIEndpoint,
		Debug:    log.IsLevelEnabled(log.TraceLevel),
	})
	if err != nil {
		log.Fatalf("telegram client: %v", err)
	}
	log.WithField("username", client.Username()).Info("Authorized on Telegram")

	cache := dedupe.NewCache(timeProvider)
	h := handler.NewHandler(cache, client, time.Duration(config.Config.DedupTTL)*time.Second)
	controller := lifecycle.NewController(client, h, lifecycle.Options{
		ExplicitMode: config.Config.BotMode,
		WebhookBase:  config.Config.WebhookBase,
		WebhookURL:   config.WebhookURL(),
		PollTimeout:  time.Duration(config.Config.PollTimeout) * time.Second,
	})
	healthManager := app.NewHealthManager(controller)

	extractor, err := utils.NewRealIPExtractor(config.Config.TrustedProxyRanges)
	if err != nil {
		log.Warnf("failed to create realIPExtractor: %v, using defaults", err)
		extractor, _ = utils.NewRealIPExtractor([]string{})
	}

	mux := http.NewServeMux()
	mux.Handle("/ready", http.HandlerFunc(healthManager.HealthHandler))
	mux.Handle("/version", http.HandlerFunc(app.VersionHandler))
	mux.Handle("/metrics", promhttp.Handler())
	if config.Config.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
	}
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", config.Config.MetricsPort), mux))
	}()

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = app.SonicJSONSerializer{}
	e.HTTPErrorHandler = utils.HTTPErrorHandler
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		Skipper:           nil,
		DisableStackAll:   true,
		DisablePrintStack: false,
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return handler.ParseOrGenerateTraceID("") },
	}))
	e.Use(app.LogrusLoggerMiddleware(extractor))

	e.GET("/health", echo.WrapHandler(http.HandlerFunc(healthManager.HealthHandler)))
	e.POST(config.WebhookPath(), h.WebhookHandler)

	var existedPaths []string
	for _, r := range e.Routes() {
		existedPaths = append(existedPaths, r.Path)
	}
	p := prometheus.NewPrometheus("http", func(c echo.Context) bool {
		return !slices.Contains(existedPaths, c.Path())
	})
	e.Use(p.HandlerFunc)

	go func() {
		if err := e.Start(fmt.Sprintf(":%v", config.Config.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := controller.Start(context.Background())
	if err != nil {
		controller.Stop()
		log.Fatalf("failed to start update delivery: %v", err)
	}
	app.SetBotInfo(string(m))
	log.WithField("mode", m).Info("Update delivery started")

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http server shutdown: %v", err)
	}
	controller.Stop()
}
