package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/geocode-bot/internal/dedupe"
)

const (
	SourceWebhook = "webhook"
	SourcePolling = "polling"
)

const (
	startText = "👋 Hi! The geocode bot is ready.\n" +
		"📍 Send a location and I will reply with its coordinates as text."
	helpText = "ℹ️ Simple: send a Location to this chat and I will send the coordinates back as text."
)

// Sender delivers reply text to a chat. Text uses Telegram HTML markup.
// Cancelling ctx aborts an in-flight delivery.
type Sender interface {
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
	Send(ctx context.Context, chatID int64, text string) error
}

type Handler struct {
	cache  *dedupe.Cache
	sender Sender
	ttl    time.Duration
}

func NewHandler(cache *dedupe.Cache, sender Sender, ttl time.Duration) *Handler {
	return &Handler{
		cache:  cache,
		sender: sender,
		ttl:    ttl,
	}
}

// WebhookHandler accepts an update pushed by Telegram.
func (h *Handler) WebhookHandler(c echo.Context) error {
	var update tgbotapi.Update
	if err := c.Echo().JSONSerializer.Deserialize(c, &update); err != nil {
		return err
	}
	traceID := ParseOrGenerateTraceID(c.Response().Header().Get(echo.HeaderXRequestID))
	h.HandleUpdate(c.Request().Context(), SourceWebhook, traceID, update)
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// HandleUpdate answers a single update. Failures are logged and never
// reported back to the chat.
func (h *Handler) HandleUpdate(ctx context.Context, source, traceID string, update tgbotapi.Update) {
	updatesMetric.WithLabelValues(source).Inc()

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	log := logrus.WithFields(logrus.Fields{
		"prefix":     "HandleUpdate",
		"source":     source,
		"trace_id":   traceID,
		"update_id":  update.UpdateID,
		"chat_id":    msg.Chat.ID,
		"message_id": msg.MessageID,
	})

	switch {
	case msg.Location != nil:
		h.handleLocation(ctx, log, msg)
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			h.answer(ctx, log, msg, startText)
		case "help":
			h.answer(ctx, log, msg, helpText)
		}
	}
}

func (h *Handler) handleLocation(ctx context.Context, log *logrus.Entry, msg *tgbotapi.Message) {
	duplicate := h.cache.SeenOnce(dedupe.Key(msg.Chat.ID, msg.MessageID), h.ttl)
	dedupCacheSizeMetric.Set(float64(h.cache.Len()))
	if duplicate {
		duplicateLocationsMetric.Inc()
		log.Debug("duplicate location suppressed")
		return
	}
	h.answer(ctx, log, msg, LocationReply(msg.Location.Latitude, msg.Location.Longitude))
}

// answer replies to msg, falling back to a plain message in the chat when
// the quoted reply cannot be delivered.
func (h *Handler) answer(ctx context.Context, log *logrus.Entry, msg *tgbotapi.Message, text string) {
	err := h.sender.Reply(ctx, msg.Chat.ID, msg.MessageID, text)
	if err == nil {
		repliesMetric.WithLabelValues("reply").Inc()
		return
	}
	if ctx.Err() != nil {
		repliesMetric.WithLabelValues("failed").Inc()
		log.WithError(err).Warn("reply aborted")
		return
	}
	log.WithError(err).Info("reply failed, sending plain message")

	if err := h.sender.Send(ctx, msg.Chat.ID, text); err != nil {
		repliesMetric.WithLabelValues("failed").Inc()
		log.WithError(err).Error("failed to send message")
		return
	}
	repliesMetric.WithLabelValues("answer").Inc()
}

// FormatCoordinates renders a point as "lat, lon" with six decimals.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

func LocationReply(lat, lon float64) string {
	return "📍 <b>Client coordinates:</b>\n\n" +
		"<code>" + FormatCoordinates(lat, lon) + "</code>\n"
}
