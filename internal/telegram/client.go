package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const (
	defaultPollTimeout    = 30 * time.Second
	defaultRequestTimeout = 60 * time.Second
	// pollGrace is added to the long-poll timeout to form the request deadline.
	pollGrace = 5 * time.Second
)

type Options struct {
	Token string
	// Endpoint is a format string taking the token and the method name.
	Endpoint   string
	HTTPClient *http.Client
	Debug      bool
}

// Client talks to the Telegram Bot API. Short calls go through tgbotapi;
// getUpdates and sendMessage are issued directly so they can be cancelled.
type Client struct {
	bot *tgbotapi.BotAPI
	// http has no client-wide timeout; each call carries its own deadline.
	http           *http.Client
	requestTimeout time.Duration
	endpoint       string
	token          string
}

// NewClient checks the token with getMe and returns a ready client.
// The HTTPClient timeout, if any, bounds the tgbotapi calls and each
// sendMessage; long polls are bounded by their own timeout instead.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if err := tgbotapi.SetLogger(logrus.StandardLogger()); err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.Endpoint, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	bot.Debug = opts.Debug

	requestTimeout := opts.HTTPClient.Timeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	direct := *opts.HTTPClient
	direct.Timeout = 0

	return &Client{
		bot:            bot,
		http:           &direct,
		requestTimeout: requestTimeout,
		endpoint:       opts.Endpoint,
		token:          opts.Token,
	}, nil
}

// Username of the bot as reported by getMe.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SetWebhook registers link as the push endpoint. With dropPending the
// updates queued before registration are discarded.
func (c *Client) SetWebhook(link string, dropPending bool) error {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	wh.DropPendingUpdates = dropPending
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	return nil
}

func (c *Client) DeleteWebhook(dropPending bool) error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending}); err != nil {
		return fmt.Errorf("telegram deleteWebhook: %w", err)
	}
	return nil
}

// GetUpdates long-polls for updates with id >= offset. The request is bound
// to ctx, so cancelling ctx aborts an in-flight poll.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	params := url.Values{}
	params.Set("timeout", strconv.Itoa(secs))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+pollGrace)
	defer cancel()
	result, err := c.call(reqCtx, "getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}

	var updates []tgbotapi.Update
	if err := sonic.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: bad result: %w", err)
	}
	return updates, nil
}

// Reply sends an HTML message quoting replyTo.
func (c *Client) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := c.sendMessage(ctx, chatID, replyTo, text); err != nil {
		return fmt.Errorf("telegram sendMessage reply: %w", err)
	}
	return nil
}

// Send sends an HTML message to the chat without quoting anything.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if err := c.sendMessage(ctx, chatID, 0, text); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, replyTo int, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	params.Set("parse_mode", tgbotapi.ModeHTML)
	if replyTo != 0 {
		params.Set("reply_to_message_id", strconv.Itoa(replyTo))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	_, err := c.call(reqCtx, "sendMessage", params)
	return err
}

// call posts params to method and returns the result of a successful
// response. API failures are returned as *tgbotapi.Error.
func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf(c.endpoint, c.token, method), strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			logrus.Errorf("failed to close response body: %v", closeErr)
		}
	}()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var apiResp tgbotapi.APIResponse
	if err := sonic.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("bad response (http %d): %w", res.StatusCode, err)
	}
	if !apiResp.Ok {
		return nil, &tgbotapi.Error{Code: apiResp.ErrorCode, Message: apiResp.Description}
	}
	return apiResp.Result, nil
}

// Close releases idle connections held by the HTTP client.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// NextOffset returns the offset acknowledging every update in updates.
func NextOffset(offset int, updates []tgbotapi.Update) int {
	for _, u := range updates {
		if u.UpdateID >= offset {
			offset = u.UpdateID + 1
		}
	}
	return offset
}
