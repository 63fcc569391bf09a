package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const testToken = "123456:secret"

// fakeAPI is a minimal Telegram Bot API server.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	forms    map[string][]map[string]string
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{
		forms:    make(map[string][]map[string]string),
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/") {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}

		api.mu.Lock()
		api.calls = append(api.calls, method)
		api.forms[method] = append(api.forms[method], form)
		h := api.handlers[method]
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if h != nil {
			h(w, r)
			return
		}
		switch method {
		case "getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":123456,"is_bot":true,"first_name":"Geo","username":"geo_bot"}}`))
		case "sendMessage":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		}
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) form(method string, i int) map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.forms[method][i]
}

func (a *fakeAPI) handle(method string, h func(w http.ResponseWriter, r *http.Request)) {
	a.mu.Lock()
	a.handlers[method] = h
	a.mu.Unlock()
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	c, err := NewClient(Options{
		Token:      testToken,
		Endpoint:   srv.URL + "/bot%s/%s",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewClient_ChecksToken(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	if c.Username() != "geo_bot" {
		t.Fatalf("unexpected username %q", c.Username())
	}
}

func TestNewClient_RejectedToken(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("getMe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	})
	_, err := NewClient(Options{Token: testToken, Endpoint: srv.URL + "/bot%s/%s", HTTPClient: srv.Client()})
	if err == nil {
		t.Fatal("expected error for rejected token")
	}
}

func TestClient_SetAndDeleteWebhook(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)

	if err := c.SetWebhook("https://bot.example.com/webhook/123456", true); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}
	form := api.form("setWebhook", 0)
	if form["url"] != "https://bot.example.com/webhook/123456" {
		t.Errorf("bad url param: %q", form["url"])
	}
	if form["drop_pending_updates"] != "true" {
		t.Errorf("expected drop_pending_updates=true, got %q", form["drop_pending_updates"])
	}

	if err := c.DeleteWebhook(false); err != nil {
		t.Fatalf("DeleteWebhook: %v", err)
	}
}

func TestClient_DeleteWebhookError(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	api.handle("deleteWebhook", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"boom"}`))
	})

	err := c.DeleteWebhook(true)
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) || tgErr.Code != 500 {
		t.Fatalf("expected telegram error 500, got %v", err)
	}
}

func TestClient_GetUpdates(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	api.handle("getUpdates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":5,"date":0,"chat":{"id":77,"type":"private"},"location":{"latitude":38.859555,"longitude":65.796147}}},
			{"update_id":11,"message":{"message_id":6,"date":0,"chat":{"id":77,"type":"private"},"text":"hi"}}
		]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 10, 2*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	loc := updates[0].Message.Location
	if loc == nil || loc.Latitude != 38.859555 || loc.Longitude != 65.796147 {
		t.Fatalf("bad location: %+v", loc)
	}
	form := api.form("getUpdates", 0)
	if form["offset"] != "10" || form["timeout"] != "2" {
		t.Errorf("unexpected poll params: %v", form)
	}
	if next := NextOffset(10, updates); next != 12 {
		t.Errorf("expected next offset 12, got %d", next)
	}
}

func TestClient_GetUpdatesCancelled(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	release := make(chan struct{})
	defer close(release)
	api.handle("getUpdates", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetUpdates(ctx, 0, 30*time.Second)
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("GetUpdates did not return after cancellation")
	}
}

func TestClient_ReplyAndSend(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)

	if err := c.Reply(context.Background(), 77, 5, "<b>hi</b>"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if err := c.Send(context.Background(), 77, "<code>1, 2</code>"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	reply := api.form("sendMessage", 0)
	if reply["chat_id"] != "77" || reply["reply_to_message_id"] != "5" || reply["parse_mode"] != "HTML" {
		t.Errorf("unexpected reply params: %v", reply)
	}
	plain := api.form("sendMessage", 1)
	if _, ok := plain["reply_to_message_id"]; ok {
		t.Errorf("plain send must not quote a message: %v", plain)
	}
}

func TestClient_ReplyError(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	api.handle("sendMessage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message to reply not found"}`))
	})

	err := c.Reply(context.Background(), 77, 5, "hi")
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) || tgErr.Code != 400 {
		t.Fatalf("expected telegram error 400, got %v", err)
	}
}

func TestClient_ReplyCancelled(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	release := make(chan struct{})
	defer close(release)
	api.handle("sendMessage", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Reply(ctx, 77, 5, "hi")
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reply did not return after cancellation")
	}
}

func TestClient_SendBoundedByClientTimeout(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, err := NewClient(Options{
		Token:      testToken,
		Endpoint:   srv.URL + "/bot%s/%s",
		HTTPClient: &http.Client{Transport: srv.Client().Transport, Timeout: 200 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	release := make(chan struct{})
	defer close(release)
	api.handle("sendMessage", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	start := time.Now()
	err = c.Send(context.Background(), 77, "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("send took %v", elapsed)
	}
}

// A long poll may outlast the client timeout; only its own deadline applies.
func TestClient_GetUpdatesOutlastsClientTimeout(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, err := NewClient(Options{
		Token:      testToken,
		Endpoint:   srv.URL + "/bot%s/%s",
		HTTPClient: &http.Client{Transport: srv.Client().Transport, Timeout: 200 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	api.handle("getUpdates", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":1}]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(5, nil); got != 5 {
		t.Errorf("empty batch must keep offset, got %d", got)
	}
	updates := []tgbotapi.Update{{UpdateID: 3}, {UpdateID: 9}, {UpdateID: 7}}
	if got := NextOffset(0, updates); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
}
