package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-report-bot/internal/config"
)

const getMeOK = `{"ok":true,"result":{"id":999,"is_bot":true,"first_name":"Report","username":"report_bot"}}`

// fakeAPI is a minimal Bot API server recording sendMessage calls.
type fakeAPI struct {
	mu        sync.Mutex
	updates   string
	sends     []map[string]string
	sendReply func(form map[string]string) string
	getForms  []map[string]string
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, getMeOK)
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			f.getForms = append(f.getForms, form)
			_, _ = io.WriteString(w, f.updates)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			f.sends = append(f.sends, form)
			if f.sendReply != nil {
				_, _ = io.WriteString(w, f.sendReply(form))
				return
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":500,"date":1735700000,"chat":{"id":-1001,"type":"supergroup"}}}`)
		case strings.HasSuffix(r.URL.Path, "/setMyCommands"):
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	cfg := config.TelegramConfig{
		Token:       "TEST",
		APIEndpoint: srv.URL + "/bot%s/%s",
		SendRPS:     1000,
		SendBurst:   100,
	}
	c, err := NewWithHTTPClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	return c
}

func TestNew_ReadsSelfID(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	if c.SelfID() != 999 {
		t.Fatalf("SelfID = %d; want 999", c.SelfID())
	}
}

func TestFetchUpdates_ConvertsAlbumPhotoAndThread(t *testing.T) {
	api := &fakeAPI{updates: `{"ok":true,"result":[
		{"update_id":101,"message":{"message_id":10,"message_thread_id":5,
			"from":{"id":42,"is_bot":false,"first_name":"An","last_name":"Nguyen"},
			"chat":{"id":-1001,"type":"supergroup"},"date":1735700000,
			"caption":"20250101 - Kho A","media_group_id":"g1",
			"photo":[{"file_id":"f1","file_unique_id":"u1s","width":90,"height":90,"file_size":100},
			         {"file_id":"f2","file_unique_id":"u1","width":1280,"height":960,"file_size":9000}]}},
		{"update_id":102,"message":{"message_id":11,
			"from":{"id":43,"is_bot":false,"first_name":"","username":"binh"},
			"chat":{"id":-1001,"type":"supergroup"},"date":1735700001,
			"video":{"file_id":"v","file_unique_id":"vid1","width":640,"height":480,"duration":3}}},
		{"update_id":103,"edited_message":{"message_id":9,"chat":{"id":-1001,"type":"supergroup"},"date":1}}
	]}`}
	c := newTestClient(t, api)

	got, err := c.FetchUpdates(context.Background(), 101)
	if err != nil {
		t.Fatalf("FetchUpdates: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(got))
	}

	first := got[0].Message
	if got[0].UpdateID != 101 || first == nil {
		t.Fatalf("unexpected first update: %+v", got[0])
	}
	if first.ChatID != -1001 || first.SenderID != 42 || first.SenderName != "An Nguyen" ||
		first.Caption != "20250101 - Kho A" || first.MediaGroupID != "g1" || first.ThreadID != 5 {
		t.Fatalf("unexpected first message: %+v", first)
	}
	if len(first.Attachments) != 1 || first.Attachments[0].Fingerprint() != "u1" {
		t.Fatalf("expected largest photo variant as fingerprint, got %+v", first.Attachments)
	}

	second := got[1].Message
	if second.SenderName != "@binh" || second.ThreadID != 0 {
		t.Fatalf("unexpected second message: %+v", second)
	}
	if len(second.Attachments) != 1 || second.Attachments[0].Kind != "video" || second.Attachments[0].Fingerprint() != "vid1" {
		t.Fatalf("video should be an attachment: %+v", second.Attachments)
	}

	if got[2].Message != nil {
		t.Fatalf("edited message must not surface as a message")
	}

	form := api.getForms[0]
	if form["offset"] != "101" {
		t.Fatalf("offset param = %q; want 101", form["offset"])
	}
	if !strings.Contains(form["allowed_updates"], "message") {
		t.Fatalf("allowed_updates = %q", form["allowed_updates"])
	}
}

func TestFetchUpdates_APIError(t *testing.T) {
	api := &fakeAPI{updates: `{"ok":false,"error_code":409,"description":"Conflict: terminated by other getUpdates request"}`}
	c := newTestClient(t, api)
	if _, err := c.FetchUpdates(context.Background(), 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFetchUpdates_CanceledContext(t *testing.T) {
	c := newTestClient(t, &fakeAPI{updates: `{"ok":true,"result":[]}`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.FetchUpdates(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSendMessage_ReplyAndThreadParams(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	if err := c.SendMessage(context.Background(), -1001, "ok", 10, 5); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(api.sends) != 1 {
		t.Fatalf("expected one send, got %d", len(api.sends))
	}
	f := api.sends[0]
	if f["chat_id"] != "-1001" || f["text"] != "ok" || f["reply_to_message_id"] != "10" || f["message_thread_id"] != "5" {
		t.Fatalf("unexpected send params: %v", f)
	}

	if err := c.SendMessage(context.Background(), -1001, "plain", 0, 0); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, ok := api.sends[1]["reply_to_message_id"]; ok {
		t.Fatalf("zero reply-to must be omitted: %v", api.sends[1])
	}
}

func TestSendMessage_FallsBackWhenReplyTargetGone(t *testing.T) {
	api := &fakeAPI{sendReply: func(form map[string]string) string {
		if form["reply_to_message_id"] != "" {
			return `{"ok":false,"error_code":400,"description":"Bad Request: message to be replied not found"}`
		}
		return `{"ok":true,"result":{"message_id":501,"date":1735700000,"chat":{"id":-1001,"type":"supergroup"}}}`
	}}
	c := newTestClient(t, api)

	if err := c.SendMessage(context.Background(), -1001, "ack", 10, 5); err != nil {
		t.Fatalf("SendMessage with fallback: %v", err)
	}
	if len(api.sends) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(api.sends))
	}
	if api.sends[1]["message_thread_id"] != "5" {
		t.Fatalf("fallback must keep the thread: %v", api.sends[1])
	}
}

func TestSendMessage_OtherErrorsAreNotRetried(t *testing.T) {
	api := &fakeAPI{sendReply: func(map[string]string) string {
		return `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked from the supergroup chat"}`
	}}
	c := newTestClient(t, api)

	err := c.SendMessage(context.Background(), -1001, "ack", 10, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(api.sends) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(api.sends))
	}
	if IsReplyTargetGone(err) {
		t.Fatalf("403 is not a reply-target error")
	}
}

func TestIsReplyTargetGone(t *testing.T) {
	if IsReplyTargetGone(errors.New("message to be replied not found")) {
		t.Fatalf("plain errors are not API errors")
	}
	wrapped := &tgbotapi.Error{Code: 400, Message: "Bad Request: replied message not found"}
	if !IsReplyTargetGone(wrapped) {
		t.Fatalf("expected API error to match")
	}
}

func TestRegisterCommands(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	if err := c.RegisterCommands("Hướng dẫn gửi báo cáo"); err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
}
