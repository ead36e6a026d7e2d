package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramSendPostsEvaluationMessage(t *testing.T) {
	var gotPath string
	var gotBody telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("bot-token", "chat-42")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), "Prediction Correct", "crypto:btc Up (Crypto: Bitcoin - Up (5m))")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q, want /botbot-token/sendMessage", gotPath)
	}
	if gotBody.ChatID != "chat-42" {
		t.Errorf("chat_id = %q, want chat-42", gotBody.ChatID)
	}
	if !strings.HasPrefix(gotBody.Text, "*Prediction Correct*\n") {
		t.Errorf("text = %q, want bold headline first", gotBody.Text)
	}
	if gotBody.ParseMode != "Markdown" {
		t.Errorf("parse_mode = %q, want Markdown", gotBody.ParseMode)
	}
}

func TestTelegramSendSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("bot-token", "nope")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), "Prediction Incorrect", "forex:eur_usd Down")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error %q should carry the API description", err)
	}
}

func TestDiscordSendPostsEvaluationMessage(t *testing.T) {
	var gotBody discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)

	err := s.Send(context.Background(), "Prediction Data Unavailable", "stock:in:reliance.ns Up")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.HasPrefix(gotBody.Content, "**Prediction Data Unavailable**\n") {
		t.Errorf("content = %q, want bold headline first", gotBody.Content)
	}
}

func TestDiscordSendSurfacesWebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)

	if err := s.Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
