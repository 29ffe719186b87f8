package egress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type bridgeCall struct {
	path string
	body map[string]interface{}
}

func newBridge(t *testing.T) (*httptest.Server, func() []bridgeCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []bridgeCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode %s: %v", r.URL.Path, err)
		}
		mu.Lock()
		calls = append(calls, bridgeCall{path: r.URL.Path, body: body})
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv, func() []bridgeCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]bridgeCall(nil), calls...)
	}
}

func TestSendText(t *testing.T) {
	srv, calls := newBridge(t)
	c := NewClient(srv.URL + "/")

	if err := c.SendText(context.Background(), "123", "hello", "whatsapp"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	got := calls()
	if len(got) != 1 || got[0].path != "/whatsapp/send" {
		t.Fatalf("calls = %+v", got)
	}
	if got[0].body["to"] != "123" || got[0].body["message"] != "hello" || got[0].body["platform"] != "whatsapp" {
		t.Errorf("payload = %v", got[0].body)
	}
	if _, present := got[0].body["is_media"]; present {
		t.Errorf("is_media serialized for text message: %v", got[0].body)
	}
}

func TestSendMedia(t *testing.T) {
	srv, calls := newBridge(t)
	c := NewClient(srv.URL)

	err := c.Send(context.Background(), Message{
		To:        "123",
		URLOrPath: "https://example.com/cat.png",
		MediaType: "image",
		Caption:   "cat",
		IsMedia:   true,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := calls()[0].body
	if body["url_or_path"] != "https://example.com/cat.png" || body["type"] != "image" || body["is_media"] != true {
		t.Errorf("payload = %v", body)
	}
}

func TestSend_BridgeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bridge down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SendText(context.Background(), "1", "x", "whatsapp")
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestKeepTyping_SendsFinalStop(t *testing.T) {
	srv, calls := newBridge(t)
	c := NewClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.KeepTyping(ctx, "123", "whatsapp", 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("KeepTyping did not return after cancel")
	}

	got := calls()
	if len(got) < 2 {
		t.Fatalf("calls = %+v", got)
	}
	if got[0].path != "/whatsapp/typing" {
		t.Errorf("first call = %q", got[0].path)
	}
	if got[len(got)-1].path != "/whatsapp/stop-typing" {
		t.Errorf("last call = %q", got[len(got)-1].path)
	}
}
