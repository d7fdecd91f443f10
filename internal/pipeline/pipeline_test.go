package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/postgram/postgram/internal/config"
	"github.com/postgram/postgram/internal/deliver"
	"github.com/postgram/postgram/internal/feed"
	"github.com/postgram/postgram/internal/gate"
	"github.com/postgram/postgram/internal/media"
	"github.com/postgram/postgram/internal/metrics"
	"github.com/postgram/postgram/internal/telegram"
)

// memStore is an in-memory gate.RecordStore.
type memStore struct {
	records map[string]gate.Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]gate.Record)}
}

func (m *memStore) Get(_ context.Context, postID string) (*gate.Record, error) {
	rec, ok := m.records[postID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) CreateIfAbsent(_ context.Context, rec gate.Record) (bool, error) {
	if _, ok := m.records[rec.PostID]; ok {
		return false, nil
	}
	m.records[rec.PostID] = rec
	return true, nil
}

// buildPipeline assembles a pipeline whose direct transport points at the
// given fake Telegram server.
func buildPipeline(t *testing.T, cfg *config.Config, apiURL string) *Pipeline {
	t.Helper()
	cfg.CacheDir = t.TempDir()

	client := telegram.NewClient(cfg.BotToken, apiURL, nil)
	direct := deliver.NewDirect(client, cfg.ChannelID)
	relay := deliver.NewRelay(cfg.RelayURL, cfg.BotToken, cfg.ChannelID, nil)
	router := deliver.NewRouter(cfg, direct, relay, nil)

	return New(
		cfg,
		gate.New(newMemStore(), nil),
		media.NewNormalizer(http.DefaultClient, cfg, nil),
		router,
		deliver.NewValidator(client),
		metrics.New(prometheus.NewRegistry()),
		nil,
	)
}

func testEvent() feed.PostPublishedEvent {
	return feed.PostPublishedEvent{
		PostID:    "101",
		Status:    "publish",
		Title:     "Launch",
		Excerpt:   "We shipped",
		Permalink: "https://x/y",
	}
}

func TestHandlePostPublishedEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req telegram.SendMessageRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		if req.Text != "Launch: We shipped (https://x/y)" {
			t.Errorf("Text = %q, want %q", req.Text, "Launch: We shipped (https://x/y)")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 42}}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.BotToken = "TOKEN"
	cfg.ChannelID = "@ch"
	cfg.MessageTemplate = "{title}: {excerpt} ({link})"

	p := buildPipeline(t, cfg, srv.URL)
	out, err := p.HandlePostPublished(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("HandlePostPublished() error: %v", err)
	}
	if !out.Attempted {
		t.Fatalf("outcome = %+v, want attempted", out)
	}
	if !out.Result.OK {
		t.Fatalf("result = %+v, want success", out.Result)
	}
	if out.Result.MessageID != "42" {
		t.Errorf("MessageID = %q, want %q", out.Result.MessageID, "42")
	}
}

func TestHandlePostPublishedDuplicateSuppressed(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 1}}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.BotToken = "TOKEN"
	cfg.ChannelID = "@ch"

	p := buildPipeline(t, cfg, srv.URL)
	ctx := context.Background()

	out, err := p.HandlePostPublished(ctx, testEvent())
	if err != nil || !out.Attempted {
		t.Fatalf("first event: outcome = %+v, err = %v", out, err)
	}

	out, err = p.HandlePostPublished(ctx, testEvent())
	if err != nil {
		t.Fatalf("second event error: %v", err)
	}
	if out.Attempted {
		t.Fatal("second event was attempted, want suppression")
	}
	if out.SkipReason != SkipDuplicateOrStatus {
		t.Errorf("SkipReason = %q, want %q", out.SkipReason, SkipDuplicateOrStatus)
	}
	if calls != 1 {
		t.Errorf("telegram calls = %d, want 1", calls)
	}
}

func TestHandlePostPublishedFailedSendNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": false, "error_code": 400, "description": "Bad Request"}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.BotToken = "TOKEN"
	cfg.ChannelID = "@ch"

	p := buildPipeline(t, cfg, srv.URL)
	ctx := context.Background()

	out, err := p.HandlePostPublished(ctx, testEvent())
	if err != nil {
		t.Fatalf("HandlePostPublished() error: %v", err)
	}
	if !out.Attempted || out.Result.OK {
		t.Fatalf("outcome = %+v, want attempted failure", out)
	}

	// The gate was marked before the send: the failure is terminal.
	out, err = p.HandlePostPublished(ctx, testEvent())
	if err != nil {
		t.Fatalf("second event error: %v", err)
	}
	if out.Attempted {
		t.Error("failed send was retried on a later event")
	}
	if calls != 1 {
		t.Errorf("telegram calls = %d, want 1", calls)
	}
}

func TestHandlePostPublishedDraftIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL.Path)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.BotToken = "TOKEN"
	cfg.ChannelID = "@ch"

	p := buildPipeline(t, cfg, srv.URL)

	ev := testEvent()
	ev.Status = "draft"
	out, err := p.HandlePostPublished(context.Background(), ev)
	if err != nil {
		t.Fatalf("HandlePostPublished() error: %v", err)
	}
	if out.Attempted {
		t.Error("draft event was attempted")
	}
}

func TestHandlePostPublishedAutoSendDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.BotToken = "TOKEN"
	cfg.ChannelID = "@ch"
	cfg.EnableAutoSend = false

	p := buildPipeline(t, cfg, "http://unused.invalid")
	out, err := p.HandlePostPublished(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("HandlePostPublished() error: %v", err)
	}
	if out.Attempted || out.SkipReason != SkipAutoSendDisabled {
		t.Errorf("outcome = %+v, want skip %q", out, SkipAutoSendDisabled)
	}
}

func TestHandlePostPublishedIncompleteConfig(t *testing.T) {
	cfg := config.Default()

	p := buildPipeline(t, cfg, "http://unused.invalid")
	out, err := p.HandlePostPublished(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("HandlePostPublished() error: %v", err)
	}
	if out.Attempted || out.SkipReason != SkipConfigIncomplete {
		t.Errorf("outcome = %+v, want skip %q", out, SkipConfigIncomplete)
	}
}

func TestHandlePostPublishedImageDegradesToText(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/pic.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/botTOKEN/sendMessage", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 5}}`))
	})
	mux.HandleFunc("/botTOKEN/sendPhoto", func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("sendPhoto called for an unavailable image")
	})

	cfg := config.Default()
	cfg.BotToken = "TOKEN"
	cfg.ChannelID = "@ch"

	p := buildPipeline(t, cfg, srv.URL)

	ev := testEvent()
	ev.FeaturedImageURL = srv.URL + "/pic.jpg"
	out, err := p.HandlePostPublished(context.Background(), ev)
	if err != nil {
		t.Fatalf("HandlePostPublished() error: %v", err)
	}
	if !out.Result.OK {
		t.Fatalf("result = %+v, want text-only success", out.Result)
	}
}
