package deliver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/postgram/postgram/internal/feed"
	"github.com/postgram/postgram/internal/telegram"
)

func validatorServer(t *testing.T, getMeOK, getChatOK bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			if getMeOK {
				_, _ = w.Write([]byte(`{"ok": true, "result": {"id": 1, "is_bot": true, "first_name": "bot"}}`))
			} else {
				_, _ = w.Write([]byte(`{"ok": false, "error_code": 401, "description": "Unauthorized"}`))
			}
		case strings.HasSuffix(r.URL.Path, "/getChat"):
			if getChatOK {
				_, _ = w.Write([]byte(`{"ok": true, "result": {"id": -100, "type": "channel"}}`))
			} else {
				_, _ = w.Write([]byte(`{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`))
			}
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
}

func TestValidateOK(t *testing.T) {
	srv := validatorServer(t, true, true)
	defer srv.Close()

	v := NewValidator(telegram.NewClient("TOKEN", srv.URL, nil))
	if err := v.Validate(context.Background(), "@ch"); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestValidateBadToken(t *testing.T) {
	srv := validatorServer(t, false, true)
	defer srv.Close()

	v := NewValidator(telegram.NewClient("TOKEN", srv.URL, nil))
	err := v.Validate(context.Background(), "@ch")

	var fe *feed.Error
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *feed.Error", err)
	}
	if fe.Kind != feed.ErrInvalidCredentials {
		t.Errorf("Kind = %s, want %s", fe.Kind, feed.ErrInvalidCredentials)
	}
}

func TestValidateBadChannel(t *testing.T) {
	srv := validatorServer(t, true, false)
	defer srv.Close()

	v := NewValidator(telegram.NewClient("TOKEN", srv.URL, nil))
	err := v.Validate(context.Background(), "@ch")

	var fe *feed.Error
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *feed.Error", err)
	}
	if fe.Kind != feed.ErrChannelUnreachable {
		t.Errorf("Kind = %s, want %s", fe.Kind, feed.ErrChannelUnreachable)
	}
	if !strings.Contains(fe.Detail, "chat not found") {
		t.Errorf("Detail = %q, want remote description", fe.Detail)
	}
}
