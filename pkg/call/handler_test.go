package call_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/switchboard-ai/switchboard/pkg/call"
)

func newWebhookApp(t *testing.T, h *harness) (*fiber.App, *call.Registry) {
	t.Helper()

	reg := call.NewRegistry()
	reg.Add(h.sess)

	handler := &call.Handler{Registry: reg, Guards: fastGuards()}

	app := fiber.New()
	app.Post("/webhooks/status", handler.StatusWebhook)
	app.Get("/healthz", handler.Health)
	return app, reg
}

func postStatus(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestStatusWebhook(t *testing.T) {
	t.Run("completed ends the session", func(t *testing.T) {
		h := newHarness(t, "wh-1", call.Config{})
		app, _ := newWebhookApp(t, h)

		h.connect(t, "caller")
		waitState(t, h.sess, call.StateListening)

		if code := postStatus(t, app, `{"call_id":"wh-1","status":"completed"}`); code != fiber.StatusNoContent {
			t.Errorf("status = %d", code)
		}
		waitDone(t, h.sess)

		// Duplicate delivery after the call ended is still acknowledged.
		if code := postStatus(t, app, `{"call_id":"wh-1","status":"completed"}`); code != fiber.StatusNoContent {
			t.Errorf("duplicate status = %d", code)
		}
		if n := h.recorder.saves("wh-1"); n != 1 {
			t.Errorf("expected one record, got %d", n)
		}
	})

	t.Run("unknown call acknowledged", func(t *testing.T) {
		h := newHarness(t, "wh-2", call.Config{})
		app, _ := newWebhookApp(t, h)

		if code := postStatus(t, app, `{"call_id":"nope","status":"completed"}`); code != fiber.StatusNoContent {
			t.Errorf("status = %d", code)
		}
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		h := newHarness(t, "wh-3", call.Config{})
		app, _ := newWebhookApp(t, h)

		if code := postStatus(t, app, `{"status":"completed"}`); code != fiber.StatusBadRequest {
			t.Errorf("status = %d", code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t, "hz-1", call.Config{})
	app, _ := newWebhookApp(t, h)

	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"stt", "dialogue", "tts", "active_calls"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("health body missing %q: %s", want, body)
		}
	}
}
