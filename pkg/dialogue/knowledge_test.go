package dialogue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/switchboard-ai/switchboard/pkg/dialogue"
)

func TestHTTPKnowledgeLookup(t *testing.T) {
	t.Run("match returns context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/lookup" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Authorization = %q", got)
			}

			var req struct {
				Query string `json:"query"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.Query != "what are your hours" {
				t.Errorf("query = %q", req.Query)
			}

			json.NewEncoder(w).Encode(map[string]string{"context": "Open 9 to 5."})
		}))
		defer srv.Close()

		k := dialogue.NewHTTPKnowledge(srv.URL, "test-key")
		got, err := k.Lookup(context.Background(), "what are your hours")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Open 9 to 5." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("404 is a clean no-match", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		k := dialogue.NewHTTPKnowledge(srv.URL, "")
		got, err := k.Lookup(context.Background(), "anything")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty context, got %q", got)
		}
	})

	t.Run("server error surfaces status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		k := dialogue.NewHTTPKnowledge(srv.URL, "")
		_, err := k.Lookup(context.Background(), "anything")

		var apiErr *dialogue.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.HTTPStatus() != http.StatusInternalServerError {
			t.Errorf("status = %d", apiErr.HTTPStatus())
		}
	})
}
