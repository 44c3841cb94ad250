package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/switchboard-ai/switchboard/internal/httpc"
)

// HTTPKnowledge implements Knowledge against a REST lookup service. The
// service answers POST {base}/lookup with the best matching context
// snippet, or 404 when nothing matches.
type HTTPKnowledge struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// KnowledgeOption configures the HTTP knowledge client.
type KnowledgeOption func(*HTTPKnowledge)

// WithKnowledgeHTTPClient sets the HTTP client used for lookups.
func WithKnowledgeHTTPClient(client *http.Client) KnowledgeOption {
	return func(k *HTTPKnowledge) { k.client = client }
}

// WithKnowledgeLogger sets the structured logger.
func WithKnowledgeLogger(logger *slog.Logger) KnowledgeOption {
	return func(k *HTTPKnowledge) { k.logger = logger }
}

// NewHTTPKnowledge creates a knowledge client for the given service URL.
func NewHTTPKnowledge(baseURL, apiKey string, opts ...KnowledgeOption) *HTTPKnowledge {
	k := &HTTPKnowledge{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpc.Client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With("component", "dialogue.knowledge")
	return k
}

type knowledgeRequest struct {
	Query string `json:"query"`
}

type knowledgeResponse struct {
	Context string `json:"context"`
}

// Lookup queries the knowledge service. A 404 or an empty context field
// is a no-match, reported as ("", nil).
func (k *HTTPKnowledge) Lookup(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(knowledgeRequest{Query: query})
	if err != nil {
		return "", fmt.Errorf("dialogue: encode lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/lookup", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("dialogue: build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if k.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+k.apiKey)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dialogue: lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var out knowledgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("dialogue: decode lookup: %w", err)
	}
	return strings.TrimSpace(out.Context), nil
}

// Verify HTTPKnowledge implements Knowledge at compile time.
var _ Knowledge = (*HTTPKnowledge)(nil)
