package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const deepgramLiveURL = "wss://api.deepgram.com/v1/listen"

// keepAlivePeriod keeps the Deepgram socket open through caller silence.
const keepAlivePeriod = 5 * time.Second

// Deepgram implements Transcriber against the Deepgram live API.
type Deepgram struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// DeepgramOption configures the Deepgram transcriber.
type DeepgramOption func(*Deepgram)

// WithDeepgramURL overrides the live endpoint (used in tests).
func WithDeepgramURL(u string) DeepgramOption {
	return func(d *Deepgram) { d.baseURL = u }
}

// WithDeepgramLogger sets the structured logger.
func WithDeepgramLogger(logger *slog.Logger) DeepgramOption {
	return func(d *Deepgram) { d.logger = logger }
}

// NewDeepgram creates a Deepgram live transcriber.
func NewDeepgram(apiKey string, opts ...DeepgramOption) (*Deepgram, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	d := &Deepgram{
		apiKey:  apiKey,
		baseURL: deepgramLiveURL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "stt.deepgram")
	return d, nil
}

// Start opens a live transcription stream.
func (d *Deepgram) Start(ctx context.Context, cfg StreamConfig) (Stream, error) {
	q := url.Values{}
	q.Set("encoding", cfg.Encoding)
	q.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	q.Set("channels", fmt.Sprintf("%d", max(cfg.Channels, 1)))
	q.Set("interim_results", "true")
	if cfg.Model != "" {
		q.Set("model", cfg.Model)
	}
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, d.baseURL+"?"+q.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "live handshake rejected"}
		}
		return nil, fmt.Errorf("stt: dial deepgram: %w", err)
	}

	s := &deepgramStream{
		conn:    conn,
		results: make(chan Result, 32),
		done:    make(chan struct{}),
		logger:  d.logger,
	}
	go s.readLoop()
	go s.keepAlive()

	return s, nil
}

// Close releases provider resources. Streams are closed individually.
func (d *Deepgram) Close() error {
	return nil
}

// deepgramStream is one live websocket session.
type deepgramStream struct {
	conn    *websocket.Conn
	results chan Result
	logger  *slog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// deepgramMessage is the subset of the live API response we consume.
type deepgramMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// SendAudio forwards one encoded frame.
func (s *deepgramStream) SendAudio(audio []byte) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Results returns the transcript result channel.
func (s *deepgramStream) Results() <-chan Result {
	return s.results
}

// Close signals end of audio and tears the socket down.
func (s *deepgramStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}

func (s *deepgramStream) readLoop() {
	defer close(s.results)
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.results <- Result{Err: fmt.Errorf("stt: read: %w", err)}
			}
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("unparseable transcript message", "error", err)
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}

		alt := msg.Channel.Alternatives[0]
		res := Result{
			Text:         alt.Transcript,
			Confidence:   alt.Confidence,
			SegmentFinal: msg.IsFinal,
			SpeechFinal:  msg.SpeechFinal,
		}
		select {
		case s.results <- res:
		case <-s.done:
			return
		}
	}
}

func (s *deepgramStream) keepAlive() {
	ticker := time.NewTicker(keepAlivePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Verify Deepgram implements Transcriber at compile time.
var _ Transcriber = (*Deepgram)(nil)
