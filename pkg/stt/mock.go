package stt

import (
	"context"
	"sync"
)

// MockStream implements Stream for testing. Tests feed results with Push
// and inspect captured audio with Sent.
type MockStream struct {
	results chan Result

	mu     sync.Mutex
	sent   [][]byte
	closed bool

	closeOnce sync.Once
}

// NewMockStream creates a mock stream.
func NewMockStream() *MockStream {
	return &MockStream{results: make(chan Result, 32)}
}

// SendAudio records the frame.
func (m *MockStream) SendAudio(audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStreamClosed
	}
	buf := make([]byte, len(audio))
	copy(buf, audio)
	m.sent = append(m.sent, buf)
	return nil
}

// Results returns the result channel.
func (m *MockStream) Results() <-chan Result {
	return m.results
}

// Close marks the stream closed and closes the result channel.
func (m *MockStream) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.results)
	})
	return nil
}

// Push feeds a result to the consumer side.
func (m *MockStream) Push(res Result) {
	m.results <- res
}

// Sent returns the audio frames captured so far.
func (m *MockStream) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close was called.
func (m *MockStream) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockTranscriber implements Transcriber for testing.
type MockTranscriber struct {
	// StartFunc is called when Start is invoked.
	// If nil, returns a fresh MockStream.
	StartFunc func(ctx context.Context, cfg StreamConfig) (Stream, error)

	mu      sync.Mutex
	streams []*MockStream
}

// NewMockTranscriber creates a mock transcriber.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{}
}

// Start returns a new mock stream (or delegates to StartFunc).
func (m *MockTranscriber) Start(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, cfg)
	}
	s := NewMockStream()
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

// Close implements Transcriber.
func (m *MockTranscriber) Close() error {
	return nil
}

// Last returns the most recently started mock stream, or nil.
func (m *MockTranscriber) Last() *MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// Verify mocks implement the interfaces at compile time.
var (
	_ Transcriber = (*MockTranscriber)(nil)
	_ Stream      = (*MockStream)(nil)
)
