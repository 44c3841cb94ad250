package tts

import (
	"io"
	"sync"
)

// streamChunkSize bounds chunk sizes handed to playout. 1600 bytes is
// 200ms of μ-law at 8kHz.
const streamChunkSize = 1600

// httpStream adapts a chunked HTTP response body to AudioStream.
type httpStream struct {
	body   io.ReadCloser
	format AudioFormat
	cancel func()

	mu     sync.Mutex
	closed bool
}

// Read returns the next audio chunk, or nil at end of stream.
func (s *httpStream) Read() ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	s.mu.Unlock()

	buf := make([]byte, streamChunkSize)
	n, err := s.body.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte{}, nil
}

// Close stops the stream and releases the connection.
func (s *httpStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return s.body.Close()
}

// Format returns the audio format metadata.
func (s *httpStream) Format() AudioFormat {
	return s.format
}

// bufferStream serves a fixed buffer in bounded chunks. Used by the mock
// and by providers that received a complete result.
type bufferStream struct {
	data   []byte
	format AudioFormat

	mu     sync.Mutex
	pos    int
	closed bool
}

func (s *bufferStream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.pos >= len(s.data) {
		return nil, nil
	}
	end := s.pos + streamChunkSize
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.pos:end]
	s.pos = end
	return chunk, nil
}

func (s *bufferStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *bufferStream) Format() AudioFormat {
	return s.format
}
