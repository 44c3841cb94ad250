package telephony

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// ErrTransportClosed indicates the telephony channel dropped. It is the only
// transport error that forces a session into Ending.
var ErrTransportClosed = errors.New("telephony: transport closed")

const (
	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound messages. Media frames are small
	// (20ms of base64 μ-law) but allow headroom for control events.
	maxMessageSize = 64 * 1024

	// MaxMediaChunk bounds raw audio bytes per outbound media message,
	// keeping provider-side buffering shallow. 3200 bytes is 400ms of
	// μ-law at 8kHz.
	MaxMediaChunk = 3200
)

// Conn wraps one provider WebSocket connection. All writes go through a
// single pump goroutine so the session, playout, and ping paths never race
// on the socket.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	mu       sync.RWMutex
	streamID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn wraps an accepted WebSocket connection and starts its write pump.
func NewConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		ws:     ws,
		logger: logger.With("component", "telephony.conn"),
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	go c.writePump()
	return c
}

// SetStreamID records the provider's stream identifier once known.
func (c *Conn) SetStreamID(id string) {
	c.mu.Lock()
	c.streamID = id
	c.mu.Unlock()
}

// StreamID returns the provider's stream identifier.
func (c *Conn) StreamID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamID
}

// ReadLoop reads provider messages and hands them to handle until the
// connection closes. It always returns ErrTransportClosed (possibly wrapped)
// so callers can treat any exit uniformly.
func (c *Conn) ReadLoop(handle func(*Message)) error {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrTransportClosed
			}
			return errors.Join(ErrTransportClosed, err)
		}

		msg, err := ParseMessage(data)
		if err != nil {
			c.logger.Warn("unparseable transport message", "error", err)
			continue
		}
		handle(msg)
	}
}

// SendAudio streams encoded audio to the caller, split into bounded chunks.
func (c *Conn) SendAudio(audio []byte) error {
	for len(audio) > 0 {
		n := len(audio)
		if n > MaxMediaChunk {
			n = MaxMediaChunk
		}
		if err := c.enqueue(NewMediaMessage(c.StreamID(), audio[:n])); err != nil {
			return err
		}
		audio = audio[n:]
	}
	return nil
}

// SendMark asks the provider to echo a marker once all audio queued before
// it has played out.
func (c *Conn) SendMark(name string) error {
	return c.enqueue(NewMarkMessage(c.StreamID(), name))
}

// SendClear tells the provider to discard its buffered outbound audio.
// Issued on barge-in so the interrupted utterance stops promptly.
func (c *Conn) SendClear() error {
	return c.enqueue(NewClearMessage(c.StreamID()))
}

// Close shuts the connection down. Safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
	return nil
}

// Done is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) enqueue(msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrTransportClosed
	case c.send <- data:
		return nil
	default:
		// A full send buffer means the provider stopped draining.
		return ErrTransportClosed
	}
}

// writePump is the only goroutine that writes to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("transport write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
