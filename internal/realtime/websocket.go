// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
)

// WebSocketConfig configures a WebSocketTransport.
type WebSocketConfig struct {
	URL   string
	Token string

	// HandshakeTimeout bounds each dial. Default 10s.
	HandshakeTimeout time.Duration

	// ReconnectAttempts bounds dials per connect or reconnect cycle,
	// the first attempt included. Default 5.
	ReconnectAttempts int

	// InitialBackoff and MaxBackoff shape the delay between attempts.
	// Defaults 1s and 32s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// PingInterval is how often a ping is sent; PongWait is how long the
	// connection may stay silent. Defaults 30s and 60s.
	PingInterval time.Duration
	PongWait     time.Duration
}

func (c *WebSocketConfig) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReconnectAttempts < 1 {
		c.ReconnectAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 32 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
}

type ackResult struct {
	frame models.Frame
	err   error
}

// WebSocketTransport is a Transport over a gorilla/websocket connection.
type WebSocketTransport struct {
	cfg    WebSocketConfig
	dialer websocket.Dialer

	// dialMu serializes Connect and background reconnection.
	dialMu sync.Mutex

	// connMu guards conn and listening.
	conn      *websocket.Conn
	listening bool
	connMu    sync.RWMutex

	// writeMu serializes data frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	pending   map[string]chan ackResult
	pendingMu sync.Mutex

	handler     EventHandler
	onReconnect func()
	handlerMu   sync.RWMutex

	// everConnected is guarded by dialMu.
	everConnected bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	pingOnce sync.Once
	wg       sync.WaitGroup
}

// NewWebSocketTransport creates a transport. Nothing is dialed until Connect.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketTransport{
		cfg: cfg,
		dialer: websocket.Dialer{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
		},
		pending:  make(map[string]chan ackResult),
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

// SetHandler registers the receiver for server events.
func (t *WebSocketTransport) SetHandler(h EventHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.handler = h
}

// SetReconnectHandler registers h to run after every connection but the first.
func (t *WebSocketTransport) SetReconnectHandler(h func()) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.onReconnect = h
}

// markConnected is called with dialMu held after conn was installed.
func (t *WebSocketTransport) markConnected() {
	if !t.everConnected {
		t.everConnected = true
		return
	}
	t.handlerMu.RLock()
	h := t.onReconnect
	t.handlerMu.RUnlock()
	if h != nil {
		go h()
	}
}

// Connect dials the server, retrying up to the configured attempt count.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.dialMu.Lock()
	defer t.dialMu.Unlock()

	if t.stopped() {
		return ErrConnectionClosed
	}
	if t.Connected() {
		return nil
	}

	conn, err := t.dialWithRetry(ctx, false)
	if err != nil {
		return err
	}
	if !t.install(conn) {
		return ErrConnectionClosed
	}
	t.markConnected()
	logging.Info().Str("url", t.cfg.URL).Msg("[realtime] Connected")
	return nil
}

func (t *WebSocketTransport) dialWithRetry(ctx context.Context, reconnecting bool) (*websocket.Conn, error) {
	backoff := t.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= t.cfg.ReconnectAttempts; attempt++ {
		if reconnecting {
			metrics.RealtimeReconnectAttempts.Inc()
		}

		conn, err := t.dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		metrics.RecordRealtimeError("dial")

		if attempt == t.cfg.ReconnectAttempts {
			break
		}
		logging.Warn().Err(err).
			Int("attempt", attempt).
			Dur("delay", backoff).
			Msg("[realtime] Dial failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.stopChan:
			return nil, ErrConnectionClosed
		}
		backoff *= 2
		if backoff > t.cfg.MaxBackoff {
			backoff = t.cfg.MaxBackoff
		}
	}

	return nil, fmt.Errorf("realtime: dial failed after %d attempts: %w", t.cfg.ReconnectAttempts, lastErr)
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, t.cfg.HandshakeTimeout)
	defer cancel()

	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	conn, resp, err := t.dialer.DialContext(dctx, t.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// install makes conn the live connection and starts the background loops.
// It reports false, closing conn, when the transport was closed meanwhile.
func (t *WebSocketTransport) install(conn *websocket.Conn) bool {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.stopped() {
		_ = conn.Close()
		return false
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	})

	t.conn = conn
	metrics.SetRealtimeConnected(true)

	// Both loops are started under connMu so that wg.Add is ordered
	// before the wg.Wait in Close.
	if !t.listening {
		t.listening = true
		t.wg.Add(1)
		go t.listen()
	}
	t.pingOnce.Do(func() {
		t.wg.Add(1)
		go t.pingLoop()
	})
	return true
}

func (t *WebSocketTransport) current() *websocket.Conn {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.conn
}

func (t *WebSocketTransport) stopped() bool {
	select {
	case <-t.stopChan:
		return true
	default:
		return false
	}
}

// listen reads frames until the transport is closed or reconnection gives up.
func (t *WebSocketTransport) listen() {
	defer t.wg.Done()

	for {
		if t.stopped() {
			return
		}

		conn := t.current()
		if conn == nil {
			if t.reconnect() {
				continue
			}
			t.connMu.Lock()
			if t.conn == nil || t.stopped() {
				t.listening = false
				t.connMu.Unlock()
				return
			}
			t.connMu.Unlock()
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if t.stopped() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("[realtime] Connection closed by server")
			} else {
				logging.Warn().Err(err).Msg("[realtime] Read error")
			}
			metrics.RecordRealtimeError("read")
			t.dropConnection(conn)
			continue
		}

		t.handleFrame(data)
	}
}

func (t *WebSocketTransport) reconnect() bool {
	t.dialMu.Lock()
	defer t.dialMu.Unlock()

	if t.current() != nil {
		return true
	}

	logging.Info().Msg("[realtime] Connection lost, reconnecting...")
	conn, err := t.dialWithRetry(t.ctx, true)
	if err != nil {
		if !t.stopped() {
			logging.Error().Err(err).Msg("[realtime] Reconnection failed, giving up")
		}
		return false
	}
	if !t.install(conn) {
		return false
	}
	t.markConnected()
	return true
}

func (t *WebSocketTransport) handleFrame(data []byte) {
	var frame models.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.RecordRealtimeError("decode")
		logging.Warn().Err(err).Msg("[realtime] Failed to parse frame")
		return
	}

	if frame.IsAck() {
		t.pendingMu.Lock()
		ch, ok := t.pending[frame.ReplyTo]
		delete(t.pending, frame.ReplyTo)
		metrics.RealtimePendingAcks.Set(float64(len(t.pending)))
		t.pendingMu.Unlock()

		if ok {
			ch <- ackResult{frame: frame}
		} else {
			logging.Debug().Str("reply_to", frame.ReplyTo).Msg("[realtime] Ack for unknown request")
		}
		return
	}

	metrics.RecordRealtimeEvent("in", frame.Event)

	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()
	if h != nil {
		h(frame.Event, frame.Data)
	}
}

func (t *WebSocketTransport) pingLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			conn := t.current()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logging.Debug().Err(err).Msg("[realtime] Ping failed")
			}
		}
	}
}

// dropConnection discards conn after a read failure.
func (t *WebSocketTransport) dropConnection(conn *websocket.Conn) {
	t.connMu.Lock()
	if t.conn == conn {
		t.conn = nil
		_ = conn.Close()
	}
	t.connMu.Unlock()

	metrics.SetRealtimeConnected(false)
	t.failPending(ErrConnectionClosed)
}

// closeConnection sends a normal closure and closes the live connection.
func (t *WebSocketTransport) closeConnection() {
	t.connMu.Lock()
	if t.conn != nil {
		if err := t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		); err != nil {
			logging.Debug().Err(err).Msg("[realtime] Failed to send close message")
		}
		if err := t.conn.Close(); err != nil {
			logging.Debug().Err(err).Msg("[realtime] Failed to close connection")
		}
		t.conn = nil
	}
	t.connMu.Unlock()

	metrics.SetRealtimeConnected(false)
	t.failPending(ErrConnectionClosed)
}

func (t *WebSocketTransport) failPending(err error) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()

	for id, ch := range t.pending {
		ch <- ackResult{err: err}
		delete(t.pending, id)
	}
	metrics.RealtimePendingAcks.Set(0)
}

func (t *WebSocketTransport) removePending(id string) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	delete(t.pending, id)
	metrics.RealtimePendingAcks.Set(float64(len(t.pending)))
}

func newFrame(event string, payload interface{}) (models.Frame, error) {
	frame := models.Frame{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return frame, fmt.Errorf("encode %s payload: %w", event, err)
		}
		frame.Data = data
	}
	return frame, nil
}

func (t *WebSocketTransport) write(frame models.Frame) error {
	conn := t.current()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.RecordRealtimeError("write")
		return fmt.Errorf("realtime: write %s: %w", frame.Event, err)
	}
	metrics.RecordRealtimeEvent("out", frame.Event)
	return nil
}

// Emit sends event without waiting for an answer.
func (t *WebSocketTransport) Emit(ctx context.Context, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := newFrame(event, payload)
	if err != nil {
		return err
	}
	return t.write(frame)
}

// Request sends event and waits for its acknowledgment. An ack carrying an
// error is returned as *RemoteError.
func (t *WebSocketTransport) Request(ctx context.Context, event string, payload, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := newFrame(event, payload)
	if err != nil {
		return err
	}

	ch := make(chan ackResult, 1)
	t.pendingMu.Lock()
	t.pending[frame.ID] = ch
	metrics.RealtimePendingAcks.Set(float64(len(t.pending)))
	t.pendingMu.Unlock()

	if err := t.write(frame); err != nil {
		t.removePending(frame.ID)
		return err
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if res.frame.Error != "" {
			return &RemoteError{Event: event, Message: res.frame.Error}
		}
		if reply != nil && len(res.frame.Data) > 0 {
			if err := json.Unmarshal(res.frame.Data, reply); err != nil {
				return fmt.Errorf("decode %s ack: %w", event, err)
			}
		}
		return nil
	case <-ctx.Done():
		t.removePending(frame.ID)
		return ctx.Err()
	}
}

// Connected reports whether a connection is live.
func (t *WebSocketTransport) Connected() bool {
	return t.current() != nil
}

// Close stops the background loops and closes the connection. Outstanding
// requests fail with ErrConnectionClosed. It must not be called from the
// event handler.
func (t *WebSocketTransport) Close() error {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.cancel()
		t.closeConnection()
		logging.Info().Msg("[realtime] Transport closed")
	})
	t.wg.Wait()
	return nil
}
