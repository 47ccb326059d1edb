package standx

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Feed is the StandX stream client. It replays the auth frame and every
// subscription after a reconnect, so callers subscribe once and the feed
// survives connection drops.
type Feed struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	auth interface{}
	subs []interface{}
}

func NewFeed(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Feed {
	return &Feed{url: url, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	f.conn = conn
	return nil
}

// Authenticate registers the session token for private streams. The frame
// is sent immediately when connected and replayed on every reconnect,
// before any subscription.
func (f *Feed) Authenticate(ctx context.Context, token string) error {
	msg := map[string]any{"method": "auth", "token": token}
	f.mu.Lock()
	f.auth = msg
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	return writeJSON(ctx, conn, msg)
}

func (f *Feed) Subscribe(ctx context.Context, sub interface{}) error {
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	return writeJSON(ctx, conn, sub)
}

func (f *Feed) Run(ctx context.Context, handler func(json.RawMessage)) error {
	for {
		if err := f.ensureConnected(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if f.log != nil {
				f.log.Warn("ws connect failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.reconnectDelay):
			}
			continue
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			f.pingLoop(pingCtx)
		}()
		err := f.readLoop(ctx, handler)
		cancel()
		<-pingDone
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logReadLoopError(err)
			f.resetConn()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.reconnectDelay):
			}
			continue
		}
	}
}

func (f *Feed) ensureConnected(ctx context.Context) error {
	if err := f.Connect(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	conn := f.conn
	auth := f.auth
	subs := append([]interface{}(nil), f.subs...)
	f.mu.Unlock()
	if auth != nil {
		if err := writeJSON(ctx, conn, auth); err != nil {
			return err
		}
	}
	for _, sub := range subs {
		if err := writeJSON(ctx, conn, sub); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feed) readLoop(ctx context.Context, handler func(json.RawMessage)) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if handler != nil {
			handler(json.RawMessage(data))
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	f.mu.Lock()
	conn := f.conn
	interval := f.pingInterval
	f.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeJSON(ctx, conn, pingMessage); err != nil {
				return
			}
		}
	}
}

func (f *Feed) logReadLoopError(err error) {
	if f.log == nil {
		return
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			f.log.Info("ws read loop ended", zap.Int("status", int(closeErr.Code)), zap.String("reason", closeErr.Reason))
			return
		}
		f.log.Info("ws read loop ended", zap.Error(err))
		return
	}
	f.log.Warn("ws read loop ended", zap.Error(err))
}

func (f *Feed) resetConn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close(websocket.StatusNormalClosure, "reset")
		f.conn = nil
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

var pingMessage = map[string]any{"method": "ping"}
