package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/pkg/log"
)

const (
	// pingInterval keeps intermediaries from idling the connection out.
	pingInterval = 30 * time.Second

	writeTimeout = 10 * time.Second

	eventBuffer = 32
)

// liveChannel owns one WebSocket connection: a read loop decoding
// frames into events and a ping loop keeping the link warm. Incoming
// pings are answered by the transport; any received frame or pong
// extends the read deadline by the configured window.
type liveChannel struct {
	conn   *websocket.Conn
	window time.Duration
	logger log.Logger

	events  chan domain.SyncEvent
	done    chan struct{} // closed when the read loop exits
	closing chan struct{} // closed when Close is invoked

	closeOnce sync.Once
	wg        sync.WaitGroup

	mu     sync.Mutex
	err    error
	closed bool
}

func newLiveChannel(conn *websocket.Conn, window time.Duration, logger log.Logger) *liveChannel {
	lc := &liveChannel{
		conn:    conn,
		window:  window,
		logger:  logger,
		events:  make(chan domain.SyncEvent, eventBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(window))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(window))
	})

	lc.wg.Add(2)
	go lc.readLoop()
	go lc.pingLoop()
	return lc
}

// Events returns the decoded event stream. The channel closes when
// the connection drops or Close is called.
func (lc *liveChannel) Events() <-chan domain.SyncEvent { return lc.events }

// Err reports why the event stream ended. It is nil for a deliberate
// Close and for a clean shutdown by the server.
func (lc *liveChannel) Err() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.err
}

// Close tears the connection down and waits for both loops to exit.
func (lc *liveChannel) Close() error {
	var err error
	lc.closeOnce.Do(func() {
		lc.mu.Lock()
		lc.closed = true
		lc.mu.Unlock()
		close(lc.closing)

		deadline := time.Now().Add(writeTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		lc.conn.WriteControl(websocket.CloseMessage, msg, deadline)

		err = lc.conn.Close()
		lc.wg.Wait()
	})
	return err
}

func (lc *liveChannel) readLoop() {
	defer lc.wg.Done()
	defer close(lc.events)
	defer close(lc.done)

	for {
		_, data, err := lc.conn.ReadMessage()
		if err != nil {
			lc.recordReadError(err)
			return
		}
		lc.conn.SetReadDeadline(time.Now().Add(lc.window))

		var ev domain.SyncEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			lc.logger.Warn("malformed channel frame", log.Err(err))
			continue
		}
		ev.ReceivedAt = time.Now()

		select {
		case lc.events <- ev:
		case <-lc.closing:
			return
		}
	}
}

// recordReadError keeps the first failure cause. Deliberate local
// closes and clean server closes are not failures.
func (lc *liveChannel) recordReadError(err error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed || lc.err != nil {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	lc.err = err
}

func (lc *liveChannel) pingLoop() {
	defer lc.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lc.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := lc.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				lc.logger.Debug("channel ping failed", log.Err(err))
				return
			}
		}
	}
}
