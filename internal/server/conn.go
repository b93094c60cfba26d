// internal/server/conn.go
//
// WebSocket connection adapter. Each accepted socket gets one read loop
// feeding the runtime and one write pump draining an outbound buffer, so the
// runtime's loop never blocks on a slow client.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gamehub/internal/protocol"
)

const (
	outboundBufferSize = 64
	writeTimeout       = 5 * time.Second
	pingInterval       = 30 * time.Second
	pingTimeout        = 15 * time.Second
)

var errOutboundFull = errors.New("outbound buffer full")

// wsConn adapts a websocket connection to the runtime's WriteHalf. Writes
// are queued; the pump owns the actual socket writes.
type wsConn struct {
	c      *websocket.Conn
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		c:      c,
		out:    make(chan []byte, outboundBufferSize),
		closed: make(chan struct{}),
	}
}

// Write queues one text frame without blocking. A full buffer means the
// client stopped draining; the frame is dropped and the pump's next failed
// write or ping tears the connection down.
func (w *wsConn) Write(_ context.Context, data []byte) error {
	select {
	case <-w.closed:
		return errors.New("connection closed")
	default:
	}
	select {
	case w.out <- data:
		return nil
	default:
		return errOutboundFull
	}
}

// Close tears the socket down with a reason. Safe to call more than once.
func (w *wsConn) Close(reason string) error {
	var err error
	w.once.Do(func() {
		close(w.closed)
		err = w.c.Close(websocket.StatusPolicyViolation, reason)
	})
	return err
}

func (w *wsConn) writePump(ctx context.Context, logger *logrus.Logger, connID uuid.UUID) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer w.c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closed:
			return
		case data := <-w.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := w.c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Debugf("connection %s: write failed: %v", connID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := w.c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debugf("connection %s: ping failed, assuming disconnect: %v", connID, err)
				return
			}
		}
	}
}

// WSHandler upgrades the HTTP connection and runs the read loop, feeding
// decoded frames to the runtime until the socket closes.
func WSHandler(logger *logrus.Logger, rt *Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("websocket accept from %s: %v", r.RemoteAddr, err)
			return
		}

		connID := uuid.New()
		logger.Infof("connection %s established from %s", connID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		wc := newWSConn(c)
		go wc.writePump(ctx, logger, connID)

		if err := rt.Connect(ctx, connID, wc); err != nil {
			c.Close(websocket.StatusTryAgainLater, "server unavailable")
			return
		}
		// Paired with the Connect above; delivered even when the request
		// context is already gone.
		defer func() {
			dctx, dcancel := context.WithTimeout(context.Background(), writeTimeout)
			defer dcancel()
			if err := rt.Disconnect(dctx, connID); err != nil {
				logger.Errorf("connection %s: delivering disconnect: %v", connID, err)
			}
		}()
		defer c.Close(websocket.StatusInternalError, "handler exit")

		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				status := websocket.CloseStatus(err)
				if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
					logger.Infof("connection %s closed", connID)
				} else {
					logger.Debugf("connection %s: read: %v (close status %d)", connID, err, status)
				}
				return
			}
			if typ != websocket.MessageText {
				logger.Warnf("connection %s: ignoring non-text frame", connID)
				continue
			}

			m, derr := protocol.DecodeClientMessage(data)
			if derr != nil {
				if err := rt.DeliverInvalid(ctx, connID, derr); err != nil {
					return
				}
				continue
			}
			if err := rt.Deliver(ctx, connID, m); err != nil {
				return
			}
		}
	}
}
