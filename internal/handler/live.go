package handler

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/live"
	"github.com/xenking/dormdash/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Clients only send control frames.
	maxMessageSize = 4 << 10
)

func newUpgrader(origins []string) websocket.Upgrader {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if anyOrigin || origin == "" {
				return true
			}
			return slices.ContainsFunc(origins, func(o string) bool {
				return strings.EqualFold(o, origin)
			})
		},
	}
}

// studentOrdersLive streams the student's active and past orders, sending a
// full snapshot on connect and after every change.
func (h *Handler) studentOrdersLive(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id := s.AccountID
	sub := live.Subscribe(h.broker, live.StudentTopic(id), func(ctx context.Context) (studentOrdersResponse, error) {
		orders, err := h.orders.StudentOrders(ctx, id)
		if err != nil {
			return studentOrdersResponse{}, err
		}
		return toStudentOrders(order.ClassifyStudent(orders)), nil
	})
	stream(h, w, r, sub)
}

// vendorOrdersLive streams the vendor's kitchen board.
func (h *Handler) vendorOrdersLive(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id := s.AccountID
	sub := live.Subscribe(h.broker, live.VendorTopic(id), func(ctx context.Context) (vendorOrdersResponse, error) {
		orders, err := h.orders.VendorOrders(ctx, id)
		if err != nil {
			return vendorOrdersResponse{}, err
		}
		return toVendorOrders(order.ClassifyVendor(orders)), nil
	})
	stream(h, w, r, sub)
}

// stream upgrades the request and writes every snapshot of sub as a JSON
// text message until the client goes away or the request context ends.
// The subscription is closed on return.
func stream[T any](h *Handler, w http.ResponseWriter, r *http.Request, sub *live.Subscription[T]) {
	defer sub.Close()

	lg := zctx.From(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		lg.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go readPump(conn, cancel)
	go pingPump(ctx, conn, cancel)

	for snapshot, err := range sub.Seq(ctx) {
		if err != nil {
			lg.Warn("Live snapshot failed", zap.Error(err))
			closeWith(conn, websocket.CloseInternalServerErr, "snapshot failed")
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snapshot); err != nil {
			lg.Debug("Live write failed", zap.Error(err))
			return
		}
	}
	closeWith(conn, websocket.CloseGoingAway, "")
}

// readPump discards client frames so that pongs and close frames are
// processed, and cancels the stream once the connection fails.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// pingPump uses WriteControl, which may run concurrently with WriteJSON.
func pingPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cancel()
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
