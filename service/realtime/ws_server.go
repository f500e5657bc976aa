package realtime

import (
	"net/http"
	"time"

	"CampusLink/logger"
	errs "CampusLink/tools/errs"
	"CampusLink/tools/ids"
	"CampusLink/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// origin policy is enforced by the gin middleware in front of this
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// HandleWS upgrades the request and drives one connection lifecycle:
// conn_ack, auth within the handshake budget, then the read loop.
func (s *Server) HandleWS(c *gin.Context) {
	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("ws: upgrade from %s: %v", c.ClientIP(), err)
		return
	}

	// pre-auth socket id, for log correlation until the registry assigns
	// the authoritative conn id
	sockID := ids.GenerateString()
	if err := s.writeDirect(sock, EventConnAck, &ConnAckPayload{
		ConnID:         sockID,
		NodeID:         s.opts.NodeID,
		PingIntervalMS: s.opts.PingInterval.Milliseconds(),
		AuthTimeoutMS:  s.opts.AuthTimeout.Milliseconds(),
	}); err != nil {
		closeQuiet(sock)
		return
	}

	w, err := s.awaitAuth(sock)
	if err != nil {
		logger.Warnf("ws: sock %s auth failed: %v", sockID, err)
		_ = s.writeDirect(sock, EventError, &ErrorPayload{Code: errs.CodeOf(err), Message: errs.MsgOf(err)})
		closeQuiet(sock)
		return
	}

	_ = sock.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	sock.SetPongHandler(func(string) error {
		s.registry.Heartbeat(w.ID)
		return sock.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	safe.Go(func() { s.writePump(sock, w) })
	s.readLoop(sock, w)
}

// awaitAuth reads exactly one frame under the auth deadline and requires it
// to be an auth event.
func (s *Server) awaitAuth(sock *websocket.Conn) (*WsConn, error) {
	if err := sock.SetReadDeadline(time.Now().Add(s.opts.AuthTimeout)); err != nil {
		return nil, errs.Wrap(err)
	}
	_, raw, err := sock.ReadMessage()
	if err != nil {
		return nil, errs.ErrAuthentication.WithDetail("no auth frame before deadline")
	}
	f, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	if f.Type != EventAuth {
		return nil, errs.ErrAuthentication.WithDetail("first frame must be auth")
	}
	p, err := payloadOf[AuthPayload](f)
	if err != nil {
		return nil, err
	}
	return s.Authenticate(sock, p)
}

func (s *Server) readLoop(sock *websocket.Conn, w *WsConn) {
	defer func() {
		s.disconnect(w)
		closeQuiet(sock)
	}()
	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("ws: conn %s read: %v", w.ID, err)
			}
			return
		}
		s.registry.Heartbeat(w.ID)
		_ = sock.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		s.HandleFrame(w, raw)
	}
}

// writePump drains the send queue onto the socket and keeps liveness probes
// flowing. It owns every write after auth; nothing else touches the socket.
func (s *Server) writePump(sock *websocket.Conn, w *WsConn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		closeQuiet(sock)
	}()
	for {
		select {
		case payload, ok := <-w.Send:
			if !ok {
				return
			}
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.Done():
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = sock.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// writeDirect is for the pre-auth phase only, before the connection has a
// registry handle and a write pump.
func (s *Server) writeDirect(sock *websocket.Conn, kind EventKind, payload any) error {
	raw, err := EncodeFrame(kind, payload)
	if err != nil {
		return err
	}
	_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
	return sock.WriteMessage(websocket.TextMessage, raw)
}

func closeQuiet(sock *websocket.Conn) {
	if sock != nil {
		_ = sock.Close()
	}
}
