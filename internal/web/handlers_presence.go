package web

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"golang.org/x/net/websocket"

	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

// tokenWait is how long a connection without ?token= has to send its
// token message.
const tokenWait = 10 * time.Second

// presenceEvent is the only message the server sends on /ws.
type presenceEvent struct {
	Event string  `json:"event"`
	Data  []int64 `json:"data"`
}

type tokenMessage struct {
	Token string `json:"token"`
}

// handlePresence upgrades to a websocket and streams the ids of the users
// online. The client authenticates with ?token= or with a first message
// {"token": "..."}.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	srv := websocket.Server{
		Handshake: s.checkOrigin,
		Handler:   s.presenceConn,
	}
	srv.ServeHTTP(w, r)
}

func (s *Server) checkOrigin(cfg *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.cfg.Server.AllowedOrigins, "*") ||
		slices.Contains(s.cfg.Server.AllowedOrigins, origin) {
		if o, err := url.Parse(origin); err == nil && origin != "" {
			cfg.Origin = o
		}
		return nil
	}
	return fmt.Errorf("origin %q not allowed", origin)
}

func (s *Server) presenceConn(ws *websocket.Conn) {
	r := ws.Request()
	ctx := r.Context()
	log := logging.FromContext(ctx)

	token := r.URL.Query().Get("token")
	if token == "" {
		var msg tokenMessage
		_ = ws.SetReadDeadline(time.Now().Add(tokenWait))
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			log.Warn("presence: no token received", "error", err)
			return
		}
		_ = ws.SetReadDeadline(time.Time{})
		token = msg.Token
	}

	caller, err := s.auth.Verify(ctx, token)
	if err != nil {
		log.Warn("presence: authentication failed", "error", err)
		return
	}
	log = log.With("user_id", caller.ID, "user", caller.Login)

	leave := s.presence.Join(caller.ID)
	defer leave()
	updates, cancel := s.presence.Subscribe()
	defer cancel()

	log.Info("presence connected")
	defer log.Info("presence disconnected")

	// Client messages are ignored; a read error means the peer went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard string
		for websocket.Message.Receive(ws, &discard) == nil {
		}
	}()

	for {
		select {
		case ids, ok := <-updates:
			if !ok {
				return
			}
			if ids == nil {
				ids = []int64{}
			}
			if err := websocket.JSON.Send(ws, presenceEvent{Event: "update_online_users", Data: ids}); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
