package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ecoquest-service/internal/domain"
)

const writeWait = 10 * time.Second

// EventSource hands out per-user gamification event subscriptions.
type EventSource interface {
	Subscribe(userID string) (<-chan domain.Event, func())
}

// WSHandler streams a user's gamification events over a websocket.
type WSHandler struct {
	auth     *JWTAuth
	events   EventSource
	upgrader websocket.Upgrader
}

func NewWSHandler(auth *JWTAuth, events EventSource) *WSHandler {
	return &WSHandler{
		auth:   auth,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS authenticates the ?token= query parameter, upgrades, and forwards events until the client leaves.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := h.auth.Parse(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.events.Subscribe(claims.UserID)
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: string(event.Type), Payload: event}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage{Type: "connected", Payload: map[string]string{"userId": claims.UserID}}

	// client messages are ignored; reading detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
