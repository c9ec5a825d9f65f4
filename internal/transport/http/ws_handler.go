package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizgenius-service/internal/app"
	"quizgenius-service/internal/auth"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades the request and hosts one quiz session for the lifetime of the socket.
// Every state transition, timer ticks included, is pushed as a "state" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		writeMessage(w, http.StatusBadRequest, "missing quizId")
		return
	}
	principal := auth.PrincipalFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	player := h.service.StartSession(r.Context(), quizID, principal)
	defer h.service.EndSession(player.ID())

	updates, cancel := player.Subscribe()
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
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
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "state", Payload: newSessionView(player.ID(), update)}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.handle(r, player, inbound); !ok {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle applies one inbound command. The resulting state reaches the client through the
// subscription; only failures produce a direct reply.
func (h *WSHandler) handle(r *http.Request, player *app.Player, in inboundMessage) (outboundMessage, bool) {
	var err error
	switch in.Type {
	case "select":
		var payload selectRequest
		if jsonErr := json.Unmarshal(in.Payload, &payload); jsonErr != nil {
			return errorMessage("invalid select payload"), false
		}
		_, err = player.Select(r.Context(), payload.Option)
	case "next":
		_, err = player.Advance(r.Context())
	case "back":
		_, err = player.Back(r.Context())
	case "retake":
		_, err = player.Retake(r.Context())
	default:
		return errorMessage("unsupported message type"), false
	}
	if err != nil {
		return errorMessage(err.Error()), false
	}
	return outboundMessage{}, true
}

func errorMessage(msg string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
}
