package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"brandquiz-service/internal/app"
	"brandquiz-service/internal/domain"
	"github.com/gorilla/websocket"
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

type identifyPayload struct {
	Email string `json:"email"`
}

type consentPayload struct {
	Accepted bool `json:"accepted"`
}

type answerPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type sessionPayload struct {
	SessionID string       `json:"sessionId"`
	ClientID  string       `json:"clientId"`
	Category  string       `json:"category"`
	Level     int          `json:"level"`
	Phase     domain.Phase `json:"phase"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session
// per connection. Timer ticks and forced timeouts are pushed server to
// client through the session's event channel.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	levelRaw := r.URL.Query().Get("level")
	locale := r.URL.Query().Get("locale")
	if category == "" || levelRaw == "" {
		http.Error(w, "missing category or level", http.StatusBadRequest)
		return
	}
	level, err := strconv.Atoi(levelRaw)
	if err != nil {
		http.Error(w, "invalid level", http.StatusBadRequest)
		return
	}

	// First-time visitors get an id issued here; the client stores it and
	// presents it on later visits so progress and identity carry over.
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = h.service.NewClientID()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Open(r.Context(), clientID, category, level, locale)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
		return
	}
	defer h.service.Close(session)

	events, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

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
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{
		SessionID: session.ID,
		ClientID:  clientID,
		Category:  category,
		Level:     level,
		Phase:     session.Phase(),
	}}
	session.Begin()

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var actionErr error
		switch inbound.Type {
		case "identify":
			var payload identifyPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorOut("invalid identify payload")
				continue
			}
			actionErr = session.SubmitEmail(r.Context(), payload.Email)
		case "consent":
			var payload consentPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorOut("invalid consent payload")
				continue
			}
			status := domain.ConsentRefused
			if payload.Accepted {
				status = domain.ConsentAccepted
			}
			actionErr = h.service.SetConsent(r.Context(), clientID, status)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorOut("invalid answer payload")
				continue
			}
			actionErr = session.Answer(r.Context(), payload.OptionIndex)
		case "continue":
			actionErr = session.Continue(r.Context())
		case "retry":
			actionErr = session.Retry(r.Context())
		case "quit":
			break readLoop
		default:
			send <- errorOut("unsupported message type")
			continue
		}
		if actionErr != nil {
			send <- errorOut(errorMessage(actionErr))
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func errorOut(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// errorMessage maps domain errors to user-facing text. Anything unexpected
// stays generic; details go to the log, not the player.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrLevelNotFound):
		return "quiz not found"
	case errors.Is(err, domain.ErrInvalidEmail):
		return "invalid email address"
	case errors.Is(err, domain.ErrEmailAlreadyUsed):
		return "this email has already played this quiz"
	case errors.Is(err, domain.ErrWrongPhase):
		return "action not allowed right now"
	case errors.Is(err, domain.ErrOptionOutOfRange):
		return "unknown option"
	default:
		log.Printf("session action failed: %v", err)
		return "internal error"
	}
}
