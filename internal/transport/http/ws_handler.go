package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	"flashnotes/internal/domain"
)

var errTooManyCommands = errors.New("too many commands, slow down")

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS streams retry status/attempt events and cache changes to the
// client, and accepts quiz commands (start, state, reveal, advance, mark,
// restart) answered with a "quiz" message.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, cancelEvents := s.events.Subscribe()
	defer cancelEvents()
	notes, err := s.cache.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: newErrorPayload(err)})
		return
	}
	snapshot, err := s.cache.Load(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: newErrorPayload(err)})
		return
	}

	out := newOutbox(16)
	closeSignals := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(out.done)
		for msg := range out.send {
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("ws write error", "error", err)
				// Unblocks the read loop below.
				_ = conn.Close()
				return
			}
		}
	}()

	out.push(outboundMessage[any]{Type: "notes", Payload: nonNil(snapshot)})

	go func() {
		defer close(updatesDone)
		for {
			var msg outboundMessage[any]
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: string(ev.Type), Payload: ev}
			case deck, ok := <-notes:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "notes", Payload: nonNil(deck)}
			case <-closeSignals:
				return
			}
			select {
			case out.send <- msg:
			case <-out.done:
				return
			case <-closeSignals:
				return
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(10), 20)
	for {
		var inbound inboundMessage
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg outboundMessage[any]
		switch {
		case !limiter.Allow():
			msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errTooManyCommands.Error()}}
		case json.Unmarshal(raw, &inbound) != nil:
			msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid message"}}
		default:
			if view, err := s.quizAction(ctx, inbound.Type); err != nil {
				msg = outboundMessage[any]{Type: "error", Payload: newErrorPayload(err)}
			} else {
				msg = outboundMessage[any]{Type: "quiz", Payload: view}
			}
		}
		if !out.push(msg) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(out.send)
	<-out.done
}

// outbox feeds the connection writer. done closes when the writer stops.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{send: make(chan outboundMessage[any], size), done: make(chan struct{})}
}

// push queues msg and reports false once the writer has stopped.
func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

func nonNil(notes []domain.Note) []domain.Note {
	if notes == nil {
		return []domain.Note{}
	}
	return notes
}
