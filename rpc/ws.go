package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"nftmarket/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// EventStream supplies committed events to websocket subscribers.
type EventStream interface {
	Subscribe(since uint64) (<-chan events.Committed, func(), []events.Committed)
}

// StreamedEvent is the websocket frame for a committed event.
type StreamedEvent struct {
	Height     uint64            `json:"height"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.stream == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	var since uint64
	if cursor := strings.TrimSpace(r.URL.Query().Get("cursor")); cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			http.Error(w, "cursor must be a height", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn, since); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, since uint64) error {
	updates, cancel, backlog := s.stream.Subscribe(since)
	defer cancel()

	for _, evt := range backlog {
		if err := writeStreamedEvent(ctx, conn, evt); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeStreamedEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeStreamedEvent(ctx context.Context, conn *websocket.Conn, evt events.Committed) error {
	data, err := json.Marshal(StreamedEvent{
		Height:     evt.Height,
		Type:       evt.Payload.Type,
		Attributes: evt.Payload.Attributes,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
