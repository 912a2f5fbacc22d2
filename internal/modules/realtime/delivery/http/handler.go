package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	realmService "anoa.com/realmkeeper/internal/modules/realm/service"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Payload is what clients receive for every event: the event itself plus the
// query keys it invalidates.
type Payload struct {
	realtime.Event
	Invalidate []realtime.QueryKey `json:"invalidate"`
}

func NewPayload(evt realtime.Event) Payload {
	return Payload{Event: evt, Invalidate: realtime.Invalidations(evt)}
}

type EventsHandler struct {
	bus        *realtime.Bus
	membership realmService.Membership
	heartbeat  time.Duration
	upgrader   websocket.Upgrader
}

func NewEventsHandler(bus *realtime.Bus, membership realmService.Membership, heartbeat time.Duration, checkOrigin func(r *http.Request) bool) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &EventsHandler{
		bus:        bus,
		membership: membership,
		heartbeat:  heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// authorize checks that the caller is a member of :realm_id.
func (h *EventsHandler) authorize(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	realmID, err := response.ParamUUID(c, "realm_id")
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	if _, err := h.membership.RequireMember(c.Request.Context(), realmID, userID); err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, realmID, true
}

// stillMember re-checks membership after realm changes so kicked users stop
// receiving events.
func (h *EventsHandler) stillMember(ctx context.Context, evt realtime.Event, realmID, userID uuid.UUID) bool {
	switch evt.Type {
	case realtime.RealmDeleted:
		return false
	case realtime.RealmUpdated:
		_, err := h.membership.RequireMember(ctx, realmID, userID)
		return err == nil
	}
	return true
}

// Stream serves the realm's events as server-sent events.
func (h *EventsHandler) Stream(c *gin.Context) {
	userID, realmID, ok := h.authorize(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub := h.bus.Subscribe(realmID)
	defer h.bus.Unsubscribe(sub)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"realmId": realmID})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("message", NewPayload(evt))
			return h.stillMember(ctx, evt, realmID, userID)
		case <-ticker.C:
			_, err := fmt.Fprint(w, ": ping\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		}
	})
}

// WebSocket serves the same stream over a websocket connection.
func (h *EventsHandler) WebSocket(c *gin.Context) {
	userID, realmID, ok := h.authorize(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	sub := h.bus.Subscribe(realmID)
	defer h.bus.Unsubscribe(sub)

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"), time.Now().Add(time.Second))
				return
			}
			data, err := json.Marshal(NewPayload(evt))
			if err != nil {
				slog.Error("encode event payload", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if !h.stillMember(ctx, evt, realmID, userID) {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "access ended"), time.Now().Add(time.Second))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
