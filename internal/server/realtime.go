package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	socketWriteWait       = 10 * time.Second
	socketPongWait        = 60 * time.Second
	socketMaxMessageBytes = 4096
	socketActionStatus    = "status"
)

// streamSet is the team subscription plus an optional customer subscription.
type streamSet struct {
	team     <-chan realtime.Message
	customer <-chan realtime.Message
	cleanups []func()
}

func (h *httpHandler) subscribeStreams(ctx context.Context, customerEmail string) *streamSet {
	set := &streamSet{}
	teamStream, cleanup := h.broker.Subscribe(ctx, realtime.TopicTeam)
	set.team = teamStream
	set.cleanups = append(set.cleanups, cleanup)
	if customerEmail != "" {
		customerStream, cleanup := h.broker.Subscribe(ctx, realtime.CustomerTopic(customerEmail))
		set.customer = customerStream
		set.cleanups = append(set.cleanups, cleanup)
	}
	return set
}

func (s *streamSet) close() {
	for _, cleanup := range s.cleanups {
		cleanup()
	}
}

// next blocks until a message arrives, the heartbeat ticks or ctx ends. A nil
// customer stream never delivers.
func (s *streamSet) next(ctx context.Context, heartbeat <-chan time.Time) (realtime.Message, bool) {
	select {
	case <-ctx.Done():
		return realtime.Message{}, false
	case message, ok := <-s.team:
		return message, ok
	case message, ok := <-s.customer:
		return message, ok
	case tick := <-heartbeat:
		return realtime.Message{EventType: realtime.EventHeartbeat, Timestamp: tick.UTC()}, true
	}
}

// streamCustomer reads the optional customer_email query parameter.
func streamCustomer(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.Query("customer_email"))
	if raw == "" {
		return "", true
	}
	normalized, err := notes.NormalizeCustomerEmail(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_customer_email")
		return "", false
	}
	return normalized, true
}

func (h *httpHandler) handleRealtimeStream(c *gin.Context) {
	customerEmail, ok := streamCustomer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	streams := h.subscribeStreams(ctx, customerEmail)
	defer streams.close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		message, ok := streams.next(ctx, heartbeat.C)
		if !ok {
			return false
		}
		c.SSEvent(message.EventType, message)
		return true
	})
}

type socketCommand struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

// handleRealtimeSocket mirrors the event stream over a websocket. Clients may
// send {"action":"status","status":"away"} to change their own presence.
func (h *httpHandler) handleRealtimeSocket(c *gin.Context) {
	customerEmail, ok := streamCustomer(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	streams := h.subscribeStreams(ctx, customerEmail)
	defer streams.close()

	session := h.session(c)
	go func() {
		defer cancel()
		conn.SetReadLimit(socketMaxMessageBytes)
		_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(socketPongWait))
		})
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var command socketCommand
			if err := json.Unmarshal(raw, &command); err != nil {
				h.logger.Debug("websocket command ignored", zap.Error(err))
				continue
			}
			if command.Action != socketActionStatus {
				continue
			}
			status, err := team.ParseStatus(command.Status)
			if err != nil {
				h.logger.Debug("websocket status ignored", zap.Error(err))
				continue
			}
			session.UpdateStatus(ctx, status)
		}
	}()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		message, ok := streams.next(ctx, heartbeat.C)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(socketWriteWait))
			return
		}
		if message.EventType == realtime.EventHeartbeat {
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
				return
			}
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(message); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
