package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/fixmate/repair-be/internal/notify"
)

// streamCommand is a client request over an open stream connection.
// Supported actions: join_repair, leave_repair.
type streamCommand struct {
	Action   string `json:"action"`
	RepairID string `json:"repair_id"`
}

type streamAck struct {
	Type     string `json:"type"`
	Action   string `json:"action,omitempty"`
	RepairID string `json:"repair_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// streamConn serializes text frame writes. Events and command acks are
// written from different goroutines.
type streamConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (sc *streamConn) writeText(data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return wsutil.WriteServerText(sc.conn, data)
}

// Stream handles GET /ws. It upgrades the connection, joins the actor's
// identity rooms and forwards every published event as a JSON text frame.
// Clients may join per-repair rooms after the upgrade; joining is gated
// by the same visibility rule as fetching the repair.
func (h *RepairHandler) Stream(c *gin.Context) {
	actor := ActorFromContext(c)

	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "websocket upgrade failed",
		})
		return
	}

	rooms := []string{notify.UserRoom(actor.ID)}
	if actor.IsTechnician() {
		rooms = append(rooms, notify.RoomTechnicians)
	}

	connID := uuid.New().String()
	sub := h.hub.Subscribe(connID, rooms...)
	sc := &streamConn{conn: conn}

	h.logger.Info("stream connected",
		slog.String("conn_id", connID),
		slog.String("user_id", actor.ID),
		slog.String("role", string(actor.Role)),
	)

	// Writer: hub events out. Closing the subscriber ends the range and
	// tears the connection down.
	go func() {
		defer func() {
			_ = conn.Close()
		}()
		for evt := range sub.C() {
			data, marshalErr := json.Marshal(evt)
			if marshalErr != nil {
				h.logger.Warn("stream event marshal failed", slog.String("error", marshalErr.Error()))
				continue
			}
			if writeErr := sc.writeText(data); writeErr != nil {
				return
			}
		}
	}()

	// Reader: room commands in, on the handler's goroutine. The request
	// context is dead after the hijack, so authorization re-checks run on
	// a fresh context.
	defer func() {
		h.hub.Remove(connID)
		_ = conn.Close()
		h.logger.Info("stream disconnected", slog.String("conn_id", connID))
	}()

	for {
		data, readErr := wsutil.ReadClientText(conn)
		if readErr != nil {
			return
		}

		var cmd streamCommand
		if unmarshalErr := json.Unmarshal(data, &cmd); unmarshalErr != nil {
			h.writeAck(sc, streamAck{Type: "error", Error: "invalid command"})
			continue
		}

		switch cmd.Action {
		case "join_repair":
			if _, getErr := h.service.Get(context.Background(), actor, cmd.RepairID); getErr != nil {
				h.writeAck(sc, streamAck{Type: "error", Action: cmd.Action, RepairID: cmd.RepairID, Error: "repair not visible"})
				continue
			}
			h.hub.Join(notify.RepairRoom(cmd.RepairID), sub)
			h.writeAck(sc, streamAck{Type: "ack", Action: cmd.Action, RepairID: cmd.RepairID})
		case "leave_repair":
			h.hub.Leave(notify.RepairRoom(cmd.RepairID), connID)
			h.writeAck(sc, streamAck{Type: "ack", Action: cmd.Action, RepairID: cmd.RepairID})
		default:
			h.writeAck(sc, streamAck{Type: "error", Error: "unknown action"})
		}
	}
}

func (h *RepairHandler) writeAck(sc *streamConn, ack streamAck) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	_ = sc.writeText(data)
}
