package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/pointer"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/surface"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
	sendBuffer = 256
)

// Client is one websocket connection to a surface.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	closed      bool
	mu          sync.Mutex
	surface     *surface.Surface
	pointer     *pointer.Normalizer
	drag        *remoteDragItem
	DisplayName string
	SurfaceID   string
	ClientID    string
}

func NewClient(hub *Hub, conn *websocket.Conn, sf *surface.Surface, clientID, displayName string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		surface:     sf,
		pointer:     &pointer.Normalizer{DragInProgress: sf.Engine.DragInProgress},
		DisplayName: displayName,
		SurfaceID:   sf.ID,
		ClientID:    clientID,
	}
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			slog.Debug("read error", "error", err, "client", c.ClientID)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "client", c.ClientID)
			continue
		}

		msg.ClientID = c.ClientID
		msg.SurfaceID = c.SurfaceID

		c.hub.handleMessage(c, &msg)
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send queues msg. Messages to a slow or closed client are dropped.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping message", "client", c.ClientID)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendError(err error) {
	msg, mErr := newMessage(TypeError, c.SurfaceID, ErrorPayload{Message: err.Error()})
	if mErr != nil {
		return
	}
	c.Send(msg)
}

func (c *Client) setDrag(d *remoteDragItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag = d
}

// takeDrag clears and returns the client's in-flight drag item.
func (c *Client) takeDrag() *remoteDragItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.drag
	c.drag = nil
	return d
}
