package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/engine"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/events"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/metrics"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/pointer"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/render"
)

const dragImageTimeout = 10 * time.Second

// Room is the set of clients looking at one surface.
type Room struct {
	surfaceID string
	clients   map[string]*Client // clientID -> client
	presence  *Presence
}

func NewRoom(surfaceID string) *Room {
	return &Room{
		surfaceID: surfaceID,
		clients:   make(map[string]*Client),
		presence:  NewPresence(surfaceID),
	}
}

// Hub fans surface changes out to websocket clients and applies their
// input to the surface engines. It implements surface.Broadcaster.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // surfaceID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	loader  engine.ImageLoader
	metrics *metrics.Metrics
}

// NewHub creates a hub. loader fetches the images of dragged items; it and
// m may be nil.
func NewHub(loader engine.ImageLoader, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		loader:     loader,
		metrics:    m,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

// Stop ends Run. Pending registrations are dropped.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SurfaceID]
	if !ok {
		room = NewRoom(client.SurfaceID)
		h.rooms[client.SurfaceID] = room
	}
	room.clients[client.ClientID] = client
	room.presence.Join(client.ClientID, client.DisplayName)
	n := len(h.rooms)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetRooms(n)
	}

	sf := client.surface
	welcome, err := newMessage(TypeWelcome, client.SurfaceID, WelcomePayload{
		ClientID:    client.ClientID,
		Surface:     sf.Info(),
		Annotations: sf.Engine.List(),
		Frame:       sf.Commands.Frame(),
		Options:     sf.Engine.Options(),
	})
	if err != nil {
		slog.Error("marshal welcome", "error", err)
	} else {
		client.Send(welcome)
	}

	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinMsg, _ := newMessage(TypePresenceJoin, client.SurfaceID, PresenceJoinPayload{
		ClientID:    client.ClientID,
		DisplayName: client.DisplayName,
	})
	joinMsg.ClientID = client.ClientID
	h.broadcastToRoom(client.SurfaceID, joinMsg, client.ClientID)

	slog.Info("client joined", "client", client.ClientID, "surface", client.SurfaceID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SurfaceID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Leave(client.ClientID)

	if len(room.clients) == 0 {
		delete(h.rooms, client.SurfaceID)
	}
	n := len(h.rooms)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetRooms(n)
	}
	if d := client.takeDrag(); d != nil {
		client.surface.Engine.DragLeave(d)
	}

	leaveMsg, _ := newMessage(TypePresenceLeave, client.SurfaceID, PresenceLeavePayload{ClientID: client.ClientID})
	leaveMsg.ClientID = client.ClientID
	h.broadcastToRoom(client.SurfaceID, leaveMsg, "")

	slog.Info("client left", "client", client.ClientID, "surface", client.SurfaceID)
}

// BroadcastEvent sends an engine event to every client of the surface.
func (h *Hub) BroadcastEvent(surfaceID string, ev events.Event) {
	msg, err := eventMessage(surfaceID, ev)
	if err != nil {
		slog.Error("marshal event", "error", err, "kind", ev.Kind)
		return
	}
	h.broadcastToRoom(surfaceID, msg, "")
}

// BroadcastRender sends the latest frame to every client of the surface.
func (h *Hub) BroadcastRender(surfaceID string, frame render.Frame) {
	msg, err := newMessage(TypeRender, surfaceID, frame)
	if err != nil {
		slog.Error("marshal frame", "error", err)
		return
	}
	h.broadcastToRoom(surfaceID, msg, "")
}

// BroadcastOverlay sends a popup or hint change. kind is used as the
// message type.
func (h *Hub) BroadcastOverlay(surfaceID, kind string, payload any) {
	msg, err := newMessage(kind, surfaceID, payload)
	if err != nil {
		slog.Error("marshal overlay", "error", err, "kind", kind)
		return
	}
	h.broadcastToRoom(surfaceID, msg, "")
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	eng := sender.surface.Engine
	var err error

	switch msg.Type {
	case TypePointerMove, TypePointerDown, TypePointerUp:
		err = h.handlePointer(sender, msg)
	case TypeDragStart:
		eng.DragStarted()
	case TypeDragStop:
		if d := sender.takeDrag(); d != nil {
			eng.DragLeave(d)
		}
		eng.DragStopped()
	case TypeDragEnter:
		err = h.handleDragEnter(sender, msg)
	case TypeDragMove:
		var p PointerPayload
		if err = decode(msg, &p); err == nil {
			eng.DragMove(p.X, p.Y)
		}
	case TypeDragLeave:
		if d := sender.takeDrag(); d != nil {
			eng.DragLeave(d)
		}
	case TypeDragDrop:
		var p PointerPayload
		if err = decode(msg, &p); err == nil {
			if d := sender.takeDrag(); d != nil {
				eng.DropItem(d, p.X, p.Y)
			}
		}
	case TypeAnnotationRotate:
		err = h.withTarget(sender, msg, eng.StartRotate)
	case TypeAnnotationRemove:
		err = h.withTarget(sender, msg, eng.Remove)
	case TypeAnnotationEdit:
		err = h.withTarget(sender, msg, eng.StartEditText)
	case TypeAnnotationText:
		var p TextPayload
		if err = decode(msg, &p); err == nil {
			eng.SetText(p.Text)
		}
	case TypeAnnotationEndEdit:
		eng.EndEditText()
	case TypePopupRotate:
		eng.PopupRotate()
	case TypePopupRemove:
		eng.PopupRemove()
	case TypePopupEdit:
		eng.PopupEditText()
	case TypePopupEnter:
		eng.PopupPointerEnter()
	case TypePopupLeave:
		eng.PopupPointerLeave()
	case TypePresenceUpdate:
		err = h.handlePresenceUpdate(sender, msg)
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		slog.Warn("rejected message", "error", err, "type", msg.Type, "client", sender.ClientID)
		sender.sendError(err)
	}
}

func decode(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}

func (h *Hub) handlePointer(sender *Client, msg *Message) error {
	var p PointerPayload
	if err := decode(msg, &p); err != nil {
		return err
	}

	var suffix string
	switch msg.Type {
	case TypePointerDown:
		suffix = "down"
	case TypePointerUp:
		suffix = "up"
	default:
		suffix = "move"
	}
	kind := pointer.Kind(p.PointerType)
	if kind == "" {
		kind = pointer.Mouse
	}

	eng := sender.surface.Engine
	sender.pointer.Feed(eng, pointer.Raw{
		Type: "pointer" + suffix,
		X:    p.X,
		Y:    p.Y,
		Kind: kind,
		ID:   p.ID,
	})

	// A lifted finger has no position.
	if kind == pointer.Touch && msg.Type == TypePointerUp {
		h.updateCursor(sender, nil)
		return nil
	}
	at := eng.Viewport().ToNative(p.X, p.Y)
	h.updateCursor(sender, &at)
	return nil
}

func (h *Hub) handleDragEnter(sender *Client, msg *Message) error {
	var p DragEnterPayload
	if err := decode(msg, &p); err != nil {
		return err
	}

	attrs := engine.DragAttributes{
		ID:       p.Item.ID,
		Text:     p.Item.Text,
		Width:    p.Item.Width,
		Height:   p.Item.Height,
		Rotation: p.Item.Rotation,
		Editable: p.Item.Editable,
	}
	if p.Item.Image != "" {
		img, err := h.loadDragImage(p.Item.Image)
		if err != nil {
			return err
		}
		attrs.Image = img
	}

	item := &remoteDragItem{client: sender, attrs: attrs}
	sender.setDrag(item)
	sender.surface.Engine.DragEnter(item, p.X, p.Y)
	return nil
}

// loadDragImage blocks only the sender's read loop.
func (h *Hub) loadDragImage(ref string) (*annotation.Image, error) {
	if err := annotation.ValidateImageRef(ref); err != nil {
		return nil, err
	}
	if h.loader == nil {
		return nil, engine.ErrNoLoader
	}
	ctx, cancel := context.WithTimeout(context.Background(), dragImageTimeout)
	defer cancel()

	start := time.Now()
	data, err := h.loader.Load(ctx, ref)
	if h.metrics != nil {
		h.metrics.ObserveImageLoad(time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("load drag image: %w", err)
	}
	return &annotation.Image{Src: ref, Data: data}, nil
}

func (h *Hub) withTarget(sender *Client, msg *Message, apply func(*annotation.Annotation)) error {
	var p TargetPayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	a, err := sender.surface.Engine.Find(annotation.Record{CreatedAt: p.CreatedAt})
	if err != nil {
		return err
	}
	apply(a)
	return nil
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) error {
	var presence PresencePayload
	if err := decode(msg, &presence); err != nil {
		return err
	}

	var at *annotation.Coordinate
	if presence.Cursor != nil {
		c := sender.surface.Engine.Viewport().ToNative(presence.Cursor.X, presence.Cursor.Y)
		at = &c
	}
	if !h.updateCursor(sender, at) {
		return errors.New("client is not in a room")
	}
	return nil
}

// updateCursor stores the sender's cursor and tells the rest of the room
// when it changed. It reports false if the sender has no room.
func (h *Hub) updateCursor(sender *Client, at *annotation.Coordinate) bool {
	h.mu.RLock()
	room, ok := h.rooms[sender.SurfaceID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	presence, changed := room.presence.MoveCursor(sender.ClientID, at)
	if !changed {
		return true
	}
	outMsg, err := newMessage(TypePresenceUpdate, sender.SurfaceID, presence)
	if err != nil {
		slog.Error("marshal presence", "error", err)
		return true
	}
	outMsg.ClientID = sender.ClientID
	h.broadcastToRoom(sender.SurfaceID, outMsg, sender.ClientID)
	return true
}

func (h *Hub) broadcastToRoom(surfaceID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[surfaceID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// RoomSize returns the number of clients connected to a surface.
func (h *Hub) RoomSize(surfaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[surfaceID]; ok {
		return len(room.clients)
	}
	return 0
}

// remoteDragItem is an item dragged in a client's page.
type remoteDragItem struct {
	client *Client
	attrs  engine.DragAttributes
}

func (d *remoteDragItem) Attributes() engine.DragAttributes { return d.attrs }

func (d *remoteDragItem) SetProxyVisible(visible bool) {
	msg, err := newMessage(TypeDragProxy, d.client.SurfaceID, DragProxyPayload{Visible: visible})
	if err != nil {
		return
	}
	d.client.Send(msg)
}
