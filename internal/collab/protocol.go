package collab

import (
	"encoding/json"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/engine"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/events"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/render"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/surface"
)

type Message struct {
	Type      string          `json:"type"`
	SurfaceID string          `json:"surfaceId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client to server
	TypePointerMove = "pointer.move"
	TypePointerDown = "pointer.down"
	TypePointerUp   = "pointer.up"

	TypeDragStart = "drag.start"
	TypeDragStop  = "drag.stop"
	TypeDragEnter = "drag.enter"
	TypeDragMove  = "drag.move"
	TypeDragLeave = "drag.leave"
	TypeDragDrop  = "drag.drop"

	TypeAnnotationRotate  = "annotation.rotate"
	TypeAnnotationRemove  = "annotation.remove"
	TypeAnnotationEdit    = "annotation.edit"
	TypeAnnotationText    = "annotation.text"
	TypeAnnotationEndEdit = "annotation.endEdit"

	TypePopupRotate = "popup.rotate"
	TypePopupRemove = "popup.remove"
	TypePopupEdit   = "popup.edit"
	TypePopupEnter  = "popup.enter"
	TypePopupLeave  = "popup.leave"

	// Server to client
	TypeWelcome   = "welcome"
	TypeEvent     = "event"
	TypeRender    = "render"
	TypePopupShow = surface.OverlayPopupShow
	TypePopupHide = surface.OverlayPopupHide
	TypeHint      = surface.OverlayHint
	TypeDragProxy = "drag.proxy"
	TypeError     = "error"

	// Both ways
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
)

// PointerPayload is a pointer position in native image pixels.
// PointerType is "mouse", "touch" or "pen"; ID tells touches apart.
type PointerPayload struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	PointerType string  `json:"pointerType,omitempty"`
	ID          int     `json:"id,omitempty"`
}

// DragItemPayload describes the annotation a drag source would create.
// Image is a reference loaded by the server.
type DragItemPayload struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text,omitempty"`
	Image    string                 `json:"image,omitempty"`
	Width    float64                `json:"width,omitempty"`
	Height   float64                `json:"height,omitempty"`
	Rotation float64                `json:"rotation,omitempty"`
	Editable annotation.Editability `json:"editable,omitempty"`
}

type DragEnterPayload struct {
	Item DragItemPayload `json:"item"`
	X    float64         `json:"x"`
	Y    float64         `json:"y"`
}

// TargetPayload selects an annotation by its created_at stamp.
type TargetPayload struct {
	CreatedAt int64 `json:"created_at"`
}

type TextPayload struct {
	Text string `json:"text"`
}

type WelcomePayload struct {
	ClientID    string              `json:"clientId"`
	Surface     surface.Info        `json:"surface"`
	Annotations []annotation.Record `json:"annotations"`
	Frame       render.Frame        `json:"frame"`
	Options     engine.Options      `json:"options"`
}

type DragProxyPayload struct {
	Visible bool `json:"visible"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
}

func newMessage(typ, surfaceID string, payload any) (*Message, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Message{Type: typ, SurfaceID: surfaceID, Payload: raw}, nil
}

func eventMessage(surfaceID string, ev events.Event) (*Message, error) {
	return newMessage(TypeEvent, surfaceID, ev)
}
