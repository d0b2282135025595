package collab

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/engine"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/events"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/metrics"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/surface"
)

type fixture struct {
	hub *Hub
	sf  *surface.Surface
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	svc := surface.NewService(engine.DefaultOptions(), nil, m)
	hub := NewHub(nil, m)
	svc.SetBroadcaster(hub)

	sf, err := svc.Create(context.Background(), surface.CreateParams{Width: 200, Height: 200})
	require.NoError(t, err)
	return fixture{hub: hub, sf: sf}
}

func (f fixture) join(id, name string) *Client {
	c := NewClient(f.hub, nil, f.sf, id, name)
	f.hub.addClient(c)
	return c
}

// drain returns every queued message.
func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func eventKinds(t *testing.T, msgs []Message) []events.Kind {
	t.Helper()
	var out []events.Kind
	for _, m := range msgs {
		if m.Type != TypeEvent {
			continue
		}
		var ev struct {
			Kind events.Kind `json:"kind"`
		}
		require.NoError(t, json.Unmarshal(m.Payload, &ev))
		out = append(out, ev.Kind)
	}
	return out
}

func send(t *testing.T, f fixture, c *Client, typ string, payload any) {
	t.Helper()
	msg, err := newMessage(typ, f.sf.ID, payload)
	require.NoError(t, err)
	f.hub.handleMessage(c, msg)
}

func TestHub_JoinAndLeave(t *testing.T) {
	f := newFixture(t)

	a := f.join("client_a", "Ann")
	msgs := drain(t, a)
	require.Equal(t, []string{TypeWelcome, TypePresenceState}, types(msgs))

	var welcome WelcomePayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &welcome))
	assert.Equal(t, "client_a", welcome.ClientID)
	assert.Equal(t, 200, welcome.Surface.Width)
	assert.Empty(t, welcome.Annotations)

	b := f.join("client_b", "Bob")
	drain(t, b)
	msgs = drain(t, a)
	require.Equal(t, []string{TypePresenceJoin}, types(msgs))
	assert.Equal(t, "client_b", msgs[0].ClientID)
	assert.Equal(t, 2, f.hub.RoomSize(f.sf.ID))

	f.hub.removeClient(b)
	msgs = drain(t, a)
	require.Equal(t, []string{TypePresenceLeave}, types(msgs))
	assert.Equal(t, 1, f.hub.RoomSize(f.sf.ID))

	_, open := <-b.send
	assert.False(t, open)
	assert.NotPanics(t, func() { b.Send(&Message{Type: TypeRender}) })

	f.hub.removeClient(a)
	assert.Equal(t, 0, f.hub.RoomSize(f.sf.ID))
}

func TestHub_DragAndDrop(t *testing.T) {
	f := newFixture(t)
	a := f.join("client_a", "Ann")
	b := f.join("client_b", "Bob")
	drain(t, a)
	drain(t, b)

	send(t, f, a, TypeDragStart, nil)
	send(t, f, a, TypeDragEnter, DragEnterPayload{
		Item: DragItemPayload{ID: "pin", Width: 20, Height: 10},
		X:    50,
		Y:    50,
	})

	msgs := drain(t, a)
	assert.Contains(t, types(msgs), TypeDragProxy)
	assert.Contains(t, types(msgs), TypeRender)
	assert.NotContains(t, types(drain(t, b)), TypeDragProxy, "proxy changes go to the dragging client only")

	send(t, f, a, TypeDragDrop, PointerPayload{X: 60, Y: 70})
	send(t, f, a, TypeDragStop, nil)

	list := f.sf.Engine.List()
	require.Len(t, list, 1)
	assert.Equal(t, "pin", list[0].ID)
	assert.Equal(t, annotation.Coordinate{X: 60, Y: 70}, *list[0].Position.Center)

	assert.Equal(t, []events.Kind{events.AnnotationCreated}, eventKinds(t, drain(t, b)))
	assert.False(t, f.sf.Engine.DragInProgress())
}

func TestHub_DisconnectDuringDrag(t *testing.T) {
	f := newFixture(t)
	a := f.join("client_a", "Ann")

	send(t, f, a, TypeDragEnter, DragEnterPayload{
		Item: DragItemPayload{ID: "pin", Width: 20, Height: 10},
		X:    50,
		Y:    50,
	})
	assert.Equal(t, engine.StateDraggingNew, f.sf.Engine.State())

	f.hub.removeClient(a)
	assert.Equal(t, engine.StateIdle, f.sf.Engine.State())
	assert.Zero(t, f.sf.Engine.Len())
}

func proxyStates(t *testing.T, msgs []Message) []bool {
	t.Helper()
	var out []bool
	for _, m := range msgs {
		if m.Type != TypeDragProxy {
			continue
		}
		var p DragProxyPayload
		require.NoError(t, json.Unmarshal(m.Payload, &p))
		out = append(out, p.Visible)
	}
	return out
}

func TestHub_ConcurrentDrags(t *testing.T) {
	enter := func(id string) DragEnterPayload {
		return DragEnterPayload{Item: DragItemPayload{ID: id, Width: 20, Height: 10}, X: 50, Y: 50}
	}

	t.Run("disconnect does not cancel a newer drag", func(t *testing.T) {
		f := newFixture(t)
		a := f.join("client_a", "Ann")
		b := f.join("client_b", "Bob")

		send(t, f, b, TypeDragEnter, enter("from-b"))
		send(t, f, a, TypeDragEnter, enter("from-a"))
		assert.Equal(t, []bool{false, true}, proxyStates(t, drain(t, b)), "b gets its proxy back when displaced")

		f.hub.removeClient(b)
		assert.Equal(t, engine.StateDraggingNew, f.sf.Engine.State())

		send(t, f, a, TypeDragDrop, PointerPayload{X: 60, Y: 60})
		list := f.sf.Engine.List()
		require.Len(t, list, 1)
		assert.Equal(t, "from-a", list[0].ID)
	})

	t.Run("displaced client cannot drop or leave", func(t *testing.T) {
		f := newFixture(t)
		a := f.join("client_a", "Ann")
		b := f.join("client_b", "Bob")

		send(t, f, b, TypeDragEnter, enter("from-b"))
		send(t, f, a, TypeDragEnter, enter("from-a"))

		send(t, f, b, TypeDragDrop, PointerPayload{X: 10, Y: 10})
		assert.Zero(t, f.sf.Engine.Len())
		send(t, f, b, TypeDragLeave, nil)
		assert.Equal(t, engine.StateDraggingNew, f.sf.Engine.State())

		send(t, f, a, TypeDragDrop, PointerPayload{X: 60, Y: 60})
		require.Equal(t, 1, f.sf.Engine.Len())
		assert.Equal(t, "from-a", f.sf.Engine.List()[0].ID)
	})

	t.Run("drag stop without drop cancels", func(t *testing.T) {
		f := newFixture(t)
		a := f.join("client_a", "Ann")

		send(t, f, a, TypeDragStart, nil)
		send(t, f, a, TypeDragEnter, enter("pin"))
		send(t, f, a, TypeDragStop, nil)

		assert.Equal(t, engine.StateIdle, f.sf.Engine.State())
		assert.Zero(t, f.sf.Engine.Len())
		assert.False(t, f.sf.Engine.DragInProgress())
	})
}

func TestHub_PointerMovesAnnotation(t *testing.T) {
	f := newFixture(t)
	a := f.join("client_a", "Ann")

	rec := annotation.Record{
		ID:       "box",
		Position: &annotation.Position{Center: &annotation.Coordinate{X: 50, Y: 50}},
		Width:    20,
		Height:   20,
	}
	require.NoError(t, f.sf.Engine.AddOrReplace(context.Background(), rec, nil))
	drain(t, a)

	send(t, f, a, TypePointerMove, PointerPayload{X: 50, Y: 50})
	send(t, f, a, TypePointerDown, PointerPayload{X: 50, Y: 50})
	send(t, f, a, TypePointerMove, PointerPayload{X: 80, Y: 90})
	send(t, f, a, TypePointerUp, PointerPayload{X: 80, Y: 90})

	list := f.sf.Engine.List()
	require.Len(t, list, 1)
	assert.Equal(t, annotation.Coordinate{X: 80, Y: 90}, *list[0].Position.Center)

	msgs := drain(t, a)
	assert.Contains(t, eventKinds(t, msgs), events.AnnotationUpdated)
	assert.Contains(t, types(msgs), TypePopupShow)
}

func TestHub_AnnotationActions(t *testing.T) {
	f := newFixture(t)
	a := f.join("client_a", "Ann")

	rec := annotation.Record{
		ID:       "note",
		Text:     "old",
		Position: &annotation.Position{Center: &annotation.Coordinate{X: 50, Y: 50}},
		Width:    20,
		Height:   20,
	}
	require.NoError(t, f.sf.Engine.AddOrReplace(context.Background(), rec, nil))
	created := f.sf.Engine.List()[0].CreatedAt
	drain(t, a)

	send(t, f, a, TypeAnnotationEdit, TargetPayload{CreatedAt: created})
	send(t, f, a, TypeAnnotationText, TextPayload{Text: "new"})
	send(t, f, a, TypeAnnotationEndEdit, nil)
	assert.Equal(t, "new", f.sf.Engine.List()[0].Text)

	send(t, f, a, TypeAnnotationRemove, TargetPayload{CreatedAt: created})
	assert.Zero(t, f.sf.Engine.Len())
	assert.Equal(t, []events.Kind{events.AnnotationUpdated, events.AnnotationRemoved}, eventKinds(t, drain(t, a)))

	send(t, f, a, TypeAnnotationRotate, TargetPayload{CreatedAt: created})
	msgs := drain(t, a)
	require.Equal(t, []string{TypeError}, types(msgs))
}

func TestHub_RejectsBadMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"unknown type", Message{Type: "annotation.explode"}},
		{"missing payload", Message{Type: TypePointerMove}},
		{"bad payload", Message{Type: TypeDragMove, Payload: json.RawMessage(`"nope"`)}},
		{"drag image without loader", Message{Type: TypeDragEnter, Payload: json.RawMessage(`{"item":{"id":"x","image":"/assets/x.png"}}`)}},
		{"bad drag image ref", Message{Type: TypeDragEnter, Payload: json.RawMessage(`{"item":{"id":"x","image":"javascript:alert(1)"}}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.join("client_a", "Ann")
			b := f.join("client_b", "Bob")
			drain(t, a)
			drain(t, b)

			msg := tt.msg
			f.hub.handleMessage(a, &msg)

			msgs := drain(t, a)
			require.Equal(t, []string{TypeError}, types(msgs))
			var p ErrorPayload
			require.NoError(t, json.Unmarshal(msgs[0].Payload, &p))
			assert.NotEmpty(t, p.Message)
			assert.Empty(t, drain(t, b))
			assert.Zero(t, f.sf.Engine.Len())
		})
	}
}

func TestHub_PresenceUpdate(t *testing.T) {
	f := newFixture(t)
	a := f.join("client_a", "Ann")
	b := f.join("client_b", "Bob")
	drain(t, a)
	drain(t, b)

	send(t, f, a, TypePresenceUpdate, PresencePayload{Cursor: &CursorPos{X: 3, Y: 4}, DisplayName: "Mallory"})

	assert.Empty(t, drain(t, a))
	msgs := drain(t, b)
	require.Equal(t, []string{TypePresenceUpdate}, types(msgs))
	assert.Equal(t, "client_a", msgs[0].ClientID)

	var p PresencePayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &p))
	assert.Equal(t, "Ann", p.DisplayName, "display names come from the connection")
	assert.Equal(t, &CursorPos{X: 3, Y: 4}, p.Cursor)

	c := f.join("client_c", "Cy")
	msgs = drain(t, c)
	require.Equal(t, []string{TypeWelcome, TypePresenceState}, types(msgs))
	var state PresenceStatePayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &state))
	assert.Contains(t, state.Presences, "client_a")
}

func TestHub_PointerUpdatesPresence(t *testing.T) {
	f := newFixture(t)
	a := f.join("client_a", "Ann")
	b := f.join("client_b", "Bob")
	f.sf.Engine.SetDisplaySize(100, 100)
	drain(t, a)
	drain(t, b)

	cursor := func(t *testing.T, msgs []Message) []*CursorPos {
		t.Helper()
		var out []*CursorPos
		for _, m := range msgs {
			if m.Type != TypePresenceUpdate {
				continue
			}
			assert.Equal(t, "client_a", m.ClientID)
			var p PresencePayload
			require.NoError(t, json.Unmarshal(m.Payload, &p))
			assert.Equal(t, "Ann", p.DisplayName)
			out = append(out, p.Cursor)
		}
		return out
	}

	send(t, f, a, TypePointerMove, PointerPayload{X: 10, Y: 20})
	send(t, f, a, TypePointerMove, PointerPayload{X: 10, Y: 20})
	assert.Equal(t, []*CursorPos{{X: 20, Y: 40}}, cursor(t, drain(t, b)), "native pixels, unchanged moves are not repeated")
	assert.Empty(t, cursor(t, drain(t, a)), "no echo to the sender")

	send(t, f, a, TypePointerDown, PointerPayload{X: 30, Y: 30, PointerType: "touch", ID: 1})
	send(t, f, a, TypePointerUp, PointerPayload{X: 30, Y: 30, PointerType: "touch", ID: 1})
	assert.Equal(t, []*CursorPos{{X: 60, Y: 60}, nil}, cursor(t, drain(t, b)))

	send(t, f, a, TypePointerMove, PointerPayload{X: 5, Y: 5})
	c := f.join("client_c", "Cy")
	msgs := drain(t, c)
	require.Equal(t, []string{TypeWelcome, TypePresenceState}, types(msgs))
	var state PresenceStatePayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &state))
	require.Contains(t, state.Presences, "client_a")
	assert.Equal(t, &CursorPos{X: 10, Y: 10}, state.Presences["client_a"].Cursor)
	assert.Nil(t, state.Presences["client_b"].Cursor)
	assert.Equal(t, "Bob", state.Presences["client_b"].DisplayName)
}
