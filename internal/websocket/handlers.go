package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chat-relay/internal/domain/call"
	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/services"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/keylock"

	"github.com/google/uuid"
)

func (r *Router) handleFriendRequest(ctx context.Context, req *request) (any, error) {
	var p friendRequestPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	from, err := req.actor(p.From)
	if err != nil {
		return nil, err
	}
	to, err := parseID("to", p.To)
	if err != nil {
		return nil, err
	}

	fr, notes, err := r.svc.Friends.SendRequest(ctx, from, to)
	if err != nil {
		return nil, err
	}
	req.report.add(r.deliver(notes))
	return fr, nil
}

func (r *Router) handleAcceptRequest(ctx context.Context, req *request) (any, error) {
	actor, err := req.actor("")
	if err != nil {
		return nil, err
	}
	var p acceptRequestPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	requestID, err := parseID("request_id", p.RequestID)
	if err != nil {
		return nil, err
	}

	fr, notes, err := r.svc.Friends.AcceptRequest(ctx, requestID, actor)
	if err != nil {
		return nil, err
	}
	req.report.add(r.deliver(notes))
	return fr, nil
}

func (r *Router) handleGetFriends(ctx context.Context, req *request) (any, error) {
	userID, err := req.actor("")
	if err != nil {
		return nil, err
	}
	friends, err := r.svc.Friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.respond(req, friends)
}

func (r *Router) handleGetFriendRequests(ctx context.Context, req *request) (any, error) {
	userID, err := req.actor("")
	if err != nil {
		return nil, err
	}
	pending, err := r.svc.Friends.ListRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.respond(req, pending)
}

func (r *Router) handleGetDirect(ctx context.Context, req *request) (any, error) {
	var p userPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	userID, err := req.actor(p.UserID)
	if err != nil {
		return nil, err
	}
	list, err := r.svc.Conversations.ListDirect(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.respond(req, list)
}

func (r *Router) handleStartConversation(ctx context.Context, req *request) (any, error) {
	var p startConversationPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	from, err := req.actor(p.From)
	if err != nil {
		return nil, err
	}
	to, err := parseID("to", p.To)
	if err != nil {
		return nil, err
	}

	view, _, err := r.svc.Conversations.FindOrCreateDirect(ctx, from, to)
	if err != nil {
		return nil, err
	}
	r.sendTo(req.conn, req.report, services.EventStartChat, view)
	return view, nil
}

func (r *Router) handleGetMessages(ctx context.Context, req *request) (any, error) {
	var p conversationPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	id, err := parseID("conversation_id", p.ConversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := r.svc.Conversations.Messages(ctx, id, req.userID)
	if err != nil {
		return nil, err
	}
	return r.respond(req, msgs)
}

func (p textMessagePayload) input(from uuid.UUID) (services.MessageInput, error) {
	convID, err := parseID("conversation_id", p.ConversationID)
	if err != nil {
		return services.MessageInput{}, err
	}
	to, err := parseID("to", p.To)
	if err != nil {
		return services.MessageInput{}, err
	}
	return services.MessageInput{
		ConversationID: convID,
		From:           from,
		To:             to,
		Type:           p.Type,
		Text:           p.Message,
		File:           p.File,
	}, nil
}

func (r *Router) handleTextMessage(ctx context.Context, req *request) (any, error) {
	var p textMessagePayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	from, err := req.actor(p.From)
	if err != nil {
		return nil, err
	}
	in, err := p.input(from)
	if err != nil {
		return nil, err
	}

	// Held across append and delivery so both participants see appends in
	// order.
	unlock := r.locks.Lock(keylock.OrderedKey("deliver-direct", in.ConversationID.String()))
	defer unlock()

	msg, notes, err := r.svc.Conversations.AppendMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	req.report.add(r.deliver(notes))
	return msg, nil
}

func (r *Router) handleMarkRead(ctx context.Context, req *request) (any, error) {
	var p conversationPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	userID, err := req.actor("")
	if err != nil {
		return nil, err
	}
	id, err := parseID("conversation_id", p.ConversationID)
	if err != nil {
		return nil, err
	}
	if err := r.svc.Conversations.MarkRead(ctx, id, userID); err != nil {
		return nil, err
	}
	return map[string]any{"conversation_id": id}, nil
}

func (r *Router) handleGroupTextMessage(ctx context.Context, req *request) (any, error) {
	var p textMessagePayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	from, err := req.actor(p.From)
	if err != nil {
		return nil, err
	}
	in, err := p.input(from)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(keylock.OrderedKey("deliver-room", in.ConversationID.String()))
	defer unlock()

	msg, err := r.svc.Rooms.AppendGroupMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	req.report.add(r.broadcast(in.ConversationID, services.EventNewGroupMessage, services.MessagePayload{
		ConversationID: in.ConversationID,
		Message:        msg,
	}))
	return msg, nil
}

func (r *Router) handleCreateRoom(ctx context.Context, req *request) (any, error) {
	var p createRoomPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	owner, err := req.actor(p.Owner)
	if err != nil {
		return nil, err
	}
	members := make([]uuid.UUID, 0, len(p.Members))
	for _, m := range p.Members {
		id, err := parseID("members", m)
		if err != nil {
			return nil, err
		}
		members = append(members, id)
	}

	room, err := r.svc.Rooms.CreateRoom(ctx, p.Title, owner, members)
	if err != nil {
		return nil, err
	}
	r.rooms.Join(room.ID, req.conn)
	r.sendTo(req.conn, req.report, services.EventRoomCreated, room)
	return room, nil
}

type roomState struct {
	Room     conversation.Room      `json:"room"`
	Messages []conversation.Message `json:"messages"`
}

func (r *Router) handleJoinRoom(ctx context.Context, req *request) (any, error) {
	var p joinRoomPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	roomID, err := parseID("roomId", p.RoomID)
	if err != nil {
		return nil, err
	}
	// Connections without identity join the live room only.
	var userID uuid.UUID
	if req.userID != uuid.Nil {
		if userID, err = req.actor(p.UserID); err != nil {
			return nil, err
		}
	}

	room, _, err := r.svc.Rooms.JoinRoom(ctx, roomID, userID)
	if errors.Is(err, relay_errors.ErrNotFound) {
		r.sendTo(req.conn, req.report, services.EventRoomNotFound, map[string]any{"roomId": p.RoomID})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	msgs, err := r.svc.Rooms.RoomMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	r.rooms.Join(roomID, req.conn)
	r.sendTo(req.conn, req.report, services.EventRoomJoined, room)
	r.sendTo(req.conn, req.report, services.EventLoadMessages, map[string]any{"roomId": roomID, "messages": msgs})
	return roomState{Room: room, Messages: msgs}, nil
}

func (r *Router) handleLeaveRoom(_ context.Context, req *request) (any, error) {
	// Older clients send the bare room id.
	var raw string
	if err := json.Unmarshal(req.frame.Data, &raw); err != nil {
		var p leaveRoomPayload
		if err := decode(req.frame.Data, &p); err != nil {
			return nil, err
		}
		raw = p.RoomID
	}
	roomID, err := parseID("roomId", raw)
	if err != nil {
		return nil, err
	}
	if roomID == uuid.Nil {
		return nil, fmt.Errorf("roomId is required: %w", relay_errors.ErrInvalidInput)
	}

	left := r.rooms.Leave(roomID, req.conn)
	r.sendTo(req.conn, req.report, services.EventRoomLeft, map[string]any{"roomId": roomID, "left": left})
	return map[string]any{"roomId": roomID, "left": left}, nil
}

func (r *Router) handleGetGroups(ctx context.Context, req *request) (any, error) {
	var p userPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	userID, err := req.actor(p.UserID)
	if err != nil {
		return nil, err
	}
	rooms, err := r.svc.Rooms.ListRooms(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.respond(req, rooms)
}

func (r *Router) handleGetGroupMessages(ctx context.Context, req *request) (any, error) {
	var p conversationPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	id, err := parseID("conversation_id", p.ConversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := r.svc.Rooms.RoomMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.respond(req, msgs)
}

func (r *Router) startCall(kind call.Kind) handlerFunc {
	return func(ctx context.Context, req *request) (any, error) {
		var p startCallPayload
		if err := decode(req.frame.Data, &p); err != nil {
			return nil, err
		}
		from, err := req.actor(p.From)
		if err != nil {
			return nil, err
		}
		to, err := parseID("to", p.To)
		if err != nil {
			return nil, err
		}

		c, notes, err := r.svc.Calls.Start(ctx, services.StartCallInput{
			Kind:   kind,
			From:   from,
			To:     to,
			RoomID: strings.TrimSpace(p.RoomID),
		})
		if err != nil {
			return nil, err
		}
		req.report.add(r.deliver(notes))
		return c, nil
	}
}

func (r *Router) callSignal(kind call.Kind, signal services.Signal) handlerFunc {
	return func(ctx context.Context, req *request) (any, error) {
		var p callSignalPayload
		if err := decode(req.frame.Data, &p); err != nil {
			return nil, err
		}
		from, err := req.actor(p.From)
		if err != nil {
			return nil, err
		}
		to, err := parseID("to", p.To)
		if err != nil {
			return nil, err
		}
		callID, err := parseID("call_id", p.CallID)
		if err != nil {
			return nil, err
		}

		c, notes, err := r.svc.Calls.Apply(ctx, services.SignalInput{
			Kind:   kind,
			Signal: signal,
			From:   from,
			To:     to,
			CallID: callID,
		})
		if err != nil {
			return nil, err
		}
		req.report.add(r.deliver(notes))
		if c == nil {
			return nil, nil
		}
		return c, nil
	}
}

func (r *Router) handleGetCallHistory(ctx context.Context, req *request) (any, error) {
	userID, err := req.actor("")
	if err != nil {
		return nil, err
	}
	calls, err := r.svc.Calls.History(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return r.respond(req, calls)
}

func (r *Router) handleDisconnect(ctx context.Context, req *request) (any, error) {
	var p userPayload
	if err := decode(req.frame.Data, &p); err != nil {
		return nil, err
	}
	if req.userID != uuid.Nil {
		if _, err := req.actor(p.UserID); err != nil {
			return nil, err
		}
	}
	r.Disconnect(ctx, req.conn)
	if c, ok := req.conn.(Closer); ok {
		c.Close()
	}
	return nil, nil
}

func (r *Router) handlePing(_ context.Context, req *request) (any, error) {
	if req.frame.Ack == "" {
		r.sendTo(req.conn, req.report, eventPong, nil)
	}
	return eventPong, nil
}
