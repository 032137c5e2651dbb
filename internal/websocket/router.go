package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chat-relay/internal/domain/call"
	"chat-relay/internal/metrics"
	"chat-relay/internal/presence"
	"chat-relay/internal/services"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/keylock"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Inbound event names.
const (
	EventFriendRequest     = "friend_request"
	EventAcceptRequest     = "accept_request"
	EventGetFriends        = "get_friends"
	EventGetFriendRequests = "get_friend_requests"
	EventGetDirect         = "get_direct_conversations"
	EventStartConversation = "start_conversation"
	EventGetMessages       = "get_messages"
	EventTextMessage       = "text_message"
	EventMarkRead          = "mark_read"
	EventGroupTextMessage  = "group_text_message"
	EventCreateRoom        = "createRoom"
	EventJoinRoom          = "joinRoom"
	EventLeaveRoom         = "leaveRoom"
	EventGetGroups         = "get_direct_group_conversations"
	EventGetGroupMessages  = "get_group_messages"
	EventGetCallHistory    = "get_call_history"
	EventDisconnect        = "disconnect"
	EventEnd               = "end"
	EventPing              = "ping"
	eventPong              = "pong"
	eventAck               = "ack"
)

// DeliveryReport counts what happened to the frames one dispatch produced.
// Dropped frames had no live recipient; failures reached a connection that
// refused them.
type DeliveryReport struct {
	Delivered int
	Dropped   int
	Failures  []DeliveryFailure
}

type DeliveryFailure struct {
	UserID uuid.UUID
	ConnID string
	Event  string
	Err    error
}

func (r *DeliveryReport) add(o DeliveryReport) {
	r.Delivered += o.Delivered
	r.Dropped += o.Dropped
	r.Failures = append(r.Failures, o.Failures...)
}

// Closer is implemented by connections the router may hang up.
type Closer interface {
	Close()
}

type Services struct {
	Friends       *services.FriendService
	Conversations *services.ConversationService
	Rooms         *services.RoomService
	Calls         *services.CallService
}

type request struct {
	conn   presence.Conn
	userID uuid.UUID
	frame  InboundFrame
	report *DeliveryReport
}

// actor returns the acting user. claimed is the id the payload names, which
// must match the bound user when given.
func (req *request) actor(claimed string) (uuid.UUID, error) {
	if req.userID == uuid.Nil {
		return uuid.Nil, relay_errors.ErrNoIdentity
	}
	id, err := parseID("user", claimed)
	if err != nil {
		return uuid.Nil, err
	}
	if id != uuid.Nil && id != req.userID {
		return uuid.Nil, relay_errors.ErrForbidden
	}
	return req.userID, nil
}

type handlerFunc func(ctx context.Context, req *request) (any, error)

// Router turns inbound frames into service calls and delivers what they
// produce. It is the only place where more than one service is used for a
// single event.
type Router struct {
	registry *presence.Registry
	rooms    *presence.Rooms
	svc      Services
	locks    *keylock.KeyLock
	tracer   trace.Tracer
	log      *WebSocketLogger
	logger   *logger.Logger
	handlers map[string]handlerFunc
}

func NewRouter(registry *presence.Registry, rooms *presence.Rooms, svc Services, l *logger.Logger) *Router {
	if l == nil {
		l = logger.Nop()
	}
	r := &Router{
		registry: registry,
		rooms:    rooms,
		svc:      svc,
		locks:    keylock.New(),
		tracer:   otel.Tracer("chat-relay/websocket"),
		log:      NewWebSocketLogger(l),
		logger:   l.Named("router"),
	}
	r.handlers = map[string]handlerFunc{
		EventFriendRequest:     r.handleFriendRequest,
		EventAcceptRequest:     r.handleAcceptRequest,
		EventGetFriends:        r.handleGetFriends,
		EventGetFriendRequests: r.handleGetFriendRequests,
		EventGetDirect:         r.handleGetDirect,
		EventStartConversation: r.handleStartConversation,
		EventGetMessages:       r.handleGetMessages,
		EventTextMessage:       r.handleTextMessage,
		EventMarkRead:          r.handleMarkRead,
		EventGroupTextMessage:  r.handleGroupTextMessage,
		EventCreateRoom:        r.handleCreateRoom,
		EventJoinRoom:          r.handleJoinRoom,
		EventLeaveRoom:         r.handleLeaveRoom,
		EventGetGroups:         r.handleGetGroups,
		EventGetGroupMessages:  r.handleGetGroupMessages,
		EventGetCallHistory:    r.handleGetCallHistory,
		EventDisconnect:        r.handleDisconnect,
		EventEnd:               r.handleDisconnect,
		EventPing:              r.handlePing,
	}
	for _, kind := range []call.Kind{call.KindAudio, call.KindVideo} {
		k := string(kind)
		r.handlers["start_"+k+"_call"] = r.startCall(kind)
		r.handlers[k+"_call_not_picked"] = r.callSignal(kind, services.SignalNotPicked)
		r.handlers[k+"_call_accepted"] = r.callSignal(kind, services.SignalAccepted)
		r.handlers[k+"_call_denied"] = r.callSignal(kind, services.SignalDenied)
		r.handlers["user_is_busy_"+k+"_call"] = r.callSignal(kind, services.SignalBusy)
		r.handlers["end_"+k+"_call"] = r.callSignal(kind, services.SignalEnded)
	}
	return r
}

// Connect binds conn to userID in the presence registry. Anonymous
// connections stay unbound.
func (r *Router) Connect(ctx context.Context, conn presence.Conn, userID uuid.UUID) bool {
	bound, err := r.registry.Connect(ctx, userID, conn)
	if err != nil {
		r.log.Error("presence connect failed", userID, conn.ID(), err)
	}
	metrics.SetOnlineUsers(r.registry.Count())
	return bound
}

// Disconnect removes conn from every room and releases its presence. Safe to
// call more than once.
func (r *Router) Disconnect(ctx context.Context, conn presence.Conn) {
	left := r.rooms.Purge(conn)
	userID, offline, err := r.registry.Disconnect(ctx, conn)
	if err != nil {
		r.log.Error("presence disconnect failed", userID, conn.ID(), err)
	}
	if offline || len(left) > 0 {
		r.log.Debug("disconnected", userID, conn.ID(), zap.Bool("offline", offline), zap.Int("rooms_left", len(left)))
	}
	metrics.SetOnlineUsers(r.registry.Count())
}

// Dispatch handles one raw frame from conn.
func (r *Router) Dispatch(ctx context.Context, conn presence.Conn, raw []byte) DeliveryReport {
	var report DeliveryReport
	started := time.Now()

	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		r.sendTo(conn, &report, services.EventError, ErrorPayload{Code: "INVALID_INPUT", Message: "malformed frame"})
		metrics.ObserveEvent("malformed", "invalid", time.Since(started))
		return report
	}

	userID, _ := r.registry.UserOf(conn.ID())
	ctx = context.WithValue(ctx, logger.ConnIdKey, conn.ID())
	if userID != uuid.Nil {
		ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())
	}

	ctx, span := r.tracer.Start(ctx, "ws "+frame.Event,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ws.event", frame.Event),
			attribute.String("ws.conn_id", conn.ID()),
		),
	)
	defer span.End()

	req := &request{conn: conn, userID: userID, frame: frame, report: &report}
	handler, ok := r.handlers[frame.Event]
	var (
		reply any
		err   error
	)
	if !ok {
		err = errUnknownEvent
	} else {
		reply, err = handler(ctx, req)
	}

	outcome := "ok"
	if err != nil {
		outcome = errorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.fail(ctx, req, err)
	} else if frame.Ack != "" {
		r.sendFrame(conn, &report, eventAck, AckFrame{Event: eventAck, Ack: frame.Ack, Data: reply})
	}

	span.SetAttributes(
		attribute.Int("ws.delivered", report.Delivered),
		attribute.Int("ws.dropped", report.Dropped),
		attribute.Int("ws.failed", len(report.Failures)),
	)
	metrics.ObserveEvent(frame.Event, outcome, time.Since(started))
	metrics.AddDeliveries(report.Delivered, report.Dropped, len(report.Failures))
	if len(report.Failures) > 0 {
		r.logger.Ctx(ctx).Warn("delivery failures",
			zap.String("event", frame.Event),
			zap.Int("failed", len(report.Failures)),
			zap.Error(report.Failures[0].Err),
		)
	}
	return report
}

var errUnknownEvent = errors.New("unknown event")

func errorCode(err error) string {
	if errors.Is(err, errUnknownEvent) {
		return "INVALID_INPUT"
	}
	return relay_errors.Code(err)
}

// fail reports err to the acting connection. NotFound without an ack id is
// dropped.
func (r *Router) fail(ctx context.Context, req *request, err error) {
	code := errorCode(err)
	if code == "INTERNAL_ERROR" {
		r.logger.Ctx(ctx).Error("event failed", zap.String("event", req.frame.Event), zap.Error(err))
	} else {
		r.logger.Ctx(ctx).Debug("event rejected", zap.String("event", req.frame.Event), zap.String("code", code), zap.Error(err))
	}

	message := err.Error()
	if code == "INTERNAL_ERROR" {
		message = "internal error"
	}
	if req.frame.Ack != "" {
		r.sendFrame(req.conn, req.report, eventAck, AckFrame{Event: eventAck, Ack: req.frame.Ack, Error: message, Code: code})
		return
	}
	if code == "NOT_FOUND" {
		return
	}
	r.sendTo(req.conn, req.report, services.EventError, ErrorPayload{Event: req.frame.Event, Code: code, Message: message})
}

// deliver resolves each notification's user and sends it. Offline users are
// counted as dropped.
func (r *Router) deliver(notes []services.Notification) DeliveryReport {
	var report DeliveryReport
	for _, n := range notes {
		conn, ok := r.registry.Resolve(n.UserID)
		if !ok {
			report.Dropped++
			continue
		}
		frame, err := encodeFrame(n.Event, n.Data)
		if err != nil {
			report.Failures = append(report.Failures, DeliveryFailure{UserID: n.UserID, ConnID: conn.ID(), Event: n.Event, Err: err})
			continue
		}
		if err := conn.Send(frame); err != nil {
			report.Failures = append(report.Failures, DeliveryFailure{UserID: n.UserID, ConnID: conn.ID(), Event: n.Event, Err: err})
			continue
		}
		report.Delivered++
	}
	return report
}

// broadcast sends one frame to every connection in the room. A failing
// member never stops the rest.
func (r *Router) broadcast(roomID uuid.UUID, event string, data any) DeliveryReport {
	var report DeliveryReport
	frame, err := encodeFrame(event, data)
	if err != nil {
		report.Failures = append(report.Failures, DeliveryFailure{Event: event, Err: err})
		return report
	}
	for _, conn := range r.rooms.Members(roomID) {
		if err := conn.Send(frame); err != nil {
			userID, _ := r.registry.UserOf(conn.ID())
			report.Failures = append(report.Failures, DeliveryFailure{UserID: userID, ConnID: conn.ID(), Event: event, Err: err})
			continue
		}
		report.Delivered++
	}
	return report
}

func (r *Router) sendTo(conn presence.Conn, report *DeliveryReport, event string, data any) {
	r.sendFrame(conn, report, event, OutboundFrame{Event: event, Data: data})
}

func (r *Router) sendFrame(conn presence.Conn, report *DeliveryReport, event string, v any) {
	frame, err := json.Marshal(v)
	if err == nil {
		err = conn.Send(frame)
	}
	if err != nil {
		userID, _ := r.registry.UserOf(conn.ID())
		report.Failures = append(report.Failures, DeliveryFailure{UserID: userID, ConnID: conn.ID(), Event: event, Err: err})
		return
	}
	report.Delivered++
}

// respond answers a request/response event. Clients that did not ask for an
// ack get the result as an event named after the request.
func (r *Router) respond(req *request, data any) (any, error) {
	if req.frame.Ack == "" {
		r.sendTo(req.conn, req.report, req.frame.Event, data)
	}
	return data, nil
}
