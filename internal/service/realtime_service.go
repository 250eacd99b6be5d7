package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/observability"
)

const realtimeSendBufferSize = 32

// ConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ConnectionOptions struct {
	UserID        uint
	CorrelationID string
	Context       context.Context
}

// MessageSender is the slice of the message service the socket needs for
// inbound sends. It is bound after construction to avoid a constructor cycle
// with the services that broadcast through the hub.
type MessageSender interface {
	SendToPost(ctx context.Context, senderID, postID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	SendToConversation(ctx context.Context, senderID, conversationID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error)
}

// GroupMessageSender is the slice of the group message service the socket
// needs for inbound sends.
type GroupMessageSender interface {
	Send(ctx context.Context, senderID, groupID uint, payload dto.GroupMessageSendRequest) (dto.GroupMessageResponse, error)
}

// RealtimeService manages websocket connections, room membership and event
// delivery. It implements Broadcaster so the rest of the service layer can
// emit into rooms without knowing about sockets.
type RealtimeService interface {
	Broadcaster
	ServeConnection(conn *websocket.Conn, opts ConnectionOptions)
	BindSenders(messages MessageSender, groups GroupMessageSender)
	Start(ctx context.Context)
}

type realtimeService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	hub         *realtimeHub
	nodeID      string

	messages MessageSender
	groups   GroupMessageSender
}

// realtimeHub keeps track of active websocket clients per room.
type realtimeHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*realtimeClient]struct{}
	log   zerolog.Logger
}

type realtimeClient struct {
	conn    *websocket.Conn
	send    chan []byte
	options ConnectionOptions
	service *realtimeService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context

	mu    sync.Mutex
	rooms map[string]struct{}
}

// fanEvent is the cross-node envelope published to redis and NATS.
type fanEvent struct {
	Source string          `json:"source"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	SentAt time.Time       `json:"sent_at"`
}

// NewRealtimeService creates the websocket hub. channelBase namespaces the
// redis channel and NATS subject so several deployments can share a broker.
func NewRealtimeService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RealtimeService {
	hub := &realtimeHub{
		rooms: make(map[string]map[*realtimeClient]struct{}),
		log:   logger.With().Str("component", "realtime_hub").Logger(),
	}

	streamChannel := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":realtime"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".realtime"
	}

	return &realtimeService{
		redis:       redisClient,
		redisStream: streamChannel,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "realtime_service").Logger(),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *realtimeService) BindSenders(messages MessageSender, groups GroupMessageSender) {
	s.messages = messages
	s.groups = groups
}

func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Emit delivers an event to every local client in the room and fans it out to
// peer nodes over redis and NATS.
func (s *realtimeService) Emit(room, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("failed to marshal realtime payload")
		return
	}

	frame, err := json.Marshal(dto.RealtimeEnvelope{Event: event, Data: data})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("failed to frame realtime event")
		return
	}

	s.hub.broadcast(room, frame)
	s.publish(room, event, data)
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts ConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &realtimeClient{
		conn:    conn,
		send:    make(chan []byte, realtimeSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
		rooms:   make(map[string]struct{}),
	}

	observability.RealtimeConnectionsTotal().Inc()

	go client.writer()
	client.reader()
}

func (s *realtimeService) publish(room, event string, data json.RawMessage) {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(fanEvent{
		Source: s.nodeID,
		Room:   room,
		Event:  event,
		Data:   data,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal fan-out event")
		return
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(context.Background(), s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish realtime event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish realtime event to nats")
		}
	}
}

func (s *realtimeService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleFanEvent([]byte(msg.Payload))
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "sahayata-realtime", func(msg *nats.Msg) {
		s.handleFanEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (s *realtimeService) handleFanEvent(data []byte) {
	var event fanEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid realtime fan-out event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	frame, err := json.Marshal(dto.RealtimeEnvelope{Event: event.Event, Data: event.Data})
	if err != nil {
		return
	}
	s.hub.broadcast(event.Room, frame)
}

func (h *realtimeHub) join(client *realtimeClient, room string) {
	h.mu.Lock()
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*realtimeClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.mu.Unlock()

	client.mu.Lock()
	client.rooms[room] = struct{}{}
	client.mu.Unlock()

	h.log.Debug().Str("room", room).Uint("user_id", client.options.UserID).Msg("client joined room")
}

func (h *realtimeHub) leave(client *realtimeClient, room string) {
	h.mu.Lock()
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	client.mu.Lock()
	delete(client.rooms, room)
	client.mu.Unlock()

	h.log.Debug().Str("room", room).Uint("user_id", client.options.UserID).Msg("client left room")
}

func (h *realtimeHub) drop(client *realtimeClient) {
	client.mu.Lock()
	rooms := make([]string, 0, len(client.rooms))
	for room := range client.rooms {
		rooms = append(rooms, room)
	}
	client.rooms = make(map[string]struct{})
	client.mu.Unlock()

	h.mu.Lock()
	for _, room := range rooms {
		if clients, ok := h.rooms[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
}

func (h *realtimeHub) broadcast(room string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- frame:
		default:
			h.log.Warn().Str("room", room).Uint("user_id", client.options.UserID).Msg("dropping realtime frame for slow client")
		}
	}
}

func (c *realtimeClient) reader() {
	defer c.close()

	for {
		var envelope dto.RealtimeEnvelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			c.service.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}
		c.handle(envelope)
	}
}

func (c *realtimeClient) handle(envelope dto.RealtimeEnvelope) {
	s := c.service
	hub := s.hub

	switch envelope.Event {
	case dto.EventJoinRoom:
		var payload dto.RoomJoinPayload
		if c.decode(envelope, &payload) {
			hub.join(c, PostRoom(payload.PostID))
		}
	case dto.EventLeaveRoom:
		var payload dto.RoomJoinPayload
		if c.decode(envelope, &payload) {
			hub.leave(c, PostRoom(payload.PostID))
		}
	case dto.EventJoinConversation:
		var payload dto.ConversationJoinPayload
		if c.decode(envelope, &payload) {
			hub.join(c, ConversationRoom(payload.ConversationID))
		}
	case dto.EventGroupJoin:
		var payload dto.GroupRoomPayload
		if c.decode(envelope, &payload) {
			hub.join(c, GroupRoom(payload.GroupID))
		}
	case dto.EventGroupLeave:
		var payload dto.GroupRoomPayload
		if c.decode(envelope, &payload) {
			hub.leave(c, GroupRoom(payload.GroupID))
		}
	case dto.EventGroupTyping:
		var payload dto.GroupRoomPayload
		if c.decode(envelope, &payload) {
			s.Emit(GroupRoom(payload.GroupID), dto.EventGroupTyping, dto.TypingNotice{
				GroupID: payload.GroupID,
				UserID:  c.options.UserID,
			})
		}
	case dto.EventSendMessage:
		var payload dto.WSPostMessagePayload
		if !c.decode(envelope, &payload) {
			return
		}
		c.submit(func(ctx context.Context) (interface{}, string, error) {
			if s.messages == nil {
				return nil, "", errors.New("message sender not bound")
			}
			response, err := s.messages.SendToPost(ctx, c.options.UserID, payload.PostID, dto.MessageSendRequest{
				Text:     payload.Text,
				ClientID: payload.ClientID,
			})
			return response, dto.EventReceiveMessage, err
		})
	case dto.EventSendPrivateMessage:
		var payload dto.WSPrivateMessagePayload
		if !c.decode(envelope, &payload) {
			return
		}
		c.submit(func(ctx context.Context) (interface{}, string, error) {
			if s.messages == nil {
				return nil, "", errors.New("message sender not bound")
			}
			response, err := s.messages.SendToConversation(ctx, c.options.UserID, payload.ConversationID, dto.MessageSendRequest{
				Text:     payload.Text,
				ClientID: payload.ClientID,
			})
			return response, dto.EventReceivePrivate, err
		})
	case dto.EventGroupSend:
		var payload dto.WSGroupMessagePayload
		if !c.decode(envelope, &payload) {
			return
		}
		c.submit(func(ctx context.Context) (interface{}, string, error) {
			if s.groups == nil {
				return nil, "", errors.New("group sender not bound")
			}
			response, err := s.groups.Send(ctx, c.options.UserID, payload.GroupID, dto.GroupMessageSendRequest{
				Text:     payload.Text,
				ClientID: payload.ClientID,
			})
			return response, dto.EventGroupMessage, err
		})
	default:
		s.logger.Debug().Str("event", envelope.Event).Msg("unknown realtime event")
	}
}

// submit runs an inbound send and acks the result to the sender's own queue,
// so the sender hears the outcome even when it never joined the room.
func (c *realtimeClient) submit(fn func(ctx context.Context) (interface{}, string, error)) {
	response, event, err := fn(c.baseCtx)
	if err != nil {
		c.service.logger.Warn().Err(err).Uint("user_id", c.options.UserID).Msg("failed to process inbound realtime send")
		c.ack(dto.RealtimeEvent{Event: "error", Data: map[string]string{"message": err.Error()}})
		return
	}
	c.ack(dto.RealtimeEvent{Event: event, Data: response})
}

func (c *realtimeClient) ack(event dto.RealtimeEvent) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(dto.RealtimeEnvelope{Event: event.Event, Data: data})
	if err != nil {
		return
	}

	select {
	case <-c.closed:
	case c.send <- frame:
	default:
		c.service.logger.Warn().Uint("user_id", c.options.UserID).Msg("sender queue full, dropping ack frame")
	}
}

func (c *realtimeClient) decode(envelope dto.RealtimeEnvelope, out interface{}) bool {
	if len(envelope.Data) == 0 {
		return false
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		c.service.logger.Warn().Err(err).Str("event", envelope.Event).Msg("invalid realtime payload")
		return false
	}
	return true
}

func (c *realtimeClient) writer() {
	defer c.close()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *realtimeClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.drop(c)
		_ = c.conn.Close()
	})
}
