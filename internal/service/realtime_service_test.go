package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sahayata/sahayata-api/internal/dto"
)

type hubMessageSender struct {
	response dto.MessageResponse
	err      error
	lastPost uint
}

func (s *hubMessageSender) SendToPost(_ context.Context, _, postID uint, _ dto.MessageSendRequest) (dto.MessageResponse, error) {
	s.lastPost = postID
	return s.response, s.err
}

func (s *hubMessageSender) SendToConversation(_ context.Context, _, conversationID uint, _ dto.MessageSendRequest) (dto.MessageResponse, error) {
	return s.response, s.err
}

func newRealtimeForTest(t *testing.T) *realtimeService {
	t.Helper()
	return NewRealtimeService(nil, "", nil, zerolog.Nop()).(*realtimeService)
}

func newHubClient(s *realtimeService, userID uint, buffer int) *realtimeClient {
	return &realtimeClient{
		send:    make(chan []byte, buffer),
		options: ConnectionOptions{UserID: userID},
		service: s,
		closed:  make(chan struct{}),
		baseCtx: context.Background(),
		rooms:   make(map[string]struct{}),
	}
}

func readFrame(t *testing.T, client *realtimeClient) dto.RealtimeEnvelope {
	t.Helper()
	select {
	case frame := <-client.send:
		var envelope dto.RealtimeEnvelope
		require.NoError(t, json.Unmarshal(frame, &envelope))
		return envelope
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return dto.RealtimeEnvelope{}
	}
}

func rawPayload(t *testing.T, payload interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func TestHubBroadcastReachesOnlyJoinedRooms(t *testing.T) {
	svc := newRealtimeForTest(t)
	inRoom := newHubClient(svc, 1, 4)
	elsewhere := newHubClient(svc, 2, 4)

	svc.hub.join(inRoom, PostRoom(7))
	svc.hub.join(elsewhere, PostRoom(8))

	svc.hub.broadcast(PostRoom(7), []byte(`{"event":"receiveMessage"}`))

	envelope := readFrame(t, inRoom)
	require.Equal(t, dto.EventReceiveMessage, envelope.Event)
	require.Empty(t, elsewhere.send)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	svc := newRealtimeForTest(t)
	client := newHubClient(svc, 1, 4)

	svc.hub.join(client, PostRoom(7))
	svc.hub.leave(client, PostRoom(7))

	svc.hub.broadcast(PostRoom(7), []byte(`{"event":"receiveMessage"}`))
	require.Empty(t, client.send)
}

func TestHubDropRemovesClientFromAllRooms(t *testing.T) {
	svc := newRealtimeForTest(t)
	client := newHubClient(svc, 1, 4)

	svc.hub.join(client, PostRoom(7))
	svc.hub.join(client, GroupRoom(3))
	svc.hub.drop(client)

	svc.hub.broadcast(PostRoom(7), []byte(`{"event":"receiveMessage"}`))
	svc.hub.broadcast(GroupRoom(3), []byte(`{"event":"group:message"}`))
	require.Empty(t, client.send)

	svc.hub.mu.RLock()
	defer svc.hub.mu.RUnlock()
	require.Empty(t, svc.hub.rooms)
}

func TestHubSlowClientFramesAreDropped(t *testing.T) {
	svc := newRealtimeForTest(t)
	slow := newHubClient(svc, 1, 1)
	svc.hub.join(slow, PostRoom(7))

	svc.hub.broadcast(PostRoom(7), []byte(`{"event":"receiveMessage","data":{"id":1}}`))
	svc.hub.broadcast(PostRoom(7), []byte(`{"event":"receiveMessage","data":{"id":2}}`))

	require.Len(t, slow.send, 1)
	envelope := readFrame(t, slow)

	var message struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &message))
	require.Equal(t, uint(1), message.ID)
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	svc := newRealtimeForTest(t)
	client := newHubClient(svc, 1, 4)
	svc.hub.join(client, GroupRoom(3))

	svc.Emit(GroupRoom(3), dto.EventGroupTyping, dto.TypingNotice{GroupID: 3, UserID: 9})

	envelope := readFrame(t, client)
	require.Equal(t, dto.EventGroupTyping, envelope.Event)

	var notice dto.TypingNotice
	require.NoError(t, json.Unmarshal(envelope.Data, &notice))
	require.Equal(t, uint(3), notice.GroupID)
	require.Equal(t, uint(9), notice.UserID)
}

func TestFanEventIgnoresOwnNode(t *testing.T) {
	svc := newRealtimeForTest(t)
	client := newHubClient(svc, 1, 4)
	svc.hub.join(client, PostRoom(7))

	ownEvent, err := json.Marshal(fanEvent{Source: svc.nodeID, Room: PostRoom(7), Event: dto.EventReceiveMessage})
	require.NoError(t, err)
	svc.handleFanEvent(ownEvent)
	require.Empty(t, client.send)

	peerEvent, err := json.Marshal(fanEvent{Source: "peer-node", Room: PostRoom(7), Event: dto.EventReceiveMessage})
	require.NoError(t, err)
	svc.handleFanEvent(peerEvent)

	envelope := readFrame(t, client)
	require.Equal(t, dto.EventReceiveMessage, envelope.Event)
}

func TestInboundJoinRoutesToPostRoom(t *testing.T) {
	svc := newRealtimeForTest(t)
	client := newHubClient(svc, 1, 4)

	client.handle(dto.RealtimeEnvelope{
		Event: dto.EventJoinRoom,
		Data:  rawPayload(t, dto.RoomJoinPayload{PostID: 7}),
	})

	svc.hub.broadcast(PostRoom(7), []byte(`{"event":"receiveMessage"}`))
	envelope := readFrame(t, client)
	require.Equal(t, dto.EventReceiveMessage, envelope.Event)
}

func TestInboundSendAcksResultToSender(t *testing.T) {
	svc := newRealtimeForTest(t)
	sender := &hubMessageSender{response: dto.MessageResponse{ID: 44, Text: "hello"}}
	svc.BindSenders(sender, nil)

	client := newHubClient(svc, 1, 4)
	client.handle(dto.RealtimeEnvelope{
		Event: dto.EventSendMessage,
		Data:  rawPayload(t, dto.WSPostMessagePayload{PostID: 7, Text: "hello"}),
	})

	require.Equal(t, uint(7), sender.lastPost)

	envelope := readFrame(t, client)
	require.Equal(t, dto.EventReceiveMessage, envelope.Event)

	var response dto.MessageResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &response))
	require.Equal(t, uint(44), response.ID)
}

func TestInboundSendFailureAcksError(t *testing.T) {
	svc := newRealtimeForTest(t)
	svc.BindSenders(&hubMessageSender{err: errors.New("post not found")}, nil)

	client := newHubClient(svc, 1, 4)
	client.handle(dto.RealtimeEnvelope{
		Event: dto.EventSendMessage,
		Data:  rawPayload(t, dto.WSPostMessagePayload{PostID: 99, Text: "hello"}),
	})

	envelope := readFrame(t, client)
	require.Equal(t, "error", envelope.Event)
}
