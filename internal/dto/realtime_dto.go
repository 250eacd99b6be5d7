package dto

import "encoding/json"

// Realtime event names. Inbound events are sent by clients over the
// websocket, outbound events are broadcast into rooms by the server.
const (
	EventJoinRoom           = "joinRoom"
	EventLeaveRoom          = "leaveRoom"
	EventSendMessage        = "sendMessage"
	EventReceiveMessage     = "receiveMessage"
	EventJoinConversation   = "joinConversation"
	EventSendPrivateMessage = "sendPrivateMessage"
	EventReceivePrivate     = "receivePrivateMessage"
	EventMessagesRead       = "messagesRead"
	EventMessageEdited      = "messageEdited"
	EventMessageReacted     = "messageReacted"
	EventMessageDeleted     = "messageDeleted"
	EventGroupJoin          = "group:join"
	EventGroupLeave         = "group:leave"
	EventGroupSend          = "group:send"
	EventGroupMessage       = "group:message"
	EventGroupTyping        = "group:typing"
	EventGroupUpdate        = "group:update"
)

// RealtimeEnvelope frames every websocket frame in both directions.
type RealtimeEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RealtimeEvent is an outbound event before serialization.
type RealtimeEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// RoomJoinPayload joins or leaves a post chat room.
type RoomJoinPayload struct {
	PostID uint `json:"post_id"`
}

// ConversationJoinPayload joins a direct-conversation room.
type ConversationJoinPayload struct {
	ConversationID uint `json:"conversation_id"`
}

// GroupRoomPayload joins or leaves a group room, or signals typing.
type GroupRoomPayload struct {
	GroupID uint `json:"group_id"`
}

// WSPostMessagePayload sends a post-room message over the socket.
type WSPostMessagePayload struct {
	PostID   uint   `json:"post_id"`
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"`
}

// WSPrivateMessagePayload sends a direct message over the socket.
type WSPrivateMessagePayload struct {
	ConversationID uint   `json:"conversation_id"`
	Text           string `json:"text"`
	ClientID       string `json:"client_id,omitempty"`
}

// WSGroupMessagePayload sends a group message over the socket.
type WSGroupMessagePayload struct {
	GroupID  uint   `json:"group_id"`
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"`
}

// TypingNotice is relayed to a group room; it is never persisted.
type TypingNotice struct {
	GroupID uint `json:"group_id"`
	UserID  uint `json:"user_id"`
}

// MessageEditedNotice announces an edit to a room.
type MessageEditedNotice struct {
	MessageID uint   `json:"message_id"`
	Text      string `json:"text"`
}

// MessageReactedNotice announces the updated reaction set of a message.
type MessageReactedNotice struct {
	MessageID uint           `json:"message_id"`
	Reactions []ReactionView `json:"reactions"`
}

// MessageDeletedNotice announces a delete-for-everyone. MessageID is zero for
// whole-room clears, with Mode distinguishing the two cases.
type MessageDeletedNotice struct {
	MessageID uint   `json:"message_id,omitempty"`
	Mode      string `json:"mode"`
}

// MessagesReadNotice announces that a reader caught up in a conversation.
type MessagesReadNotice struct {
	ConversationID uint  `json:"conversation_id"`
	ReaderID       uint  `json:"reader_id"`
	Updated        int64 `json:"updated"`
}
