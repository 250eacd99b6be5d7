package service

import "fmt"

// Broadcaster fans an event out to every live connection joined to a room.
// Emission is fire-and-forget: the persistence commit is the durability
// boundary and the broadcast carries no delivery guarantee.
type Broadcaster interface {
	Emit(room, event string, payload interface{})
}

// PostRoom keys the broadcast room for a help-request chat.
func PostRoom(postID uint) string {
	return fmt.Sprintf("post:%d", postID)
}

// ConversationRoom keys the broadcast room for a direct conversation.
func ConversationRoom(conversationID uint) string {
	return fmt.Sprintf("conv:%d", conversationID)
}

// GroupRoom keys the broadcast room for a topic group.
func GroupRoom(groupID uint) string {
	return fmt.Sprintf("group:%d", groupID)
}

// NopBroadcaster discards all events. Used where realtime delivery is not
// wired, e.g. in tests.
type NopBroadcaster struct{}

// Emit implements Broadcaster.
func (NopBroadcaster) Emit(string, string, interface{}) {}
