package service

import "errors"

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	// ErrEmptyMessage rejects messages with neither text nor attachments.
	ErrEmptyMessage = errors.New("message must include text or attachments")
	// ErrInvalidReaction rejects emojis outside the allow-list.
	ErrInvalidReaction = errors.New("reaction emoji not allowed")
	// ErrInvalidReply rejects reply references to unknown or foreign messages.
	ErrInvalidReply = errors.New("reply target not found in this group")
	// ErrInvalidStatus rejects unknown group status values.
	ErrInvalidStatus = errors.New("invalid group status")
	// ErrNotSender guards sender-only mutations (edit, delete for everyone).
	ErrNotSender = errors.New("only the sender may perform this action")
	// ErrNotMember guards group chat behind membership.
	ErrNotMember = errors.New("join group to chat")
	// ErrNotParticipant guards conversation access.
	ErrNotParticipant = errors.New("not a participant of this conversation")
	// ErrNotCreator guards creator-only group metadata updates.
	ErrNotCreator = errors.New("only the group creator may update metadata")
	// ErrMessageDeleted blocks edits on messages deleted for everyone.
	ErrMessageDeleted = errors.New("cannot edit a deleted message")
)
