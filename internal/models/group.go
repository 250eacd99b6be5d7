package models

import (
	"time"

	"gorm.io/datatypes"
)

// Group lifecycle states.
const (
	GroupStatusOpen       = "Open"
	GroupStatusInProgress = "In Progress"
	GroupStatusResolved   = "Resolved"
	GroupStatusOnHold     = "On Hold"
)

// GroupStatuses lists the accepted group status values.
var GroupStatuses = []string{GroupStatusOpen, GroupStatusInProgress, GroupStatusResolved, GroupStatusOnHold}

// Group is a topic room where users congregate around a help request.
type Group struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:255;not null;index" json:"name"`
	Description   string     `gorm:"type:text" json:"description"`
	Category      string     `gorm:"size:64;default:General;index" json:"category"`
	ProblemTitle  string     `gorm:"size:255" json:"problem_title"`
	Status        string     `gorm:"size:32;default:Open;index" json:"status"`
	CreatedByID   uint       `gorm:"index;not null" json:"created_by_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	Pledges []GroupPledge `gorm:"foreignKey:GroupID" json:"pledges,omitempty"`
}

// GroupMember is one membership row; the unique index makes join idempotent.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	GroupID   uint      `gorm:"uniqueIndex:idx_group_member,priority:1;not null" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_group_member,priority:2;not null" json:"user_id"`
	CreatedAt time.Time `json:"joined_at"`
}

// GroupPledge marks a user as a pledged helper for the group's problem.
// Pledging does not require membership.
type GroupPledge struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	GroupID   uint      `gorm:"uniqueIndex:idx_group_pledge,priority:1;not null" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_group_pledge,priority:2;not null" json:"user_id"`
	CreatedAt time.Time `json:"pledged_at"`
}

// GroupMessage is a message posted into a group room. The unique
// (group_id, client_id) index de-duplicates retried sends.
type GroupMessage struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	GroupID     uint           `gorm:"uniqueIndex:idx_group_client,priority:1;index:idx_group_created,priority:1;not null" json:"group_id"`
	SenderID    uint           `gorm:"index;not null" json:"sender_id"`
	Text        string         `gorm:"type:text" json:"text"`
	Attachments datatypes.JSON `gorm:"type:json" json:"attachments,omitempty"`
	ReplyToID   *uint          `gorm:"index" json:"reply_to_id,omitempty"`
	ClientID    *string        `gorm:"size:64;uniqueIndex:idx_group_client,priority:2" json:"client_id,omitempty"`
	CreatedAt   time.Time      `gorm:"index:idx_group_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	ReplyTo *GroupMessage `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
}

// GroupReadState stores the per-user read cursor for a group. Unread counts
// are messages created strictly after LastReadAt.
type GroupReadState struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	GroupID    uint      `gorm:"uniqueIndex:idx_group_read_state,priority:1;not null" json:"group_id"`
	UserID     uint      `gorm:"uniqueIndex:idx_group_read_state,priority:2;not null" json:"user_id"`
	LastReadAt time.Time `json:"last_read_at"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}
