package models

import "time"

// User is the minimal directory record used to enrich message payloads.
// Account management lives in a separate identity service.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Avatar    string    `gorm:"size:512" json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Post is the minimal help-request record used for post chat rooms and
// rich link previews inside message attachments.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Status     string    `gorm:"size:32;default:Open" json:"status"`
	AuthorName string    `gorm:"size:120" json:"author_name"`
	CoverURL   string    `gorm:"size:512" json:"cover_url"`
	Slug       string    `gorm:"size:255;index" json:"slug"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
