package models

import (
	"database/sql"
	"time"
)

type PostingHistory struct {
	ID           int64         `db:"id" json:"id"`
	UserID       int64         `db:"user_id" json:"user_id"`
	ScheduleID   sql.NullInt64 `db:"schedule_id" json:"schedule_id"`
	Platform     string        `db:"platform" json:"platform"`
	RemotePostID string        `db:"remote_post_id" json:"remote_post_id"`
	Content      string        `db:"content" json:"content"`
	ImageURL     string        `db:"image_url" json:"image_url"`
	ErrorMessage string        `db:"error_message" json:"error_message"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}
