package models

import (
	"database/sql"
	"time"
)

type ScheduledPost struct {
	ID           int64          `db:"id" json:"id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	Topic        string         `db:"topic" json:"topic"`
	CustomText   sql.NullString `db:"custom_text" json:"custom_text"`
	CronExpr     string         `db:"cron_expr" json:"cron_expr"`
	IncludeImage bool           `db:"include_image" json:"include_image"`
	IsActive     bool           `db:"is_active" json:"is_active"`
	LastPostedAt sql.NullTime   `db:"last_posted_at" json:"last_posted_at"`
	NextPostAt   sql.NullTime   `db:"next_post_at" json:"next_post_at"`
	PostCount    int64          `db:"post_count" json:"post_count"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
