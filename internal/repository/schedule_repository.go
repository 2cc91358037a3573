package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/sociantra/sociantra/internal/models"
)

// ScheduleRepository persists recurring posting schedules. It is
// constructed over a tenant database handle, not the directory db.
type ScheduleRepository interface {
	Create(ctx context.Context, sp *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	ListActive(ctx context.Context) ([]*models.ScheduledPost, error)
	SetActive(ctx context.Context, userID, id int64, active bool, nextPostAt *time.Time) (bool, error)
	SetNextPostAt(ctx context.Context, id int64, nextPostAt time.Time) error
	MarkPosted(ctx context.Context, id int64, postedAt, nextPostAt time.Time) error
	Delete(ctx context.Context, userID, id int64) (bool, error)
}

type scheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, user_id, topic, custom_text, cron_expr, include_image,
	is_active, last_posted_at, next_post_at, post_count, created_at, updated_at`

func scanSchedule(row interface{ Scan(...interface{}) error }) (*models.ScheduledPost, error) {
	var sp models.ScheduledPost
	err := row.Scan(&sp.ID, &sp.UserID, &sp.Topic, &sp.CustomText, &sp.CronExpr,
		&sp.IncludeImage, &sp.IsActive, &sp.LastPostedAt, &sp.NextPostAt,
		&sp.PostCount, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *scheduleRepository) Create(ctx context.Context, sp *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (user_id, topic, custom_text, cron_expr, include_image, is_active, next_post_at, post_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, sp.UserID, sp.Topic, sp.CustomText,
		sp.CronExpr, sp.IncludeImage, sp.IsActive, sp.NextPostAt, sp.PostCount).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_posts WHERE id = $1`
	sp, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sp, nil
}

func (r *scheduleRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.ScheduledPost
	for rows.Next() {
		sp, err := scanSchedule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		schedules = append(schedules, sp)
	}
	return schedules, nil
}

func (r *scheduleRepository) ListActive(ctx context.Context) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_posts WHERE is_active = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.ScheduledPost
	for rows.Next() {
		sp, err := scanSchedule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		schedules = append(schedules, sp)
	}
	return schedules, nil
}

func (r *scheduleRepository) SetActive(ctx context.Context, userID, id int64, active bool, nextPostAt *time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET is_active = $1,
			next_post_at = COALESCE($2, next_post_at),
			updated_at = $3
		WHERE id = $4 AND user_id = $5
	`
	result, err := r.db.ExecContext(ctx, query, active, nextPostAt, time.Now(), id, userID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected > 0, nil
}

func (r *scheduleRepository) SetNextPostAt(ctx context.Context, id int64, nextPostAt time.Time) error {
	query := `
		UPDATE scheduled_posts
		SET next_post_at = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, nextPostAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduleRepository) MarkPosted(ctx context.Context, id int64, postedAt, nextPostAt time.Time) error {
	query := `
		UPDATE scheduled_posts
		SET last_posted_at = $1,
			next_post_at = $2,
			post_count = post_count + 1,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, postedAt, nextPostAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduleRepository) Delete(ctx context.Context, userID, id int64) (bool, error) {
	query := `DELETE FROM scheduled_posts WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected > 0, nil
}
