package job

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/service"
	"github.com/sociantra/sociantra/pkg/utils"
)

// ScheduleRunner walks every tenant once per tick and executes the
// schedules that have come due.
type ScheduleRunner struct {
	u      repository.UserRepository
	ca     repository.ConnectedAccountRepository
	stores service.TenantStores
	ps     service.PublishService
	loc    *time.Location
	now    func() time.Time
}

func NewScheduleRunner(
	u repository.UserRepository,
	ca repository.ConnectedAccountRepository,
	stores service.TenantStores,
	ps service.PublishService,
	loc *time.Location) *ScheduleRunner {
	return &ScheduleRunner{
		u:      u,
		ca:     ca,
		stores: stores,
		ps:     ps,
		loc:    loc,
		now:    time.Now,
	}
}

// Run executes one scheduler tick. The deadline stays under the tick
// interval so overlapping runs can't pile up.
func (r *ScheduleRunner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Second)
	defer cancel()

	users, err := r.u.ListWithTenants(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, user := range users {
		if err := r.runTenant(ctx, user); err != nil {
			slog.Info(fmt.Sprintf("scheduler skipped tenant %s: %v", user.DBName, err))
		}
	}
}

func (r *ScheduleRunner) runTenant(ctx context.Context, user *models.User) error {
	repo, err := r.stores.Schedules(ctx, user.ID)
	if err != nil {
		return err
	}

	schedules, err := repo.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, sp := range schedules {
		// One broken schedule must not block the rest of the tenant.
		if err := r.runSchedule(ctx, repo, sp); err != nil {
			slog.Info(fmt.Sprintf("schedule %d failed: %v", sp.ID, err))
		}
	}

	return nil
}

func (r *ScheduleRunner) runSchedule(ctx context.Context, repo repository.ScheduleRepository, sp *models.ScheduledPost) error {
	now := r.now().UTC()

	// ListActive already filters on is_active, but a schedule handed in
	// through any other path must still never execute while disabled.
	if !sp.IsActive {
		return nil
	}

	// Rows created before next_post_at existed get initialized on the
	// first tick instead of firing immediately.
	if !sp.NextPostAt.Valid {
		next, err := utils.NextRun(sp.CronExpr, now, r.loc)
		if err != nil {
			return err
		}
		return repo.SetNextPostAt(ctx, sp.ID, next)
	}

	if sp.NextPostAt.Time.After(now) {
		return nil
	}

	next, err := utils.NextRun(sp.CronExpr, now, r.loc)
	if err != nil {
		return err
	}

	// Credentials are resolved before anything is generated. A user
	// with no connected accounts, or only expired tokens, would
	// otherwise burn a generation call every tick while the schedule
	// stays due.
	infos, err := r.ca.ListInfoByUserID(ctx, sp.UserID)
	if err != nil {
		return err
	}

	var accounts []*models.ConnectedAccount
	var expired []*models.ConnectedAccount
	for _, info := range infos {
		// The info listing carries no credentials, load the full row.
		acc, isExist, err := r.ca.GetByUserPlatform(ctx, sp.UserID, info.Platform)
		if err != nil || !isExist {
			continue
		}
		if acc.Platform != models.PlatformWhatsapp && !acc.TokenValid(now) {
			expired = append(expired, acc)
			continue
		}
		accounts = append(accounts, acc)
	}

	if len(accounts) == 0 {
		slog.Info(fmt.Sprintf("schedule %d skipped: no usable platform credentials", sp.ID))
		return nil
	}

	customText := ""
	if sp.CustomText.Valid {
		customText = sp.CustomText.String
	}

	// Failures below leave the schedule untouched; the next tick sees
	// the same due condition and retries.
	post, err := r.ps.Generate(ctx, sp.UserID, sp.Topic, customText, sp.IncludeImage)
	if err != nil {
		r.recordFailure(ctx, sp, "", err)
		return err
	}

	content := service.ComposeContent(post.Text, post.Hashtags)

	for _, acc := range expired {
		r.recordFailure(ctx, sp, acc.Platform, fmt.Errorf("access token expired"))
	}

	posted := false
	for _, acc := range accounts {
		remoteID, imageURL, err := r.ps.PublishTo(ctx, acc, content, post.Image)

		ph := &models.PostingHistory{
			UserID:       sp.UserID,
			ScheduleID:   scheduleRef(sp.ID),
			Platform:     acc.Platform,
			RemotePostID: remoteID,
			Content:      content,
			ImageURL:     imageURL,
		}
		if err != nil {
			ph.ErrorMessage = err.Error()
			slog.Info(fmt.Sprintf("publishing schedule %d to %s failed: %v", sp.ID, acc.Platform, err))
		} else {
			posted = true
		}

		if err := r.ps.RecordHistory(ctx, ph); err != nil {
			slog.Info(err.Error())
		}
	}

	if posted {
		return repo.MarkPosted(ctx, sp.ID, now, next)
	}
	return nil
}

func (r *ScheduleRunner) recordFailure(ctx context.Context, sp *models.ScheduledPost, platform string, cause error) {
	ph := &models.PostingHistory{
		UserID:       sp.UserID,
		ScheduleID:   scheduleRef(sp.ID),
		Platform:     platform,
		ErrorMessage: cause.Error(),
	}
	if err := r.ps.RecordHistory(ctx, ph); err != nil {
		slog.Info(err.Error())
	}
}

func scheduleRef(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}
