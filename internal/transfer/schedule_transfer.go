package transfer

type ScheduleCreation struct {
	Topic        string `json:"topic"`
	CustomText   string `json:"custom_text"`
	CronExpr     string `json:"cron_expr"`
	IncludeImage bool   `json:"include_image"`
}

type PostCreation struct {
	Topic        string `json:"topic"`
	CustomText   string `json:"custom_text"`
	Platform     string `json:"platform"`
	IncludeImage bool   `json:"include_image"`
	ScheduledAt  string `json:"scheduled_at"` // "2006-01-02T15:04", optional
}

type SettingsUpdate struct {
	Language string `json:"language"`
	Category string `json:"category"`
}
