package queue

import (
	"github.com/sociantra/sociantra/internal/service"
)

type Queue struct {
	ps service.PublishService
}

func NewQueue(ps service.PublishService) *Queue {
	return &Queue{
		ps: ps,
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	UserID       int64  `json:"user_id"`
	Topic        string `json:"topic"`
	CustomText   string `json:"custom_text"`
	Platform     string `json:"platform"`
	IncludeImage bool   `json:"include_image"`
}
