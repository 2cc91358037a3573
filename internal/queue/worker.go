package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sociantra/sociantra/internal/service"
)

func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	req := &service.PublishRequest{
		UserID:       payload.UserID,
		Topic:        payload.Topic,
		CustomText:   payload.CustomText,
		Platform:     payload.Platform,
		IncludeImage: payload.IncludeImage,
	}

	if err := j.ps.Publish(ctx, req); err != nil {
		log.Printf("Error publishing post for UserID %d on %s: %v", payload.UserID, payload.Platform, err)
		return err
	}

	return nil
}
