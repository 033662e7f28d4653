package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"identity-registry/internal/shared"
)

// Client wraps the asynq producer. It satisfies the domain EventPublisher
// interfaces: services hand it a task type and a payload, the worker picks
// the task up on the events queue.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddress, redisPassword string, redisDB int) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddress,
			Password: redisPassword,
			DB:       redisDB,
		}),
	}
}

// Publish enqueues a domain event for asynchronous processing.
func (c *Client) Publish(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, data)

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueEvents),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
