package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CompletionChannel is the Redis channel the summarization pipeline
// subscribes to.
const CompletionChannel = "interview_completed"

// CompletionEvent points the external summarization/scorecard pipeline at
// a finished interview.
type CompletionEvent struct {
	SessionID     string    `json:"sessionId"`
	CandidateID   string    `json:"candidateId"`
	TranscriptRef string    `json:"transcriptRef"`
	Coverage      string    `json:"coverage"`
	EndedAt       time.Time `json:"endedAt"`
}

// EventPublisher publishes completion events over Redis pub/sub.
type EventPublisher struct {
	rdb *redis.Client
}

func NewEventPublisher(rdb *redis.Client) *EventPublisher {
	return &EventPublisher{rdb: rdb}
}

func (p *EventPublisher) PublishCompletion(ctx context.Context, event CompletionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}
	return p.rdb.Publish(ctx, CompletionChannel, data).Err()
}
