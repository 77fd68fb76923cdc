package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/reporting-service/internal/domain"
	"github.com/spec-kit/reporting-service/internal/observability"
)

// ErrJobNotFound is returned when no state exists for the requested job id.
var ErrJobNotFound = errors.New("job not found")

const (
	maxAttempts  = 3
	jobStateTTL  = 24 * time.Hour
	dequeueBlock = 5 * time.Second
)

// Job is the unit of work moved through the queue. The trace id of the
// enqueuing request rides along so worker logs correlate with API logs.
type Job struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	TraceID  string          `json:"traceId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Attempts int             `json:"attempts"`
}

// Status is the externally visible state of a job.
type Status struct {
	State        domain.JobState `json:"state"`
	Attempts     int             `json:"attempts"`
	FailedReason string          `json:"failedReason,omitempty"`
	ReturnValue  json.RawMessage `json:"returnValue,omitempty"`
}

// Queue is a Redis list backed job queue with per-job state hashes.
type Queue struct {
	client *redis.Client
	name   string
}

// New builds a queue over the shared Redis client.
func New(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

func (q *Queue) listKey() string {
	return q.name + ":queue"
}

func (q *Queue) jobKey(id string) string {
	return q.name + ":job:" + id
}

// Enqueue registers the job state and pushes the job onto the list.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (*Job, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	job := &Job{
		ID:      uuid.NewString(),
		Name:    name,
		TraceID: observability.TraceID(ctx),
		Payload: raw,
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(job.ID), "state", string(domain.JobStatePending), "attempts", 0)
	pipe.Expire(ctx, q.jobKey(job.ID), jobStateTTL)
	pipe.LPush(ctx, q.listKey(), encoded)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// Dequeue blocks briefly for the next job. Returns (nil, nil) when the wait
// times out so the consumer loop can check for shutdown.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	res, err := q.client.BRPop(ctx, dequeueBlock, q.listKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPop returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// GetStatus reports the stored state for a job id.
func (q *Queue) GetStatus(ctx context.Context, id string) (*Status, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	status := &Status{State: domain.JobState(fields["state"])}
	if attempts := fields["attempts"]; attempts != "" {
		_, _ = fmt.Sscanf(attempts, "%d", &status.Attempts)
	}
	status.FailedReason = fields["failed_reason"]
	if rv := fields["return_value"]; rv != "" {
		status.ReturnValue = json.RawMessage(rv)
	}
	return status, nil
}

// MarkActive records that a consumer picked the job up.
func (q *Queue) MarkActive(ctx context.Context, id string) error {
	return q.client.HSet(ctx, q.jobKey(id), "state", string(domain.JobStateActive)).Err()
}

// MarkCompleted stores the job's return value and final state.
func (q *Queue) MarkCompleted(ctx context.Context, id string, returnValue any) error {
	encoded, err := json.Marshal(returnValue)
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, q.jobKey(id),
		"state", string(domain.JobStateCompleted),
		"return_value", encoded,
	).Err()
}

// MarkFailed requeues the job while attempts remain, otherwise records the
// terminal failure.
func (q *Queue) MarkFailed(ctx context.Context, job *Job, cause error) error {
	job.Attempts++
	if job.Attempts < maxAttempts {
		encoded, err := json.Marshal(job)
		if err != nil {
			return err
		}
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(job.ID), "state", string(domain.JobStatePending), "attempts", job.Attempts)
		pipe.LPush(ctx, q.listKey(), encoded)
		_, err = pipe.Exec(ctx)
		return err
	}
	return q.client.HSet(ctx, q.jobKey(job.ID),
		"state", string(domain.JobStateFailed),
		"attempts", job.Attempts,
		"failed_reason", cause.Error(),
	).Err()
}
