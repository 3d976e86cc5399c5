package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/router"
	"github.com/brandcraft/brandcraft/internal/task"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// Job is one queued logo generation. State and the eventual result live
// in Redis under job:<id> with a TTL; the queue itself is a Redis list.
type Job struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Task      task.Task      `json:"task"`
	Payload   string         `json:"payload"`
	Status    JobStatus      `json:"status"`
	Result    *router.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

const (
	queueKey = "jobs:pending"
	popWait  = 5 * time.Second
)

// Queue runs logo generation off the request path: enqueue returns
// immediately with a job id and the worker loop routes the task later.
type Queue struct {
	rdb    *redis.Client
	router *router.Router
	log    *zap.Logger
	ttl    time.Duration
}

func NewQueue(rdb *redis.Client, r *router.Router, log *zap.Logger) *Queue {
	return &Queue{
		rdb:    rdb,
		router: r,
		log:    log,
		ttl:    24 * time.Hour,
	}
}

func jobKey(id string) string {
	return "job:" + id
}

func (q *Queue) Enqueue(ctx context.Context, userID string, t task.Task, payload string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New().String(),
		UserID:    userID,
		Task:      t,
		Payload:   payload,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.save(ctx, job); err != nil {
		return nil, err
	}
	if err := q.rdb.LPush(ctx, queueKey, job.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

// Process runs the worker loop until ctx is cancelled.
func (q *Queue) Process(ctx context.Context) error {
	q.log.Info("job worker started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := q.rdb.BRPop(ctx, popWait, queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			q.log.Warn("job queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns [key, value].
		if len(res) == 2 {
			q.run(ctx, res[1])
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	job, err := q.Get(ctx, id)
	if err != nil {
		q.log.Warn("queued job vanished", zap.String("job_id", id), zap.Error(err))
		return
	}

	job.Status = JobStatusRunning
	if err := q.save(ctx, job); err != nil {
		q.log.Warn("failed to mark job running", zap.String("job_id", id), zap.Error(err))
	}

	result, routeErr := q.router.Route(ctx, job.Task, job.Payload)
	if routeErr != nil {
		job.Status = JobStatusFailed
		job.Error = routeErr.Error()
	} else {
		job.Status = JobStatusDone
		job.Result = result
	}

	if err := q.save(ctx, job); err != nil {
		q.log.Error("failed to store job outcome", zap.String("job_id", id), zap.Error(err))
		return
	}
	q.log.Info("job finished",
		zap.String("job_id", id),
		zap.String("status", string(job.Status)),
	)
}

func (q *Queue) save(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.rdb.Set(ctx, jobKey(job.ID), data, q.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}
