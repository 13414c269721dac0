package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxIdempotencyKey = 128

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrPromptNotFound   = errors.New("prompt not found")
	ErrIdempotencyKey   = errors.New("idempotency key too long")
	ErrQueueUnavailable = errors.New("job queue not configured")
	ErrEnqueue          = errors.New("enqueue failed")
)

// Publisher hands a job id to the worker queue.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type textGenerator interface {
	GenerateText(ctx context.Context, userID uint64, in TextInput) ai.TextResponse
}

// JobService runs text generation out of band: Submit stores and enqueues,
// Run is called by the worker for each delivered job id.
type JobService struct {
	repo    *JobRepo
	gen     textGenerator
	prompts PromptStore
	pub     Publisher
	metrics *metrics.Recorder
}

func NewJobService(repo *JobRepo, gen textGenerator, prompts PromptStore, pub Publisher, rec *metrics.Recorder) *JobService {
	return &JobService{repo: repo, gen: gen, prompts: prompts, pub: pub, metrics: rec}
}

// Submit creates a queued job and publishes it. With an idempotency key a
// repeated submit returns the first job and publishes nothing.
func (s *JobService) Submit(ctx context.Context, userID uint64, in TextInput, idempotencyKey string) (*Job, bool, error) {
	key := strings.TrimSpace(idempotencyKey)
	if len(key) > maxIdempotencyKey {
		return nil, false, ErrIdempotencyKey
	}
	if s.pub == nil {
		return nil, false, ErrQueueUnavailable
	}

	// a foreign prompt id is reported here rather than as a failed job
	if _, err := s.prompts.FindByIDAndUser(ctx, in.PromptID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrPromptNotFound
		}
		return nil, false, err
	}

	j := &Job{
		ID:     common.NewULID(),
		UserID: userID,
		Input:  datatypes.NewJSONType(in),
		Status: JobQueued,
	}
	if key != "" {
		j.IdempotencyKey = &key
	}

	job, created, err := s.repo.CreateOrGetExisting(ctx, j)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return job, false, nil
	}

	if err := s.pub.PublishJob(ctx, job.ID); err != nil {
		log.Printf("[JobService] publish failed job=%s user=%d err=%v", job.ID, userID, err)
		_ = s.repo.MarkFailed(ctx, job.ID, "", ErrEnqueue.Error(), string(ai.FailureInternal))
		s.metrics.JobFinished(string(JobFailed))
		return nil, false, fmt.Errorf("%w: %v", ErrEnqueue, err)
	}
	return job, true, nil
}

// Get returns the caller's job. Jobs of other users are reported as missing.
func (s *JobService) Get(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	j, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// Run executes one job. A failed generation is a finished job, not an error;
// Run only returns errors for storage problems so the message can be retried.
func (s *JobService) Run(ctx context.Context, jobID string) error {
	jobStart := time.Now()

	claimed, err := s.repo.MarkRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("[JobService] skip job=%s: already finished", jobID)
		return nil
	}

	j, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	t0 := time.Now()
	resp := s.gen.GenerateText(ctx, j.UserID, j.Input.Data())
	genCost := time.Since(t0)

	if !resp.Success {
		if err := s.repo.MarkFailed(ctx, jobID, resp.RequestID, resp.Error, string(resp.Failure)); err != nil {
			return err
		}
		s.metrics.JobFinished(string(JobFailed))
		log.Printf("job_timing_failed job=%s request_id=%s gen=%s total=%s err=%s",
			jobID, resp.RequestID, genCost, time.Since(jobStart), resp.Error)
		return nil
	}

	if err := s.repo.MarkSucceeded(ctx, jobID, resp.RequestID, resp.Content); err != nil {
		return err
	}
	s.metrics.JobFinished(string(JobSucceeded))

	if total := time.Since(jobStart); total > 2*time.Second {
		log.Printf("job_timing job=%s request_id=%s gen=%s total=%s", jobID, resp.RequestID, genCost, total)
	}
	return nil
}
