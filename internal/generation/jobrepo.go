package generation

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type JobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Create(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRepo) GetByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepo) GetByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateOrGetExisting inserts job unless (user_id, idempotency_key) already
// exists, in which case the stored job comes back with created=false.
func (r *JobRepo) CreateOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.Create(ctx, job); err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.Create(ctx, job)
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// MarkRunning moves a queued or running job to running. A running job is
// re-claimed so a retried delivery can finish it after a storage error.
// claimed is false when the job has already finished.
func (r *JobRepo) MarkRunning(ctx context.Context, id string) (claimed bool, err error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []string{string(JobQueued), string(JobRunning)}).
		Updates(map[string]any{
			"status":   JobRunning,
			"attempts": gorm.Expr("attempts + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *JobRepo) MarkSucceeded(ctx context.Context, id, requestID, content string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     JobSucceeded,
			"request_id": requestID,
			"content":    content,
			"error":      nil,
			"failure":    "",
		}).Error
}

func (r *JobRepo) MarkFailed(ctx context.Context, id, requestID, errMsg string, kind string) error {
	updates := map[string]any{
		"status":  JobFailed,
		"error":   errMsg,
		"failure": kind,
		"content": nil,
	}
	if requestID != "" {
		updates["request_id"] = requestID
	}
	return r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(updates).Error
}
