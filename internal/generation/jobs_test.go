package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&Job{}))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) PublishJob(ctx context.Context, jobID string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, jobID)
	return nil
}

type fakeGenerator struct {
	calls int
	resp  ai.TextResponse
	seen  TextInput
}

func (g *fakeGenerator) GenerateText(ctx context.Context, userID uint64, in TextInput) ai.TextResponse {
	g.calls++
	g.seen = in
	return g.resp
}

func newJobService(t *testing.T) (*JobService, *JobRepo, *fakePublisher, *fakeGenerator) {
	t.Helper()
	repo := NewJobRepo(openTestDB(t))
	pub := &fakePublisher{}
	gen := &fakeGenerator{resp: ai.TextResponse{Success: true, Content: "post body", RequestID: "req-1"}}
	prompts := fakePrompts{10: {ID: 10, UserID: 1, Name: "p", Details: "d"}}
	return NewJobService(repo, gen, prompts, pub, nil), repo, pub, gen
}

func TestSubmit_CreatesAndPublishes(t *testing.T) {
	svc, _, pub, _ := newJobService(t)

	job, created, err := svc.Submit(context.Background(), 1, TextInput{PromptID: 10, ModelConfigID: 3}, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, job.ID, 26)
	assert.Equal(t, JobQueued, job.Status)
	assert.Nil(t, job.IdempotencyKey)
	assert.Equal(t, []string{job.ID}, pub.published)
}

func TestSubmit_IdempotencyKeyReturnsExistingJob(t *testing.T) {
	svc, _, pub, _ := newJobService(t)
	ctx := context.Background()

	first, created, err := svc.Submit(ctx, 1, TextInput{PromptID: 10, ModelConfigID: 3}, " key-1 ")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Submit(ctx, 1, TextInput{PromptID: 10, ModelConfigID: 4}, "key-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint64(3), second.Input.Data().ModelConfigID)
	assert.Len(t, pub.published, 1, "a replayed submit must not enqueue again")
}

func TestSubmit_Rejections(t *testing.T) {
	svc, _, pub, _ := newJobService(t)
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, 1, TextInput{PromptID: 10}, strings.Repeat("k", 129))
	assert.ErrorIs(t, err, ErrIdempotencyKey)

	_, _, err = svc.Submit(ctx, 2, TextInput{PromptID: 10}, "")
	assert.ErrorIs(t, err, ErrPromptNotFound)

	pub.err = errors.New("channel closed")
	_, _, err = svc.Submit(ctx, 1, TextInput{PromptID: 10}, "")
	assert.ErrorIs(t, err, ErrEnqueue)

	noQueue := NewJobService(svc.repo, svc.gen, svc.prompts, nil, nil)
	_, _, err = noQueue.Submit(ctx, 1, TextInput{PromptID: 10}, "")
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestRun_Succeeds(t *testing.T) {
	svc, _, _, gen := newJobService(t)
	ctx := context.Background()
	job, _, err := svc.Submit(ctx, 1, TextInput{PromptID: 10, ModelConfigID: 3, MaxTokens: 99}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx, job.ID))

	got, err := svc.Get(ctx, 1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, got.Status)
	require.NotNil(t, got.Content)
	assert.Equal(t, "post body", *got.Content)
	assert.Equal(t, "req-1", *got.RequestID)
	assert.Equal(t, 99, gen.seen.MaxTokens)
}

func TestRun_RecordsFailureAndSkipsRedelivery(t *testing.T) {
	svc, _, _, gen := newJobService(t)
	gen.resp = ai.TextResponse{Error: "Model m is disabled", Failure: ai.FailurePrecondition, RequestID: "req-2"}
	ctx := context.Background()
	job, _, err := svc.Submit(ctx, 1, TextInput{PromptID: 10, ModelConfigID: 3}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx, job.ID))
	require.NoError(t, svc.Run(ctx, job.ID))
	assert.Equal(t, 1, gen.calls)

	got, err := svc.Get(ctx, 1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	assert.Equal(t, "Model m is disabled", *got.Error)
	assert.Equal(t, ai.FailurePrecondition, got.Failure)
	assert.Nil(t, got.Content)
}

func TestRun_RetryFinishesJobAfterStorageError(t *testing.T) {
	svc, repo, _, gen := newJobService(t)
	ctx := context.Background()
	job, _, err := svc.Submit(ctx, 1, TextInput{PromptID: 10, ModelConfigID: 3}, "")
	require.NoError(t, err)

	failOnce := true
	require.NoError(t, repo.db.Callback().Update().Before("gorm:update").Register("test:fail_succeeded_once", func(tx *gorm.DB) {
		m, ok := tx.Statement.Dest.(map[string]any)
		if failOnce && ok && m["status"] == JobSucceeded {
			failOnce = false
			_ = tx.AddError(errors.New("transient db error"))
		}
	}))

	require.Error(t, svc.Run(ctx, job.ID))
	got, err := svc.Get(ctx, 1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobRunning, got.Status)

	require.NoError(t, svc.Run(ctx, job.ID))
	assert.Equal(t, 2, gen.calls)
	got, err = svc.Get(ctx, 1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, got.Status)
	assert.Equal(t, 2, got.Attempts)

	require.NoError(t, svc.Run(ctx, job.ID), "a finished job is skipped")
	assert.Equal(t, 2, gen.calls)
}

func TestGet_HidesForeignJobs(t *testing.T) {
	svc, _, _, _ := newJobService(t)
	ctx := context.Background()
	job, _, err := svc.Submit(ctx, 1, TextInput{PromptID: 10}, "")
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = svc.Get(ctx, 1, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
