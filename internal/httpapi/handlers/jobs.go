package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/generation"
)

const idempotencyHeader = "Idempotency-Key"

// GenerateTextAsync queues a text generation job. Replaying the same
// Idempotency-Key returns the existing job with 200 instead of 202.
func (h *Handler) GenerateTextAsync(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, generation.ErrQueueUnavailable.Error())
		return
	}
	var in generation.TextInput
	if !bindJSON(c, &in) {
		return
	}

	idemKey := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	job, created, err := h.Jobs.Submit(c.Request.Context(), uid, in, idemKey)
	if err != nil {
		switch {
		case errors.Is(err, generation.ErrIdempotencyKey):
			common.Fail(c, http.StatusBadRequest, 10008, "Idempotency-Key too long (max 128)")
		case errors.Is(err, generation.ErrPromptNotFound):
			common.Fail(c, http.StatusNotFound, 40402, "prompt not found")
		case errors.Is(err, generation.ErrQueueUnavailable):
			common.Fail(c, http.StatusServiceUnavailable, 50301, err.Error())
		case errors.Is(err, generation.ErrEnqueue):
			log.Printf("[Jobs] enqueue failed user=%d err=%v", uid, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "failed to enqueue job")
		default:
			log.Printf("[Jobs] submit failed user=%d err=%v", uid, err)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to create job")
		}
		return
	}

	data := gin.H{"job_id": job.ID, "status": job.Status}
	if !created {
		common.OK(c, data)
		return
	}
	c.JSON(http.StatusAccepted, common.Response{Code: 0, Message: "ok", Data: data})
}

func (h *Handler) GetJob(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, generation.ErrQueueUnavailable.Error())
		return
	}
	job, err := h.Jobs.Get(c.Request.Context(), uid, c.Param("job_id"))
	if err != nil {
		storeFailed(c, "Jobs", "job", err)
		return
	}
	common.OK(c, job)
}
