package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/prompt"
)

func (h *Handler) CreatePrompt(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var in prompt.Input
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.Prompts.Create(c.Request.Context(), uid, in)
	if err != nil {
		if errors.Is(err, prompt.ErrNameRequired) {
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		storeFailed(c, "Prompt", "prompt", err)
		return
	}
	common.Created(c, p)
}

func (h *Handler) ListPrompts(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	skip, limit := common.Page(c)
	f := prompt.ListFilter{Search: c.Query("search"), Skip: skip, Limit: limit}
	if v := c.Query("tag_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10004, "invalid tag_id")
			return
		}
		f.TagID = &id
	}
	items, total, err := h.Prompts.List(c.Request.Context(), uid, f)
	if err != nil {
		storeFailed(c, "Prompt", "prompt", err)
		return
	}
	common.OK(c, common.List[prompt.Prompt]{Items: items, Total: total, Skip: skip, Limit: limit})
}

func (h *Handler) GetPrompt(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.Prompts.Get(c.Request.Context(), uid, id)
	if err != nil {
		storeFailed(c, "Prompt", "prompt", err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) UpdatePrompt(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in prompt.Input
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.Prompts.Update(c.Request.Context(), uid, id, in)
	if err != nil {
		if errors.Is(err, prompt.ErrNameRequired) {
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		storeFailed(c, "Prompt", "prompt", err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) DeletePrompt(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Prompts.Delete(c.Request.Context(), uid, id); err != nil {
		storeFailed(c, "Prompt", "prompt", err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.Prompts.Tags(c.Request.Context())
	if err != nil {
		storeFailed(c, "Prompt", "tag", err)
		return
	}
	common.OK(c, tags)
}
