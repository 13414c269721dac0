package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/post"
)

func postFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, post.ErrContentRequired), errors.Is(err, post.ErrInvalidStatus),
		errors.Is(err, post.ErrNoPostIDs):
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
	case errors.Is(err, post.ErrAlreadyArchived):
		common.Fail(c, http.StatusBadRequest, 10009, err.Error())
	case errors.Is(err, post.ErrMediaDisabled):
		common.Fail(c, http.StatusServiceUnavailable, 50302, err.Error())
	default:
		storeFailed(c, "Post", "post", err)
	}
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", v)
}

// postFilter reads status, is_archived, date_from, date_to and search.
func postFilter(c *gin.Context) (post.ListFilter, bool) {
	var f post.ListFilter
	if v := c.Query("status"); v != "" {
		s := post.Status(v)
		f.Status = &s
	}
	if v := c.Query("is_archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10004, "invalid is_archived")
			return f, false
		}
		f.IsArchived = &b
	}
	var err error
	if f.DateFrom, err = parseDate(c.Query("date_from")); err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid date_from")
		return f, false
	}
	if f.DateTo, err = parseDate(c.Query("date_to")); err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid date_to")
		return f, false
	}
	f.Search = c.Query("search")
	return f, true
}

func (h *Handler) ListPosts(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	f, ok := postFilter(c)
	if !ok {
		return
	}
	f.Skip, f.Limit = common.Page(c)
	items, total, err := h.Posts.List(c.Request.Context(), uid, f)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, common.List[post.Post]{Items: items, Total: total, Skip: f.Skip, Limit: f.Limit})
}

func (h *Handler) CreatePost(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var in post.Input
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.Posts.Create(c.Request.Context(), uid, in)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.Created(c, p)
}

func (h *Handler) GetPost(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.Posts.Get(c.Request.Context(), uid, id)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) UpdatePost(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in post.Input
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.Posts.Update(c.Request.Context(), uid, id, in)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) DeletePost(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Posts.Delete(c.Request.Context(), uid, id); err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

// postAction runs one of the single-post state transitions.
func (h *Handler) postAction(c *gin.Context, act func(*gin.Context, uint64, uint64) (*post.Post, error)) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := act(c, uid, id)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) PublishPost(c *gin.Context) {
	h.postAction(c, func(c *gin.Context, uid, id uint64) (*post.Post, error) {
		return h.Posts.Publish(c.Request.Context(), uid, id)
	})
}

func (h *Handler) ArchivePost(c *gin.Context) {
	h.postAction(c, func(c *gin.Context, uid, id uint64) (*post.Post, error) {
		return h.Posts.Archive(c.Request.Context(), uid, id)
	})
}

func (h *Handler) RestorePost(c *gin.Context) {
	h.postAction(c, func(c *gin.Context, uid, id uint64) (*post.Post, error) {
		return h.Posts.Restore(c.Request.Context(), uid, id)
	})
}

type bulkReq struct {
	PostIDs []uint64 `json:"post_ids"`
}

func (h *Handler) BulkArchivePosts(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req bulkReq
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.Posts.BulkArchive(c.Request.Context(), uid, req.PostIDs)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, gin.H{"archived_count": n, "message": fmt.Sprintf("Successfully archived %d posts", n)})
}

func (h *Handler) BulkRestorePosts(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req bulkReq
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.Posts.BulkRestore(c.Request.Context(), uid, req.PostIDs)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, gin.H{"restored_count": n, "message": fmt.Sprintf("Successfully restored %d posts", n)})
}

func (h *Handler) UploadPostMedia(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10005, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "failed to read file")
		return
	}
	defer f.Close()

	res, err := h.Posts.UploadMedia(c.Request.Context(), uid, id, fh.Filename, f, fh.Size)
	if err != nil {
		if isNotFound(err) || errors.Is(err, post.ErrMediaDisabled) {
			postFailed(c, err)
			return
		}
		mediaFailed(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) RemovePostMedia(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	url := c.Query("media_url")
	if url == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "media_url is required")
		return
	}
	p, err := h.Posts.RemoveMedia(c.Request.Context(), uid, id, url)
	if err != nil {
		postFailed(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) ExportPostsCSV(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	f, ok := postFilter(c)
	if !ok {
		return
	}
	posts, err := h.Posts.Export(c.Request.Context(), uid, f)
	if err != nil {
		postFailed(c, err)
		return
	}
	var buf bytes.Buffer
	if err := post.WriteCSV(&buf, posts); err != nil {
		storeFailed(c, "Post", "post", err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+post.ExportFilename(time.Now()))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
