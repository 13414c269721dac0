package handlers

import (
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/importer"
)

func (h *Handler) Import(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req importer.Request
	if !bindJSON(c, &req) {
		return
	}
	h.runImport(c, uid, req)
}

func readJSONPart(c *gin.Context, field string, dst any) error {
	fh, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil
		}
		return err
	}
	return decodePart(fh, dst)
}

func decodePart(fh *multipart.FileHeader, dst any) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

// ImportFiles takes the three desktop export files as multipart parts
// tags_file, customer_info_file and prompts_file. Each is optional.
func (h *Handler) ImportFiles(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req importer.Request
	for field, dst := range map[string]any{
		"tags_file":          &req.Tags,
		"customer_info_file": &req.CustomerInfo,
		"prompts_file":       &req.Prompts,
	} {
		if err := readJSONPart(c, field, dst); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "Invalid JSON in uploaded file: "+err.Error())
			return
		}
	}
	h.runImport(c, uid, req)
}

func (h *Handler) runImport(c *gin.Context, uid uint64, req importer.Request) {
	res, err := h.Importer.Import(c.Request.Context(), uid, req)
	if err != nil {
		log.Printf("[Import] user=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "import failed")
		return
	}
	common.OK(c, res)
}
