package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-chat/internal/app"
	"gopherai-chat/internal/transport/http/response"
)

type FileHandler struct {
	fileService *app.FileService
}

type UploadResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func NewFileHandler(fileService *app.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload accepts a multipart form with the content in field "file".
func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "missing file (form field 'file')")
		return
	}

	f, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, fmt.Sprintf("open uploaded file failed: %v", err))
		return
	}
	defer f.Close()

	file, err := h.fileService.Upload(c.Request.Context(), app.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     f,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, UploadResponse{
		ID:          file.ID,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
	})
}

func (h *FileHandler) Download(c *gin.Context) {
	file, rc, err := h.fileService.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer rc.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, file.Size, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.Filename),
	})
}
