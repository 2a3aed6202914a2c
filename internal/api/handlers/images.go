package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision"
	"github.com/your-org/facewatch/pkg/dto"
)

var uploadExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

type ImageHandler struct {
	images storage.ImageStore
}

func NewImageHandler(images storage.ImageStore) *ImageHandler {
	return &ImageHandler{images: images}
}

func (h *ImageHandler) Serve(c *gin.Context) {
	data, err := h.images.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// Upload stores an arbitrary image and returns the name it was saved under.
func (h *ImageHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !uploadExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file type %q", ext)})
		return
	}

	data, ok := readUpload(c, "image")
	if !ok {
		return
	}
	if _, err := vision.DecodeImage(data); err != nil {
		writeError(c, err)
		return
	}

	name := fmt.Sprintf("upload_%s_%s%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8], ext)
	if err := h.images.Save(c.Request.Context(), name, data); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.UploadResponse{Name: name, URL: dto.ImageURL(name)})
}
