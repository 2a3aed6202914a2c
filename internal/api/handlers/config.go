package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/config"
)

const maxConfigBytes = 1 << 20

type ConfigHandler struct {
	path string
}

func NewConfigHandler(path string) *ConfigHandler {
	return &ConfigHandler{path: path}
}

// Get returns the config document on disk with credentials removed.
func (h *ConfigHandler) Get(c *gin.Context) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config file not found"})
			return
		}
		writeError(c, err)
		return
	}
	cfg, err := config.Parse(data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg.Redacted())
}

// Save replaces the whole config document. Running services pick it up on restart.
func (h *ConfigHandler) Save(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty config"})
		return
	}

	cfg, err := config.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := config.Save(h.path, cfg); err != nil {
		writeError(c, err)
		return
	}

	slog.Info("config saved", "path", h.path)
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
