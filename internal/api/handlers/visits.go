package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/pkg/dto"
)

type VisitHandler struct {
	store storage.Store
}

func NewVisitHandler(store storage.Store) *VisitHandler {
	return &VisitHandler{store: store}
}

// List returns recent visits, newest first, optionally for one person.
func (h *VisitHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}

	filter := models.VisitFilter{Limit: limit}
	if raw := c.Query("person_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person_id"})
			return
		}
		filter.PersonID = &id
	}

	visits, err := h.store.ListVisits(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.VisitResponse, 0, len(visits))
	for i := range visits {
		resp = append(resp, dto.NewVisitResponse(&visits[i]))
	}
	c.JSON(http.StatusOK, resp)
}
