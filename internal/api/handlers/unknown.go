package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision"
	"github.com/your-org/facewatch/pkg/dto"
)

type UnknownHandler struct {
	store  storage.Store
	images storage.ImageStore
	rec    vision.Recognizer
	stats  *StatsCache
}

func NewUnknownHandler(store storage.Store, images storage.ImageStore, rec vision.Recognizer, stats *StatsCache) *UnknownHandler {
	return &UnknownHandler{store: store, images: images, rec: rec, stats: stats}
}

func (h *UnknownHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}

	sightings, err := h.store.ListSightings(c.Request.Context(), limit, queryBool(c, "identified"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.SightingResponse, 0, len(sightings))
	for i := range sightings {
		resp = append(resp, dto.NewSightingResponse(&sightings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Identify turns a sighting into an enrolled person, using the face in the
// sighting's stored crop.
func (h *UnknownHandler) Identify(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if h.rec == nil {
		recognizerUnavailable(c)
		return
	}

	ctx := c.Request.Context()
	sighting, err := h.store.GetSighting(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if sighting == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown visitor not found"})
		return
	}
	if sighting.Identified {
		writeError(c, storage.ErrAlreadyResolved)
		return
	}
	if sighting.ImagePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown visitor has no image"})
		return
	}

	data, err := h.images.Load(ctx, sighting.ImagePath)
	if err != nil {
		writeError(c, err)
		return
	}

	// crops are tight, so take the largest face rather than failing on a
	// sliver of a neighbour
	embedding, err := vision.EmbedSingle(h.rec, data, true)
	if err != nil {
		writeError(c, err)
		return
	}

	person, err := h.store.PromoteSighting(ctx, id, req.Name, req.Notes, embedding)
	if err != nil {
		writeError(c, err)
		return
	}
	h.stats.Invalidate()

	slog.Info("unknown visitor identified", "sighting_id", id, "person_id", person.ID, "name", person.Name)
	c.JSON(http.StatusCreated, dto.NewPersonResponse(person))
}
