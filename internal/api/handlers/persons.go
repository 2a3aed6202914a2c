package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision"
	"github.com/your-org/facewatch/pkg/dto"
)

const maxUploadBytes = 10 << 20

type PersonHandler struct {
	store  storage.Store
	images storage.ImageStore
	rec    vision.Recognizer
	stats  *StatsCache
}

// NewPersonHandler builds the person endpoints. rec may be nil, in which case
// enrollment answers 503.
func NewPersonHandler(store storage.Store, images storage.ImageStore, rec vision.Recognizer, stats *StatsCache) *PersonHandler {
	return &PersonHandler{store: store, images: images, rec: rec, stats: stats}
}

func (h *PersonHandler) List(c *gin.Context) {
	persons, err := h.store.ListPersons(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for i := range persons {
		resp = append(resp, dto.NewPersonResponse(&persons[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Create enrolls a person from a multipart upload with exactly one face.
func (h *PersonHandler) Create(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	notes := c.PostForm("notes")

	imageData, ok := readUpload(c, "image")
	if !ok {
		return
	}

	if h.rec == nil {
		recognizerUnavailable(c)
		return
	}

	embedding, err := vision.EmbedSingle(h.rec, imageData, false)
	if err != nil {
		writeError(c, err)
		return
	}

	person, err := h.store.CreatePerson(c.Request.Context(), name, notes, embedding)
	if err != nil {
		writeError(c, err)
		return
	}
	h.stats.Invalidate()

	// keep the enrollment photo next to the crops
	imageName := storage.ImageName(time.Now(), name)
	if err := h.images.Save(c.Request.Context(), imageName, imageData); err != nil {
		slog.Warn("save enrollment image", "person_id", person.ID, "error", err)
	}

	slog.Info("person enrolled", "person_id", person.ID, "name", person.Name)
	c.JSON(http.StatusCreated, dto.NewPersonResponse(person))
}

func (h *PersonHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	person, err := h.store.GetPerson(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	visits, err := h.store.ListVisits(c.Request.Context(), models.VisitFilter{Limit: 10, PersonID: &id})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.PersonDetailResponse{
		PersonResponse: dto.NewPersonResponse(person),
		RecentVisits:   make([]dto.VisitResponse, 0, len(visits)),
	}
	for i := range visits {
		resp.RecentVisits = append(resp.RecentVisits, dto.NewVisitResponse(&visits[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PersonHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}

	person, err := h.store.UpdatePerson(c.Request.Context(), id, models.PersonUpdate{Name: req.Name, Notes: req.Notes})
	if err != nil {
		writeError(c, err)
		return
	}
	h.stats.Invalidate()
	c.JSON(http.StatusOK, dto.NewPersonResponse(person))
}

func (h *PersonHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.store.DeletePerson(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.stats.Invalidate()

	slog.Info("person deleted", "person_id", id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// readUpload reads a multipart file field, answering 400 itself on failure.
func readUpload(c *gin.Context, field string) ([]byte, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file required"})
		return nil, false
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read image failed"})
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read image failed"})
		return nil, false
	}
	if len(data) == 0 {
		writeError(c, fmt.Errorf("%w: empty file", vision.ErrInvalidImage))
		return nil, false
	}
	return data, true
}
