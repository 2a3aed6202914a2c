package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/api"
	"github.com/your-org/facewatch/internal/api/ws"
	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/notify"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision/visiontest"
	"github.com/your-org/facewatch/pkg/dto"
)

var oneFace = visiontest.Face{Box: image.Rect(5, 5, 40, 40), Embedding: []float32{1, 0, 0}}

type testEnv struct {
	router     *gin.Engine
	store      *storage.SQLiteStore
	images     *storage.DiskStore
	imageDir   string
	feed       *notify.Feed
	rec        *visiontest.Recognizer
	configPath string
}

type envOption func(*api.RouterConfig)

func withAPIKey(key string) envOption {
	return func(c *api.RouterConfig) { c.APIKey = key }
}

func withoutRecognizer() envOption {
	return func(c *api.RouterConfig) { c.Recognizer = nil }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "faces.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	imageDir := filepath.Join(dir, "images")
	images, err := storage.NewDiskStore(imageDir)
	require.NoError(t, err)

	feed, err := notify.NewFeed(filepath.Join(dir, "notifications.json"), 100)
	require.NoError(t, err)

	rec := visiontest.New(oneFace)
	cfg := api.RouterConfig{
		Store:      store,
		Images:     images,
		Feed:       feed,
		Hub:        ws.NewHub(),
		ConfigPath: filepath.Join(dir, "config.yaml"),
		Recognizer: rec,
	}
	for _, o := range opts {
		o(&cfg)
	}

	return &testEnv{
		router:     api.NewRouter(cfg),
		store:      store,
		images:     images,
		imageDir:   imageDir,
		feed:       feed,
		rec:        rec,
		configPath: cfg.ConfigPath,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) sendJSON(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) postImage(path string, fields map[string]string, filename string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, _ := mw.CreateFormFile("image", filename)
		_, _ = fw.Write(data)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) imageFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.imageDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64))))
	return buf.Bytes()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, withAPIKey("k"))

	assert.Equal(t, http.StatusOK, env.get("/healthz").Code)

	w := env.get("/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestAPIRequiresKey(t *testing.T) {
	env := newTestEnv(t, withAPIKey("k"))

	assert.Equal(t, http.StatusUnauthorized, env.get("/api/persons").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/persons", nil)
	req.Header.Set("X-API-Key", "k")
	assert.Equal(t, http.StatusOK, env.do(req).Code)

	assert.Equal(t, http.StatusUnauthorized, env.get("/images/x.jpg").Code)
}

func TestCreatePerson(t *testing.T) {
	env := newTestEnv(t)

	w := env.postImage("/api/persons", map[string]string{"name": "Alice", "notes": "neighbour"}, "alice.png", pngBytes(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	p := decode[dto.PersonResponse](t, w)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "neighbour", p.Notes)
	assert.Zero(t, p.VisitCount)

	files := env.imageFiles(t)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], "_Alice.jpg"), files[0])

	list := decode[[]dto.PersonResponse](t, env.get("/api/persons"))
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	faces, err := env.store.KnownFaces(context.Background())
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, oneFace.Embedding, faces[0].Embedding)
}

func TestCreatePersonNeedsExactlyOneFace(t *testing.T) {
	env := newTestEnv(t)

	env.rec.SetFaces()
	w := env.postImage("/api/persons", map[string]string{"name": "Alice"}, "a.png", pngBytes(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no face found in image", decode[map[string]string](t, w)["error"])

	env.rec.SetFaces(oneFace, visiontest.Face{Box: image.Rect(40, 40, 60, 60), Embedding: []float32{0, 1, 0}})
	w = env.postImage("/api/persons", map[string]string{"name": "Alice"}, "a.png", pngBytes(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, env.imageFiles(t), "rejected uploads are not kept")
	persons, err := env.store.ListPersons(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestCreatePersonValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.postImage("/api/persons", map[string]string{"name": "  "}, "a.png", pngBytes(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.postImage("/api/persons", map[string]string{"name": "Alice"}, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.postImage("/api/persons", map[string]string{"name": "Alice"}, "a.png", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePersonDuplicateName(t *testing.T) {
	env := newTestEnv(t)

	w := env.postImage("/api/persons", map[string]string{"name": "Alice"}, "a.png", pngBytes(t))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.postImage("/api/persons", map[string]string{"name": "Alice"}, "a.png", pngBytes(t))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, env.imageFiles(t), 1)
}

func TestEnrollmentWithoutRecognizer(t *testing.T) {
	env := newTestEnv(t, withoutRecognizer())

	w := env.postImage("/api/persons", map[string]string{"name": "Alice"}, "a.png", pngBytes(t))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s, err := env.store.LogSighting(context.Background(), "crop.jpg")
	require.NoError(t, err)
	w = env.sendJSON(http.MethodPost, "/api/unknown/"+strconv.FormatInt(s.ID, 10)+"/identify", `{"name":"Carol"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// read-only endpoints keep working
	assert.Equal(t, http.StatusOK, env.get("/api/persons").Code)
}

func TestPersonDetailUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, err := env.store.CreatePerson(ctx, "Alice", "", []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = env.store.CreatePerson(ctx, "Bob", "", []float32{0, 1, 0})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = env.store.LogVisit(ctx, alice.ID, 0.9, "v.jpg")
		require.NoError(t, err)
	}
	path := "/api/person/" + strconv.FormatInt(alice.ID, 10)

	w := env.get(path)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[dto.PersonDetailResponse](t, w)
	assert.Equal(t, 2, detail.VisitCount)
	require.Len(t, detail.RecentVisits, 2)
	assert.Equal(t, "/images/v.jpg", detail.RecentVisits[0].ImageURL)

	assert.Equal(t, http.StatusConflict, env.sendJSON(http.MethodPut, path, `{"name":"Bob"}`).Code)

	w = env.sendJSON(http.MethodPut, path, `{"name":"Alicia","notes":"front door"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[dto.PersonResponse](t, w)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "front door", updated.Notes)

	assert.Equal(t, http.StatusNotFound, env.sendJSON(http.MethodPut, "/api/person/999", `{"name":"X"}`).Code)

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodDelete, path, nil)).Code)
	assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodDelete, path, nil)).Code)
	assert.Equal(t, http.StatusNotFound, env.get(path).Code)
	assert.Equal(t, http.StatusBadRequest, env.get("/api/person/abc").Code)
}

func TestListVisits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, err := env.store.CreatePerson(ctx, "Alice", "", []float32{1, 0, 0})
	require.NoError(t, err)
	bob, err := env.store.CreatePerson(ctx, "Bob", "", []float32{0, 1, 0})
	require.NoError(t, err)
	_, err = env.store.LogVisit(ctx, alice.ID, 0.9, "")
	require.NoError(t, err)
	_, err = env.store.LogVisit(ctx, bob.ID, 0.8, "")
	require.NoError(t, err)

	all := decode[[]dto.VisitResponse](t, env.get("/api/visits"))
	assert.Len(t, all, 2)

	onlyBob := decode[[]dto.VisitResponse](t, env.get("/api/visits?person_id="+strconv.FormatInt(bob.ID, 10)))
	require.Len(t, onlyBob, 1)
	assert.Equal(t, "Bob", onlyBob[0].Name)
	assert.Empty(t, onlyBob[0].ImageURL)

	assert.Equal(t, http.StatusBadRequest, env.get("/api/visits?person_id=abc").Code)
	assert.Equal(t, http.StatusBadRequest, env.get("/api/visits?limit=-1").Code)
}

func TestIdentifyUnknownVisitor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.images.Save(ctx, "crop.jpg", pngBytes(t)))
	s, err := env.store.LogSighting(ctx, "crop.jpg")
	require.NoError(t, err)
	path := "/api/unknown/" + strconv.FormatInt(s.ID, 10) + "/identify"

	pending := decode[[]dto.SightingResponse](t, env.get("/api/unknown"))
	require.Len(t, pending, 1)
	assert.Equal(t, "/images/crop.jpg", pending[0].ImageURL)

	assert.Equal(t, http.StatusBadRequest, env.sendJSON(http.MethodPost, path, `{"notes":"x"}`).Code)

	w := env.sendJSON(http.MethodPost, path, `{"name":"Carol","notes":"courier"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	carol := decode[dto.PersonResponse](t, w)
	assert.Equal(t, "Carol", carol.Name)

	resolved := decode[[]dto.SightingResponse](t, env.get("/api/unknown?identified=true"))
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].IdentifiedAs)
	assert.Equal(t, carol.ID, *resolved[0].IdentifiedAs)
	assert.Empty(t, decode[[]dto.SightingResponse](t, env.get("/api/unknown")))

	assert.Equal(t, http.StatusConflict, env.sendJSON(http.MethodPost, path, `{"name":"Dave"}`).Code)
	assert.Equal(t, http.StatusNotFound, env.sendJSON(http.MethodPost, "/api/unknown/999/identify", `{"name":"Dave"}`).Code)
}

func TestIdentifyRejectsCropWithoutFace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.images.Save(ctx, "crop.jpg", pngBytes(t)))
	s, err := env.store.LogSighting(ctx, "crop.jpg")
	require.NoError(t, err)
	env.rec.SetFaces()

	w := env.sendJSON(http.MethodPost, "/api/unknown/"+strconv.FormatInt(s.ID, 10)+"/identify", `{"name":"Carol"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	got, err := env.store.GetSighting(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Identified)
}

func TestIdentifyNameTaken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.CreatePerson(ctx, "Carol", "", []float32{0, 0, 1})
	require.NoError(t, err)
	require.NoError(t, env.images.Save(ctx, "crop.jpg", pngBytes(t)))
	s, err := env.store.LogSighting(ctx, "crop.jpg")
	require.NoError(t, err)

	w := env.sendJSON(http.MethodPost, "/api/unknown/"+strconv.FormatInt(s.ID, 10)+"/identify", `{"name":"Carol"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.get("/api/config").Code)

	doc := `
server:
  port: 8080
  api_key: s3cret-key
notifications:
  telegram:
    enabled: true
    bot_token: s3cret-token
    chat_id: "42"
`
	require.NoError(t, os.WriteFile(env.configPath, []byte(doc), 0o600))

	w := env.get("/api/config")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cret")
	cfg := decode[config.Config](t, w)
	assert.Equal(t, "42", cfg.Notifications.Telegram.ChatID)

	assert.Equal(t, http.StatusBadRequest, env.sendJSON(http.MethodPost, "/api/config", "server: [").Code)
	assert.Equal(t, http.StatusBadRequest, env.sendJSON(http.MethodPost, "/api/config", "").Code)

	w = env.sendJSON(http.MethodPost, "/api/config", `{"server":{"port":9090},"recognition":{"tolerance":0.5}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	saved, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	parsed, err := config.Parse(saved)
	require.NoError(t, err)
	assert.Equal(t, 9090, parsed.Server.Port)
	assert.Equal(t, 0.5, parsed.Recognition.Tolerance)
	assert.Empty(t, parsed.Notifications.Telegram.ChatID, "save replaces the whole document")
}

func TestNotificationsFeed(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, env.feed.Add(&models.Notification{ID: id, Kind: models.KindUnknown, Title: "Unknown Person Detected"}))
	}

	limited := decode[[]models.Notification](t, env.get("/api/notifications?limit=2"))
	require.Len(t, limited, 2)
	assert.Equal(t, "c", limited[0].ID)

	assert.Len(t, decode[[]models.Notification](t, env.get("/api/notifications")), 3)

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodDelete, "/api/notifications", nil)).Code)
	w := env.get("/api/notifications")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUploadAndServeImage(t *testing.T) {
	env := newTestEnv(t)

	w := env.postImage("/api/upload", nil, "door.png", pngBytes(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	up := decode[dto.UploadResponse](t, w)
	assert.True(t, strings.HasSuffix(up.Name, ".png"))
	assert.Equal(t, "/images/"+up.Name, up.URL)

	w = env.get(up.URL)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes(t), w.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, env.get("/images/missing.jpg").Code)
	assert.Equal(t, http.StatusBadRequest, env.postImage("/api/upload", nil, "notes.txt", []byte("hi")).Code)
	assert.Equal(t, http.StatusBadRequest, env.postImage("/api/upload", nil, "fake.png", []byte("hi")).Code)
}

func TestStatsAreCachedUntilMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats := decode[models.Stats](t, env.get("/api/stats"))
	assert.Zero(t, stats.TotalPersons)
	assert.Nil(t, stats.MostFrequentVisitor.Name)

	// written behind the dashboard's back, e.g. by facectl
	_, err := env.store.CreatePerson(ctx, "Bob", "", []float32{0, 1, 0})
	require.NoError(t, err)
	stats = decode[models.Stats](t, env.get("/api/stats"))
	assert.Zero(t, stats.TotalPersons, "served from cache")

	w := env.postImage("/api/persons", map[string]string{"name": "Alice"}, "a.png", pngBytes(t))
	require.Equal(t, http.StatusCreated, w.Code)

	stats = decode[models.Stats](t, env.get("/api/stats"))
	assert.Equal(t, 2, stats.TotalPersons)
}
