package videos

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/danribes/mystic-ecom-sub009/config"
	"github.com/danribes/mystic-ecom-sub009/internal/middleware"
	"github.com/danribes/mystic-ecom-sub009/internal/models"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
	"github.com/danribes/mystic-ecom-sub009/pkg/cache"
	"github.com/danribes/mystic-ecom-sub009/pkg/response"
)

var testUserID = uuid.New()

func testProviderConfig() config.ProviderConfig {
	return config.ProviderConfig{
		UploadTTLMinutes:   30,
		MaxUploadBytes:     5 << 30,
		MaxDurationSeconds: 21600,
	}
}

func newVideoRouter(store *fakeStore, lessons *fakeLessons, provider *fakeProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, lessons, provider, cache.New(nil, nil), testProviderConfig(), nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, testUserID)
	})
	r.POST("/api/videos/upload", h.Upload)
	r.GET("/api/videos/:id", h.GetByID)
	r.GET("/api/courses/:id/videos", h.ListByCourse)
	r.DELETE("/api/videos/:id", h.Delete)
	return r
}

func defaultLessons() *fakeLessons {
	return &fakeLessons{known: map[string]bool{"go-101/intro": true}}
}

func defaultProvider() *fakeProvider {
	return &fakeProvider{ticket: &stream.UploadTicket{
		URL:             "https://upload.example.com/tus/xyz",
		ProviderVideoID: "xyz",
	}}
}

func uploadBody(mutate func(m map[string]interface{})) []byte {
	m := map[string]interface{}{
		"filename": "lecture.mp4",
		"fileSize": int64(1 << 20),
		"courseId": "go-101",
		"lessonId": "intro",
		"title":    "Welcome",
	}
	if mutate != nil {
		mutate(m)
	}
	raw, _ := json.Marshal(m)
	return raw
}

func postUpload(r *gin.Engine, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpload_Success(t *testing.T) {
	store := newFakeStore()
	provider := defaultProvider()
	r := newVideoRouter(store, defaultLessons(), provider)

	before := time.Now()
	w := postUpload(r, uploadBody(nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}

	var body response.Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := body.Data.(map[string]interface{})
	if data["tusUrl"] != "https://upload.example.com/tus/xyz" || data["videoId"] != "xyz" {
		t.Fatalf("data = %v", data)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, data["expiresAt"].(string))
	if err != nil {
		t.Fatalf("expiresAt: %v", err)
	}
	ttl := expiresAt.Sub(before)
	if ttl < 29*time.Minute || ttl > 31*time.Minute {
		t.Fatalf("ticket TTL = %v, want ~30m", ttl)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d records, want 1", len(store.created))
	}
	rec := store.created[0]
	if rec.Status != models.VideoStatusQueued || rec.ProviderVideoID != "xyz" {
		t.Fatalf("record = %+v", rec)
	}
	var meta models.UploadMetadata
	if err := json.Unmarshal(rec.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Filename != "lecture.mp4" || meta.UploadedBy != testUserID {
		t.Fatalf("metadata = %+v", meta)
	}

	if len(provider.ticketCalls) != 1 {
		t.Fatalf("ticket calls = %d", len(provider.ticketCalls))
	}
	opts := provider.ticketCalls[0]
	if opts.Creator != testUserID.String() || opts.Meta["courseId"] != "go-101" {
		t.Fatalf("ticket opts = %+v", opts)
	}
}

func TestUpload_ValidationFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m map[string]interface{})
	}{
		{"missing filename", func(m map[string]interface{}) { m["filename"] = "" }},
		{"missing fileSize", func(m map[string]interface{}) { m["fileSize"] = 0 }},
		{"missing courseId", func(m map[string]interface{}) { m["courseId"] = "" }},
		{"missing lessonId", func(m map[string]interface{}) { m["lessonId"] = "" }},
		{"missing title", func(m map[string]interface{}) { m["title"] = "" }},
		{"bad extension", func(m map[string]interface{}) { m["filename"] = "lecture.exe" }},
		{"no extension", func(m map[string]interface{}) { m["filename"] = "lecture" }},
		{"oversize", func(m map[string]interface{}) { m["fileSize"] = int64(6 << 30) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			provider := defaultProvider()
			r := newVideoRouter(store, defaultLessons(), provider)

			w := postUpload(r, uploadBody(tc.mutate))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body %s", w.Code, w.Body.String())
			}
			if len(provider.ticketCalls) != 0 {
				t.Fatal("provider called for invalid request")
			}
			if len(store.created) != 0 {
				t.Fatal("record created for invalid request")
			}
		})
	}
}

func TestUpload_ExtensionCaseInsensitive(t *testing.T) {
	r := newVideoRouter(newFakeStore(), defaultLessons(), defaultProvider())
	w := postUpload(r, uploadBody(func(m map[string]interface{}) { m["filename"] = "LECTURE.MP4" }))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
}

func TestUpload_UnknownLesson(t *testing.T) {
	provider := defaultProvider()
	r := newVideoRouter(newFakeStore(), defaultLessons(), provider)

	w := postUpload(r, uploadBody(func(m map[string]interface{}) { m["lessonId"] = "ghost" }))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if len(provider.ticketCalls) != 0 {
		t.Fatal("provider called for unknown lesson")
	}
}

func TestUpload_LessonAlreadyHasVideo(t *testing.T) {
	store := newFakeStore()
	store.active["go-101/intro"] = true
	r := newVideoRouter(store, defaultLessons(), defaultProvider())

	w := postUpload(r, uploadBody(nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestUpload_ProviderDown(t *testing.T) {
	store := newFakeStore()
	provider := defaultProvider()
	provider.ticketErr = errors.New("connection refused")
	r := newVideoRouter(store, defaultLessons(), provider)

	w := postUpload(r, uploadBody(nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body %s", w.Code, w.Body.String())
	}
	if len(store.created) != 0 {
		t.Fatal("record created despite provider failure")
	}
}

func TestUpload_PersistFailure(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("pg down")
	r := newVideoRouter(store, defaultLessons(), defaultProvider())

	w := postUpload(r, uploadBody(nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestGetVideo(t *testing.T) {
	store := newFakeStore()
	v := &models.Video{ProviderVideoID: "xyz", CourseID: "go-101", Status: models.VideoStatusReady}
	store.add(v)
	r := newVideoRouter(store, defaultLessons(), defaultProvider())

	req := httptest.NewRequest(http.MethodGet, "/api/videos/"+v.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
}

func TestGetVideo_NotFound(t *testing.T) {
	r := newVideoRouter(newFakeStore(), defaultLessons(), defaultProvider())
	req := httptest.NewRequest(http.MethodGet, "/api/videos/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetVideo_BadID(t *testing.T) {
	r := newVideoRouter(newFakeStore(), defaultLessons(), defaultProvider())
	req := httptest.NewRequest(http.MethodGet, "/api/videos/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDeleteVideo(t *testing.T) {
	store := newFakeStore()
	v := &models.Video{ProviderVideoID: "xyz", CourseID: "go-101", Status: models.VideoStatusReady}
	store.add(v)
	provider := defaultProvider()
	r := newVideoRouter(store, defaultLessons(), provider)

	req := httptest.NewRequest(http.MethodDelete, "/api/videos/"+v.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204; body %s", w.Code, w.Body.String())
	}
	if len(provider.deleted) != 1 || provider.deleted[0] != "xyz" {
		t.Fatalf("provider deletes = %v", provider.deleted)
	}
	if got, _ := store.GetByID(req.Context(), v.ID); got != nil {
		t.Fatal("record still present after delete")
	}
}

func TestDeleteVideo_AssetAlreadyGone(t *testing.T) {
	store := newFakeStore()
	v := &models.Video{ProviderVideoID: "xyz", CourseID: "go-101"}
	store.add(v)
	provider := defaultProvider()
	provider.deleteErr = stream.ErrAssetNotFound
	r := newVideoRouter(store, defaultLessons(), provider)

	req := httptest.NewRequest(http.MethodDelete, "/api/videos/"+v.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}

func TestDeleteVideo_ProviderFailureKeepsRecord(t *testing.T) {
	store := newFakeStore()
	v := &models.Video{ProviderVideoID: "xyz", CourseID: "go-101"}
	store.add(v)
	provider := defaultProvider()
	provider.deleteErr = errors.New("500 from provider")
	r := newVideoRouter(store, defaultLessons(), provider)

	req := httptest.NewRequest(http.MethodDelete, "/api/videos/"+v.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if got, _ := store.GetByID(req.Context(), v.ID); got == nil {
		t.Fatal("record deleted despite provider failure")
	}
}

func TestListByCourse(t *testing.T) {
	store := newFakeStore()
	store.add(&models.Video{ProviderVideoID: "a", CourseID: "go-101", Status: models.VideoStatusReady})
	store.add(&models.Video{ProviderVideoID: "b", CourseID: "go-102", Status: models.VideoStatusReady})
	r := newVideoRouter(store, defaultLessons(), defaultProvider())

	req := httptest.NewRequest(http.MethodGet, "/api/courses/go-101/videos", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	var body response.Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	list := body.Data.([]interface{})
	if len(list) != 1 {
		t.Fatalf("got %d videos, want 1", len(list))
	}
}
