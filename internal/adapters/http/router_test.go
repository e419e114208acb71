package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/dkeye/Interview/internal/adapters/storage"
	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	cfg := &config.Config{Server: config.ServerConfig{Mode: "test", Secret: "s3cret"}}
	relay := app.NewRelay(app.NewRoomManager(), nil)
	return SetupRouter(context.Background(), cfg, relay, store), dir
}

func TestUploadRecording(t *testing.T) {
	r, dir := newRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "interview_12.webm")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("webm-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/interviews/12/upload-recording", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec domain.ServerRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Recording uploaded successfully", rec.Message)
	assert.True(t, strings.HasPrefix(rec.Filename, "session_12_"), rec.Filename)
	assert.True(t, strings.HasSuffix(rec.Filename, ".webm"), rec.Filename)

	data, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, "webm-bytes", string(data))
	assert.True(t, strings.HasPrefix(rec.Path, dir))
}

func TestUploadWithoutFile(t *testing.T) {
	r, _ := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/interviews/12/upload-recording", strings.NewReader(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"missing recording file"}`, w.Body.String())
}

func TestRoomsAndHealth(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":[]}`, w.Body.String())
}

func TestClientTokenCookie(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "InterviewSessions", cookies[0].Name)
}
