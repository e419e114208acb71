package http

import (
	"net/http"
	"time"

	"github.com/dkeye/Interview/internal/adapters/storage"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// detail is the error body every endpoint answers with.
func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

type RecordingHandler struct {
	Store storage.Store
	// MaxBytes caps one upload; zero means no cap.
	MaxBytes int64
	Now      func() time.Time
}

// Upload handles POST /api/interviews/:session_id/upload-recording.
func (h *RecordingHandler) Upload(c *gin.Context) {
	session := domain.SessionID(c.Param("session_id"))
	if session == "" || len(session) > domain.MaxSessionIDLen {
		detail(c, http.StatusBadRequest, "invalid session id")
		return
	}
	if h.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusBadRequest, "missing recording file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		detail(c, http.StatusBadRequest, "unreadable recording file")
		return
	}
	defer f.Close()

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	name := storage.RecordingName(session, fh.Filename, now())
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = domain.DefaultContainer
	}

	path, err := h.Store.Save(c.Request.Context(), name, contentType, f, fh.Size)
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Str("session", string(session)).Msg("failed to store recording")
		detail(c, http.StatusInternalServerError, "Failed to save recording: "+err.Error())
		return
	}

	log.Info().Str("module", "transport.http").Str("session", string(session)).Str("path", path).Int64("bytes", fh.Size).Msg("recording received")
	c.JSON(http.StatusOK, domain.ServerRecord{
		Message:  "Recording uploaded successfully",
		Filename: name,
		Path:     path,
	})
}

type RoomsHandler struct {
	Rooms core.RoomManager
}

// List handles GET /api/rooms.
func (h *RoomsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Rooms.List()})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
