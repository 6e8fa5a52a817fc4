package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/au-lex/safeqly-backend/internal/http/middleware"
	"github.com/au-lex/safeqly-backend/internal/storage"
)

// pngBytes — минимальная сигнатура PNG для проверки магических байтов.
var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

func newMediaRouter(t *testing.T, authorized bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fs, err := storage.NewFileStorage(t.TempDir(), 5)
	assert.NoError(t, err)

	handler := NewMediaHandler(fs)
	r := gin.New()
	r.POST("/media/upload", func(c *gin.Context) {
		if authorized {
			c.Set(middleware.ContextUserIDKey, uuid.New())
		}
		handler.Upload(c)
	})
	return r
}

func multipartUpload(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestMediaHandler_Upload_Unauthorized(t *testing.T) {
	r := newMediaRouter(t, false)

	body, contentType := multipartUpload(t, "photo.png", pngBytes)
	req, _ := http.NewRequest("POST", "/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMediaHandler_Upload_Success(t *testing.T) {
	r := newMediaRouter(t, true)

	body, contentType := multipartUpload(t, "photo.png", pngBytes)
	req, _ := http.NewRequest("POST", "/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp["url"].(string), "/uploads/"))
	assert.Equal(t, "photo.png", resp["file_name"])
	assert.Equal(t, "image/png", resp["file_type"])
}

func TestMediaHandler_Upload_DisallowedExtension(t *testing.T) {
	r := newMediaRouter(t, true)

	body, contentType := multipartUpload(t, "malware.exe", pngBytes)
	req, _ := http.NewRequest("POST", "/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMediaHandler_Upload_ExtensionMismatch(t *testing.T) {
	r := newMediaRouter(t, true)

	// Расширение .pdf, внутри PNG.
	body, contentType := multipartUpload(t, "document.pdf", pngBytes)
	req, _ := http.NewRequest("POST", "/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMediaHandler_Upload_UnknownContent(t *testing.T) {
	r := newMediaRouter(t, true)

	body, contentType := multipartUpload(t, "notes.png", []byte("plain text, not an image"))
	req, _ := http.NewRequest("POST", "/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMediaHandler_Upload_MissingFile(t *testing.T) {
	r := newMediaRouter(t, true)

	req, _ := http.NewRequest("POST", "/media/upload", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
