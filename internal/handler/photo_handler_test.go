package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einsatzpix/gallery-api/internal/dto"
	"github.com/einsatzpix/gallery-api/internal/models"
	"github.com/einsatzpix/gallery-api/internal/service"
	appErrors "github.com/einsatzpix/gallery-api/pkg/errors"
)

type photoServiceMock struct {
	uploadPhoto *models.Photo
	uploadErr   error
	gotUpload   service.PhotoUpload
	gotMeta     dto.UploadPhotoRequest
	gotClientIP string

	photos []models.Photo

	download    *service.PhotoDownload
	downloadErr error
	gotID       string
}

func (m *photoServiceMock) Upload(_ context.Context, upload service.PhotoUpload, meta dto.UploadPhotoRequest, clientIP string) (*models.Photo, error) {
	m.gotUpload = upload
	m.gotMeta = meta
	m.gotClientIP = clientIP
	return m.uploadPhoto, m.uploadErr
}

func (m *photoServiceMock) List() []models.Photo {
	return m.photos
}

func (m *photoServiceMock) Download(id string) (*service.PhotoDownload, error) {
	m.gotID = id
	return m.download, m.downloadErr
}

func newTestRouter(mock *photoServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPhotoHandler(mock)
	r := gin.New()
	r.POST("/upload", h.Upload)
	r.GET("/photos", h.List)
	r.GET("/download/:id", h.Download)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadSuccess(t *testing.T) {
	mock := &photoServiceMock{uploadPhoto: &models.Photo{
		ID:          "abc123",
		URL:         "/static/uploads/abc123.webp",
		DownloadURL: "/download/abc123",
		Name:        "photo.jpg",
		UploadedAt:  "2026-08-31T12:00:00",
	}}
	r := newTestRouter(mock)

	body, contentType := multipartBody(t, map[string]string{
		"mission_number": "42",
		"mission_desc":   "Flächenbrand",
	}, "file", "photo.jpg", []byte("fake image bytes"))

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Success bool         `json:"success"`
		Photo   models.Photo `json:"photo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "abc123", envelope.Photo.ID)

	assert.Equal(t, "photo.jpg", mock.gotUpload.Filename)
	assert.Equal(t, int64(len("fake image bytes")), mock.gotUpload.Size)
	assert.Equal(t, "42", mock.gotMeta.MissionNumber)
	assert.Equal(t, "Flächenbrand", mock.gotMeta.MissionDesc)
}

func TestUploadServiceError(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"quota":       {appErrors.ErrQuotaExceeded, http.StatusTooManyRequests},
		"too large":   {appErrors.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		"missing":     {appErrors.ErrMissingFile, http.StatusBadRequest},
		"unsupported": {appErrors.ErrUnsupportedType, http.StatusBadRequest},
		"too small":   {appErrors.ErrImageTooSmall, http.StatusBadRequest},
		"processing":  {appErrors.ErrProcessingFailed, http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			mock := &photoServiceMock{uploadErr: tc.err}
			r := newTestRouter(mock)

			body, contentType := multipartBody(t, nil, "file", "photo.jpg", []byte("data"))
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)

			var envelope struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
			assert.False(t, envelope.Success)
			assert.Equal(t, appErrors.FromError(tc.err).Message, envelope.Error)
		})
	}
}

func TestUploadWithoutFilePartReachesService(t *testing.T) {
	// The service owns the missing-file decision so the quota pre-check can
	// still run first.
	mock := &photoServiceMock{uploadErr: appErrors.ErrMissingFile}
	r := newTestRouter(mock)

	body, contentType := multipartBody(t, map[string]string{"mission_number": "7"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.gotUpload.Content)
	assert.Empty(t, mock.gotUpload.Filename)
}

func TestListReturnsBareArray(t *testing.T) {
	mock := &photoServiceMock{photos: []models.Photo{
		{ID: "b", UploadedAt: "2026-08-31T12:00:00"},
		{ID: "a", UploadedAt: "2026-08-30T12:00:00"},
	}}
	r := newTestRouter(mock)

	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var photos []models.Photo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &photos))
	require.Len(t, photos, 2)
	assert.Equal(t, "b", photos[0].ID)
}

func TestListEmptyIsJSONArray(t *testing.T) {
	mock := &photoServiceMock{photos: []models.Photo{}}
	r := newTestRouter(mock)

	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestDownloadStreamsAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc123.jpg")
	require.NoError(t, os.WriteFile(path, []byte("original bytes"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	mock := &photoServiceMock{download: &service.PhotoDownload{
		File:      file,
		Filename:  "einsatz.jpg",
		SizeBytes: int64(len("original bytes")),
	}}
	r := newTestRouter(mock)

	req := httptest.NewRequest(http.MethodGet, "/download/abc123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", mock.gotID)
	assert.Equal(t, `attachment; filename="einsatz.jpg"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))

	data, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "original bytes", string(data))
}

func TestDownloadNotFound(t *testing.T) {
	mock := &photoServiceMock{downloadErr: appErrors.ErrNotFound}
	r := newTestRouter(mock)

	req := httptest.NewRequest(http.MethodGet, "/download/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
}

func TestClientIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		xff        string
		remoteAddr string
		want       string
	}{
		"forwarded single":  {"203.0.113.9", "10.0.0.1:4312", "203.0.113.9"},
		"forwarded chain":   {"203.0.113.9, 10.0.0.2, 10.0.0.3", "10.0.0.1:4312", "203.0.113.9"},
		"forwarded padded":  {"  203.0.113.9 , 10.0.0.2", "10.0.0.1:4312", "203.0.113.9"},
		"remote with port":  {"", "192.0.2.4:51234", "192.0.2.4"},
		"remote without":    {"", "192.0.2.4", "192.0.2.4"},
		"nothing available": {"", "", "0.0.0.0"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				c.Request.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, clientIdentity(c))
		})
	}
}
