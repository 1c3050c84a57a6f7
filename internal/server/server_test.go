package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"filealchemist/internal/blob"
	"filealchemist/internal/converter"
	"filealchemist/internal/models"
	"filealchemist/internal/preferences"
	"filealchemist/internal/queue"
	"filealchemist/internal/storage"
)

// syncDispatcher converts immediately so tests need no background worker.
type syncDispatcher struct {
	q *queue.Queue
}

func (d syncDispatcher) Dispatch(ctx context.Context, id uuid.UUID) error {
	return d.q.Process(ctx, id)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	blobs, err := blob.NewDisk(filepath.Join(dir, "data"))
	require.NoError(t, err)
	prefs, err := preferences.Open(filepath.Join(dir, "prefs.yaml"))
	require.NoError(t, err)

	q := queue.New(storage.NewMemory(), blobs, converter.New())
	cfg := &models.Config{ServerAddr: ":0", MaxUploadMB: 4}
	return NewServer(cfg, q, syncDispatcher{q: q}, prefs)
}

type file struct {
	name, mime string
	data       []byte
}

func pngFile(t *testing.T, name string, w, h int) file {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return file{name: name, mime: "image/png", data: buf.Bytes()}
}

func uploadRequest(t *testing.T, files []file, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.mime)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/jobs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type uploadResponse struct {
	Accepted []struct {
		ID         uuid.UUID `json:"id"`
		Name       string    `json:"name"`
		Status     string    `json:"status"`
		OutputName string    `json:"output_name"`
	} `json:"accepted"`
	Skipped []struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	} `json:"skipped"`
}

func TestUploadConvertDownload(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, uploadRequest(t, []file{
		pngFile(t, "a.png", 40, 20),
		pngFile(t, "b.png", 10, 10),
		{name: "c.gif", mime: "image/gif", data: []byte("GIF89a")},
	}, map[string]string{"output_format": "jpeg", "quality": "0.8", "width": "20"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	require.Len(t, up.Accepted, 2)
	require.Equal(t, "a.jpg", up.Accepted[0].OutputName)
	require.Equal(t, "pending", up.Accepted[0].Status)
	require.Len(t, up.Skipped, 1)
	require.Equal(t, "unsupported", up.Skipped[0].Reason)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var index struct {
		Pending int `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &index))
	require.Equal(t, 2, index.Pending)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/jobs/convert", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"dispatched":2}`, rec.Body.String())

	rec = do(s, httptest.NewRequest(http.MethodGet, "/jobs/"+up.Accepted[0].ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job struct {
		Status string `json:"status"`
		Result struct {
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			OutputType string `json:"output_type"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, "done", job.Status)
	require.Equal(t, 20, job.Result.Width)
	require.Equal(t, 10, job.Result.Height)
	require.Equal(t, "image/jpeg", job.Result.OutputType)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/jobs/"+up.Accepted[0].ID.String()+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="a.jpg"`)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "filealchemist.zip")
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	require.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Summary queue.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, queue.Summary{Total: 2, Done: 2}, list.Summary)
}

func TestUploadSkipsDuplicates(t *testing.T) {
	s := newTestServer(t)
	f := pngFile(t, "same.png", 4, 4)

	rec := do(s, uploadRequest(t, []file{f}, map[string]string{"last_modified": "7"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, uploadRequest(t, []file{f}, map[string]string{"last_modified": "7"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	require.Empty(t, up.Accepted)
	require.Len(t, up.Skipped, 1)
	require.Equal(t, "duplicate", up.Skipped[0].Reason)
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, uploadRequest(t, nil, map[string]string{"output_format": "png"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, uploadRequest(t, []file{pngFile(t, "a.png", 2, 2)}, map[string]string{"output_format": "gif"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, uploadRequest(t, []file{pngFile(t, "a.png", 2, 2)}, map[string]string{"quality": "high"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailedJobIsReportedAndRetried(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, uploadRequest(t, []file{{name: "broken.png", mime: "image/png", data: []byte("not a png")}}, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	id := up.Accepted[0].ID.String()

	rec = do(s, httptest.NewRequest(http.MethodPost, "/jobs/convert", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil)
	req.Header.Set("Accept-Language", "pt-BR")
	rec = do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var job struct {
		Status      string `json:"status"`
		StatusLabel string `json:"status_label"`
		Error       string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, "error", job.Status)
	require.Equal(t, "erro", job.StatusLabel)
	require.Equal(t, "falha ao decodificar a imagem", job.Error)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/download", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/archive", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/jobs/"+id+"/retry", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAndClear(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, uploadRequest(t, []file{pngFile(t, "a.png", 2, 2), pngFile(t, "b.png", 3, 3)}, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))

	rec = do(s, httptest.NewRequest(http.MethodDelete, "/jobs/"+up.Accepted[0].ID.String(), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(s, httptest.NewRequest(http.MethodDelete, "/jobs/"+up.Accepted[0].ID.String(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodDelete, "/jobs", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Contains(t, rec.Body.String(), `"total":0`)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferences(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/preferences", nil)
	req.Header.Set("Accept-Language", "pt-PT")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"theme":"light","language":"pt"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/preferences", strings.NewReader(`{"theme":"dark","language":"en"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"theme":"dark","language":"en"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/preferences", strings.NewReader(`{"theme":"sepia"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
