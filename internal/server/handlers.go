package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"filealchemist/internal/archive"
	"filealchemist/internal/blob"
	"filealchemist/internal/converter"
	"filealchemist/internal/format"
	"filealchemist/internal/models"
	"filealchemist/internal/preferences"
	"filealchemist/internal/queue"
)

type settingsForm struct {
	OutputFormat string  `form:"output_format" binding:"omitempty,oneof=png jpeg jpg webp PNG JPEG JPG WEBP"`
	Background   string  `form:"background" binding:"max=32"`
	Width        float64 `form:"width"`
	Height       float64 `form:"height"`
	MaxDimension float64 `form:"max_dimension"`
}

type jobView struct {
	*models.Job
	StatusLabel string `json:"status_label"`
	OutputName  string `json:"output_name"`
	SizeHuman   string `json:"size_human"`
	ResultHuman string `json:"result_size_human,omitempty"`
}

func (s *Server) language(c *gin.Context) preferences.Language {
	return s.resolvePreferences(c).Language
}

func (s *Server) resolvePreferences(c *gin.Context) preferences.Preferences {
	return s.prefs.Resolve(c.GetHeader("Accept-Language"), c.GetHeader("Sec-CH-Prefers-Color-Scheme"))
}

func view(job *models.Job, lang preferences.Language) jobView {
	v := jobView{
		Job:         job,
		StatusLabel: preferences.StatusLabel(lang, job.Status),
		OutputName:  archive.SanitizeName(queue.OutputName(job)),
		SizeHuman:   format.FormatBytes(float64(job.Size)),
	}
	if job.Result != nil {
		v.ResultHuman = format.FormatBytes(float64(job.Result.Size))
	}
	if job.Error != "" {
		localized := *job
		localized.Error = preferences.Translate(lang, job.Error)
		v.Job = &localized
	}
	return v
}

func (s *Server) handleIndex(c *gin.Context) {
	const op = "server.handleIndex"

	jobs, err := s.queue.List(c.Request.Context())
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":          "filealchemist",
		"input_types":   converter.InputMimeTypes,
		"max_dimension": converter.MaxDimension,
		"pending":       queue.PendingCount(jobs),
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadMB<<20)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	settings, err := parseSettings(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: no files", op)})
		return
	}
	modified := form.Value["last_modified"]

	uploads := make([]queue.Upload, 0, len(files))
	for i, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
			return
		}
		var lastModified int64
		if i < len(modified) {
			lastModified, _ = strconv.ParseInt(strings.TrimSpace(modified[i]), 10, 64)
		}
		uploads = append(uploads, queue.Upload{
			Name:         fh.Filename,
			LastModified: lastModified,
			MimeType:     fh.Header.Get("Content-Type"),
			Data:         data,
		})
	}

	res, err := s.queue.Admit(c.Request.Context(), uploads, settings)
	if err != nil {
		s.writeError(c, op, err)
		return
	}

	lang := s.language(c)
	accepted := make([]jobView, len(res.Accepted))
	for i, job := range res.Accepted {
		accepted[i] = view(job, lang)
	}
	skipped := make([]gin.H, len(res.Skipped))
	for i, sk := range res.Skipped {
		skipped[i] = gin.H{"name": sk.Name, "reason": sk.Reason, "message": preferences.Translate(lang, sk.Reason)}
	}
	c.JSON(http.StatusCreated, gin.H{"accepted": accepted, "skipped": skipped})
}

func parseSettings(c *gin.Context) (models.ConvertSettings, error) {
	var form settingsForm
	if err := c.ShouldBind(&form); err != nil {
		return models.ConvertSettings{}, err
	}

	settings := models.ConvertSettings{OutputFormat: models.FormatPNG, Background: strings.TrimSpace(form.Background)}
	if form.OutputFormat != "" {
		f, err := converter.ParseOutputFormat(form.OutputFormat)
		if err != nil {
			return models.ConvertSettings{}, err
		}
		settings.OutputFormat = f
	}
	if v := strings.TrimSpace(c.PostForm("quality")); v != "" {
		q, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.ConvertSettings{}, fmt.Errorf("quality: %w", err)
		}
		settings.Quality = &q
	}
	if form.Width > 0 || form.Height > 0 || form.MaxDimension > 0 {
		settings.Resize = &models.ResizeOptions{
			Width:        form.Width,
			Height:       form.Height,
			MaxDimension: form.MaxDimension,
		}
	}
	return settings, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleListJobs(c *gin.Context) {
	const op = "server.handleListJobs"

	jobs, err := s.queue.List(c.Request.Context())
	if err != nil {
		s.writeError(c, op, err)
		return
	}

	lang := s.language(c)
	views := make([]jobView, len(jobs))
	for i, job := range jobs {
		views[i] = view(job, lang)
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views, "summary": queue.Summarize(jobs)})
}

func (s *Server) handleGetJob(c *gin.Context) {
	const op = "server.handleGetJob"
	id, ok := s.jobID(c, op)
	if !ok {
		return
	}

	job, err := s.queue.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, view(job, s.language(c)))
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	const op = "server.handleDeleteJob"
	id, ok := s.jobID(c, op)
	if !ok {
		return
	}

	if err := s.queue.Remove(c.Request.Context(), id); err != nil {
		s.writeError(c, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearJobs(c *gin.Context) {
	const op = "server.handleClearJobs"
	if err := s.queue.Clear(c.Request.Context()); err != nil {
		s.writeError(c, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRetryJob(c *gin.Context) {
	const op = "server.handleRetryJob"
	id, ok := s.jobID(c, op)
	if !ok {
		return
	}

	job, err := s.queue.Retry(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, view(job, s.language(c)))
}

func (s *Server) handleConvert(c *gin.Context) {
	const op = "server.handleConvert"

	n, err := s.queue.DispatchPending(c.Request.Context(), s.dispatcher)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"dispatched": n})
}

func (s *Server) handleDownload(c *gin.Context) {
	const op = "server.handleDownload"
	id, ok := s.jobID(c, op)
	if !ok {
		return
	}

	job, data, err := s.queue.Download(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, op, err)
		return
	}

	name := archive.SanitizeName(queue.OutputName(job))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, job.Result.OutputType, data)
}

func (s *Server) handleArchive(c *gin.Context) {
	const op = "server.handleArchive"

	var buf bytes.Buffer
	n, err := s.queue.WriteArchive(c.Request.Context(), &buf)
	if err != nil {
		s.writeError(c, op, err)
		return
	}

	log.Info().Int("files", n).Str("size", format.FormatBytes(float64(buf.Len()))).Msg("archive built")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.FileName))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, s.resolvePreferences(c))
}

func (s *Server) handlePutPreferences(c *gin.Context) {
	const op = "server.handlePutPreferences"

	var req preferences.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if _, err := s.prefs.Set(req); err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, s.resolvePreferences(c))
}

func (s *Server) jobID(c *gin.Context, op string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, queue.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, queue.ErrNotDone), errors.Is(err, queue.ErrNotFailed),
		errors.Is(err, queue.ErrNotPending), errors.Is(err, queue.ErrEmptyArchive):
		status = http.StatusConflict
	case errors.Is(err, preferences.ErrInvalid):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
}
