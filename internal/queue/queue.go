// Package queue owns conversion jobs: admission, processing and packaging.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"filealchemist/internal/archive"
	"filealchemist/internal/blob"
	"filealchemist/internal/converter"
	"filealchemist/internal/fileident"
	"filealchemist/internal/models"
	"filealchemist/internal/storage"
)

var (
	ErrNotFound     = errors.New("job not found")
	ErrNotPending   = errors.New("job is not pending")
	ErrNotDone      = errors.New("job has no result")
	ErrNotFailed    = errors.New("only failed jobs can be retried")
	ErrEmptyArchive = errors.New("no converted files to package")
)

const (
	SkipUnsupported = "unsupported"
	SkipDuplicate   = "duplicate"
)

type Repository interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context) ([]*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

type Converter interface {
	Convert(ctx context.Context, data []byte, settings models.ConvertSettings) (*models.ConvertResult, error)
}

// Upload is a file offered to the queue.
type Upload struct {
	Name         string
	LastModified int64
	MimeType     string
	Data         []byte
}

func (u *Upload) Identity() models.FileIdentity {
	return models.FileIdentity{Name: u.Name, Size: int64(len(u.Data)), LastModified: u.LastModified}
}

type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type AdmitResult struct {
	Accepted []*models.Job `json:"accepted"`
	Skipped  []Skipped     `json:"skipped"`
}

type Summary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Error      int `json:"error"`
}

type Queue struct {
	repo  Repository
	blobs blob.Store
	conv  Converter

	// admit serializes admission so the duplicate check and the insert
	// see the same queue snapshot.
	admit sync.Mutex
}

func New(repo Repository, blobs blob.Store, conv Converter) *Queue {
	return &Queue{repo: repo, blobs: blobs, conv: conv}
}

// Admit accepts supported, not yet queued uploads as pending jobs.
func (q *Queue) Admit(ctx context.Context, uploads []Upload, settings models.ConvertSettings) (*AdmitResult, error) {
	const op = "queue.Admit"

	q.admit.Lock()
	defer q.admit.Unlock()

	existing, err := q.repo.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &AdmitResult{Accepted: []*models.Job{}, Skipped: []Skipped{}}
	supported := make([]*Upload, 0, len(uploads))
	for i := range uploads {
		u := uploads[i]
		u.MimeType = converter.ResolveMime(u.MimeType, u.Data)
		if !converter.IsSupportedInput(u.MimeType) {
			res.Skipped = append(res.Skipped, Skipped{Name: u.Name, Reason: SkipUnsupported})
			continue
		}
		supported = append(supported, &u)
	}

	unique := fileident.FilterUnique(existing, supported)
	keep := make(map[*Upload]bool, len(unique))
	for _, u := range unique {
		keep[u] = true
	}

	for _, u := range supported {
		if !keep[u] {
			res.Skipped = append(res.Skipped, Skipped{Name: u.Name, Reason: SkipDuplicate})
			continue
		}

		job := models.NewJob(u.Identity(), u.MimeType, settings)
		job.OriginalPath = blob.OriginalKey(job.ID.String(), originalExt(u.MimeType))
		if err := q.blobs.Put(ctx, job.OriginalPath, u.Data, u.MimeType); err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		if err := q.repo.SaveJob(ctx, job); err != nil {
			q.deleteBlob(ctx, job.OriginalPath)
			if errors.Is(err, storage.ErrDuplicate) {
				res.Skipped = append(res.Skipped, Skipped{Name: u.Name, Reason: SkipDuplicate})
				continue
			}
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res.Accepted = append(res.Accepted, job)
	}

	log.Info().Int("accepted", len(res.Accepted)).Int("skipped", len(res.Skipped)).Msg("files admitted")
	return res, nil
}

// Process converts one pending job. A failed conversion moves the job to
// error and is not returned; only storage failures are.
func (q *Queue) Process(ctx context.Context, id uuid.UUID) error {
	const op = "queue.Process"

	job, err := q.get(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if job.Status != models.StatusPending {
		return fmt.Errorf("%s: %w", op, ErrNotPending)
	}

	if err := job.Transition(models.StatusProcessing); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := q.update(ctx, job); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := q.blobs.Get(ctx, job.OriginalPath)
	if err != nil {
		return errors.Join(fmt.Errorf("%s: %w", op, err), q.fail(ctx, job, "original file is no longer available"))
	}

	result, err := q.conv.Convert(ctx, data, job.Settings)
	if err != nil {
		log.Warn().Err(err).Str("job", job.ID.String()).Str("name", job.Name).Msg("conversion failed")
		if ferr := q.fail(ctx, job, failureMessage(err)); ferr != nil {
			return fmt.Errorf("%s: %w", op, ferr)
		}
		return nil
	}

	job.OutputPath = blob.OutputKey(job.ID.String(), converter.OutputExtension(job.Settings.OutputFormat))
	if err := q.blobs.Put(ctx, job.OutputPath, result.Data, result.OutputType); err != nil {
		return errors.Join(fmt.Errorf("%s: %w", op, err), q.fail(ctx, job, "failed to store converted file"))
	}

	job.Result = result.Info()
	if err := job.Transition(models.StatusDone); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := q.update(ctx, job); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Removed while converting.
			q.deleteBlob(ctx, job.OutputPath)
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info().Str("job", job.ID.String()).Str("name", job.Name).
		Int("width", result.Width).Int("height", result.Height).Int64("size", result.Size).
		Msg("job converted")
	return nil
}

func (q *Queue) fail(ctx context.Context, job *models.Job, msg string) error {
	job.Error = msg
	if err := job.Transition(models.StatusError); err != nil {
		return err
	}
	if err := q.update(ctx, job); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (q *Queue) update(ctx context.Context, job *models.Job) error {
	err := q.repo.UpdateJob(ctx, job)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// RunPending processes pending jobs in admission order, one at a time.
// A failure of one job never stops the others.
func (q *Queue) RunPending(ctx context.Context) error {
	const op = "queue.RunPending"

	jobs, err := q.repo.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var errs []error
	for _, job := range jobs {
		if job.Status != models.StatusPending {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := q.Process(ctx, job.ID); err != nil && !errors.Is(err, ErrNotPending) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecoverInterrupted fails jobs left in processing by a previous run. They
// cannot go back to pending; Retry resubmits them.
func (q *Queue) RecoverInterrupted(ctx context.Context) (int, error) {
	const op = "queue.RecoverInterrupted"

	jobs, err := q.repo.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n := 0
	for _, job := range jobs {
		if job.Status != models.StatusProcessing {
			continue
		}
		if err := q.fail(ctx, job, "conversion was interrupted"); err != nil {
			return n, fmt.Errorf("%s: %w", op, err)
		}
		n++
	}
	return n, nil
}

// DispatchPending hands every pending job to d in admission order.
func (q *Queue) DispatchPending(ctx context.Context, d Dispatcher) (int, error) {
	const op = "queue.DispatchPending"

	jobs, err := q.repo.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n := 0
	for _, job := range jobs {
		if job.Status != models.StatusPending {
			continue
		}
		if err := d.Dispatch(ctx, job.ID); err != nil {
			return n, fmt.Errorf("%s: %w", op, err)
		}
		n++
	}
	return n, nil
}

func (q *Queue) List(ctx context.Context) ([]*models.Job, error) {
	const op = "queue.List"
	jobs, err := q.repo.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	const op = "queue.Get"
	job, err := q.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return job, nil
}

func (q *Queue) get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := q.repo.GetJob(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return job, err
}

// Remove deletes a job and its files.
func (q *Queue) Remove(ctx context.Context, id uuid.UUID) error {
	const op = "queue.Remove"

	job, err := q.get(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := q.repo.DeleteJob(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	q.deleteBlob(ctx, job.OriginalPath)
	q.deleteBlob(ctx, job.OutputPath)
	return nil
}

// Clear removes every job.
func (q *Queue) Clear(ctx context.Context) error {
	const op = "queue.Clear"

	jobs, err := q.repo.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := q.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, job := range jobs {
		q.deleteBlob(ctx, job.OriginalPath)
		q.deleteBlob(ctx, job.OutputPath)
	}
	return nil
}

// Retry resubmits a failed job as a new pending job at the end of the queue.
func (q *Queue) Retry(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	const op = "queue.Retry"

	q.admit.Lock()
	defer q.admit.Unlock()

	failed, err := q.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if failed.Status != models.StatusError {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFailed)
	}

	job := models.NewJob(failed.Identity(), failed.MimeType, failed.Settings)
	job.OriginalPath = failed.OriginalPath

	if err := q.repo.DeleteJob(ctx, failed.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := q.repo.SaveJob(ctx, job); err != nil {
		// Put the failed job back so it can still be retried or removed.
		if rerr := q.repo.SaveJob(ctx, failed); rerr != nil {
			return nil, fmt.Errorf("%s: %w", op, errors.Join(err, rerr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	q.deleteBlob(ctx, failed.OutputPath)
	return job, nil
}

func (q *Queue) Download(ctx context.Context, id uuid.UUID) (*models.Job, []byte, error) {
	const op = "queue.Download"

	job, err := q.get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if job.Status != models.StatusDone || job.OutputPath == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrNotDone)
	}
	data, err := q.blobs.Get(ctx, job.OutputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return job, data, nil
}

// WriteArchive zips every converted file into w and returns how many were
// written.
func (q *Queue) WriteArchive(ctx context.Context, w io.Writer) (int, error) {
	const op = "queue.WriteArchive"

	jobs, err := q.repo.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var entries []archive.Entry
	for _, job := range jobs {
		if job.Status != models.StatusDone || job.OutputPath == "" {
			continue
		}
		data, err := q.blobs.Get(ctx, job.OutputPath)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, archive.Entry{Name: OutputName(job), Data: data, Modified: job.UpdatedAt})
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrEmptyArchive)
	}

	if err := archive.Package(w, entries); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return len(entries), nil
}

func (q *Queue) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := q.blobs.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to delete file")
	}
}

// failureMessage keeps the user facing part of a conversion error.
func failureMessage(err error) string {
	var ce *converter.Error
	if errors.As(err, &ce) {
		return ce.Msg
	}
	return err.Error()
}

// OutputName is the job's file name with the output format's extension.
func OutputName(job *models.Job) string {
	name := strings.TrimSpace(job.Name)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return name + converter.OutputExtension(job.Settings.OutputFormat)
}

func PendingCount(jobs []*models.Job) int {
	n := 0
	for _, j := range jobs {
		if j.Status == models.StatusPending {
			n++
		}
	}
	return n
}

func Summarize(jobs []*models.Job) Summary {
	s := Summary{Total: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusProcessing:
			s.Processing++
		case models.StatusDone:
			s.Done++
		case models.StatusError:
			s.Error++
		}
	}
	return s
}

func originalExt(mime string) string {
	switch mime {
	case converter.MimeJPEG:
		return ".jpg"
	case converter.MimeWebP:
		return ".webp"
	}
	return ".png"
}
