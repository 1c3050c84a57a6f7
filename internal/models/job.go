// internal/models/job.go
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusError      JobStatus = "error"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether a job may move from s to next.
// Statuses only move forward: pending -> processing -> done | error.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusDone || next == StatusError
	default:
		return false
	}
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDone, StatusError:
		return true
	}
	return false
}

// FileIdentity is what makes two uploads "the same file".
type FileIdentity struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"last_modified"`
}

func (f FileIdentity) Identity() FileIdentity { return f }

type Job struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Size         int64           `json:"size" db:"size"`
	LastModified int64           `json:"last_modified" db:"last_modified"`
	MimeType     string          `json:"mime_type" db:"mime_type"`
	Status       JobStatus       `json:"status" db:"status"`
	Settings     ConvertSettings `json:"settings" db:"settings"`
	OriginalPath string          `json:"-" db:"original_path"`
	OutputPath   string          `json:"-" db:"output_path"`
	Result       *ResultInfo     `json:"result,omitempty"`
	Error        string          `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ResultInfo is the persisted part of a ConvertResult; the bytes live in blob storage.
type ResultInfo struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	OutputType string `json:"output_type"`
	Size       int64  `json:"size"`
}

func NewJob(id FileIdentity, mimeType string, settings ConvertSettings) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           uuid.New(),
		Name:         id.Name,
		Size:         id.Size,
		LastModified: id.LastModified,
		MimeType:     mimeType,
		Status:       StatusPending,
		Settings:     settings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (j *Job) Identity() FileIdentity {
	return FileIdentity{Name: j.Name, Size: j.Size, LastModified: j.LastModified}
}

// Transition moves the job to next, or fails with ErrInvalidTransition.
func (j *Job) Transition(next JobStatus) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = time.Now().UTC()
	return nil
}
