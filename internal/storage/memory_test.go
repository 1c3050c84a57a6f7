package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"filealchemist/internal/models"
)

func newJob(name string) *models.Job {
	return models.NewJob(models.FileIdentity{Name: name, Size: 1, LastModified: 1}, "image/png", models.ConvertSettings{OutputFormat: models.FormatPNG})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, b := newJob("a.png"), newJob("b.png")
	require.NoError(t, m.SaveJob(ctx, a))
	require.NoError(t, m.SaveJob(ctx, b))
	require.ErrorIs(t, m.SaveJob(ctx, newJob("a.png")), ErrDuplicate)

	jobs, err := m.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, a.ID, jobs[0].ID)
	require.Equal(t, b.ID, jobs[1].ID)

	got, err := m.GetJob(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, got.Transition(models.StatusProcessing))

	stored, err := m.GetJob(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, stored.Status, "callers get copies")

	require.NoError(t, m.UpdateJob(ctx, got))
	stored, err = m.GetJob(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, stored.Status)

	require.NoError(t, m.DeleteJob(ctx, a.ID))
	_, err = m.GetJob(ctx, a.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, m.DeleteJob(ctx, uuid.New()), ErrNotFound)
	require.ErrorIs(t, m.UpdateJob(ctx, a), ErrNotFound)

	require.NoError(t, m.DeleteAll(ctx))
	jobs, err = m.ListJobs(ctx)
	require.NoError(t, err)
	require.Empty(t, jobs)
}
