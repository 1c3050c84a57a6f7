package fileident

import (
	"testing"

	"github.com/stretchr/testify/require"

	"filealchemist/internal/models"
)

func id(name string, size, mod int64) models.FileIdentity {
	return models.FileIdentity{Name: name, Size: size, LastModified: mod}
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, "photo.png::128::99", Fingerprint(id("photo.png", 128, 99)))
}

func TestFilterUnique_SkipsExisting(t *testing.T) {
	existing := []models.FileIdentity{id("a.png", 10, 1)}
	incoming := []models.FileIdentity{id("a.png", 10, 1), id("b.png", 20, 2)}

	require.Equal(t, []models.FileIdentity{id("b.png", 20, 2)}, FilterUnique(existing, incoming))
}

func TestFilterUnique_SkipsDuplicatesWithinBatch(t *testing.T) {
	incoming := []models.FileIdentity{
		id("dup.jpg", 30, 7),
		id("dup.jpg", 30, 7),
		id("unique.jpg", 40, 8),
	}

	require.Equal(t, []models.FileIdentity{
		id("dup.jpg", 30, 7),
		id("unique.jpg", 40, 8),
	}, FilterUnique[models.FileIdentity, models.FileIdentity](nil, incoming))
}

func TestFilterUnique_AnyFieldMakesItDifferent(t *testing.T) {
	incoming := []models.FileIdentity{
		id("a.png", 10, 1),
		id("a.png", 11, 1),
		id("a.png", 10, 2),
		id("b.png", 10, 1),
	}

	require.Equal(t, incoming, FilterUnique([]models.FileIdentity{}, incoming))
}

func TestFilterUnique_MixedTypes(t *testing.T) {
	existing := []*models.Job{
		models.NewJob(id("a.png", 10, 1), "image/png", models.ConvertSettings{}),
	}
	incoming := []models.FileIdentity{id("a.png", 10, 1), id("c.png", 5, 5)}

	require.Equal(t, []models.FileIdentity{id("c.png", 5, 5)}, FilterUnique(existing, incoming))
}
