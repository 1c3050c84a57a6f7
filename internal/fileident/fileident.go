// Package fileident decides whether two uploads are the same file.
package fileident

import (
	"strconv"

	"filealchemist/internal/models"
)

const separator = "::"

type Identifier interface {
	Identity() models.FileIdentity
}

// Fingerprint is name::size::lastModified.
func Fingerprint(f models.FileIdentity) string {
	return f.Name + separator + strconv.FormatInt(f.Size, 10) + separator + strconv.FormatInt(f.LastModified, 10)
}

// FilterUnique returns the entries of incoming whose fingerprint is neither
// in existing nor seen earlier in incoming. Order is preserved.
func FilterUnique[T Identifier, E Identifier](existing []E, incoming []T) []T {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		seen[Fingerprint(e.Identity())] = struct{}{}
	}

	out := make([]T, 0, len(incoming))
	for _, f := range incoming {
		key := Fingerprint(f.Identity())
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
