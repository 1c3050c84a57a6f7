// Package archive packages converted files into a single zip download.
package archive

import (
	"strconv"
	"strings"
)

// DefaultName replaces names that are empty after trimming.
const DefaultName = "file"

var separators = strings.NewReplacer("/", "_", "\\", "_")

// SanitizeName trims whitespace and replaces path separators so a name can
// never address a directory inside the archive.
func SanitizeName(name string) string {
	name = separators.Replace(strings.TrimSpace(name))
	if name == "" {
		return DefaultName
	}
	return name
}

// EnsureUniqueFilenames returns names with collisions resolved by appending
// " (2)", " (3)", ... before the extension. The first occurrence of a name is
// never changed, and the result has the same length and order as names.
func EnsureUniqueFilenames(names []string) []string {
	used := make(map[string]struct{}, len(names))
	out := make([]string, len(names))

	for i, raw := range names {
		name := SanitizeName(raw)
		if _, ok := used[name]; !ok {
			used[name] = struct{}{}
			out[i] = name
			continue
		}

		base, ext := splitExt(name)
		for n := 2; ; n++ {
			candidate := base + " (" + strconv.Itoa(n) + ")" + ext
			if _, ok := used[candidate]; !ok {
				used[candidate] = struct{}{}
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// splitExt splits at the last dot that is neither the first nor the last
// character, so ".env" and "name." have no extension.
func splitExt(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i:]
}
