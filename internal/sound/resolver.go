// Package sound resolves a user-typed name fragment to an audio file in the
// configured sounds directory.
package sound

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is one playable asset. Materialized per resolution call, never cached.
type File struct {
	Path string
	Name string
}

var ErrNoMatch = errors.New("no matching sound file")

var diacritics = strings.NewReplacer(
	"ű", "u", "ü", "u", "ú", "u",
	"ö", "o", "ő", "o", "ó", "o",
	"á", "a",
	"í", "i",
	"é", "e",
)

// Sanitize canonicalizes a name for matching: lowercase, Hungarian vowel
// diacritics folded to plain ASCII, spaces stripped. Idempotent.
func Sanitize(s string) string {
	s = strings.ToLower(s)
	s = diacritics.Replace(s)
	return strings.ReplaceAll(s, " ", "")
}

// Match reports whether the sanitized file name starts with the sanitized
// fragment. Prefix match only, no substring or distance matching.
func Match(fileName, fragment string) bool {
	return strings.HasPrefix(Sanitize(fileName), Sanitize(fragment))
}

// Resolve lists dir (non-recursive, re-read on every call so renames are
// picked up without a restart) and returns the first file whose name matches
// the fragment. os.ReadDir returns entries sorted by filename, so ties go to
// the lexically first name. Subdirectories are skipped, not descended.
func Resolve(dir, fragment string) (File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return File{}, fmt.Errorf("failed to read sounds directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if Match(entry.Name(), fragment) {
			return File{
				Path: filepath.Join(dir, entry.Name()),
				Name: entry.Name(),
			}, nil
		}
	}

	return File{}, ErrNoMatch
}
