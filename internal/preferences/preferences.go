// Package preferences holds the process-wide theme and language settings.
package preferences

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool { return t == ThemeLight || t == ThemeDark }

type Language string

const (
	LangEN Language = "en"
	LangPT Language = "pt"
)

func (l Language) Valid() bool { return l == LangEN || l == LangPT }

func (l Language) Tag() language.Tag {
	if l == LangPT {
		return language.Portuguese
	}
	return language.English
}

var ErrInvalid = errors.New("invalid preference value")

type Preferences struct {
	Theme    Theme    `yaml:"theme,omitempty" json:"theme"`
	Language Language `yaml:"language,omitempty" json:"language"`
}

// Store keeps explicitly chosen preferences and persists them to a yaml file.
// Values the user never chose are left empty and resolved per request.
type Store struct {
	mu    sync.RWMutex
	path  string
	prefs Preferences
	dirty bool
}

// Open loads the file at path. A missing file or unknown values are not
// errors; they simply leave the preference unset.
func Open(path string) (*Store, error) {
	const op = "preferences.Open"

	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var stored Preferences
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return s, nil
	}
	if stored.Theme.Valid() {
		s.prefs.Theme = stored.Theme
	}
	if stored.Language.Valid() {
		s.prefs.Language = stored.Language
	}
	return s, nil
}

// Resolve returns the stored preferences, detecting anything unset from the
// client's Accept-Language and Sec-CH-Prefers-Color-Scheme headers.
func (s *Store) Resolve(acceptLanguage, colorScheme string) Preferences {
	s.mu.RLock()
	p := s.prefs
	s.mu.RUnlock()

	if !p.Theme.Valid() {
		p.Theme = ThemeLight
		if strings.EqualFold(strings.Trim(colorScheme, `" `), "dark") {
			p.Theme = ThemeDark
		}
	}
	if !p.Language.Valid() {
		p.Language = DetectLanguage(acceptLanguage)
	}
	return p
}

// Set stores the non-empty fields of p and persists them.
func (s *Store) Set(p Preferences) (Preferences, error) {
	const op = "preferences.Set"

	if p.Theme != "" && !p.Theme.Valid() {
		return Preferences{}, fmt.Errorf("%s: %w: theme %q", op, ErrInvalid, p.Theme)
	}
	if p.Language != "" && !p.Language.Valid() {
		return Preferences{}, fmt.Errorf("%s: %w: language %q", op, ErrInvalid, p.Language)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Theme != "" {
		s.prefs.Theme = p.Theme
	}
	if p.Language != "" {
		s.prefs.Language = p.Language
	}
	s.dirty = true
	if err := s.save(); err != nil {
		return s.prefs, fmt.Errorf("%s: %w", op, err)
	}
	return s.prefs, nil
}

// Close writes anything a failed Set could not persist.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.save()
}

func (s *Store) save() error {
	data, err := yaml.Marshal(s.prefs)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Portuguese})

// DetectLanguage picks pt for any Portuguese variant, en otherwise.
func DetectLanguage(acceptLanguage string) Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return LangEN
	}
	_, idx, conf := matcher.Match(tags...)
	if idx == 1 && conf != language.No {
		return LangPT
	}
	return LangEN
}
