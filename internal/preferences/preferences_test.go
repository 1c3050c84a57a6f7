package preferences

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"filealchemist/internal/models"
)

func TestOpen_MissingFileResolvesDefaults(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)

	require.Equal(t, Preferences{Theme: ThemeLight, Language: LangEN}, s.Resolve("", ""))
	require.Equal(t, Preferences{Theme: ThemeDark, Language: LangPT}, s.Resolve("pt-BR,pt;q=0.9,en;q=0.8", "dark"))
	require.NoError(t, s.Close())
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	got, err := s.Set(Preferences{Theme: ThemeDark})
	require.NoError(t, err)
	require.Equal(t, ThemeDark, got.Theme)

	_, err = s.Set(Preferences{Language: "fr"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = s.Set(Preferences{Language: LangPT})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, Preferences{Theme: ThemeDark, Language: LangPT}, reopened.Resolve("en-US", "light"))
}

func TestOpen_IgnoresInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: purple\nlanguage: pt\n"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, Preferences{Theme: ThemeLight, Language: LangPT}, s.Resolve("en", ""))
}

func TestDetectLanguage(t *testing.T) {
	require.Equal(t, LangPT, DetectLanguage("pt"))
	require.Equal(t, LangPT, DetectLanguage("pt-PT"))
	require.Equal(t, LangEN, DetectLanguage("en-GB,en;q=0.9"))
	require.Equal(t, LangEN, DetectLanguage("de-DE"))
	require.Equal(t, LangEN, DetectLanguage("garbage;;q=x"))
}

func TestTranslate(t *testing.T) {
	require.Equal(t, "falha ao decodificar a imagem", Translate(LangPT, "failed to decode image"))
	require.Equal(t, "failed to decode image", Translate(LangEN, "failed to decode image"))
	require.Equal(t, "something else 100%", Translate(LangPT, "something else 100%"))
	require.Equal(t, "concluído", StatusLabel(LangPT, models.StatusDone))
	require.Equal(t, "pending", StatusLabel(LangEN, models.StatusPending))
}
