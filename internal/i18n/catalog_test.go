package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog(map[string]map[Locale]string{
		"greeting": {
			LocaleEN: "Hello, {name}!",
			LocaleKO: "안녕하세요, {name}님!",
		},
		"english.only": {
			LocaleEN: "Only in English.",
		},
		"arrival": {
			LocaleEN: "{monster} arrives.",
			LocaleKO: "{monster}이(가) 나타납니다.",
		},
	})
}

func TestParseLocale(t *testing.T) {
	loc, ok := ParseLocale("en")
	require.True(t, ok)
	assert.Equal(t, LocaleEN, loc)

	loc, ok = ParseLocale("ko")
	require.True(t, ok)
	assert.Equal(t, LocaleKO, loc)

	_, ok = ParseLocale("fr")
	assert.False(t, ok)
	_, ok = ParseLocale("")
	assert.False(t, ok)
}

func TestStringsGetFallback(t *testing.T) {
	s := Strings{LocaleEN: "sword", LocaleKO: "검"}
	assert.Equal(t, "검", s.Get(LocaleKO))
	assert.Equal(t, "sword", s.Get(LocaleEN))

	// Missing locale falls back to English.
	enOnly := Strings{LocaleEN: "sword"}
	assert.Equal(t, "sword", enOnly.Get(LocaleKO))

	// No English either: any entry beats nothing.
	koOnly := Strings{LocaleKO: "검"}
	assert.Equal(t, "검", koOnly.Get(LocaleEN))

	assert.Equal(t, "", Strings{}.Get(LocaleEN))
}

func TestRenderSubstitutesParams(t *testing.T) {
	c := testCatalog()
	msg := T("greeting", "name", "Mira")
	assert.Equal(t, "Hello, Mira!", c.Render(LocaleEN, msg))
	assert.Equal(t, "안녕하세요, Mira님!", c.Render(LocaleKO, msg))
}

func TestRenderNamedParamsPerLocale(t *testing.T) {
	c := testCatalog()
	msg := T("arrival").WithName("monster", Strings{
		LocaleEN: "a giant rat",
		LocaleKO: "거대한 쥐",
	})
	assert.Equal(t, "a giant rat arrives.", c.Render(LocaleEN, msg))
	assert.Equal(t, "거대한 쥐이(가) 나타납니다.", c.Render(LocaleKO, msg))
}

func TestRenderFallsBackToEnglish(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, "Only in English.", c.Render(LocaleKO, T("english.only")))
}

func TestRenderUnknownKeyRendersKey(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, "no.such.key", c.Render(LocaleEN, T("no.such.key")))
}

func TestRenderRaw(t *testing.T) {
	c := testCatalog()
	msg := Raw("verbatim {not-a-param}")
	assert.Equal(t, "verbatim {not-a-param}", c.Render(LocaleEN, msg))
	assert.Equal(t, "verbatim {not-a-param}", c.Render(LocaleKO, msg))
}

func TestWithNameReturnsCopy(t *testing.T) {
	base := T("arrival")
	derived := base.WithName("monster", Strings{LocaleEN: "a spider"})

	assert.Nil(t, base.NamedParams)
	require.Contains(t, derived.NamedParams, "monster")
	assert.Equal(t, "a spider", derived.NamedParams["monster"].Get(LocaleEN))
}

func TestAddOverrides(t *testing.T) {
	c := testCatalog()
	c.Add("english.only", LocaleKO, "한국어 항목")
	assert.Equal(t, "한국어 항목", c.Render(LocaleKO, T("english.only")))
	assert.True(t, c.Has("english.only"))
	assert.False(t, c.Has("absent"))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"),
		[]byte("greeting: \"Hello, {name}!\"\nfarewell: Goodbye.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ko.yaml"),
		[]byte("greeting: \"안녕하세요, {name}님!\"\n"), 0o644))

	c, err := LoadCatalog(dir)
	require.NoError(t, err)

	assert.Equal(t, "Hello, Ria!", c.Render(LocaleEN, T("greeting", "name", "Ria")))
	assert.Equal(t, "안녕하세요, Ria님!", c.Render(LocaleKO, T("greeting", "name", "Ria")))
	// Korean file omits farewell: English serves both locales.
	assert.Equal(t, "Goodbye.", c.Render(LocaleKO, T("farewell")))
}

func TestLoadCatalogMissingKoreanIsFine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"),
		[]byte("greeting: Hello.\n"), 0o644))

	c, err := LoadCatalog(dir)
	require.NoError(t, err)
	assert.Equal(t, "Hello.", c.Render(LocaleKO, T("greeting")))
}

func TestLoadCatalogMissingEnglishFails(t *testing.T) {
	_, err := LoadCatalog(t.TempDir())
	assert.Error(t, err)
}

func TestLoadCatalogMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"),
		[]byte("greeting: [unterminated\n"), 0o644))

	_, err := LoadCatalog(dir)
	assert.Error(t, err)
}
