// Package i18n provides per-recipient message localization. Broadcast
// messages carry a key plus parameters and are rendered at the session
// boundary with that session's locale.
package i18n

// Locale is an opaque language tag. The core only compares and stores it.
type Locale string

// Supported locales.
const (
	LocaleEN Locale = "en"
	LocaleKO Locale = "ko"
)

// ParseLocale validates a locale tag.
//
// Postcondition: Returns (locale, true) for a supported tag, or ("", false).
func ParseLocale(s string) (Locale, bool) {
	switch Locale(s) {
	case LocaleEN, LocaleKO:
		return Locale(s), true
	}
	return "", false
}

// Strings is a per-locale string table, used for room descriptions and
// entity names. Missing locales fall back to English, then to any entry.
type Strings map[Locale]string

// Get returns the string for the given locale with fallback.
//
// Postcondition: Returns "" only when the table is empty.
func (s Strings) Get(loc Locale) string {
	if v, ok := s[loc]; ok && v != "" {
		return v
	}
	if v, ok := s[LocaleEN]; ok && v != "" {
		return v
	}
	for _, v := range s {
		return v
	}
	return ""
}

// Text is an unrendered message: a catalog key plus substitution parameters.
// Rendering happens per recipient so mixed-locale rooms behave correctly.
// NamedParams carry per-locale values (entity names) resolved with the
// recipient's locale at render time.
type Text struct {
	Key         string
	Params      map[string]string
	NamedParams map[string]Strings
}

// WithName returns a copy of t with a per-locale parameter added.
func (t Text) WithName(key string, names Strings) Text {
	out := t
	out.NamedParams = make(map[string]Strings, len(t.NamedParams)+1)
	for k, v := range t.NamedParams {
		out.NamedParams[k] = v
	}
	out.NamedParams[key] = names
	return out
}

// T builds a Text from a key and alternating param name/value pairs.
//
// Precondition: kv must have even length.
func T(key string, kv ...string) Text {
	t := Text{Key: key}
	if len(kv) > 0 {
		t.Params = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			t.Params[kv[i]] = kv[i+1]
		}
	}
	return t
}

// Raw builds a Text that renders to s verbatim in every locale.
func Raw(s string) Text {
	return Text{Key: rawKey, Params: map[string]string{"text": s}}
}

const rawKey = "__raw__"
