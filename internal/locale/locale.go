package locale

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// DefaultCode is the language assigned to accounts that never picked one.
const DefaultCode = "en"

// DefaultCodes mirrors the translation bundles shipped with the panel
// frontend.
var DefaultCodes = []string{"en", "de", "es", "fr", "it", "nl", "pl", "pt", "ru", "zh"}

// Registry holds the set of language codes accounts may select.
type Registry struct {
	codes map[string]language.Tag
}

// NewRegistry builds a registry from BCP 47 language codes. Codes that do
// not parse are rejected so a bad SUPPORTED_LOCALES value fails at startup
// instead of during account validation.
func NewRegistry(codes []string) (*Registry, error) {
	if len(codes) == 0 {
		codes = DefaultCodes
	}
	r := &Registry{codes: make(map[string]language.Tag, len(codes))}
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("unsupported language code %q: %w", code, err)
		}
		r.codes[code] = tag
	}
	if _, ok := r.codes[DefaultCode]; !ok {
		return nil, fmt.Errorf("registry must include the default language %q", DefaultCode)
	}
	return r, nil
}

// Has reports whether code is a selectable language.
func (r *Registry) Has(code string) bool {
	_, ok := r.codes[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// Codes returns the supported codes in sorted order.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.codes))
	for code := range r.codes {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
