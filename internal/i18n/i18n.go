// Package i18n localizes API messages. Locale catalogs are TOML files
// embedded at build time; lookup falls back to the default language and then
// to the raw message key, so a missing translation never fails a request.
package i18n

import (
	"embed"
	"fmt"
	"net/http"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

const DefaultLanguage = "en"

var supported = []string{"en", "pt", "es"}

type Translator struct {
	bundle *goi18n.Bundle
}

func New() (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, lang := range supported {
		path := fmt.Sprintf("locales/%s.toml", lang)
		if _, err := bundle.LoadMessageFileFS(localeFS, path); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", lang, err)
		}
	}
	return &Translator{bundle: bundle}, nil
}

// Translate resolves key in the requested language. Unknown languages fall
// back to the default catalog; a key missing everywhere comes back verbatim.
func (t *Translator) Translate(lang, key string, params map[string]string) string {
	localizer := goi18n.NewLocalizer(t.bundle, lang, DefaultLanguage)

	var data map[string]any
	if len(params) > 0 {
		data = make(map[string]any, len(params))
		for k, v := range params {
			data[k] = v
		}
	}
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		return key
	}
	return msg
}

// Supported reports whether the language has a shipped catalog.
func Supported(lang string) bool {
	for _, s := range supported {
		if s == lang {
			return true
		}
	}
	return false
}

// FromRequest picks the response language: the lang query parameter wins,
// then the primary Accept-Language subtag, then the default.
func FromRequest(r *http.Request) string {
	if lang := normalize(r.URL.Query().Get("lang")); lang != "" {
		return lang
	}
	header := r.Header.Get("Accept-Language")
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if lang := normalize(tag); lang != "" {
			return lang
		}
	}
	return DefaultLanguage
}

func normalize(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return ""
	}
	// "pt-BR" matches the "pt" catalog.
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if Supported(tag) {
		return tag
	}
	return ""
}
