// Package i18n holds the text of every message and control shown to the listener.
package i18n

import (
	"fmt"
	"slices"
)

const (
	// DefaultLanguage is used for unknown languages and for keys missing from a catalog
	DefaultLanguage = "en"
	// BerneseGermanMessages is a Swiss Dialect spoken in the Canton of Bern
	BerneseGermanMessages = "ch_be"
)

// catalogs maps a language code to its messages.
var catalogs = map[string]map[string]string{
	DefaultLanguage:       englishMessages,
	BerneseGermanMessages: berneseGermanMessages,
}

// Localizer renders message keys in one language.
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer creates a localizer. Unknown languages render in DefaultLanguage.
func NewLocalizer(language string) *Localizer {
	if !IsSupported(language) {
		language = DefaultLanguage
	}
	return &Localizer{
		language: language,
		messages: catalogs[language],
	}
}

func (l *Localizer) Language() string {
	return l.language
}

// T renders key with args as fmt verbs. An unknown key renders as itself.
func (l *Localizer) T(key string, args ...any) string {
	message, ok := l.lookup(key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

// Has reports whether key renders to a message.
func (l *Localizer) Has(key string) bool {
	_, ok := l.lookup(key)
	return ok
}

func (l *Localizer) lookup(key string) (string, bool) {
	if message, ok := l.messages[key]; ok {
		return message, true
	}
	message, ok := catalogs[DefaultLanguage][key]
	return message, ok
}

// GetSupportedLanguages returns the language codes in a stable order, default first.
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, BerneseGermanMessages}
}

func IsSupported(language string) bool {
	return slices.Contains(GetSupportedLanguages(), language)
}
