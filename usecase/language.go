package usecase

import (
	"errors"
	"sync"

	"github.com/satriahrh/papantulis/server/domain/entities"
)

// LanguageSetting holds the narration language used by the generator
type LanguageSetting struct {
	mu   sync.RWMutex
	lang string
}

// NewLanguageSetting starts with the default narration language
func NewLanguageSetting() *LanguageSetting {
	return &LanguageSetting{lang: entities.DefaultLanguage}
}

// Set stores lang in voice form ("en-US" becomes "en_US") and returns it
func (l *LanguageSetting) Set(lang string) (string, error) {
	normalized := entities.NormalizeLanguage(lang)
	if normalized == "" {
		return "", errors.New("language cannot be empty")
	}
	l.mu.Lock()
	l.lang = normalized
	l.mu.Unlock()
	return normalized, nil
}

// Get returns the current language
func (l *LanguageSetting) Get() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lang
}
