package driving

import "github.com/custodia-labs/ragkit/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set validates and stores a single dotted key.
	Set(key, value string) error

	// Keys returns all recognised setting keys.
	Keys() []string

	// Value returns the effective value of a key for display.
	// Secrets are masked.
	Value(key string) (string, error)

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
