package driven

// ConfigStore is a flat, dotted-key view of the configuration file
// ("chunking.size", "llm.api_key"). Typed getters return the zero value
// for a missing key or a value of another type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// Set and Unset change the in-memory view only; Save persists it.
	Set(key string, value any) error
	Unset(key string) error

	Save() error
	Load() error

	// Path identifies the backing file.
	Path() string
}
