package config

import "time"

// Default configuration values.
const (
	DefaultStateFile      = ".leaptable/state.db"
	DefaultEnv            = "dev"
	DefaultMaxRetries     = 5
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultMaxFacetValues = 100
)

// Lock backends.
const (
	LockBackendMemory   = "memory"
	LockBackendPostgres = "postgres"
)

// Output formats.
const (
	OutputText     = "text"
	OutputJSON     = "json"
	OutputMarkdown = "markdown"
)

func defaults() map[string]any {
	return map[string]any{
		"state_path":         DefaultStateFile,
		"environment":        DefaultEnv,
		"verbose":            false,
		"output":             OutputText,
		"lock.backend":       LockBackendMemory,
		"worker.max_retries": DefaultMaxRetries,
		"worker.base_delay":  DefaultBaseDelay.String(),
		"facets.max_values":  DefaultMaxFacetValues,
	}
}

// ApplyTargetDefaults fills in the default port of the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil || t.Port != 0 {
		return
	}
	switch t.Type {
	case "postgres":
		t.Port = 5432
	case "mysql":
		t.Port = 3306
	}
}
